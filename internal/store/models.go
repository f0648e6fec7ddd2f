package store

import (
	"encoding/json"
	"strings"
	"time"
)

// CatalogRow is one recommendation entry of the product catalog spreadsheet. Rows sharing
// product, segment and traffic level form a ranked cell ordered by Position.
type CatalogRow struct {
	ID             uint   `gorm:"primaryKey"`
	Product        string `gorm:"size:128;index"`
	Segment        string `gorm:"size:64"`
	TrafficLevel   string `gorm:"size:32"`
	Position       int
	Positioning    string    `gorm:"type:text"`
	ReferencesJSON string    `gorm:"type:text"`
	DispensersJSON string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// SetReferences stores the reference list as JSON.
func (r *CatalogRow) SetReferences(refs []string) {
	r.ReferencesJSON = encodeList(refs)
}

// References returns the decoded reference list.
func (r *CatalogRow) References() []string {
	return decodeList(r.ReferencesJSON)
}

// SetDispensers stores the dispenser list as JSON.
func (r *CatalogRow) SetDispensers(dispensers []string) {
	r.DispensersJSON = encodeList(dispensers)
}

// Dispensers returns the decoded dispenser list.
func (r *CatalogRow) Dispensers() []string {
	return decodeList(r.DispensersJSON)
}

// ProductReference is one selectable reference of a product, in display order.
type ProductReference struct {
	ID        uint   `gorm:"primaryKey"`
	Product   string `gorm:"size:128;index"`
	Reference string `gorm:"size:128"`
	Position  int
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Portfolio is the saved outcome of a consultation: company data plus the chosen reference
// and monthly consumption of the three tracked product families.
type Portfolio struct {
	ID          uint      `gorm:"primaryKey"`
	SessionID   string    `gorm:"size:64;index"`
	Sector      string    `gorm:"size:50"`
	Mujeres     int       `gorm:"column:mujeres"`
	Hombres     int       `gorm:"column:hombres"`
	Dias        int       `gorm:"column:dias"`
	Horas       int       `gorm:"column:horas"`
	Tipo        string    `gorm:"column:tipo;size:50"`
	RefPapel    *string   `gorm:"column:refpapel;size:80"`
	ConsPapel   *float64  `gorm:"column:conspapel"`
	RefJabones  *string   `gorm:"column:refjabones;size:80"`
	ConsJabones *float64  `gorm:"column:consjabones"`
	RefToallas  *string   `gorm:"column:reftoallas;size:80"`
	ConsToallas *float64  `gorm:"column:constoallas"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the historical table name.
func (Portfolio) TableName() string {
	return "dt_portafolios"
}

// SessionState persists wizard sessions across restarts.
type SessionState struct {
	ID          string `gorm:"primaryKey;size:64"`
	Phase       string `gorm:"size:16;index"`
	PayloadJSON string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func encodeList(values []string) string {
	if values == nil {
		return "[]"
	}
	payload, _ := json.Marshal(values)
	return string(payload)
}

func decodeList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
