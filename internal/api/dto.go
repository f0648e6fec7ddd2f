package api

import (
	"time"

	"consultor-integral/internal/recommend"
	"consultor-integral/internal/report"
	"consultor-integral/internal/store"
	"consultor-integral/internal/wizard"
)

// ConfigResponse lists the wizard's option sets.
type ConfigResponse struct {
	Sectors            []string          `json:"sectors"`
	Sizes              []string          `json:"sizes"`
	PublicTypes        []PublicTypeDTO   `json:"public_types"`
	Products           []string          `json:"products"`
	Segments           []string          `json:"segments"`
	TrafficLevels      []TrafficLevelDTO `json:"traffic_levels"`
	Steps              []wizard.Step     `json:"steps"`
	CatalogProducts    int               `json:"catalog_products"`
	CatalogRows        int               `json:"catalog_rows"`
	ReferenceRows      int               `json:"reference_rows"`
	BackendConfigured  bool              `json:"backend_configured"`
	PDFEnabled         bool              `json:"pdf_enabled"`
	ActiveCalculations int               `json:"active_calculations"`
}

// PublicTypeDTO pairs a public type with its display name.
type PublicTypeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TrafficLevelDTO describes one traffic level and its lower index bound.
type TrafficLevelDTO struct {
	Level    recommend.TrafficLevel `json:"level"`
	Ordinal  int                    `json:"ordinal"`
	MinIndex float64                `json:"min_index"`
}

// CatalogImportResponse reports how many rows a catalog import stored.
type CatalogImportResponse struct {
	Rows       int `json:"rows"`
	References int `json:"references"`
	Products   int `json:"products"`
}

// ReferencesRequest asks for the selectable references of a product.
type ReferencesRequest struct {
	Product string `json:"producto"`
}

// ReferencesResponse mirrors the calculator's reference listing.
type ReferencesResponse struct {
	References []string `json:"referencias"`
}

// ClassifyRequest carries the inputs of the traffic classifier.
type ClassifyRequest struct {
	Employees int     `json:"employees"`
	Days      float64 `json:"days"`
	Hours     float64 `json:"hours"`
}

// ClassifyResponse is the traffic classification.
type ClassifyResponse struct {
	Level   recommend.TrafficLevel `json:"level"`
	Ordinal int                    `json:"ordinal"`
	Index   float64                `json:"index"`
}

// SegmentRequest carries the inputs of the segment resolver.
type SegmentRequest struct {
	Sector      string   `json:"sector"`
	Size        string   `json:"size"`
	PublicTypes []string `json:"publicTypes"`
}

// SegmentResponse is the resolved bathroom segment.
type SegmentResponse struct {
	Segment string `json:"segment"`
}

// SessionResponse wraps a session snapshot with its id.
type SessionResponse struct {
	ID string `json:"id"`
	wizard.Snapshot
	Current   wizard.Step   `json:"current_step"`
	LastEvent *SessionEvent `json:"last_event,omitempty"`
}

// RecommendationsResponse is the results view of a session.
type RecommendationsResponse struct {
	SessionID   string                            `json:"session_id"`
	Phase       wizard.Phase                      `json:"phase"`
	Report      report.View                       `json:"report"`
	Products    []recommend.ProductRecommendation `json:"products"`
	Consumption recommend.ConsumptionResult       `json:"consumption"`
	Failures    map[string]string                 `json:"failures,omitempty"`
	Error       string                            `json:"error,omitempty"`
}

// ReferenceOptionsResponse is the ordered reference picker of a product.
type ReferenceOptionsResponse struct {
	Product string             `json:"product"`
	Current string             `json:"current,omitempty"`
	Options []recommend.Option `json:"options"`
}

// SelectReferenceRequest sets the chosen reference of a product.
type SelectReferenceRequest struct {
	Reference string `json:"referencia"`
}

// RecalculateRequest asks for a single-product recalculation.
type RecalculateRequest struct {
	Product   string `json:"producto"`
	Reference string `json:"referencia"`
}

// RecalculateResponse carries the recalculated consumption, or the in-band error.
type RecalculateResponse struct {
	Product     string                 `json:"producto"`
	Reference   string                 `json:"referencia"`
	Consumption *recommend.Consumption `json:"consumption,omitempty"`
	Display     string                 `json:"display"`
	Error       string                 `json:"error,omitempty"`
}

// SaveReportResponse reports where the portfolio record was stored.
type SaveReportResponse struct {
	Record      report.PortfolioRecord `json:"record"`
	SavedLocal  bool                   `json:"saved_local"`
	SavedRemote bool                   `json:"saved_remote"`
	Errors      []string               `json:"errors,omitempty"`
}

// PortfolioDTO is the API representation of a saved portfolio.
type PortfolioDTO struct {
	ID          uint      `json:"id"`
	SessionID   string    `json:"session_id"`
	Sector      string    `json:"sector"`
	Mujeres     int       `json:"mujeres"`
	Hombres     int       `json:"hombres"`
	Dias        int       `json:"dias"`
	Horas       int       `json:"horas"`
	Tipo        string    `json:"tipo"`
	RefPapel    *string   `json:"refpapel"`
	ConsPapel   *float64  `json:"conspapel"`
	RefJabones  *string   `json:"refjabones"`
	ConsJabones *float64  `json:"consjabones"`
	RefToallas  *string   `json:"reftoallas"`
	ConsToallas *float64  `json:"constoallas"`
	CreatedAt   time.Time `json:"created_at"`
}

// PortfoliosResponse holds saved portfolios and totals.
type PortfoliosResponse struct {
	Items []PortfolioDTO `json:"items"`
	Total int64          `json:"total"`
}

// PortfolioFromModel converts a stored portfolio row.
func PortfolioFromModel(p store.Portfolio) PortfolioDTO {
	return PortfolioDTO{
		ID:          p.ID,
		SessionID:   p.SessionID,
		Sector:      p.Sector,
		Mujeres:     p.Mujeres,
		Hombres:     p.Hombres,
		Dias:        p.Dias,
		Horas:       p.Horas,
		Tipo:        p.Tipo,
		RefPapel:    p.RefPapel,
		ConsPapel:   p.ConsPapel,
		RefJabones:  p.RefJabones,
		ConsJabones: p.ConsJabones,
		RefToallas:  p.RefToallas,
		ConsToallas: p.ConsToallas,
		CreatedAt:   p.CreatedAt,
	}
}
