package report

import (
	"strings"

	"consultor-integral/internal/match"
	"consultor-integral/internal/recommend"
	"consultor-integral/internal/store"
	"consultor-integral/internal/wizard"
)

// PortfolioRecord is the flat persistence payload of a consultation. Only paper, soap and
// towel products are tracked; other products are left out.
type PortfolioRecord struct {
	Sector      string   `json:"sector"`
	Women       int      `json:"mujeres"`
	Men         int      `json:"hombres"`
	Days        int      `json:"dias"`
	Hours       int      `json:"horas"`
	PublicTypes []string `json:"tipo"`
	RefPaper    *string  `json:"refpapel"`
	ConsPaper   *float64 `json:"conspapel"`
	RefSoap     *string  `json:"refjabones"`
	ConsSoap    *float64 `json:"consjabones"`
	RefTowels   *string  `json:"reftoallas"`
	ConsTowels  *float64 `json:"constoallas"`
}

// BuildPortfolioRecord maps the consultation onto the three tracked product families. A
// product is mapped when it has a consumption answer or a chosen reference; consumption is
// null unless it is applicable. When two products fall in the same family the later one in
// selection order wins.
func BuildPortfolioRecord(profile wizard.CompanyProfile, consumption recommend.ConsumptionResult) PortfolioRecord {
	record := PortfolioRecord{
		Sector:      profile.Sector,
		Women:       profile.Women,
		Men:         profile.Men,
		Days:        profile.DaysPerMonth,
		Hours:       profile.HoursPerDay,
		PublicTypes: append([]string{}, profile.PublicTypes...),
	}
	for _, product := range profile.Products {
		c, ok := consumption[product]
		chosen := recommend.ChosenReference(profile.SelectedReferences, consumption, product)
		if !ok && chosen == "" {
			continue
		}
		ref := optionalString(chosen)
		var cons *float64
		if ok && c.Applicable {
			value := c.Monthly
			cons = &value
		}
		switch match.ProductCategory(product) {
		case match.CategoryPaper:
			record.RefPaper, record.ConsPaper = ref, cons
		case match.CategorySoap:
			record.RefSoap, record.ConsSoap = ref, cons
		case match.CategoryTowels:
			record.RefTowels, record.ConsTowels = ref, cons
		}
	}
	return record
}

// Model converts the record into its database row.
func (r PortfolioRecord) Model(sessionID string) *store.Portfolio {
	return &store.Portfolio{
		SessionID:   sessionID,
		Sector:      truncate(r.Sector, 50),
		Mujeres:     r.Women,
		Hombres:     r.Men,
		Dias:        r.Days,
		Horas:       r.Hours,
		Tipo:        truncate(strings.Join(r.PublicTypes, ","), 50),
		RefPapel:    truncatePtr(r.RefPaper, 80),
		ConsPapel:   r.ConsPaper,
		RefJabones:  truncatePtr(r.RefSoap, 80),
		ConsJabones: r.ConsSoap,
		RefToallas:  truncatePtr(r.RefTowels, 80),
		ConsToallas: r.ConsTowels,
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func truncatePtr(value *string, limit int) *string {
	if value == nil {
		return nil
	}
	out := truncate(*value, limit)
	return &out
}
