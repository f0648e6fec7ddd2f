package wizard

import "consultor-integral/internal/recommend"

// Public types a company can declare.
const (
	PublicAdministrative = "administrativo"
	PublicOperational    = "operativo"
	PublicFloating       = "flotante"
)

// PublicTypes lists the accepted public types in display order.
var PublicTypes = []string{PublicAdministrative, PublicOperational, PublicFloating}

// PublicTypeNames maps a public type to the label used in reports.
var PublicTypeNames = map[string]string{
	PublicAdministrative: "Administrativo",
	PublicOperational:    "Operativo",
	PublicFloating:       "Flotante",
}

// Sectors offered by the company step.
var Sectors = []string{
	"Oficinas / Corporativo",
	"Industria / Manufactura",
	recommend.SectorHealth,
	"Educación (Colegios, Universidades)",
	recommend.SectorHospitality,
	"Retail / Comercio",
	"Otro",
}

// Sizes offered by the company step.
var Sizes = []string{recommend.SizeSmall, recommend.SizeMedium, recommend.SizeLarge}

// Products offered by the product step.
var Products = []string{"Papel Higiénico", "Toallas de Manos", "Jabones y Gel"}

// Proportions splits the fixed workforce between office and operational staff, in percent.
type Proportions struct {
	Administrative int `json:"administrativo"`
	Operational    int `json:"operativo"`
}

// CompanyProfile accumulates the answers of every wizard step.
type CompanyProfile struct {
	Sector             string            `json:"sector"`
	Size               string            `json:"size"`
	Women              int               `json:"numMujeres"`
	Men                int               `json:"numHombres"`
	DaysPerMonth       int               `json:"diasLaborales"`
	HoursPerDay        int               `json:"horasLaborales"`
	PublicTypes        []string          `json:"tipoPublico"`
	Proportions        *Proportions      `json:"proporciones,omitempty"`
	Visitors           *int              `json:"numVisitantes,omitempty"`
	Products           []string          `json:"products"`
	Segment            string            `json:"bathroomSegment"`
	SelectedReferences map[string]string `json:"selectedReferences,omitempty"`
}

// EmployeeCount is the fixed workforce used for traffic classification.
func (p CompanyProfile) EmployeeCount() int {
	return p.Women + p.Men
}

// TrafficLevel classifies the profile's workforce and schedule.
func (p CompanyProfile) TrafficLevel() recommend.TrafficLevel {
	return recommend.ClassifyTraffic(p.EmployeeCount(), float64(p.DaysPerMonth), float64(p.HoursPerDay))
}

// TrafficIndex exposes the adjusted index behind TrafficLevel.
func (p CompanyProfile) TrafficIndex() float64 {
	return recommend.TrafficIndex(p.EmployeeCount(), float64(p.DaysPerMonth), float64(p.HoursPerDay))
}

// HasPublicType reports whether the given public type was selected.
func (p CompanyProfile) HasPublicType(publicType string) bool {
	for _, t := range p.PublicTypes {
		if t == publicType {
			return true
		}
	}
	return false
}

// HasProduct reports whether the product was selected.
func (p CompanyProfile) HasProduct(product string) bool {
	for _, candidate := range p.Products {
		if candidate == product {
			return true
		}
	}
	return false
}

// Clone deep-copies the profile so callers cannot mutate controller state.
func (p CompanyProfile) Clone() CompanyProfile {
	out := p
	out.PublicTypes = append([]string(nil), p.PublicTypes...)
	out.Products = append([]string(nil), p.Products...)
	if p.Proportions != nil {
		props := *p.Proportions
		out.Proportions = &props
	}
	if p.Visitors != nil {
		visitors := *p.Visitors
		out.Visitors = &visitors
	}
	if p.SelectedReferences != nil {
		out.SelectedReferences = make(map[string]string, len(p.SelectedReferences))
		for k, v := range p.SelectedReferences {
			out.SelectedReferences[k] = v
		}
	}
	return out
}
