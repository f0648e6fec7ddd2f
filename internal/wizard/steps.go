package wizard

import (
	"errors"
	"fmt"
	"strings"

	"consultor-integral/internal/recommend"
)

// Step identifiers in wizard order.
const (
	StepCompanySector    = "company-sector"
	StepDemographics     = "demographics"
	StepPublicType       = "public-type"
	StepProductSelection = "product-selection"
)

// Step describes one page of the questionnaire.
type Step struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ShortTitle  string `json:"short_title"`
	Description string `json:"description"`
}

// Steps is the ordered questionnaire.
var Steps = []Step{
	{
		ID:          StepCompanySector,
		Title:       "Información de la Empresa",
		ShortTitle:  "Empresa",
		Description: "¿Por qué necesitamos esta información?",
	},
	{
		ID:          StepDemographics,
		Title:       "Demografía y Jornada Laboral",
		ShortTitle:  "Demografía",
		Description: "¿Por qué preguntamos sobre demografía?",
	},
	{
		ID:          StepPublicType,
		Title:       "Tipo de Público",
		ShortTitle:  "Público",
		Description: "¿Por qué es importante el tipo de público?",
	},
	{
		ID:          StepProductSelection,
		Title:       "Selección de Productos y Segmentos",
		ShortTitle:  "Productos",
		Description: "¿Por qué seleccionar productos y segmentos específicos?",
	},
}

// Errors returned by the controller.
var (
	ErrCalculationInFlight = errors.New("calculation already in flight")
	ErrNotCollecting       = errors.New("wizard is not collecting profile data")
	ErrProfileIncomplete   = errors.New("profile is incomplete")
	ErrUnknownProduct      = errors.New("product was not selected")
)

// ValidationError carries the user-facing message of a rejected step.
type ValidationError struct {
	Step    string `json:"step"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(step, field, message string) *ValidationError {
	return &ValidationError{Step: step, Field: field, Message: message}
}

// StepInput is the union of every step's form fields. Only the fields of the step being
// submitted are read.
type StepInput struct {
	Sector      string       `json:"sector"`
	Size        string       `json:"size"`
	Women       *int         `json:"numMujeres"`
	Men         *int         `json:"numHombres"`
	Days        *int         `json:"diasLaborales"`
	Hours       *int         `json:"horasLaborales"`
	PublicTypes []string     `json:"tipoPublico"`
	Proportions *Proportions `json:"proporciones"`
	Visitors    *int         `json:"numVisitantes"`
	Products    []string     `json:"products"`
	Segment     string       `json:"bathroomSegment"`
}

// ApplyStep validates input for the step and writes it onto a copy of profile. The original
// profile is never modified, so a rejected step leaves state untouched.
func ApplyStep(stepID string, input StepInput, profile CompanyProfile) (CompanyProfile, error) {
	out := profile.Clone()
	switch stepID {
	case StepCompanySector:
		sector := strings.TrimSpace(input.Sector)
		size := strings.TrimSpace(input.Size)
		if sector == "" {
			return profile, invalid(stepID, "sector", "Seleccione el sector de la empresa")
		}
		if size == "" {
			return profile, invalid(stepID, "size", "Seleccione el tamaño de la empresa")
		}
		if !contains(Sizes, size) {
			return profile, invalid(stepID, "size", fmt.Sprintf("Tamaño de empresa no válido: %s", size))
		}
		out.Sector = sector
		out.Size = size

	case StepDemographics:
		if input.Women == nil || input.Men == nil || input.Days == nil || input.Hours == nil {
			return profile, invalid(stepID, "", "Complete todos los campos de demografía y jornada laboral")
		}
		if *input.Women < 0 || *input.Men < 0 {
			return profile, invalid(stepID, "numMujeres", "El número de empleados no puede ser negativo")
		}
		if *input.Women+*input.Men < 1 {
			return profile, invalid(stepID, "numMujeres", "Debe haber al menos un empleado")
		}
		if *input.Days < 1 || *input.Days > 31 {
			return profile, invalid(stepID, "diasLaborales", "Los días laborales deben estar entre 1 y 31")
		}
		if *input.Hours < 1 || *input.Hours > 24 {
			return profile, invalid(stepID, "horasLaborales", "Las horas laborales deben estar entre 1 y 24")
		}
		out.Women = *input.Women
		out.Men = *input.Men
		out.DaysPerMonth = *input.Days
		out.HoursPerDay = *input.Hours

	case StepPublicType:
		types := dedupe(input.PublicTypes)
		if len(types) == 0 {
			return profile, invalid(stepID, "tipoPublico", "Seleccione al menos un tipo de público")
		}
		for _, t := range types {
			if !contains(PublicTypes, t) {
				return profile, invalid(stepID, "tipoPublico", fmt.Sprintf("Tipo de público no válido: %s", t))
			}
		}
		out.PublicTypes = types
		out.Proportions = nil
		out.Visitors = nil
		if contains(types, PublicAdministrative) && contains(types, PublicOperational) {
			props := input.Proportions
			if props == nil || props.Administrative < 0 || props.Operational < 0 ||
				props.Administrative+props.Operational != 100 {
				return profile, invalid(stepID, "proporciones", "Las proporciones deben sumar exactamente 100%")
			}
			copied := *props
			out.Proportions = &copied
		}
		if contains(types, PublicFloating) {
			if input.Visitors == nil || *input.Visitors <= 0 {
				return profile, invalid(stepID, "numVisitantes", "Debe ingresar un número válido de visitantes diarios")
			}
			visitors := *input.Visitors
			out.Visitors = &visitors
		}

	case StepProductSelection:
		products := dedupe(input.Products)
		if len(products) == 0 {
			return profile, invalid(stepID, "products", "Seleccione al menos un producto")
		}
		segment := strings.TrimSpace(input.Segment)
		if segment == "" {
			return profile, invalid(stepID, "bathroomSegment", "Seleccione el segmento de baños")
		}
		if !contains(recommend.Segments, segment) {
			return profile, invalid(stepID, "bathroomSegment", fmt.Sprintf("Segmento no válido: %s", segment))
		}
		out.Products = products
		out.Segment = segment
		for product := range out.SelectedReferences {
			if !contains(products, product) {
				delete(out.SelectedReferences, product)
			}
		}

	default:
		return profile, fmt.Errorf("unknown step %q", stepID)
	}
	return out, nil
}

// StepIndex returns the position of a step id, or -1.
func StepIndex(stepID string) int {
	for i, step := range Steps {
		if step.ID == stepID {
			return i
		}
	}
	return -1
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
