package report

import (
	"math"
	"strconv"
	"strings"
	"time"

	"consultor-integral/internal/match"
	"consultor-integral/internal/recommend"
	"consultor-integral/internal/wizard"
)

// Disclaimer is printed at the top of every exported report.
const Disclaimer = "Los resultados arrojados son estimaciones de promedios de consumo según análisis que hemos realizado en diferentes industrias y empresas durante años. Pueden variar si hay modificación en la data, por tanto, no son un compromiso con respecto al consumo. Recomendamos hacer el ensayo en el cliente final, para entender a cabalidad sus comportamientos y consumos."

// Consumption display strings.
const (
	ConsumptionUnit         = "cajas/mes"
	ConsumptionNotApplies   = "No aplica"
	ConsumptionFailed       = "Error en el cálculo"
	NoSuggestionsAvailable  = "No hay sugerencias disponibles"
	defaultImageBasePath    = "/static/images"
	referenceImageExtension = ".png"
	dispenserImageExtension = ".jpg"
)

// CompanySummary is the header block of the report.
type CompanySummary struct {
	Sector      string `json:"sector"`
	Size        string `json:"size"`
	Employees   int    `json:"employees"`
	Women       int    `json:"women"`
	Men         int    `json:"men"`
	Days        int    `json:"days"`
	Hours       int    `json:"hours"`
	PublicTypes string `json:"public_types"`
	Proportions string `json:"proportions,omitempty"`
	Visitors    int    `json:"visitors,omitempty"`
}

// Image is a product photo with its fallback caption.
type Image struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// EntryView renders one recommendation entry.
type EntryView struct {
	Positioning string   `json:"positioning"`
	References  []string `json:"references"`
	Dispensers  []string `json:"dispensers"`
	Primary     bool     `json:"primary"`
}

// ProductView is one product section of the report.
type ProductView struct {
	Product         string      `json:"product"`
	Anchor          string      `json:"anchor"`
	HasSuggestions  bool        `json:"has_suggestions"`
	Message         string      `json:"message,omitempty"`
	Entries         []EntryView `json:"entries"`
	ChosenReference string      `json:"chosen_reference,omitempty"`
	ReferenceImage  *Image      `json:"reference_image,omitempty"`
	Dispenser       string      `json:"dispenser,omitempty"`
	DispenserImage  *Image      `json:"dispenser_image,omitempty"`
	Consumption     string      `json:"consumption"`
}

// View is everything the report template needs.
type View struct {
	Title        string         `json:"title"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Disclaimer   string         `json:"disclaimer"`
	Company      CompanySummary `json:"company"`
	Segment      string         `json:"segment"`
	TrafficLevel string         `json:"traffic_level"`
	TrafficIndex float64        `json:"traffic_index"`
	Products     []ProductView  `json:"products"`
	Failure      string         `json:"failure,omitempty"`
}

// Options tune how the view is built.
type Options struct {
	ImageBasePath string
	Now           func() time.Time
	// Failed lists products whose single-product recalculation failed.
	Failed map[string]string
}

// BuildView assembles the report for a finished consultation. calcErr is the bulk
// calculation failure, if any.
func BuildView(profile wizard.CompanyProfile, catalog recommend.Catalog, consumption recommend.ConsumptionResult, calcErr string, opts Options) View {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	imageBase := strings.TrimRight(opts.ImageBasePath, "/")
	if imageBase == "" {
		imageBase = defaultImageBasePath
	}

	level := profile.TrafficLevel()
	view := View{
		Title:        "Recomendaciones Personalizadas",
		GeneratedAt:  now().UTC(),
		Disclaimer:   Disclaimer,
		Company:      summarize(profile),
		Segment:      profile.Segment,
		TrafficLevel: level.String(),
		TrafficIndex: math.Round(profile.TrafficIndex()*100) / 100,
		Failure:      calcErr,
	}

	for _, rec := range recommend.Resolve(catalog, profile.Products, profile.Segment, level) {
		pv := ProductView{
			Product:        rec.Product,
			Anchor:         match.Slug(rec.Product),
			HasSuggestions: rec.HasSuggestions,
			Dispenser:      rec.DefaultDispenser,
			Consumption:    FormatConsumption(consumption, rec.Product, calcErr != "" || opts.Failed[rec.Product] != ""),
		}
		if !rec.HasSuggestions {
			pv.Message = NoSuggestionsAvailable
		}
		for i, entry := range rec.Entries {
			pv.Entries = append(pv.Entries, EntryView{
				Positioning: entry.Positioning,
				References:  append([]string(nil), entry.References...),
				Dispensers:  append([]string(nil), entry.Dispensers...),
				Primary:     i == 0,
			})
		}
		pv.ChosenReference = recommend.ChosenReference(profile.SelectedReferences, consumption, rec.Product)
		if pv.ChosenReference != "" {
			code := match.ReferenceCode(pv.ChosenReference)
			pv.ReferenceImage = &Image{Name: code, URL: imageBase + "/" + code + referenceImageExtension}
		}
		if pv.Dispenser != "" {
			pv.DispenserImage = &Image{Name: pv.Dispenser, URL: imageBase + "/" + pv.Dispenser + dispenserImageExtension}
		}
		view.Products = append(view.Products, pv)
	}
	return view
}

// FormatConsumption renders a product's monthly consumption for display.
func FormatConsumption(consumption recommend.ConsumptionResult, product string, failed bool) string {
	if failed {
		return ConsumptionFailed
	}
	c, ok := consumption[product]
	if !ok || !c.Applicable || c.Monthly == 0 {
		return ConsumptionNotApplies
	}
	return FormatBoxes(c.Monthly)
}

// FormatBoxes renders a monthly quantity as "N cajas/mes" with at most two decimals.
func FormatBoxes(monthly float64) string {
	rounded := math.Round(monthly*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + ConsumptionUnit
}

func summarize(p wizard.CompanyProfile) CompanySummary {
	names := make([]string, 0, len(p.PublicTypes))
	for _, t := range p.PublicTypes {
		if name, ok := wizard.PublicTypeNames[t]; ok {
			names = append(names, name)
			continue
		}
		names = append(names, t)
	}
	summary := CompanySummary{
		Sector:      p.Sector,
		Size:        p.Size,
		Employees:   p.EmployeeCount(),
		Women:       p.Women,
		Men:         p.Men,
		Days:        p.DaysPerMonth,
		Hours:       p.HoursPerDay,
		PublicTypes: strings.Join(names, ", "),
	}
	if p.Proportions != nil {
		summary.Proportions = "Administrativo " + strconv.Itoa(p.Proportions.Administrative) +
			"%, Operativo " + strconv.Itoa(p.Proportions.Operational) + "%"
	}
	if p.Visitors != nil {
		summary.Visitors = *p.Visitors
	}
	return summary
}
