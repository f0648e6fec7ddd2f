package recommend

// DefaultReference is the first reference of the primary entry.
func DefaultReference(cell Cell) (string, bool) {
	primary, ok := cell.Primary()
	if !ok || len(primary.References) == 0 {
		return "", false
	}
	return primary.References[0], true
}

// DefaultDispenser is the first dispenser of the primary entry.
func DefaultDispenser(cell Cell) (string, bool) {
	primary, ok := cell.Primary()
	if !ok || len(primary.Dispensers) == 0 {
		return "", false
	}
	return primary.Dispensers[0], true
}

// DefaultReferences picks the default reference of every product for a calculation request.
// A nil value tells the calculator to fall back to its own default.
func DefaultReferences(catalog Catalog, products []string, segment string, level TrafficLevel) map[string]*string {
	out := make(map[string]*string, len(products))
	for _, product := range products {
		ref, ok := DefaultReference(catalog.Lookup(product, segment, level))
		if !ok {
			out[product] = nil
			continue
		}
		out[product] = &ref
	}
	return out
}

// ChosenReference resolves which reference is in effect for a product: the consultant's
// explicit choice, else the one the calculator reports having used, else none.
func ChosenReference(selected map[string]string, consumption ConsumptionResult, product string) string {
	if ref, ok := selected[product]; ok && ref != "" {
		return ref
	}
	if c, ok := consumption[product]; ok && c.ReferenceUsed != "" {
		return c.ReferenceUsed
	}
	return ""
}

// ProductRecommendation is the resolved catalog view of one selected product.
type ProductRecommendation struct {
	Product          string   `json:"product"`
	Kind             string   `json:"kind"`
	Entries          []Entry  `json:"entries"`
	HasSuggestions   bool     `json:"has_suggestions"`
	DefaultReference string   `json:"default_reference,omitempty"`
	DefaultDispenser string   `json:"default_dispenser,omitempty"`
	Recommended      []string `json:"recommended_references"`
}

// Resolve looks up every product for the segment and level.
func Resolve(catalog Catalog, products []string, segment string, level TrafficLevel) []ProductRecommendation {
	out := make([]ProductRecommendation, 0, len(products))
	for _, product := range products {
		cell := catalog.Lookup(product, segment, level)
		rec := ProductRecommendation{
			Product:        product,
			Kind:           cell.Kind.String(),
			Entries:        append([]Entry{}, cell.Entries...),
			HasSuggestions: cell.HasSuggestions(),
			Recommended:    flattenReferences(cell),
		}
		if ref, ok := DefaultReference(cell); ok {
			rec.DefaultReference = ref
		}
		if disp, ok := DefaultDispenser(cell); ok {
			rec.DefaultDispenser = disp
		}
		out = append(out, rec)
	}
	return out
}

// flattenReferences lists the recommended set in first-seen order for display.
func flattenReferences(cell Cell) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, entry := range cell.Entries {
		for _, ref := range entry.References {
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	return out
}
