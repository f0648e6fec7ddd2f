package recommend

import (
	"fmt"
	"sort"
	"strings"
)

// ChosenSeparator divides a raw reference code from its human-readable suffix in catalog
// reference lists, e.g. "1234 - Premium Roll".
const ChosenSeparator = " - "

// Option is one entry of the ordered reference picker.
type Option struct {
	Reference        string `json:"reference"`
	Label            string `json:"label"`
	Recommended      bool   `json:"recommended"`
	PreviouslyChosen bool   `json:"previously_chosen"`
	Selected         bool   `json:"selected"`
}

// RecommendedSet flattens every entry's references into a set.
func RecommendedSet(cell Cell) map[string]struct{} {
	set := make(map[string]struct{})
	for _, entry := range cell.Entries {
		for _, ref := range entry.References {
			set[ref] = struct{}{}
		}
	}
	return set
}

// MatchesChosen reports whether candidate is the chosen reference, either verbatim or with a
// descriptive suffix after ChosenSeparator. An empty chosen value matches nothing.
func MatchesChosen(candidate, chosen string) bool {
	if chosen == "" {
		return false
	}
	return candidate == chosen || strings.HasPrefix(candidate, chosen+ChosenSeparator)
}

// SelectReferences orders the available references for a product: the previously chosen one
// first, then the recommended ones, then the rest, each group keeping input order. An empty
// previous value means nothing was chosen yet.
func SelectReferences(catalog Catalog, product, segment string, level TrafficLevel, available []string, previous string) []Option {
	cell := catalog.Lookup(product, segment, level)
	return OrderReferences(RecommendedSet(cell), available, previous)
}

// OrderReferences is the sorting half of SelectReferences.
func OrderReferences(recommended map[string]struct{}, available []string, previous string) []Option {
	options := make([]Option, 0, len(available))
	for _, ref := range available {
		_, isRecommended := recommended[ref]
		chosen := MatchesChosen(ref, previous)
		options = append(options, Option{
			Reference:        ref,
			Label:            optionLabel(ref, isRecommended),
			Recommended:      isRecommended,
			PreviouslyChosen: chosen,
			Selected:         chosen,
		})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return optionRank(options[i]) < optionRank(options[j])
	})
	return options
}

// MarkSelected flags options equal to the transient selection, in addition to the ones
// already selected because they were chosen before.
func MarkSelected(options []Option, current string) []Option {
	if current == "" {
		return options
	}
	for i := range options {
		if options[i].Reference == current {
			options[i].Selected = true
		}
	}
	return options
}

func optionRank(o Option) int {
	switch {
	case o.PreviouslyChosen:
		return 0
	case o.Recommended:
		return 1
	default:
		return 2
	}
}

func optionLabel(ref string, recommended bool) string {
	if recommended {
		return fmt.Sprintf("⭐ %s (Recomendado)", ref)
	}
	return ref
}
