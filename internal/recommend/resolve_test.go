package recommend

import (
	"reflect"
	"testing"
)

func TestDefaults(t *testing.T) {
	catalog, err := DecodeCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	ref, ok := DefaultReference(catalog.Lookup("Papel Higiénico", SegmentEssential, TrafficHigh))
	if !ok || ref != "9000" {
		t.Fatalf("expected primary entry reference 9000, got %q", ref)
	}
	disp, ok := DefaultDispenser(catalog.Lookup("Papel Higiénico", SegmentEssential, TrafficHigh))
	if !ok || disp != "D-9" {
		t.Fatalf("expected dispenser D-9, got %q", disp)
	}
	if _, ok := DefaultReference(catalog.Lookup("Jabón", SegmentEssential, TrafficMedium)); ok {
		t.Fatalf("expected no default reference for empty list")
	}
	if disp, ok := DefaultDispenser(catalog.Lookup("Jabón", SegmentEssential, TrafficMedium)); !ok || disp != "J-1" {
		t.Fatalf("expected dispenser J-1 got %q", disp)
	}
	if _, ok := DefaultDispenser(Cell{}); ok {
		t.Fatalf("absent cell has no dispenser")
	}
}

func TestDefaultReferences(t *testing.T) {
	catalog, err := DecodeCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	refs := DefaultReferences(catalog, []string{"Papel Higiénico", "Jabón", "Toallas"}, SegmentEssential, TrafficMedium)
	if len(refs) != 3 {
		t.Fatalf("expected one key per product, got %d", len(refs))
	}
	if refs["Papel Higiénico"] == nil || *refs["Papel Higiénico"] != "1234 - Premium Roll" {
		t.Fatalf("unexpected paper default %v", refs["Papel Higiénico"])
	}
	if refs["Jabón"] != nil || refs["Toallas"] != nil {
		t.Fatalf("expected null defaults for products without references")
	}
}

func TestChosenReference(t *testing.T) {
	consumption := ConsumptionResult{
		"Papel": {Monthly: 12, Applicable: true, ReferenceUsed: "5678"},
		"Jabón": {Monthly: 3, Applicable: true},
	}
	tests := []struct {
		name     string
		selected map[string]string
		product  string
		expected string
	}{
		{"explicit choice wins", map[string]string{"Papel": "9000"}, "Papel", "9000"},
		{"falls back to reference used", nil, "Papel", "5678"},
		{"empty choice ignored", map[string]string{"Papel": ""}, "Papel", "5678"},
		{"nothing known", nil, "Jabón", ""},
		{"unknown product", nil, "Toallas", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ChosenReference(tc.selected, consumption, tc.product); got != tc.expected {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	catalog, err := DecodeCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	recs := Resolve(catalog, []string{"Papel Higiénico", "Toallas"}, SegmentEssential, TrafficHigh)
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations got %d", len(recs))
	}
	paper := recs[0]
	if paper.Kind != "multiple" || !paper.HasSuggestions || paper.DefaultReference != "9000" || paper.DefaultDispenser != "D-9" {
		t.Fatalf("unexpected paper recommendation %+v", paper)
	}
	if !reflect.DeepEqual(paper.Recommended, []string{"9000", "9001", "5678"}) {
		t.Fatalf("unexpected recommended list %v", paper.Recommended)
	}
	towels := recs[1]
	if towels.Kind != "absent" || towels.HasSuggestions || len(towels.Entries) != 0 || len(towels.Recommended) != 0 {
		t.Fatalf("unexpected towels recommendation %+v", towels)
	}
}
