package wizard

import (
	"errors"
	"testing"

	"consultor-integral/internal/recommend"
)

func TestApplyStepValidation(t *testing.T) {
	tests := []struct {
		name    string
		step    string
		input   StepInput
		field   string
		message string
	}{
		{"missing sector", StepCompanySector, StepInput{Size: recommend.SizeSmall}, "sector", ""},
		{"missing size", StepCompanySector, StepInput{Sector: "Otro"}, "size", ""},
		{"unknown size", StepCompanySector, StepInput{Sector: "Otro", Size: "1-10"}, "size", ""},
		{"missing demographics", StepDemographics, StepInput{Women: intPtr(1)}, "", ""},
		{"no employees", StepDemographics, StepInput{Women: intPtr(0), Men: intPtr(0), Days: intPtr(20), Hours: intPtr(8)}, "numMujeres", "Debe haber al menos un empleado"},
		{"days out of range", StepDemographics, StepInput{Women: intPtr(1), Men: intPtr(0), Days: intPtr(32), Hours: intPtr(8)}, "diasLaborales", ""},
		{"hours out of range", StepDemographics, StepInput{Women: intPtr(1), Men: intPtr(0), Days: intPtr(20), Hours: intPtr(0)}, "horasLaborales", ""},
		{"no public type", StepPublicType, StepInput{}, "tipoPublico", ""},
		{"unknown public type", StepPublicType, StepInput{PublicTypes: []string{"gerencial"}}, "tipoPublico", ""},
		{"missing proportions", StepPublicType, StepInput{PublicTypes: []string{PublicAdministrative, PublicOperational}}, "proporciones", "Las proporciones deben sumar exactamente 100%"},
		{"proportions off by one", StepPublicType, StepInput{PublicTypes: []string{PublicAdministrative, PublicOperational}, Proportions: &Proportions{Administrative: 50, Operational: 49}}, "proporciones", "Las proporciones deben sumar exactamente 100%"},
		{"floating without visitors", StepPublicType, StepInput{PublicTypes: []string{PublicFloating}}, "numVisitantes", "Debe ingresar un número válido de visitantes diarios"},
		{"floating zero visitors", StepPublicType, StepInput{PublicTypes: []string{PublicFloating}, Visitors: intPtr(0)}, "numVisitantes", "Debe ingresar un número válido de visitantes diarios"},
		{"no products", StepProductSelection, StepInput{Segment: recommend.SegmentEssential}, "products", ""},
		{"no segment", StepProductSelection, StepInput{Products: []string{"Papel Higiénico"}}, "bathroomSegment", ""},
		{"unknown segment", StepProductSelection, StepInput{Products: []string{"Papel Higiénico"}, Segment: "Luxury"}, "bathroomSegment", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			original := CompanyProfile{Sector: "keep"}
			got, err := ApplyStep(tc.step, tc.input, original)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q got %q", tc.field, verr.Field)
			}
			if tc.message != "" && verr.Message != tc.message {
				t.Fatalf("expected message %q got %q", tc.message, verr.Message)
			}
			if got.Sector != "keep" {
				t.Fatalf("profile modified on failure")
			}
		})
	}
}

func TestApplyStepPublicType(t *testing.T) {
	profile := CompanyProfile{Proportions: &Proportions{Administrative: 10, Operational: 90}, Visitors: intPtr(7)}

	got, err := ApplyStep(StepPublicType, StepInput{
		PublicTypes: []string{PublicAdministrative, PublicOperational, PublicFloating, PublicFloating},
		Proportions: &Proportions{Administrative: 70, Operational: 30},
		Visitors:    intPtr(25),
	}, profile)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got.PublicTypes) != 3 {
		t.Fatalf("expected duplicates removed, got %v", got.PublicTypes)
	}
	if got.Proportions == nil || got.Proportions.Administrative != 70 {
		t.Fatalf("unexpected proportions %+v", got.Proportions)
	}
	if got.Visitors == nil || *got.Visitors != 25 {
		t.Fatalf("unexpected visitors %v", got.Visitors)
	}

	got, err = ApplyStep(StepPublicType, StepInput{PublicTypes: []string{PublicOperational}}, got)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Proportions != nil || got.Visitors != nil {
		t.Fatalf("optional fields must be cleared when their types are deselected: %+v", got)
	}
	if profile.Proportions.Administrative != 10 {
		t.Fatalf("input profile was mutated")
	}
}

func TestApplyStepProductSelectionPrunesReferences(t *testing.T) {
	profile := CompanyProfile{SelectedReferences: map[string]string{"Papel Higiénico": "1", "Jabones y Gel": "2"}}
	got, err := ApplyStep(StepProductSelection, StepInput{Products: []string{"Papel Higiénico"}, Segment: recommend.SegmentEssential}, profile)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := got.SelectedReferences["Jabones y Gel"]; ok {
		t.Fatalf("expected deselected product reference removed")
	}
	if len(profile.SelectedReferences) != 2 {
		t.Fatalf("input profile was mutated")
	}
}

func TestStepIndex(t *testing.T) {
	if StepIndex(StepPublicType) != 2 {
		t.Fatalf("unexpected index for %s", StepPublicType)
	}
	if StepIndex("summary") != -1 {
		t.Fatalf("expected -1 for unknown step")
	}
}
