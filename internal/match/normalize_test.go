package match

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"Jabón":                "jabon",
		"  Papel Higiénico ":   "papel higienico",
		"Educación (Colegios)": "educacion (colegios)",
		"HoReCa (Cafeterías)":  "horeca (cafeterias)",
		"Toallas de Manos":     "toallas de manos",
		"":                     "",
	}
	for input, expected := range tests {
		if got := NormalizeText(input); got != expected {
			t.Fatalf("NormalizeText(%q) expected %q got %q", input, expected, got)
		}
	}
}

func TestProductCategory(t *testing.T) {
	tests := []struct {
		product  string
		expected Category
	}{
		{"Papel Higiénico", CategoryPaper},
		{"PAPEL INSTITUCIONAL", CategoryPaper},
		{"Jabones y Gel", CategorySoap},
		{"Jabón Espuma", CategorySoap},
		{"Toallas de Manos", CategoryTowels},
		{"Servilletas", CategoryNone},
	}
	for _, tc := range tests {
		if got := ProductCategory(tc.product); got != tc.expected {
			t.Fatalf("ProductCategory(%q) expected %q got %q", tc.product, tc.expected, got)
		}
	}
}

func TestReferenceCode(t *testing.T) {
	tests := map[string]string{
		"1234 - Premium Roll": "1234",
		"30218":               "30218",
		" 77 Jumbo":           "77",
		"D-900":               "D-900",
		"":                    "",
	}
	for input, expected := range tests {
		if got := ReferenceCode(input); got != expected {
			t.Fatalf("ReferenceCode(%q) expected %q got %q", input, expected, got)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("Papel Higiénico"); got != "papel-higienico" {
		t.Fatalf("unexpected slug %q", got)
	}
	if got := Slug("Jabones y Gel"); got != "jabones-y-gel" {
		t.Fatalf("unexpected slug %q", got)
	}
}
