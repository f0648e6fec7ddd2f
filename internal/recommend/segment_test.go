package recommend

import "testing"

func TestResolveSegment(t *testing.T) {
	tests := []struct {
		name     string
		sector   string
		size     string
		public   []string
		expected string
	}{
		{"health always critical", SectorHealth, SizeSmall, []string{"administrativo"}, SegmentCriticalHygiene},
		{"health ignores premium mix", SectorHealth, SizeLarge, []string{"flotante", "operativo"}, SegmentCriticalHygiene},
		{"hospitality critical", SectorHospitality, SizeMedium, nil, SegmentCriticalHygiene},
		{"floating large", "Retail / Comercio", SizeLarge, []string{"flotante"}, SegmentWowFactor},
		{"mixed medium", "Oficinas / Corporativo", SizeMedium, []string{"administrativo", "operativo"}, SegmentRestroomPlus},
		{"floating small", "Oficinas / Corporativo", SizeSmall, []string{"flotante"}, SegmentRestroomPlus},
		{"duplicate types are one type", "Otro", SizeSmall, []string{"operativo", "operativo"}, SegmentEssential},
		{"large single type", "Industria / Manufactura", SizeLarge, []string{"operativo"}, SegmentWowFactor},
		{"medium single type", "Industria / Manufactura", SizeMedium, []string{"operativo"}, SegmentRestroomPlus},
		{"small single type", "Educación (Colegios, Universidades)", SizeSmall, []string{"administrativo"}, SegmentEssential},
		{"unknown size mixed", "Otro", "", []string{"flotante"}, SegmentEssential},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveSegment(tc.sector, tc.size, tc.public)
			if got != tc.expected {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
			if again := ResolveSegment(tc.sector, tc.size, tc.public); again != got {
				t.Fatalf("not deterministic: %q vs %q", got, again)
			}
		})
	}
}
