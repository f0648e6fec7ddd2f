package recommend

// Bathroom-experience tiers.
const (
	SegmentEssential       = "Essential"
	SegmentRestroomPlus    = "Restroom Plus"
	SegmentWowFactor       = "Wow Factor"
	SegmentCriticalHygiene = "Higiene Crítica"
)

// Segments lists the tiers in the order the wizard offers them.
var Segments = []string{SegmentEssential, SegmentRestroomPlus, SegmentWowFactor, SegmentCriticalHygiene}

// Company size brackets.
const (
	SizeSmall  = "11-50"
	SizeMedium = "51-200"
	SizeLarge  = "200+"
)

// Sectors whose hygiene requirements always map to the critical tier.
const (
	SectorHealth      = "Salud (Hospitales, Clínicas)"
	SectorHospitality = "HoReCa (Hoteles, Restaurantes, Cafeterías)"
)

const publicFloating = "flotante"

// ResolveSegment derives the bathroom segment from sector, size and public mix.
//
// The wizard lets the consultant pick the segment directly, so the session flow never calls
// this; it is only reachable through POST /api/segment.
func ResolveSegment(sector, size string, publicTypes []string) string {
	if sector == SectorHealth || sector == SectorHospitality {
		return SegmentCriticalHygiene
	}

	premiumMix := hasFloating(publicTypes) || distinctCount(publicTypes) > 1
	if premiumMix && size == SizeLarge {
		return SegmentWowFactor
	}
	if premiumMix && (size == SizeMedium || size == SizeSmall) {
		return SegmentRestroomPlus
	}

	switch size {
	case SizeLarge:
		return SegmentWowFactor
	case SizeMedium:
		return SegmentRestroomPlus
	default:
		return SegmentEssential
	}
}

func hasFloating(types []string) bool {
	for _, t := range types {
		if t == publicFloating {
			return true
		}
	}
	return false
}

func distinctCount(types []string) int {
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		seen[t] = struct{}{}
	}
	return len(seen)
}
