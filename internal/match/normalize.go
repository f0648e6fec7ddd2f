package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	leadingCode = regexp.MustCompile(`^\s*(\d+)`)
	nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)
)

// Category is one of the product families tracked in saved portfolios.
type Category string

const (
	CategoryNone   Category = ""
	CategoryPaper  Category = "papel"
	CategorySoap   Category = "jabones"
	CategoryTowels Category = "toallas"
)

// categoryKeys is checked in order; the first substring found wins.
var categoryKeys = []struct {
	key      string
	category Category
}{
	{"papel", CategoryPaper},
	{"jabon", CategorySoap},
	{"toalla", CategoryTowels},
}

// NormalizeText lower-cases the input and strips diacritics ("Jabón" -> "jabon").
func NormalizeText(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		out = input
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// ProductCategory maps a product name to its portfolio family by substring.
func ProductCategory(product string) Category {
	normalized := NormalizeText(product)
	for _, candidate := range categoryKeys {
		if strings.Contains(normalized, candidate.key) {
			return candidate.category
		}
	}
	return CategoryNone
}

// ReferenceCode extracts the numeric SKU at the start of a reference ("1234 - Premium Roll"
// -> "1234"). References without a leading number are returned trimmed.
func ReferenceCode(reference string) string {
	if m := leadingCode.FindStringSubmatch(reference); len(m) == 2 {
		return m[1]
	}
	return strings.TrimSpace(reference)
}

// Slug turns a product name into an identifier safe for URLs and element ids.
func Slug(input string) string {
	slug := nonAlphaNum.ReplaceAllString(NormalizeText(input), "-")
	return strings.Trim(slug, "-")
}
