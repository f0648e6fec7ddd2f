package catalog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"consultor-integral/internal/match"
	"consultor-integral/internal/recommend"
	"consultor-integral/internal/store"
)

// Catalog spreadsheet columns.
const (
	colSegment = iota
	colProduct
	colTrafficLevel
	colPositioning
	colReferences
	colDispensers
)

// ParseCatalogCSV reads the spreadsheet export: segment, product, traffic level, positioning,
// references and dispensers. Rows sharing product, segment and traffic level keep their file
// order as rank. A header row is skipped; rows with an unknown traffic level are dropped.
func ParseCatalogCSV(r io.Reader) ([]store.CatalogRow, error) {
	reader := newReader(r)

	positions := make(map[string]int)
	var rows []store.CatalogRow
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read catalog row %d: %w", line, err)
		}
		if len(record) <= colTrafficLevel || isHeader(record[colSegment], "segmento", "segment") {
			continue
		}
		segment := strings.TrimSpace(record[colSegment])
		product := strings.TrimSpace(record[colProduct])
		if segment == "" || product == "" {
			continue
		}
		level, ok := parseLevel(record[colTrafficLevel])
		if !ok {
			logrus.WithFields(logrus.Fields{
				"line":          line,
				"traffic_level": record[colTrafficLevel],
			}).Warn("skipping catalog row with unknown traffic level")
			continue
		}

		key := product + "\x00" + segment + "\x00" + level.String()
		row := store.CatalogRow{
			Product:      product,
			Segment:      segment,
			TrafficLevel: level.String(),
			Position:     positions[key],
			Positioning:  field(record, colPositioning),
		}
		row.SetReferences(SplitList(field(record, colReferences)))
		row.SetDispensers(SplitList(field(record, colDispensers)))
		positions[key]++
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseReferencesCSV reads product/reference pairs. Duplicate references of a product are
// kept once, in first-seen order.
func ParseReferencesCSV(r io.Reader) ([]store.ProductReference, error) {
	reader := newReader(r)

	positions := make(map[string]int)
	seen := make(map[string]struct{})
	var rows []store.ProductReference
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read references row %d: %w", line, err)
		}
		if len(record) < 2 || isHeader(record[0], "producto", "product") {
			continue
		}
		product := strings.TrimSpace(record[0])
		reference := strings.TrimSpace(record[1])
		if product == "" || reference == "" {
			continue
		}
		key := product + "\x00" + reference
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, store.ProductReference{
			Product:   product,
			Reference: reference,
			Position:  positions[product],
		})
		positions[product]++
	}
	return rows, nil
}

// SplitList splits a spreadsheet list cell on commas, semicolons or line breaks.
func SplitList(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isHeader(value string, names ...string) bool {
	normalized := match.NormalizeText(strings.TrimPrefix(value, "\ufeff"))
	for _, name := range names {
		if normalized == name {
			return true
		}
	}
	return false
}

// parseLevel accepts the catalog key ("Tráfico Alto") or just the qualifier ("alto"), with or
// without accents.
func parseLevel(raw string) (recommend.TrafficLevel, bool) {
	normalized := match.NormalizeText(raw)
	if normalized == "" {
		return recommend.TrafficLow, false
	}
	for _, level := range recommend.TrafficLevels {
		name := match.NormalizeText(level.String())
		if normalized == name || "trafico "+normalized == name {
			return level, true
		}
	}
	return recommend.TrafficLow, false
}
