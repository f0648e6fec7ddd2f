package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"consultor-integral/internal/recommend"
	"consultor-integral/internal/store"
)

const catalogCSV = `Segmento,Producto,Nivel de Tráfico,Posicionamiento,Referencias,Dispensadores
Essential,Papel Higiénico,Tráfico Bajo,Rollo estándar,"1234 - Premium Roll; 5678",D-1
Essential,Papel Higiénico,Tráfico Alto,Jumbo,"9000
9001",D-9
Essential,Papel Higiénico,trafico alto,Estándar,5678,
Essential,Jabones y Gel,Medio,Espuma,7001,J-1
Essential,Jabones y Gel,Tráfico Extremo,Ignorado,7002,J-2
`

type fakeSource struct {
	catalog recommend.Catalog
	err     error
	calls   int
}

func (f *fakeSource) LoadCatalog(ctx context.Context) (recommend.Catalog, error) {
	f.calls++
	if f.err != nil {
		return recommend.Catalog{}, f.err
	}
	return f.catalog, nil
}

type fakeReferences struct {
	refs  []string
	calls int
}

func (f *fakeReferences) ListReferences(ctx context.Context, product string) ([]string, error) {
	f.calls++
	return f.refs, nil
}

func openTestDB(t *testing.T) *store.Database {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"), true)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSplitList(t *testing.T) {
	tests := map[string][]string{
		"":                 {},
		"1234":             {"1234"},
		"1234, 5678":       {"1234", "5678"},
		"1234;5678;":       {"1234", "5678"},
		"1234 - Roll\n567": {"1234 - Roll", "567"},
		" ,; \n":           {},
	}
	for input, expected := range tests {
		if got := SplitList(input); !reflect.DeepEqual(got, expected) {
			t.Fatalf("SplitList(%q) expected %v got %v", input, expected, got)
		}
	}
}

func TestParseCatalogCSV(t *testing.T) {
	rows, err := ParseCatalogCSV(strings.NewReader(catalogCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows got %d", len(rows))
	}
	if rows[1].TrafficLevel != "Tráfico Alto" || rows[2].TrafficLevel != "Tráfico Alto" {
		t.Fatalf("traffic level not normalized: %q %q", rows[1].TrafficLevel, rows[2].TrafficLevel)
	}
	if rows[1].Position != 0 || rows[2].Position != 1 {
		t.Fatalf("unexpected positions %d %d", rows[1].Position, rows[2].Position)
	}
	if got := rows[1].References(); !reflect.DeepEqual(got, []string{"9000", "9001"}) {
		t.Fatalf("unexpected multiline references %v", got)
	}
	if got := rows[2].Dispensers(); len(got) != 0 {
		t.Fatalf("expected no dispensers got %v", got)
	}
	if rows[3].TrafficLevel != "Tráfico Medio" {
		t.Fatalf("expected short level name to parse, got %q", rows[3].TrafficLevel)
	}
}

func TestBuildCatalogCellShapes(t *testing.T) {
	rows, err := ParseCatalogCSV(strings.NewReader(catalogCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	catalog := BuildCatalog(rows)

	low := catalog.Lookup("Papel Higiénico", recommend.SegmentEssential, recommend.TrafficLow)
	if low.Kind != recommend.CellSingle {
		t.Fatalf("expected single cell got %s", low.Kind)
	}
	if ref, _ := recommend.DefaultReference(low); ref != "1234 - Premium Roll" {
		t.Fatalf("unexpected default reference %q", ref)
	}

	high := catalog.Lookup("Papel Higiénico", recommend.SegmentEssential, recommend.TrafficHigh)
	if high.Kind != recommend.CellMultiple || len(high.Entries) != 2 {
		t.Fatalf("expected ranked cell, got %s with %d entries", high.Kind, len(high.Entries))
	}
	if high.Entries[0].Positioning != "Jumbo" {
		t.Fatalf("file order must be rank order, got %q first", high.Entries[0].Positioning)
	}
	if disp, _ := recommend.DefaultDispenser(high); disp != "D-9" {
		t.Fatalf("unexpected default dispenser %q", disp)
	}

	if cell := catalog.Lookup("Papel Higiénico", recommend.SegmentEssential, recommend.TrafficPeak); cell.Kind != recommend.CellAbsent {
		t.Fatalf("expected absent cell got %s", cell.Kind)
	}
}

func TestParseReferencesCSV(t *testing.T) {
	rows, err := ParseReferencesCSV(strings.NewReader("Producto,Referencia\nPapel Higiénico,1234 - Premium Roll\nPapel Higiénico,5678\nPapel Higiénico,5678\nJabones y Gel,7001\n,9999\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows got %d", len(rows))
	}
	if rows[1].Position != 1 || rows[2].Position != 0 {
		t.Fatalf("positions are per product: %+v", rows)
	}
}

func TestServiceLoadFromCSVAndReferences(t *testing.T) {
	db := openTestDB(t)
	refs := &fakeReferences{refs: []string{"remote-1"}}
	svc := NewService(db, nil, refs)

	count, err := svc.LoadFromCSV(writeFile(t, "catalog.csv", catalogCSV))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if count != 4 || svc.Count() != 4 || svc.Products() != 2 {
		t.Fatalf("unexpected counts: loaded=%d stored=%d products=%d", count, svc.Count(), svc.Products())
	}

	if _, err := svc.LoadReferencesCSV(writeFile(t, "refs.csv", "Papel Higiénico,1234 - Premium Roll\nPapel Higiénico,5678\n")); err != nil {
		t.Fatalf("load references: %v", err)
	}

	got, err := svc.References(context.Background(), "Papel Higiénico")
	if err != nil {
		t.Fatalf("references: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"1234 - Premium Roll", "5678"}) {
		t.Fatalf("unexpected stored references %v", got)
	}
	if refs.calls != 0 {
		t.Fatalf("stored references must not hit the calculator")
	}

	got, err = svc.References(context.Background(), "Toallas de Manos")
	if err != nil {
		t.Fatalf("references: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"remote-1"}) || refs.calls != 1 {
		t.Fatalf("expected calculator fallback, got %v (calls=%d)", got, refs.calls)
	}
}

func TestServiceLoadFromJSON(t *testing.T) {
	svc := NewService(openTestDB(t), nil, nil)
	doc := `{"Toallas de Manos":{"Wow Factor":{"Tráfico Pico":[
		{"posicionamiento":"Premium","referencias":["4001"],"dispensador":["T-1"]},
		{"posicionamiento":"Alterna","referencias":["4002"],"dispensador":[]}
	]}}}`
	count, err := svc.LoadFromJSON(writeFile(t, "catalog.json", doc))
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows got %d", count)
	}
	cell := svc.Current().Lookup("Toallas de Manos", recommend.SegmentWowFactor, recommend.TrafficPeak)
	if cell.Kind != recommend.CellMultiple || cell.Entries[1].Positioning != "Alterna" {
		t.Fatalf("unexpected cell %+v", cell)
	}
}

func TestServiceRefresh(t *testing.T) {
	db := openTestDB(t)
	remote := recommend.Catalog{}
	remote.Set("Papel Higiénico", recommend.SegmentEssential, "Tráfico Bajo",
		recommend.SingleCell(recommend.Entry{Positioning: "Básico", References: []string{"1111"}}))
	source := &fakeSource{catalog: remote}
	svc := NewService(db, source, nil)

	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if svc.Count() != 1 {
		t.Fatalf("refreshed catalog must be persisted, got %d rows", svc.Count())
	}

	source.err = errors.New("calculator down")
	if _, err := svc.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	cell := svc.Current().Lookup("Papel Higiénico", recommend.SegmentEssential, recommend.TrafficLow)
	if !cell.HasSuggestions() {
		t.Fatalf("failed refresh must fall back to the stored catalog")
	}
}

func TestServiceRefreshWithoutStoreDegradesToEmpty(t *testing.T) {
	svc := NewService(nil, &fakeSource{err: errors.New("down")}, nil)
	if _, err := svc.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if current := svc.Current(); current == nil || len(current) != 0 {
		t.Fatalf("expected empty catalog, got %v", current)
	}
	if refs, err := svc.References(context.Background(), "Papel Higiénico"); err != nil || len(refs) != 0 {
		t.Fatalf("expected no references, got %v %v", refs, err)
	}
}
