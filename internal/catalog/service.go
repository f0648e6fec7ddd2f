package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"consultor-integral/internal/recommend"
	"consultor-integral/internal/store"
)

// Source fetches the catalog from the external calculator.
type Source interface {
	LoadCatalog(ctx context.Context) (recommend.Catalog, error)
}

// ReferenceSource lists every selectable reference of a product.
type ReferenceSource interface {
	ListReferences(ctx context.Context, product string) ([]string, error)
}

// Service keeps the product catalog in the store and serves a cached in-memory copy.
type Service struct {
	db      *store.Database
	source  Source
	refs    ReferenceSource
	current recommend.Catalog
	mu      sync.RWMutex
}

// NewService wires the store with the optional remote sources. source and refs may be nil.
func NewService(db *store.Database, source Source, refs ReferenceSource) *Service {
	return &Service{
		db:      db,
		source:  source,
		refs:    refs,
		current: recommend.Catalog{},
	}
}

// LoadFromCSV ingests the catalog spreadsheet export and replaces the stored catalog.
func (s *Service) LoadFromCSV(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("catalog csv path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog csv: %w", err)
	}
	defer file.Close()

	rows, err := ParseCatalogCSV(file)
	if err != nil {
		return 0, err
	}
	if err := s.replace(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// LoadReferencesCSV ingests a product/reference list and replaces the stored references.
func (s *Service) LoadReferencesCSV(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("references csv path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open references csv: %w", err)
	}
	defer file.Close()

	rows, err := ParseReferencesCSV(file)
	if err != nil {
		return 0, err
	}
	if err := s.ReplaceReferences(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// LoadFromJSON reads a catalog document in the calculator's JSON format.
func (s *Service) LoadFromJSON(path string) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("catalog json path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read catalog json: %w", err)
	}
	catalog, err := recommend.DecodeCatalog(data)
	if err != nil {
		return 0, err
	}
	rows := RowsFromCatalog(catalog)
	if err := s.replace(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Import replaces the catalog with already parsed rows.
func (s *Service) Import(rows []store.CatalogRow) error {
	return s.replace(rows)
}

// ReplaceReferences swaps the stored reference lists.
func (s *Service) ReplaceReferences(rows []store.ProductReference) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not configured")
	}
	return s.db.ReplaceProductReferences(rows)
}

// Refresh reloads the catalog from the remote source. When the source fails the service
// falls back to whatever the store holds, which may be nothing.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, errors.New("catalog source not configured")
	}
	catalog, err := s.source.LoadCatalog(ctx)
	if err != nil {
		logrus.WithError(err).Warn("catalog unavailable; using stored catalog")
		if reloadErr := s.Reload(); reloadErr != nil {
			logrus.WithError(reloadErr).Warn("reload stored catalog")
			s.set(recommend.Catalog{})
		}
		return 0, err
	}
	rows := RowsFromCatalog(catalog)
	if s.db != nil {
		if err := s.db.ReplaceCatalog(rows); err != nil {
			logrus.WithError(err).Warn("persist refreshed catalog")
		}
	}
	s.set(catalog)
	return len(rows), nil
}

// Reload rebuilds the cached catalog from the store.
func (s *Service) Reload() error {
	if s.db == nil {
		return errors.New("catalog store not configured")
	}
	rows, err := s.db.ListCatalogRows()
	if err != nil {
		return fmt.Errorf("list catalog rows: %w", err)
	}
	s.set(BuildCatalog(rows))
	return nil
}

// Current returns the cached catalog. It is never nil and must be treated as read-only.
func (s *Service) Current() recommend.Catalog {
	if s == nil {
		return recommend.Catalog{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Products returns how many products the cached catalog covers.
func (s *Service) Products() int {
	return len(s.Current())
}

// Count returns the number of stored catalog rows.
func (s *Service) Count() int {
	if s == nil || s.db == nil {
		return 0
	}
	count, err := s.db.CountCatalogRows()
	if err != nil {
		return 0
	}
	return int(count)
}

// ReferenceCount returns the number of stored product references.
func (s *Service) ReferenceCount() int {
	if s == nil || s.db == nil {
		return 0
	}
	count, err := s.db.CountProductReferences()
	if err != nil {
		return 0
	}
	return int(count)
}

// References lists the selectable references of a product, preferring the imported list and
// falling back to the calculator.
func (s *Service) References(ctx context.Context, product string) ([]string, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return []string{}, nil
	}
	if s.db != nil {
		refs, err := s.db.ReferencesForProduct(product)
		if err != nil {
			logrus.WithError(err).WithField("product", product).Warn("load stored references")
		} else if len(refs) > 0 {
			return refs, nil
		}
	}
	if s.refs == nil {
		return []string{}, nil
	}
	return s.refs.ListReferences(ctx, product)
}

func (s *Service) replace(rows []store.CatalogRow) error {
	if s == nil || s.db == nil {
		return errors.New("catalog store not configured")
	}
	if err := s.db.ReplaceCatalog(rows); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return s.Reload()
}

func (s *Service) set(catalog recommend.Catalog) {
	if catalog == nil {
		catalog = recommend.Catalog{}
	}
	s.mu.Lock()
	s.current = catalog
	s.mu.Unlock()
}

// BuildCatalog groups stored rows into cells. One row under a key is a single entry; several
// rows form a ranked list in position order.
func BuildCatalog(rows []store.CatalogRow) recommend.Catalog {
	type cellKey struct{ product, segment, level string }
	grouped := make(map[cellKey][]store.CatalogRow)
	var order []cellKey
	for _, row := range rows {
		key := cellKey{row.Product, row.Segment, row.TrafficLevel}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], row)
	}

	catalog := recommend.Catalog{}
	for _, key := range order {
		group := grouped[key]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Position < group[j].Position })
		entries := make([]recommend.Entry, 0, len(group))
		for i := range group {
			entries = append(entries, recommend.Entry{
				Positioning: group[i].Positioning,
				References:  group[i].References(),
				Dispensers:  group[i].Dispensers(),
			})
		}
		if len(entries) == 1 {
			catalog.Set(key.product, key.segment, key.level, recommend.SingleCell(entries[0]))
			continue
		}
		catalog.Set(key.product, key.segment, key.level, recommend.MultipleCell(entries...))
	}
	return catalog
}

// RowsFromCatalog flattens a catalog into store rows. Absent cells are dropped.
func RowsFromCatalog(catalog recommend.Catalog) []store.CatalogRow {
	var rows []store.CatalogRow
	for _, product := range catalog.Products() {
		segments := catalog[product]
		for _, segment := range sortedKeys(segments) {
			levels := segments[segment]
			levelNames := make([]string, 0, len(levels))
			for level := range levels {
				levelNames = append(levelNames, level)
			}
			sort.Strings(levelNames)
			for _, level := range levelNames {
				for i, entry := range levels[level].Entries {
					row := store.CatalogRow{
						Product:      product,
						Segment:      segment,
						TrafficLevel: level,
						Position:     i,
						Positioning:  entry.Positioning,
					}
					row.SetReferences(entry.References)
					row.SetDispensers(entry.Dispensers)
					rows = append(rows, row)
				}
			}
		}
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
