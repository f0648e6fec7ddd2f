package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrSessionNotFound is returned when no persisted wizard session matches the id.
var ErrSessionNotFound = errors.New("session not found")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&CatalogRow{}, &ProductReference{}, &Portfolio{}, &SessionState{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ReplaceCatalog swaps the stored catalog with the provided rows.
func (d *Database) ReplaceCatalog(rows []CatalogRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return replaceAll(d.gorm, &CatalogRow{}, rows)
}

// ListCatalogRows returns every catalog row grouped by cell and ordered by position.
func (d *Database) ListCatalogRows() ([]CatalogRow, error) {
	var rows []CatalogRow
	if err := d.gorm.Model(&CatalogRow{}).
		Order("product ASC, segment ASC, traffic_level ASC, position ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountCatalogRows returns the number of stored catalog rows.
func (d *Database) CountCatalogRows() (int64, error) {
	var count int64
	if err := d.gorm.Model(&CatalogRow{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ReplaceProductReferences swaps the stored reference lists with the provided rows.
func (d *Database) ReplaceProductReferences(rows []ProductReference) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return replaceAll(d.gorm, &ProductReference{}, rows)
}

// ReferencesForProduct returns the stored references of a product in display order.
func (d *Database) ReferencesForProduct(product string) ([]string, error) {
	var refs []string
	if err := d.gorm.Model(&ProductReference{}).
		Where("product = ?", strings.TrimSpace(product)).
		Order("position ASC, id ASC").
		Pluck("reference", &refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

// CountProductReferences returns the number of stored product references.
func (d *Database) CountProductReferences() (int64, error) {
	var count int64
	if err := d.gorm.Model(&ProductReference{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SavePortfolio inserts a portfolio row.
func (d *Database) SavePortfolio(p *Portfolio) error {
	if p == nil {
		return errors.New("portfolio is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(p).Error
}

// ListPortfolios returns saved portfolios, newest first.
func (d *Database) ListPortfolios(offset, limit int) ([]Portfolio, int64, error) {
	var total int64
	if err := d.gorm.Model(&Portfolio{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := d.gorm.Model(&Portfolio{}).Order("id DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	var rows []Portfolio
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SaveSession inserts or updates a wizard session snapshot.
func (d *Database) SaveSession(state *SessionState) error {
	if state == nil {
		return errors.New("session state is nil")
	}
	if strings.TrimSpace(state.ID) == "" {
		return errors.New("session id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phase", "payload_json", "updated_at"}),
	}).Create(state).Error
}

// GetSession loads a wizard session snapshot by id.
func (d *Database) GetSession(id string) (*SessionState, error) {
	var state SessionState
	if err := d.gorm.First(&state, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &state, nil
}

// DeleteSession removes a persisted session.
func (d *Database) DeleteSession(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Where("id = ?", id).Delete(&SessionState{}).Error
}

// PruneSessions deletes sessions not updated since the cutoff and returns how many were removed.
func (d *Database) PruneSessions(before time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Where("updated_at < ?", before).Delete(&SessionState{})
	return res.RowsAffected, res.Error
}

func replaceAll[T any](db *gorm.DB, model *T, rows []T) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		// Batch insert to avoid SQLite variable limit (999)
		const batchSize = 250
		for start := 0; start < len(rows); start += batchSize {
			end := start + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			if err := tx.CreateInBatches(rows[start:end], batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_catalog_rows_cell ON catalog_rows(product, segment, traffic_level, position)",
		"CREATE INDEX IF NOT EXISTS idx_product_references_product_position ON product_references(product, position)",
		"CREATE INDEX IF NOT EXISTS idx_dt_portafolios_sector ON dt_portafolios(sector)",
		"CREATE INDEX IF NOT EXISTS idx_session_states_updated ON session_states(updated_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
