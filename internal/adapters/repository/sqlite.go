package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
	"github.com/okian/audiomatch/pkg/metrics"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const componentColumns = `id, brand, name, category, price_new, price_used_low, price_used_high,
    impedance_ohms, sensitivity_db_mw, power_draw_mw, needs_amp, driver_type, signature,
    detailed_signature, tone_grade, technical_grade, sinad, expert_rank, value_rating, power_output`

// SQLiteCatalog is a Store persisted in a SQLite file.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the catalog database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure catalog dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteCatalog{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteCatalog) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteCatalog) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteCatalog) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the catalog and re-import)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteCatalog) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Upsert writes components in one transaction. Nothing is written when any
// component fails validation.
func (s *SQLiteCatalog) Upsert(ctx context.Context, components ...model.Component) (n int, err error) {
	start := time.Now()
	defer func() { s.observe("upsert", start, err) }()

	for i := range components {
		if err := validateComponent(&components[i]); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO components (`+componentColumns+`, avg_price, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i := range components {
		c := &components[i]
		var avg any
		if p, ok := indexPrice(c); ok {
			avg = toFloat(p)
		}
		_, err := stmt.ExecContext(ctx,
			c.ID, c.Brand, c.Name, string(c.Category),
			nullableFloat(c.PriceNew), nullableFloat(c.PriceUsedLow), nullableFloat(c.PriceUsedHigh),
			c.ImpedanceOhms, nullableFloat(c.SensitivityDBmW), nullableFloat(c.PowerDrawMW),
			boolToInt(c.NeedsAmp), nullableString(c.DriverType), nullableString(c.Signature),
			nullableString(c.DetailedSignature), nullableString(c.ToneGrade), nullableString(c.TechnicalGrade),
			nullableFloat(c.SINAD), c.ExpertRank, nullableFloat(c.ValueRating), nullableString(c.PowerOutput),
			avg, now,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert component %q: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(components), nil
}

// Get implements Store.Get.
func (s *SQLiteCatalog) Get(ctx context.Context, id string) (model.Component, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE id = ?`, id)
	c, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Component{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Component{}, fmt.Errorf("get component: %w", err)
	}
	return c, nil
}

// FetchComponents implements recommend.Catalog.
func (s *SQLiteCatalog) FetchComponents(ctx context.Context, cats []model.Category, order recommend.OrderHint) (out []model.Component, err error) {
	start := time.Now()
	defer func() { s.observe("fetch", start, err) }()

	if len(cats) == 0 {
		return []model.Component{}, nil
	}
	args := make([]any, len(cats))
	for i, c := range cats {
		args[i] = string(c)
	}
	query := `SELECT ` + componentColumns + ` FROM components WHERE category IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(cats)), ",") + `) ` + orderClause(order)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch components: %w", err)
	}
	defer rows.Close()

	out = make([]model.Component, 0)
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate components: %w", err)
	}
	return out, nil
}

// CountInPriceWindow implements recommend.Catalog.
func (s *SQLiteCatalog) CountInPriceWindow(ctx context.Context, category model.Category, minPrice, maxPrice float64) (n int, err error) {
	start := time.Now()
	defer func() { s.observe("count", start, err) }()

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM components WHERE category = ? AND avg_price IS NOT NULL AND avg_price BETWEEN ? AND ?`,
		string(category), toFloat(toFixedPoint(minPrice)), toFloat(toFixedPoint(maxPrice)),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count components: %w", err)
	}
	return n, nil
}

// Counts implements Store.Counts.
func (s *SQLiteCatalog) Counts(ctx context.Context) (map[model.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(1) FROM components GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Category]int)
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out[model.Category(cat)] = n
	}
	return out, rows.Err()
}

func (s *SQLiteCatalog) observe(op string, start time.Time, err error) {
	metrics.RecordCatalogQuery(BackendSQLite, op, float64(time.Since(start).Microseconds())/1000, err != nil)
}

func orderClause(order recommend.OrderHint) string {
	switch order {
	case recommend.OrderPriceAsc:
		return "ORDER BY avg_price IS NULL, avg_price ASC, id ASC"
	case recommend.OrderPriceDesc:
		return "ORDER BY avg_price IS NULL, avg_price DESC, id ASC"
	case recommend.OrderRank:
		return "ORDER BY expert_rank = 0, expert_rank ASC, id ASC"
	}
	return "ORDER BY id ASC"
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComponent(row scanner) (model.Component, error) {
	var (
		c                                          model.Component
		category                                   string
		priceNew, usedLow, usedHigh                sql.NullFloat64
		sensitivity, powerDraw, sinad, valueRating sql.NullFloat64
		needsAmp                                   int
		driver, signature, detailed                sql.NullString
		tone, technical, powerOutput               sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.Brand, &c.Name, &category, &priceNew, &usedLow, &usedHigh,
		&c.ImpedanceOhms, &sensitivity, &powerDraw, &needsAmp, &driver, &signature,
		&detailed, &tone, &technical, &sinad, &c.ExpertRank, &valueRating, &powerOutput,
	)
	if err != nil {
		return model.Component{}, err
	}
	c.Category = model.Category(category)
	c.PriceNew = floatPtr(priceNew)
	c.PriceUsedLow = floatPtr(usedLow)
	c.PriceUsedHigh = floatPtr(usedHigh)
	c.SensitivityDBmW = floatPtr(sensitivity)
	c.PowerDrawMW = floatPtr(powerDraw)
	c.SINAD = floatPtr(sinad)
	c.ValueRating = floatPtr(valueRating)
	c.NeedsAmp = needsAmp != 0
	c.DriverType = driver.String
	c.Signature = signature.String
	c.DetailedSignature = detailed.String
	c.ToneGrade = tone.String
	c.TechnicalGrade = technical.String
	c.PowerOutput = powerOutput.String
	return c, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
