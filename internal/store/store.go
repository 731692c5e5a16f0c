package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"frameworks/cartographer/internal/scope"
	"frameworks/cartographer/pkg/ctxkeys"
)

var ErrNotFound = errors.New("record not found")

// Store is the PostgreSQL backed store, configuration and directory
// repository.
type Store struct {
	db          *sql.DB
	defaultCode string
	metrics     *QueryMetrics
}

// QueryMetrics counts and times repository queries by query type.
type QueryMetrics struct {
	Queries  *prometheus.CounterVec   // labels: query_type, status
	Duration *prometheus.HistogramVec // labels: query_type
}

// NewStore returns a Store whose GetStore falls back to defaultStoreCode
// when the request names no store.
func NewStore(db *sql.DB, defaultStoreCode string) *Store {
	if defaultStoreCode == "" {
		defaultStoreCode = "default"
	}
	return &Store{db: db, defaultCode: defaultStoreCode}
}

// WithMetrics records per-query metrics on m. A nil m disables them.
func (s *Store) WithMetrics(m *QueryMetrics) *Store {
	s.metrics = m
	return s
}

func (s *Store) observe(queryType string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil && !errors.Is(err, sql.ErrNoRows) && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	if s.metrics.Queries != nil {
		s.metrics.Queries.WithLabelValues(queryType, status).Inc()
	}
	if s.metrics.Duration != nil {
		s.metrics.Duration.WithLabelValues(queryType).Observe(time.Since(start).Seconds())
	}
}

const storeColumns = `store_id, code, website_id, name, is_active`

// GetStore returns the store selected for the request in ctx.
func (s *Store) GetStore(ctx context.Context) (*scope.Store, error) {
	code := ctxkeys.GetStoreCode(ctx)
	if code == "" {
		code = s.defaultCode
	}
	return s.GetStoreByCode(ctx, code)
}

func (s *Store) GetStoreByCode(ctx context.Context, code string) (*scope.Store, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+storeColumns+` FROM store WHERE code = $1`, code)
	st, err := scanStore(row)
	s.observe("store_by_code", start, err)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", code, err)
	}
	return st, nil
}

func (s *Store) GetStoreByID(ctx context.Context, id int64) (*scope.Store, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+storeColumns+` FROM store WHERE store_id = $1`, id)
	st, err := scanStore(row)
	s.observe("store_by_id", start, err)
	if err != nil {
		return nil, fmt.Errorf("store %d: %w", id, err)
	}
	return st, nil
}

func scanStore(row *sql.Row) (*scope.Store, error) {
	var st scope.Store
	err := row.Scan(&st.ID, &st.Code, &st.WebsiteID, &st.Name, &st.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Value reads one core_config_data row. A NULL value counts as unset.
func (s *Store) Value(ctx context.Context, typ scope.Type, scopeID, path string) (string, bool, error) {
	id, err := parseScopeID(scopeID)
	if err != nil {
		return "", false, err
	}
	var value sql.NullString
	start := time.Now()
	err = s.db.QueryRowContext(ctx, `
		SELECT value
		FROM core_config_data
		WHERE scope = $1 AND scope_id = $2 AND path = $3
	`, typ.Column(), id, path).Scan(&value)
	s.observe("config_value", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value.String, value.Valid, nil
}

// SaveValue inserts or replaces a core_config_data row.
func (s *Store) SaveValue(ctx context.Context, typ scope.Type, scopeID, path, value string) error {
	id, err := parseScopeID(scopeID)
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO core_config_data (scope, scope_id, path, value, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (scope, scope_id, path) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, typ.Column(), id, path, value)
	s.observe("config_save", start, err)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Rate returns the conversion rate from one currency to another.
func (s *Store) Rate(ctx context.Context, from, to string) (float64, bool, error) {
	var rate float64
	start := time.Now()
	err := s.db.QueryRowContext(ctx, `
		SELECT rate
		FROM directory_currency_rate
		WHERE currency_from = $1 AND currency_to = $2
	`, from, to).Scan(&rate)
	s.observe("currency_rate", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rate, true, nil
}

func parseScopeID(scopeID string) (int64, error) {
	if scopeID == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(scopeID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid scope id %q: %w", scopeID, err)
	}
	return id, nil
}

// Pinned is a StoreManager that always returns one already resolved store.
type Pinned struct {
	Store *scope.Store
}

func (p Pinned) GetStore(context.Context) (*scope.Store, error) {
	return p.Store, nil
}
