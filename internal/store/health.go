package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/johnwards/pipemon/internal/database"
	"github.com/johnwards/pipemon/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrScoreOutOfRange rejects health scores outside 0..100.
var ErrScoreOutOfRange = errors.New("health score must be between 0 and 100")

// HealthStore persists customer health scores and engagement metrics.
type HealthStore interface {
	// HealthScores lists health rows ordered by account id, optionally
	// narrowed to one account.
	HealthScores(ctx context.Context, accountID string) ([]domain.HealthRecord, error)
	GetHealthScore(ctx context.Context, accountID string) (*domain.HealthRecord, error)
	UpsertHealthScore(ctx context.Context, accountID string, score int, details string) (*domain.HealthRecord, error)
	// Metrics lists metric rows, optionally narrowed to one metric type.
	Metrics(ctx context.Context, metricType string) ([]domain.CustomerMetric, error)
	UpsertMetric(ctx context.Context, m domain.CustomerMetric) error
	Ping(ctx context.Context) error
}

// SQLHealthStore implements HealthStore on SQLite or PostgreSQL.
type SQLHealthStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLHealthStore creates a new SQLHealthStore.
func NewSQLHealthStore(db *database.DB) *SQLHealthStore {
	return &SQLHealthStore{db: db, now: time.Now}
}

func (s *SQLHealthStore) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// Ping checks the database connection.
func (s *SQLHealthStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// HealthScores returns health rows, optionally for a single account.
func (s *SQLHealthStore) HealthScores(ctx context.Context, accountID string) ([]domain.HealthRecord, error) {
	query := `SELECT account_id, health_score, details, last_updated FROM customer_health`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY account_id ASC`

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list health scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.HealthRecord{}
	for rows.Next() {
		var h domain.HealthRecord
		if err := rows.Scan(&h.AccountID, &h.HealthScore, &h.Details, &h.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan health score: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// GetHealthScore retrieves the health row for one account.
func (s *SQLHealthStore) GetHealthScore(ctx context.Context, accountID string) (*domain.HealthRecord, error) {
	var h domain.HealthRecord
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT account_id, health_score, details, last_updated FROM customer_health WHERE account_id = ?`),
		accountID,
	).Scan(&h.AccountID, &h.HealthScore, &h.Details, &h.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get health score: %w", err)
	}
	return &h, nil
}

// UpsertHealthScore inserts or replaces the score for an account. An empty
// details string keeps the existing details.
func (s *SQLHealthStore) UpsertHealthScore(ctx context.Context, accountID string, score int, details string) (*domain.HealthRecord, error) {
	if score < 0 || score > 100 {
		return nil, ErrScoreOutOfRange
	}
	ts := s.timestamp()

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO customer_health (account_id, health_score, details, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
			health_score = excluded.health_score,
			details = CASE WHEN excluded.details = '' THEN customer_health.details ELSE excluded.details END,
			last_updated = excluded.last_updated`),
		accountID, score, details, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert health score: %w", err)
	}
	return s.GetHealthScore(ctx, accountID)
}

// Metrics returns metric rows, optionally of a single type.
func (s *SQLHealthStore) Metrics(ctx context.Context, metricType string) ([]domain.CustomerMetric, error) {
	query := `SELECT account_id, metric_type, value, recorded_at FROM customer_metrics`
	var args []any
	if metricType != "" {
		query += ` WHERE metric_type = ?`
		args = append(args, metricType)
	}
	query += ` ORDER BY account_id ASC, metric_type ASC`

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.CustomerMetric{}
	for rows.Next() {
		var m domain.CustomerMetric
		if err := rows.Scan(&m.AccountID, &m.MetricType, &m.Value, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// UpsertMetric records the latest value of a metric for an account.
func (s *SQLHealthStore) UpsertMetric(ctx context.Context, m domain.CustomerMetric) error {
	if m.RecordedAt == "" {
		m.RecordedAt = s.timestamp()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO customer_metrics (account_id, metric_type, value, recorded_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id, metric_type) DO UPDATE SET
			value = excluded.value,
			recorded_at = excluded.recorded_at`),
		m.AccountID, m.MetricType, m.Value, m.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert metric: %w", err)
	}
	return nil
}
