package seed

import (
	"context"
	"fmt"

	"github.com/johnwards/pipemon/internal/database"
)

type healthDef struct {
	accountID string
	score     int
	details   string
}

// DefaultHealth is aligned with the CRM fixture account ids, plus three
// accounts that have no open opportunities.
var DefaultHealth = []healthDef{
	{"0015g00000XYZ1QAAX", 85, "High engagement, active usage"},
	{"0015g00000ABC2QAAX", 45, "Low activity, needs attention"},
	{"0015g00000DEF3QAAX", 92, "Excellent health, power user"},
	{"0015g00000GHI4QAAX", 38, "At risk, declining usage"},
	{"0015g00000JKL5QAAX", 67, "Moderate engagement"},
	{"0015g00000MNO6QAAX", 78, "Good health, steady usage"},
	{"0015g00000PQR7QAAX", 51, "Average activity"},
	{"0015g00000STU8QAAX", 88, "Strong engagement"},
}

type metricDef struct {
	accountID  string
	metricType string
	value      float64
}

var defaultMetrics = []metricDef{
	{"0015g00000XYZ1QAAX", "nps", 62},
	{"0015g00000XYZ1QAAX", "open_tickets", 1},
	{"0015g00000ABC2QAAX", "nps", 12},
	{"0015g00000ABC2QAAX", "open_tickets", 7},
	{"0015g00000GHI4QAAX", "nps", -20},
	{"0015g00000GHI4QAAX", "open_tickets", 11},
}

const seedTimestamp = "2024-01-01T00:00:00.000Z"

// HealthScores inserts the default health rows that do not exist yet.
func HealthScores(ctx context.Context, db *database.DB) error {
	stmt := db.Rebind(`INSERT INTO customer_health (account_id, health_score, details, last_updated)
		VALUES (?, ?, ?, ?) ON CONFLICT (account_id) DO NOTHING`)
	for _, h := range DefaultHealth {
		if _, err := db.ExecContext(ctx, stmt, h.accountID, h.score, h.details, seedTimestamp); err != nil {
			return fmt.Errorf("insert health score %s: %w", h.accountID, err)
		}
	}
	return nil
}

// Metrics inserts the default engagement metrics that do not exist yet.
func Metrics(ctx context.Context, db *database.DB) error {
	stmt := db.Rebind(`INSERT INTO customer_metrics (account_id, metric_type, value, recorded_at)
		VALUES (?, ?, ?, ?) ON CONFLICT (account_id, metric_type) DO NOTHING`)
	for _, m := range defaultMetrics {
		if _, err := db.ExecContext(ctx, stmt, m.accountID, m.metricType, m.value, seedTimestamp); err != nil {
			return fmt.Errorf("insert metric %s/%s: %w", m.accountID, m.metricType, err)
		}
	}
	return nil
}
