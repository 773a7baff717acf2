package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice. Statements must run
// unchanged on both SQLite and PostgreSQL.
var migrations = [][]string{
	// Migration 1: health scores
	{
		`CREATE TABLE customer_health (
			account_id TEXT PRIMARY KEY,
			health_score INTEGER NOT NULL CHECK (health_score >= 0 AND health_score <= 100),
			details TEXT NOT NULL DEFAULT '',
			last_updated TEXT NOT NULL
		)`,
		`CREATE INDEX idx_customer_health_score ON customer_health(health_score)`,
	},

	// Migration 2: engagement metrics
	{
		`CREATE TABLE customer_metrics (
			account_id TEXT NOT NULL,
			metric_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (account_id, metric_type)
		)`,
		`CREATE INDEX idx_customer_metrics_type ON customer_metrics(metric_type)`,
	},
}

// Tables lists the data tables in deletion-safe order.
var Tables = []string{
	"customer_metrics",
	"customer_health",
}
