// Package health connects to the relational health-score store.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/database"
	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/store"
)

const (
	Type        = "Health Store (SQL)"
	Description = "Customer health scores and engagement metrics"

	TableHealth  = "customer_health"
	TableMetrics = "customer_metrics"
)

// ErrUnknownTable is returned for a query naming an unsupported table.
var ErrUnknownTable = errors.New("unknown table")

// Credentials configure the health store connection.
type Credentials struct {
	// DatabaseURL is a postgres:// URL or a SQLite path.
	DatabaseURL string
	// AutoMigrate applies schema migrations on connect.
	AutoMigrate bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithLifecycle passes options to the underlying connector.Lifecycle.
func WithLifecycle(opts ...connector.Option) Option {
	return func(c *Connector) { c.lifecycleOpts = append(c.lifecycleOpts, opts...) }
}

// WithOpener replaces database.Open.
func WithOpener(open func(dsn string) (*database.DB, error)) Option {
	return func(c *Connector) { c.openDB = open }
}

// Connector is the health-store source.
type Connector struct {
	*connector.Lifecycle

	creds         Credentials
	openDB        func(dsn string) (*database.DB, error)
	lifecycleOpts []connector.Option

	mu    sync.RWMutex
	db    *database.DB
	store store.HealthStore
}

// New builds a disconnected Connector.
func New(name string, creds Credentials, allowMock bool, opts ...Option) *Connector {
	c := &Connector{creds: creds, openDB: database.Open}
	for _, opt := range opts {
		opt(c)
	}
	c.Lifecycle = connector.NewLifecycle(name, allowMock, connector.Hooks{
		Credentials: func() error {
			return connector.RequireCredentials(c.Name(),
				connector.Credential{Name: "HEALTH_DATABASE_URL", Value: c.creds.DatabaseURL})
		},
		Open:    c.open,
		Probe:   c.probe,
		Release: c.release,
	}, c.lifecycleOpts...)
	return c
}

// Factory builds and connects a Connector.
func Factory(ctx context.Context, name string, creds Credentials, allowMock bool, opts ...Option) (connector.QueryFunc, connector.Metadata, *Connector, error) {
	c := New(name, creds, allowMock, opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, c.Metadata(), c, err
	}
	return c.Query, c.Metadata(), c, nil
}

// Metadata describes the connector with its current status.
func (c *Connector) Metadata() connector.Metadata {
	return c.Describe(Type, Description)
}

func (c *Connector) open(ctx context.Context) error {
	db, err := c.openDB(c.creds.DatabaseURL)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping: %w", err)
	}
	if c.creds.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
	}

	c.mu.Lock()
	c.db = db
	c.store = store.NewSQLHealthStore(db)
	c.mu.Unlock()
	return nil
}

func (c *Connector) release(context.Context) error {
	c.mu.Lock()
	db := c.db
	c.db, c.store = nil, nil
	c.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

func (c *Connector) probe(ctx context.Context) error {
	s, err := c.session()
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

func (c *Connector) session() (store.HealthStore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return nil, connector.ErrNotConnected
	}
	return c.store, nil
}

// DB returns the live database, or nil when not connected.
func (c *Connector) DB() *database.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Query returns rows of q.Table (customer_health when empty), optionally
// narrowed to q.AccountID.
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	table := q.Table
	if table == "" {
		table = q.Text
	}
	if table == "" {
		table = TableHealth
	}

	switch table {
	case TableHealth:
		return c.Run(ctx,
			func(ctx context.Context) (connector.Result, error) {
				rows, err := c.HealthScores(ctx, q.AccountID)
				if err != nil {
					return connector.Result{}, err
				}
				return connector.RecordsResult(healthRecords(rows)), nil
			},
			func() connector.Result {
				return connector.RecordsResult(healthRecords(filterHealth(MockHealth(), q.AccountID)))
			})
	case TableMetrics:
		return c.Run(ctx,
			func(ctx context.Context) (connector.Result, error) {
				rows, err := c.Metrics(ctx, "")
				if err != nil {
					return connector.Result{}, err
				}
				recs := []domain.Record{}
				for _, m := range rows {
					if q.AccountID == "" || m.AccountID == q.AccountID {
						recs = append(recs, m.Record())
					}
				}
				return connector.RecordsResult(recs), nil
			},
			func() connector.Result { return connector.RecordsResult(nil) })
	default:
		return connector.Result{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
}

// HealthScores reads health rows. Without a live session it serves the
// fixture rows when mock mode is allowed.
func (c *Connector) HealthScores(ctx context.Context, accountID string) ([]domain.HealthRecord, error) {
	s, err := c.session()
	if err != nil {
		if c.AllowMock() {
			return filterHealth(MockHealth(), accountID), nil
		}
		return nil, &connector.ConnectionError{Connector: c.Name(), Op: "health scores", Err: err}
	}
	return s.HealthScores(ctx, accountID)
}

// Metrics reads engagement metrics. Without a live session it returns no rows
// when mock mode is allowed.
func (c *Connector) Metrics(ctx context.Context, metricType string) ([]domain.CustomerMetric, error) {
	s, err := c.session()
	if err != nil {
		if c.AllowMock() {
			return []domain.CustomerMetric{}, nil
		}
		return nil, &connector.ConnectionError{Connector: c.Name(), Op: "metrics", Err: err}
	}
	return s.Metrics(ctx, metricType)
}

// UpsertHealthScore writes a score. It requires a live session.
func (c *Connector) UpsertHealthScore(ctx context.Context, accountID string, score int, details string) (*domain.HealthRecord, error) {
	s, err := c.session()
	if err != nil {
		return nil, &connector.ConnectionError{Connector: c.Name(), Op: "upsert health score", Err: err}
	}
	return s.UpsertHealthScore(ctx, accountID, score, details)
}

// MockHealth returns the fixture health rows served in mock mode.
func MockHealth() []domain.HealthRecord {
	return []domain.HealthRecord{
		{AccountID: "0015g00000XYZ1QAAX", HealthScore: 85, Details: "Mock: High engagement"},
		{AccountID: "0015g00000ABC2QAAX", HealthScore: 45, Details: "Mock: Low activity"},
		{AccountID: "0015g00000DEF3QAAX", HealthScore: 92, Details: "Mock: Excellent health"},
		{AccountID: "0015g00000GHI4QAAX", HealthScore: 38, Details: "Mock: At risk"},
		{AccountID: "0015g00000JKL5QAAX", HealthScore: 67, Details: "Mock: Moderate engagement"},
	}
}

func filterHealth(rows []domain.HealthRecord, accountID string) []domain.HealthRecord {
	if accountID == "" {
		return rows
	}
	out := []domain.HealthRecord{}
	for _, h := range rows {
		if h.AccountID == accountID {
			out = append(out, h)
		}
	}
	return out
}

func healthRecords(rows []domain.HealthRecord) []domain.Record {
	out := make([]domain.Record, 0, len(rows))
	for _, h := range rows {
		out = append(out, h.Record())
	}
	return out
}
