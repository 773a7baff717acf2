// Package usage serves product usage telemetry from MongoDB, keyed by
// account id, with an in-memory cache that doubles as the mock data set.
package usage

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/domain"
)

const (
	Type            = "MongoDB"
	Description     = "Usage and engagement data"
	MockType        = "MongoDB (Mock)"
	MockDescription = "Usage and engagement data (simulated)"

	DefaultDatabase = "dcl_demo"
)

// Features is the catalogue sampled when synthesizing usage.
var Features = []string{
	"dashboard", "reports", "api", "integrations",
	"analytics", "export", "alerts", "automation",
}

// Credentials configure the MongoDB connection.
type Credentials struct {
	URI      string
	Database string
}

// Option configures a Connector.
type Option func(*Connector)

// WithLifecycle passes options to the underlying connector.Lifecycle.
func WithLifecycle(opts ...connector.Option) Option {
	return func(c *Connector) { c.lifecycleOpts = append(c.lifecycleOpts, opts...) }
}

// WithDialer replaces DialMongo.
func WithDialer(d Dialer) Option {
	return func(c *Connector) { c.dial = d }
}

// WithSeed makes usage synthesis deterministic.
func WithSeed(seed uint64) Option {
	return func(c *Connector) { c.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// Connector is the usage source.
type Connector struct {
	*connector.Lifecycle

	creds         Credentials
	dial          Dialer
	lifecycleOpts []connector.Option

	rngMu sync.Mutex
	rng   *rand.Rand

	mu    sync.RWMutex
	docs  DocumentStore
	cache map[string]domain.UsageRecord
}

// New builds a disconnected Connector.
func New(name string, creds Credentials, allowMock bool, opts ...Option) *Connector {
	if creds.Database == "" {
		creds.Database = DefaultDatabase
	}
	c := &Connector{
		creds: creds,
		dial:  DialMongo,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		cache: map[string]domain.UsageRecord{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Lifecycle = connector.NewLifecycle(name, allowMock, connector.Hooks{
		Credentials: func() error {
			return connector.RequireCredentials(c.Name(),
				connector.Credential{Name: "MONGODB_URI", Value: c.creds.URI})
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

// Metadata describes the connector. The type label marks simulated data.
func (c *Connector) Metadata() connector.Metadata {
	if c.State() == connector.StateConnected {
		return c.Describe(Type, Description)
	}
	return c.Describe(MockType, MockDescription)
}

func (c *Connector) open(ctx context.Context) error {
	docs, err := c.dial(ctx, c.creds.URI, c.creds.Database)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.docs = docs
	c.mu.Unlock()
	slog.Info("connected to usage store", "connector", c.Name(), "database", c.creds.Database)
	return nil
}

func (c *Connector) release(ctx context.Context) error {
	c.mu.Lock()
	docs := c.docs
	c.docs = nil
	c.mu.Unlock()
	if docs == nil {
		return nil
	}
	return docs.Close(ctx)
}

func (c *Connector) probe(ctx context.Context) error {
	docs := c.session()
	if docs == nil {
		return connector.ErrNotConnected
	}
	return docs.Ping(ctx)
}

func (c *Connector) session() DocumentStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docs
}

// Query returns usage keyed by account id. A live read failure serves the
// in-memory cache flagged Degraded.
func (c *Connector) Query(ctx context.Context, q connector.Query) (connector.Result, error) {
	return c.Run(ctx,
		func(ctx context.Context) (connector.Result, error) {
			docs := c.session()
			if docs == nil {
				return connector.Result{}, connector.ErrNotConnected
			}
			recs, err := docs.FindAll(ctx)
			if err != nil {
				return connector.Result{}, err
			}
			out := make(map[string]domain.Record, len(recs))
			for _, r := range recs {
				if q.AccountID == "" || r.AccountID == q.AccountID {
					out[r.AccountID] = r.Record()
				}
			}
			return connector.KeyedResult(out), nil
		},
		func() connector.Result { return connector.KeyedResult(c.cached(q.AccountID)) },
	)
}

func (c *Connector) cached(accountID string) map[string]domain.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.Record, len(c.cache))
	for id, u := range c.cache {
		if accountID == "" || id == accountID {
			out[id] = u.Record()
		}
	}
	return out
}

// UsageForAccount returns the stored usage for one account, falling back to
// the cache and then to an empty record with unknown last login.
func (c *Connector) UsageForAccount(ctx context.Context, accountID string) domain.UsageRecord {
	if docs := c.session(); docs != nil {
		rec, err := docs.FindOne(ctx, accountID)
		if err != nil {
			slog.Warn("usage lookup failed, using cache", "connector", c.Name(), "account_id", accountID, "error", err)
		} else if rec != nil {
			return *rec
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if u, ok := c.cache[accountID]; ok {
		return u
	}
	return domain.UsageRecord{AccountID: accountID, FeaturesUsed: []string{}}
}

// AddUsage stores usage for an account. The record is written to MongoDB when
// connected and always to the cache; write failures are logged.
func (c *Connector) AddUsage(ctx context.Context, rec domain.UsageRecord) {
	if rec.FeaturesUsed == nil {
		rec.FeaturesUsed = []string{}
	}
	if docs := c.session(); docs != nil {
		if err := docs.Upsert(ctx, rec); err != nil {
			slog.Warn("usage write failed", "connector", c.Name(), "account_id", rec.AccountID, "error", err)
		}
	}
	c.mu.Lock()
	c.cache[rec.AccountID] = rec
	c.mu.Unlock()
}

// PopulateFromAccounts synthesizes usage for every account that has no known
// last login and returns how many accounts were populated.
func (c *Connector) PopulateFromAccounts(ctx context.Context, accountIDs []string) int {
	seen := make(map[string]bool, len(accountIDs))
	n := 0
	for _, id := range accountIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if ctx.Err() != nil {
			break
		}
		if existing := c.UsageForAccount(ctx, id); existing.LastLoginDays != nil {
			continue
		}
		c.AddUsage(ctx, c.synthesize(id))
		n++
	}
	return n
}

func (c *Connector) synthesize(accountID string) domain.UsageRecord {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	lastLogin := 1 + c.rng.IntN(90)
	sessions := c.rng.IntN(6)
	if lastLogin < 30 {
		sessions = c.rng.IntN(51)
	}
	k := 1 + c.rng.IntN(5)
	perm := c.rng.Perm(len(Features))
	features := make([]string, 0, k)
	for _, i := range perm[:k] {
		features = append(features, Features[i])
	}
	return domain.UsageRecord{
		AccountID:          accountID,
		LastLoginDays:      domain.IntPtr(lastLogin),
		Sessions30d:        sessions,
		FeaturesUsed:       features,
		AvgSessionDuration: float64(5 + c.rng.IntN(41)),
	}
}
