package connector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/johnwards/pipemon/internal/telemetry"
)

// Handle is the lifecycle surface the registry and API use to manage a
// connector. *Lifecycle implements it, so connectors that embed one satisfy it
// without extra code.
type Handle interface {
	Name() string
	State() State
	Status() Status
	Err() error
	CheckHealth(ctx context.Context, force bool) Health
	CachedHealth() (Health, bool)
	HealthCacheFresh() bool
	Reconnect(ctx context.Context) error
	Close(ctx context.Context) error
}

// Hooks are the source-specific steps a Lifecycle drives.
type Hooks struct {
	// Credentials validates configuration before any I/O. It should return a
	// *ConfigurationError when something required is missing.
	Credentials func() error
	// Open establishes the live session.
	Open func(ctx context.Context) error
	// Probe is a cheap liveness check against the live session.
	Probe func(ctx context.Context) error
	// Release tears down the live session.
	Release func(ctx context.Context) error
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithHealthTTL overrides DefaultHealthTTL.
func WithHealthTTL(d time.Duration) Option {
	return func(l *Lifecycle) { l.ttl = d }
}

// WithClock injects the time source used for health caching and fixtures.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// Lifecycle implements the connect/close/reconnect state machine, the mock
// fallback policy and the cached health check shared by every connector.
type Lifecycle struct {
	name      string
	allowMock bool
	hooks     Hooks
	ttl       time.Duration
	now       func() time.Time
	health    *HealthCache

	// connMu serializes Connect and Close; mu guards state reads.
	connMu sync.Mutex
	mu     sync.RWMutex
	state  State
	err    error
}

// NewLifecycle returns a disconnected Lifecycle.
func NewLifecycle(name string, allowMock bool, hooks Hooks, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		name:      name,
		allowMock: allowMock,
		hooks:     hooks,
		ttl:       DefaultHealthTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.health = NewHealthCache(l.ttl, l.now)
	return l
}

func (l *Lifecycle) Name() string    { return l.name }
func (l *Lifecycle) AllowMock() bool { return l.allowMock }

// Now returns the lifecycle's clock reading.
func (l *Lifecycle) Now() time.Time { return l.now() }

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Lifecycle) Status() Status { return l.State().Status() }

// Err returns the error that put the connector into Mock or Failed.
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Describe builds connector metadata carrying the current status.
func (l *Lifecycle) Describe(typ, description string) Metadata {
	l.mu.RLock()
	defer l.mu.RUnlock()
	md := Metadata{Type: typ, Status: l.state.Status(), Description: description}
	if l.err != nil {
		md.Error = l.err.Error()
	}
	return md
}

func (l *Lifecycle) set(s State, err error) {
	l.mu.Lock()
	l.state = s
	l.err = err
	l.mu.Unlock()
}

// Connect validates credentials and opens a live session. On failure with
// mock fallback enabled the connector enters Mock and Connect returns nil;
// without it the connector enters Failed and the error is returned.
func (l *Lifecycle) Connect(ctx context.Context) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.hooks.Credentials != nil {
		if err := l.hooks.Credentials(); err != nil {
			return l.fail(err)
		}
	}
	if l.hooks.Open != nil {
		if err := l.hooks.Open(ctx); err != nil {
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				err = &ConnectionError{Connector: l.name, Op: "connect", Err: err}
			}
			return l.fail(err)
		}
	}
	l.set(StateConnected, nil)
	l.health.Reset()
	slog.Info("connector connected", "connector", l.name)
	return nil
}

func (l *Lifecycle) fail(err error) error {
	l.health.Reset()
	if l.allowMock {
		l.set(StateMock, err)
		slog.Warn("connector unavailable, serving mock data", "connector", l.name, "error", err)
		return nil
	}
	l.set(StateFailed, err)
	slog.Error("connector failed", "connector", l.name, "error", err)
	return err
}

// Close releases the live session. It is idempotent and never fails; release
// errors are logged.
func (l *Lifecycle) Close(ctx context.Context) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	prev := l.State()
	if prev == StateDisconnected {
		return nil
	}
	l.set(StateDisconnected, nil)
	l.health.Reset()
	if prev == StateConnected && l.hooks.Release != nil {
		if err := l.hooks.Release(ctx); err != nil {
			slog.Warn("error releasing connector session", "connector", l.name, "error", err)
		}
	}
	slog.Debug("connector closed", "connector", l.name)
	return nil
}

// Reconnect closes and connects again, clearing the health cache.
func (l *Lifecycle) Reconnect(ctx context.Context) error {
	_ = l.Close(ctx)
	return l.Connect(ctx)
}

// CheckHealth returns the cached probe result while it is fresh, otherwise
// probes the live session. force bypasses the cache. A connector without a
// live session is reported unhealthy without I/O.
func (l *Lifecycle) CheckHealth(ctx context.Context, force bool) Health {
	h := l.health.Get(ctx, force, func(ctx context.Context) error {
		l.mu.RLock()
		state, err := l.state, l.err
		l.mu.RUnlock()
		if state != StateConnected {
			if err != nil {
				return err
			}
			return ErrNotConnected
		}
		if l.hooks.Probe == nil {
			return nil
		}
		return l.hooks.Probe(ctx)
	})
	v := 0.0
	if h.Healthy {
		v = 1
	}
	telemetry.ConnectorHealthy.WithLabelValues(l.name).Set(v)
	return h
}

// CachedHealth returns the last probe result without performing I/O.
func (l *Lifecycle) CachedHealth() (Health, bool) { return l.health.Cached() }

// HealthCacheFresh reports whether a probe result younger than the TTL exists.
func (l *Lifecycle) HealthCacheFresh() bool {
	_, ok := l.health.Fresh()
	return ok
}

// Run executes live against the open session. When the connector has no
// session, or the live call fails, fallback supplies the data if mock mode is
// allowed; otherwise a *ConnectionError is returned. Context cancellation is
// never masked by fallback data.
func (l *Lifecycle) Run(ctx context.Context, live func(context.Context) (Result, error), fallback func() Result) (Result, error) {
	if l.State() != StateConnected {
		if !l.allowMock {
			return Result{}, &ConnectionError{Connector: l.name, Op: "query", Err: ErrNotConnected}
		}
		telemetry.ConnectorFallbacks.WithLabelValues(l.name).Inc()
		res := fallback()
		res.Mock = true
		return res, nil
	}

	res, err := live(ctx)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if !l.allowMock {
		return Result{}, &ConnectionError{Connector: l.name, Op: "query", Err: err}
	}
	slog.Warn("live query failed, serving fallback data", "connector", l.name, "error", err)
	telemetry.ConnectorFallbacks.WithLabelValues(l.name).Inc()
	res = fallback()
	res.Degraded = true
	return res, nil
}
