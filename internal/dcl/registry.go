// Package dcl is the data connectivity layer: a registry that routes named
// queries to connectors.
package dcl

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/telemetry"
)

var tracer = otel.Tracer("github.com/johnwards/pipemon/internal/dcl")

// NotRegisteredError is returned when querying an unknown connector name.
type NotRegisteredError struct {
	Name      string
	Available []string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("connector %q not registered (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

type entry struct {
	query    connector.QueryFunc
	metadata connector.Metadata
	handle   connector.Handle
}

// Registry maps connector names to their query capability, metadata and
// lifecycle handle. Names are case-sensitive.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds or replaces a connector. handle may be nil for entries that
// have no lifecycle, such as a stub recording a configuration failure.
func (r *Registry) Register(name string, query connector.QueryFunc, md connector.Metadata, handle connector.Handle) {
	r.mu.Lock()
	_, replaced := r.entries[name]
	r.entries[name] = entry{query: query, metadata: md, handle: handle}
	r.mu.Unlock()

	slog.Info("connector registered", "connector", name, "status", md.Status, "replaced", replaced)
}

// Unregister removes a connector and reports whether it was present. The
// handle is not closed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	return true
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query routes q to the named connector.
func (r *Registry) Query(ctx context.Context, name string, q connector.Query) (connector.Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	var available []string
	if !ok {
		available = r.namesLocked()
	}
	r.mu.RUnlock()

	if !ok {
		telemetry.ConnectorQueries.WithLabelValues(name, "not_registered").Inc()
		return connector.Result{}, &NotRegisteredError{Name: name, Available: available}
	}
	if e.query == nil {
		telemetry.ConnectorQueries.WithLabelValues(name, "error").Inc()
		return connector.Result{}, &connector.ConnectionError{Connector: name, Op: "query", Err: connector.ErrNotConnected}
	}

	ctx, span := tracer.Start(ctx, "dcl.Query")
	span.SetAttributes(attribute.String("connector", name))
	defer span.End()

	start := time.Now()
	res, err := e.query(ctx, q)
	telemetry.ConnectorQueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.ConnectorQueries.WithLabelValues(name, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return connector.Result{}, fmt.Errorf("query %s: %w", name, err)
	}
	telemetry.ConnectorQueries.WithLabelValues(name, "ok").Inc()
	span.SetAttributes(
		attribute.Int("records", res.Len()),
		attribute.Bool("mock", res.Mock),
		attribute.Bool("degraded", res.Degraded),
	)
	return res, nil
}

// Status returns the metadata for name with status and error refreshed from
// its handle.
func (r *Registry) Status(name string) (connector.Metadata, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return connector.Metadata{}, false
	}
	return refresh(e), true
}

// Handle returns the lifecycle handle for name, if any.
func (r *Registry) Handle(name string) (connector.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || e.handle == nil {
		return nil, false
	}
	return e.handle, true
}

// List returns a snapshot of every connector's metadata.
func (r *Registry) List() map[string]connector.Metadata {
	r.mu.RLock()
	snapshot := make(map[string]entry, len(r.entries))
	for name, e := range r.entries {
		snapshot[name] = e
	}
	r.mu.RUnlock()

	out := make(map[string]connector.Metadata, len(snapshot))
	for name, e := range snapshot {
		out[name] = refresh(e)
	}
	return out
}

func refresh(e entry) connector.Metadata {
	md := e.metadata
	if e.handle == nil {
		return md
	}
	md.Status = e.handle.Status()
	md.Error = ""
	if err := e.handle.Err(); err != nil {
		md.Error = err.Error()
	}
	return md
}

// Close closes every handle. Close errors are logged.
func (r *Registry) Close(ctx context.Context) {
	r.mu.RLock()
	handles := make([]connector.Handle, 0, len(r.entries))
	names := r.namesLocked()
	for _, name := range names {
		if h := r.entries[name].handle; h != nil && !slices.Contains(handles, h) {
			handles = append(handles, h)
		}
	}
	r.mu.RUnlock()

	for _, h := range handles {
		if err := h.Close(ctx); err != nil {
			slog.Warn("error closing connector", "connector", h.Name(), "error", err)
		}
	}
}
