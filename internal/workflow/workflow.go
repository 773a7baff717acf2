// Package workflow joins connector data into the pipeline-health and
// CRM-integrity reports.
package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/johnwards/pipemon/internal/connector"
)

var tracer = otel.Tracer("github.com/johnwards/pipemon/internal/workflow")

// Registry names of the three sources.
const (
	SourceCRM    = "salesforce"
	SourceHealth = "healthdb"
	SourceUsage  = "mongodb"
)

// Workflow names used in metrics and logs.
const (
	NamePipelineHealth = "pipeline_health"
	NameCRMIntegrity   = "crm_integrity"
)

// Querier routes a query to a named source. *dcl.Registry implements it.
type Querier interface {
	Query(ctx context.Context, name string, q connector.Query) (connector.Result, error)
}

// Sources names the registry entries a workflow reads.
type Sources struct {
	CRM    string
	Health string
	Usage  string
}

// DefaultSources uses the standard registry names.
var DefaultSources = Sources{CRM: SourceCRM, Health: SourceHealth, Usage: SourceUsage}

type config struct {
	now     func() time.Time
	sources Sources
}

// Option configures a workflow.
type Option func(*config)

// WithClock injects the time used for days-to-close calculations.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithSources overrides the registry names.
func WithSources(s Sources) Option {
	return func(c *config) { c.sources = s }
}

func newConfig(opts []Option) config {
	c := config{now: time.Now, sources: DefaultSources}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
