package connector

import (
	"context"

	"github.com/johnwards/pipemon/internal/domain"
)

// Query selects what a connector should return. Each source interprets only
// the fields that make sense for it: Text is a SOQL statement for the CRM,
// Table picks the health-store table, AccountID narrows either store to one
// account.
type Query struct {
	Text      string
	Table     string
	AccountID string
}

// Kind tags the shape of a Result.
type Kind int

const (
	// KindRecords is an ordered list of records.
	KindRecords Kind = iota
	// KindKeyed is a map of records keyed by account id.
	KindKeyed
)

func (k Kind) String() string {
	if k == KindKeyed {
		return "keyed"
	}
	return "records"
}

// Result is the tagged output of a connector query.
type Result struct {
	Kind    Kind
	Records []domain.Record
	Keyed   map[string]domain.Record

	// Mock is set when the connector has no live session and served fixture
	// data.
	Mock bool
	// Degraded is set when a live query failed and cached or fixture data
	// was served instead.
	Degraded bool
}

// RecordsResult builds a list-shaped result.
func RecordsResult(recs []domain.Record) Result {
	if recs == nil {
		recs = []domain.Record{}
	}
	return Result{Kind: KindRecords, Records: recs}
}

// KeyedResult builds a map-shaped result.
func KeyedResult(m map[string]domain.Record) Result {
	if m == nil {
		m = map[string]domain.Record{}
	}
	return Result{Kind: KindKeyed, Keyed: m}
}

// Len returns the number of records regardless of shape.
func (r Result) Len() int {
	if r.Kind == KindKeyed {
		return len(r.Keyed)
	}
	return len(r.Records)
}

// QueryFunc is the capability a connector registers with the registry.
type QueryFunc func(ctx context.Context, q Query) (Result, error)
