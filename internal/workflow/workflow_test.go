package workflow_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/workflow"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func clock() func() time.Time { return func() time.Time { return testNow } }

type answer struct {
	res connector.Result
	err error
}

type fakeQuerier struct {
	mu      sync.Mutex
	answers map[string]answer
	calls   map[string]int
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{answers: map[string]answer{}, calls: map[string]int{}}
}

func (f *fakeQuerier) set(name string, res connector.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[name] = answer{res, err}
}

func (f *fakeQuerier) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeQuerier) Query(_ context.Context, name string, _ connector.Query) (connector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	a, ok := f.answers[name]
	if !ok {
		return connector.Result{}, errors.New("no such source")
	}
	return a.res, a.err
}

var _ workflow.Querier = (*fakeQuerier)(nil)

func opportunities() []domain.Record {
	return []domain.Record{
		{
			"Id": "006A", "Name": "Acme Expansion", "AccountId": "001A", "AccountName": "Acme",
			"StageName": "Negotiation/Review", "Amount": 100000.0, "CloseDate": "2026-02-14",
			"Probability": 90.0, "Type": "Existing Business", "LeadSource": "Web",
		},
		{
			"Id": "006B", "Name": "Globex Renewal", "AccountId": "001B", "AccountName": "Globex",
			"StageName": "Proposal/Price Quote", "Amount": 50000.0, "CloseDate": "2025-12-01",
			"Probability": 10.0,
		},
		{
			"Id": "006C", "Name": "Initech Pilot", "AccountId": "001C", "AccountName": "Initech",
			"StageName": "Qualification", "Amount": 8000.0, "Probability": 50.0,
		},
	}
}

func healthRows() []domain.Record {
	return []domain.Record{
		{"account_id": "001A", "health_score": 85},
		{"account_id": "001B", "health_score": int64(38)},
	}
}

func usageRows() map[string]domain.Record {
	return map[string]domain.Record{
		"001A": {"last_login_days": 1, "sessions_30d": 25},
		"001B": {"last_login_days": int32(45), "sessions_30d": 2},
	}
}

func fullQuerier() *fakeQuerier {
	f := newFakeQuerier()
	f.set(workflow.SourceCRM, connector.RecordsResult(opportunities()), nil)
	f.set(workflow.SourceHealth, connector.RecordsResult(healthRows()), nil)
	f.set(workflow.SourceUsage, connector.KeyedResult(usageRows()), nil)
	return f
}
