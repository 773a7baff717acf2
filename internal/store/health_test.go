package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/store"
	"github.com/johnwards/pipemon/internal/testhelpers"
)

var _ store.HealthStore = (*store.SQLHealthStore)(nil)

func setupHealthStore(t *testing.T) *store.SQLHealthStore {
	t.Helper()
	return store.NewSQLHealthStore(testhelpers.NewMigratedDB(t))
}

func TestHealthScoreUpsertAndGet(t *testing.T) {
	s := setupHealthStore(t)
	ctx := context.Background()

	h, err := s.UpsertHealthScore(ctx, "001A", 72, "steady usage")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if h.HealthScore != 72 {
		t.Errorf("expected score=72, got %d", h.HealthScore)
	}
	if h.Details != "steady usage" {
		t.Errorf("expected details=steady usage, got %q", h.Details)
	}
	if h.LastUpdated == "" {
		t.Error("expected last_updated to be set")
	}

	// Empty details keep the previous value.
	h, err = s.UpsertHealthScore(ctx, "001A", 40, "")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if h.HealthScore != 40 {
		t.Errorf("expected score=40, got %d", h.HealthScore)
	}
	if h.Details != "steady usage" {
		t.Errorf("expected details to be kept, got %q", h.Details)
	}

	all, err := s.HealthScores(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 row after upserts, got %d", len(all))
	}
}

func TestHealthScoreRange(t *testing.T) {
	s := setupHealthStore(t)
	ctx := context.Background()

	for _, score := range []int{-1, 101} {
		if _, err := s.UpsertHealthScore(ctx, "001A", score, ""); !errors.Is(err, store.ErrScoreOutOfRange) {
			t.Errorf("score %d: expected ErrScoreOutOfRange, got %v", score, err)
		}
	}
}

func TestHealthScoreNotFound(t *testing.T) {
	s := setupHealthStore(t)

	_, err := s.GetHealthScore(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHealthScoresFilterByAccount(t *testing.T) {
	s := setupHealthStore(t)
	ctx := context.Background()

	for _, id := range []string{"001C", "001A", "001B"} {
		if _, err := s.UpsertHealthScore(ctx, id, 50, ""); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	all, err := s.HealthScores(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].AccountID != "001A" || all[2].AccountID != "001C" {
		t.Errorf("expected rows ordered by account id, got %+v", all)
	}

	one, err := s.HealthScores(ctx, "001B")
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(one) != 1 || one[0].AccountID != "001B" {
		t.Errorf("expected only 001B, got %+v", one)
	}
}

func TestMetrics(t *testing.T) {
	s := setupHealthStore(t)
	ctx := context.Background()

	metrics := []domain.CustomerMetric{
		{AccountID: "001A", MetricType: "nps", Value: 42},
		{AccountID: "001A", MetricType: "tickets_open", Value: 3},
		{AccountID: "001B", MetricType: "nps", Value: -10},
	}
	for _, m := range metrics {
		if err := s.UpsertMetric(ctx, m); err != nil {
			t.Fatalf("upsert metric: %v", err)
		}
	}
	if err := s.UpsertMetric(ctx, domain.CustomerMetric{AccountID: "001A", MetricType: "nps", Value: 50}); err != nil {
		t.Fatalf("update metric: %v", err)
	}

	nps, err := s.Metrics(ctx, "nps")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if len(nps) != 2 {
		t.Fatalf("expected 2 nps rows, got %d", len(nps))
	}
	if nps[0].Value != 50 {
		t.Errorf("expected updated nps=50, got %v", nps[0].Value)
	}
	if nps[0].RecordedAt == "" {
		t.Error("expected recorded_at to be set")
	}

	all, err := s.Metrics(ctx, "")
	if err != nil {
		t.Fatalf("all metrics: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 metric rows, got %d", len(all))
	}
}
