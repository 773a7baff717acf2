package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/workflow"
)

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name string
		s    workflow.Signals
		want float64
	}{
		{
			name: "everything unknown",
			s:    workflow.Signals{},
			want: 25 + 20 + 5 + 30,
		},
		{
			name: "engaged account closing soon",
			s: workflow.Signals{
				LastLoginDays: domain.IntPtr(0), Sessions30d: 20,
				DaysToClose: domain.IntPtr(30), Probability: 100,
			},
			want: 5,
		},
		{
			name: "mid range",
			s: workflow.Signals{
				LastLoginDays: domain.IntPtr(30), Sessions30d: 5,
				DaysToClose: domain.IntPtr(75), Probability: 50,
			},
			want: 20 + 10 + 10 + 15,
		},
		{
			name: "beyond ninety days",
			s: workflow.Signals{
				LastLoginDays: domain.IntPtr(60), Sessions30d: 10,
				DaysToClose: domain.IntPtr(91), Probability: 100,
			},
			want: 40 + 0 + 20 + 0,
		},
		{
			name: "clamped at 100",
			s: workflow.Signals{
				LastLoginDays: domain.IntPtr(120), Sessions30d: 0,
				DaysToClose: domain.IntPtr(-5), Probability: 0,
			},
			want: 100,
		},
		{
			name: "clamped at 0",
			s: workflow.Signals{
				LastLoginDays: domain.IntPtr(0), Sessions30d: 50,
				DaysToClose: domain.IntPtr(10), Probability: 200,
			},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, workflow.RiskScore(tt.s), 1e-9)
		})
	}
}

func TestRiskScoreStaysInRange(t *testing.T) {
	for lld := -10; lld <= 200; lld += 15 {
		for sessions := -5; sessions <= 40; sessions += 5 {
			for days := -30; days <= 400; days += 37 {
				for p := -50.0; p <= 150; p += 25 {
					s := workflow.Signals{
						LastLoginDays: domain.IntPtr(lld), Sessions30d: sessions,
						DaysToClose: domain.IntPtr(days), Probability: p,
					}
					r := workflow.RiskScore(s)
					if r < 0 || r > 100 {
						t.Fatalf("RiskScore(%+v) = %v, out of range", s, r)
					}
				}
			}
		}
	}
}

func TestStallSignals(t *testing.T) {
	healthy := workflow.Signals{
		HealthScore: 80, LastLoginDays: domain.IntPtr(2), Sessions30d: 20,
		DaysToClose: domain.IntPtr(30), Probability: 90,
	}
	assert.Equal(t, 0, workflow.StallSignals(healthy, 10))
	assert.False(t, workflow.IsStalled(healthy, 10))

	// Unknown last login is not a signal, unknown close date is.
	unknown := workflow.Signals{HealthScore: 80, Sessions30d: 20}
	assert.Equal(t, 1, workflow.StallSignals(unknown, 10))
	assert.False(t, workflow.IsStalled(unknown, 10))

	twoSignals := healthy
	twoSignals.HealthScore = 49
	twoSignals.LastLoginDays = domain.IntPtr(15)
	assert.Equal(t, 2, workflow.StallSignals(twoSignals, 10))
	assert.True(t, workflow.IsStalled(twoSignals, 10))

	all := workflow.Signals{
		HealthScore: 10, LastLoginDays: domain.IntPtr(30), Sessions30d: 1,
		DaysToClose: domain.IntPtr(-1),
	}
	assert.Equal(t, 5, workflow.StallSignals(all, 61))

	// Boundaries are strict.
	edge := workflow.Signals{
		HealthScore: 50, LastLoginDays: domain.IntPtr(14), Sessions30d: 5,
		DaysToClose: domain.IntPtr(90),
	}
	assert.Equal(t, 0, workflow.StallSignals(edge, 60))
}

func TestRecommendation(t *testing.T) {
	tests := []struct {
		stalled bool
		risk    float64
		health  float64
		want    string
	}{
		{true, 71, 20, workflow.RecEscalate},
		{true, 70, 20, workflow.RecReengage},
		{true, 51, 80, workflow.RecReengage},
		{true, 50, 40, workflow.RecSupport},
		{true, 50, 80, workflow.RecHealthy},
		{false, 90, 20, workflow.RecMonitor},
		{false, 60, 20, workflow.RecSupport},
		{false, 60, 50, workflow.RecHealthy},
	}
	for _, tt := range tests {
		got := workflow.Recommendation(tt.stalled, tt.risk, tt.health)
		assert.Equal(t, tt.want, got, "stalled=%v risk=%v health=%v", tt.stalled, tt.risk, tt.health)
	}
}
