package workflow

import "math"

// Recommendations, in decision-table order.
const (
	RecEscalate = "urgent: escalate"
	RecReengage = "re-engage now"
	RecMonitor  = "monitor, increase touch points"
	RecSupport  = "customer-success intervention"
	RecHealthy  = "healthy, continue cadence"
)

// Signals are the joined per-deal inputs to scoring. Nil pointers mean
// unknown.
type Signals struct {
	HealthScore   float64
	LastLoginDays *int
	Sessions30d   int
	DaysToClose   *int
	Probability   float64
}

// RiskScore is the composite deal risk in [0, 100]; higher is riskier.
//
//	recency     min(lld/60*40, 40), 25 when unknown
//	engagement  max(0, (10-sessions)/10*20)
//	timeline    30 overdue, 20 beyond 90d, 10 beyond 60d, 5 otherwise or unknown
//	probability (100-p)*0.3
func RiskScore(s Signals) float64 {
	risk := 0.0

	if s.LastLoginDays != nil {
		risk += math.Min(float64(*s.LastLoginDays)/60*40, 40)
	} else {
		risk += 25
	}

	risk += math.Max(0, float64(10-s.Sessions30d)/10*20)

	switch {
	case s.DaysToClose == nil:
		risk += 5
	case *s.DaysToClose < 0:
		risk += 30
	case *s.DaysToClose > 90:
		risk += 20
	case *s.DaysToClose > 60:
		risk += 10
	default:
		risk += 5
	}

	risk += (100 - s.Probability) * 0.3

	if math.IsNaN(risk) {
		return 100
	}
	return math.Min(100, math.Max(0, risk))
}

// StallSignals counts the stall indicators that hold.
func StallSignals(s Signals, risk float64) int {
	n := 0
	if s.HealthScore < 50 {
		n++
	}
	if risk > 60 {
		n++
	}
	if s.LastLoginDays != nil && *s.LastLoginDays > 14 {
		n++
	}
	if s.Sessions30d < 5 {
		n++
	}
	if s.DaysToClose == nil || *s.DaysToClose < 0 || *s.DaysToClose > 90 {
		n++
	}
	return n
}

// IsStalled reports whether at least two stall signals hold.
func IsStalled(s Signals, risk float64) bool {
	return StallSignals(s, risk) >= 2
}

// Recommendation picks the first matching action.
func Recommendation(stalled bool, risk, health float64) string {
	switch {
	case stalled && risk > 70:
		return RecEscalate
	case stalled && risk > 50:
		return RecReengage
	case risk > 60:
		return RecMonitor
	case health < 50:
		return RecSupport
	default:
		return RecHealthy
	}
}
