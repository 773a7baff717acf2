package domain

// HealthRecord is a customer health score from the relational health store.
type HealthRecord struct {
	AccountID   string `json:"account_id"`
	HealthScore int    `json:"health_score"`
	Details     string `json:"details,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// Record converts h to its source-native shape.
func (h HealthRecord) Record() Record {
	r := Record{
		"account_id":   h.AccountID,
		"health_score": h.HealthScore,
	}
	if h.Details != "" {
		r["details"] = h.Details
	}
	if h.LastUpdated != "" {
		r["last_updated"] = h.LastUpdated
	}
	return r
}

// CustomerMetric is a single named engagement metric for an account.
type CustomerMetric struct {
	AccountID  string  `json:"account_id"`
	MetricType string  `json:"metric_type"`
	Value      float64 `json:"value"`
	RecordedAt string  `json:"recorded_at"`
}

// Record converts m to its source-native shape.
func (m CustomerMetric) Record() Record {
	return Record{
		"account_id":  m.AccountID,
		"metric_type": m.MetricType,
		"value":       m.Value,
		"recorded_at": m.RecordedAt,
	}
}
