package domain

// UsageRecord is product usage telemetry for one account.
type UsageRecord struct {
	AccountID          string   `json:"account_id" bson:"account_id"`
	LastLoginDays      *int     `json:"last_login_days" bson:"last_login_days"`
	Sessions30d        int      `json:"sessions_30d" bson:"sessions_30d"`
	FeaturesUsed       []string `json:"features_used" bson:"features_used"`
	AvgSessionDuration float64  `json:"avg_session_duration" bson:"avg_session_duration"`
}

// Record converts u to its source-native shape, without the account key.
func (u UsageRecord) Record() Record {
	var lld any
	if u.LastLoginDays != nil {
		lld = *u.LastLoginDays
	}
	features := make([]string, len(u.FeaturesUsed))
	copy(features, u.FeaturesUsed)
	return Record{
		"last_login_days":      lld,
		"sessions_30d":         u.Sessions30d,
		"features_used":        features,
		"avg_session_duration": u.AvgSessionDuration,
	}
}

// UsageFromRecord decodes a usage record. A missing or null last_login_days
// stays nil; it is not the same as zero.
func UsageFromRecord(accountID string, r Record) UsageRecord {
	u := UsageRecord{
		AccountID:    accountID,
		FeaturesUsed: r.Strings("features_used"),
	}
	if v, ok := r.Int("last_login_days"); ok {
		u.LastLoginDays = &v
	}
	if v, ok := r.Int("sessions_30d"); ok {
		u.Sessions30d = v
	}
	if v, ok := r.Float("avg_session_duration"); ok {
		u.AvgSessionDuration = v
	}
	return u
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
