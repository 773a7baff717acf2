package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/telemetry"
)

// PipelineRow is one opportunity joined with health and usage data.
type PipelineRow struct {
	OpportunityID   string  `json:"opportunity_id"`
	OpportunityName string  `json:"opportunity_name"`
	AccountID       string  `json:"account_id"`
	AccountName     string  `json:"account_name"`
	Stage           string  `json:"stage"`
	Amount          float64 `json:"amount"`
	CloseDate       string  `json:"close_date,omitempty"`
	DaysToClose     *int    `json:"days_to_close"`
	Probability     float64 `json:"probability"`
	HealthScore     float64 `json:"health_score"`
	LastLoginDays   *int    `json:"last_login_days"`
	Sessions30d     int     `json:"sessions_30d"`
	RiskScore       float64 `json:"risk_score"`
	IsStalled       bool    `json:"is_stalled"`
	Recommendation  string  `json:"recommendation"`
}

// DataQuality records which sources loaded and why not.
type DataQuality struct {
	HealthDataLoaded bool     `json:"health_data_loaded"`
	UsageDataLoaded  bool     `json:"usage_data_loaded"`
	MockSources      []string `json:"mock_sources"`
	DegradedSources  []string `json:"degraded_sources"`
	Warnings         []string `json:"warnings"`
}

func (q *DataQuality) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	q.Warnings = append(q.Warnings, msg)
	slog.Warn("data quality", "workflow", NamePipelineHealth, "warning", msg)
}

func (q *DataQuality) note(source string, res connector.Result) {
	if res.Mock {
		q.MockSources = append(q.MockSources, source)
	}
	if res.Degraded {
		q.DegradedSources = append(q.DegradedSources, source)
		q.warn("%s: live query failed, serving fallback data", source)
	}
}

// SummaryMetrics aggregates a pipeline report.
type SummaryMetrics struct {
	TotalOpportunities int     `json:"total_opportunities"`
	TotalPipelineValue float64 `json:"total_pipeline_value"`
	StalledDeals       int     `json:"stalled_deals"`
	HighRiskDeals      int     `json:"high_risk_deals"`
	AtRiskDeals        int     `json:"at_risk_deals"`
	HealthyDeals       int     `json:"healthy_deals"`
	AvgHealthScore     float64 `json:"avg_health_score"`
	AvgRiskScore       float64 `json:"avg_risk_score"`
}

// PipelineReport is the output of one pipeline-health run.
type PipelineReport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Rows        []PipelineRow `json:"opportunities"`
	DataQuality DataQuality   `json:"data_quality"`
}

// Stalled returns the stalled rows sorted by risk, highest first.
func (r *PipelineReport) Stalled() []PipelineRow {
	out := []PipelineRow{}
	for _, row := range r.Rows {
		if row.IsStalled {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	return out
}

// Summary computes the report aggregates. High risk is risk > 70, at risk is
// risk >= 70, and healthy rows are those recommended to continue cadence.
func (r *PipelineReport) Summary() SummaryMetrics {
	m := SummaryMetrics{TotalOpportunities: len(r.Rows)}
	if len(r.Rows) == 0 {
		return m
	}
	var health, risk float64
	for _, row := range r.Rows {
		m.TotalPipelineValue += row.Amount
		health += row.HealthScore
		risk += row.RiskScore
		if row.IsStalled {
			m.StalledDeals++
		}
		if row.RiskScore > 70 {
			m.HighRiskDeals++
		}
		if row.RiskScore >= 70 {
			m.AtRiskDeals++
		}
		if row.Recommendation == RecHealthy {
			m.HealthyDeals++
		}
	}
	n := float64(len(r.Rows))
	m.AvgHealthScore = health / n
	m.AvgRiskScore = risk / n
	return m
}

// PipelineHealth joins CRM opportunities with health scores and usage.
type PipelineHealth struct {
	q   Querier
	cfg config

	mu   sync.Mutex
	last *PipelineReport
}

// NewPipelineHealth creates the workflow.
func NewPipelineHealth(q Querier, opts ...Option) *PipelineHealth {
	return &PipelineHealth{q: q, cfg: newConfig(opts)}
}

// Run fetches all three sources and builds a fresh report. Only a CRM
// failure is an error; health and usage problems become warnings.
func (p *PipelineHealth) Run(ctx context.Context) (*PipelineReport, error) {
	ctx, span := tracer.Start(ctx, "workflow.PipelineHealth")
	defer span.End()

	report, err := p.run(ctx)
	if err != nil {
		telemetry.WorkflowRuns.WithLabelValues(NamePipelineHealth, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	telemetry.WorkflowRuns.WithLabelValues(NamePipelineHealth, "ok").Inc()
	summary := report.Summary()
	telemetry.StalledDeals.Set(float64(summary.StalledDeals))
	span.SetAttributes(
		attribute.Int("opportunities", summary.TotalOpportunities),
		attribute.Int("stalled", summary.StalledDeals),
	)

	p.mu.Lock()
	p.last = report
	p.mu.Unlock()
	return report, nil
}

func (p *PipelineHealth) run(ctx context.Context) (*PipelineReport, error) {
	now := p.cfg.now()
	src := p.cfg.sources
	report := &PipelineReport{
		GeneratedAt: now,
		Rows:        []PipelineRow{},
		DataQuality: DataQuality{MockSources: []string{}, DegradedSources: []string{}, Warnings: []string{}},
	}
	dq := &report.DataQuality

	crm, err := p.q.Query(ctx, src.CRM, connector.Query{})
	if err != nil {
		return nil, fmt.Errorf("fetch opportunities: %w", err)
	}
	if crm.Kind != connector.KindRecords {
		return nil, fmt.Errorf("fetch opportunities: unexpected %s result", crm.Kind)
	}
	dq.note(src.CRM, crm)
	if len(crm.Records) == 0 {
		return report, nil
	}

	healthMap := p.fetchHealth(ctx, dq)
	usageMap := p.fetchUsage(ctx, dq)

	for _, rec := range crm.Records {
		report.Rows = append(report.Rows, joinRow(rec, healthMap, usageMap, now))
	}
	return report, nil
}

func (p *PipelineHealth) fetchHealth(ctx context.Context, dq *DataQuality) map[string]float64 {
	name := p.cfg.sources.Health
	out := map[string]float64{}

	res, err := p.q.Query(ctx, name, connector.Query{Table: "customer_health"})
	switch {
	case err != nil:
		dq.warn("%s: health data unavailable: %v", name, err)
		return out
	case res.Kind != connector.KindRecords:
		dq.warn("%s: unexpected %s result for health data", name, res.Kind)
		return out
	}
	dq.note(name, res)
	for _, rec := range res.Records {
		id := rec.String("account_id")
		if id == "" {
			continue
		}
		score, _ := rec.Float("health_score")
		out[id] = score
	}
	if len(out) == 0 {
		dq.warn("%s: no health records returned", name)
		return out
	}
	dq.HealthDataLoaded = true
	return out
}

func (p *PipelineHealth) fetchUsage(ctx context.Context, dq *DataQuality) map[string]domain.Record {
	name := p.cfg.sources.Usage
	out := map[string]domain.Record{}

	res, err := p.q.Query(ctx, name, connector.Query{})
	switch {
	case err != nil:
		dq.warn("%s: usage data unavailable: %v", name, err)
		return out
	case res.Kind != connector.KindKeyed:
		dq.warn("%s: unexpected %s result for usage data", name, res.Kind)
		return out
	}
	dq.note(name, res)
	if len(res.Keyed) == 0 {
		dq.warn("%s: no usage records returned", name)
		return out
	}
	dq.UsageDataLoaded = true
	return res.Keyed
}

func joinRow(rec domain.Record, health map[string]float64, usage map[string]domain.Record, now time.Time) PipelineRow {
	opp := domain.OpportunityFromRecord(rec)
	u := domain.UsageFromRecord(opp.AccountID, usage[opp.AccountID])

	var days *int
	if t, err := domain.ParseCloseDate(opp.CloseDate); err == nil {
		d := domain.DaysUntil(t, now)
		days = &d
	}

	s := Signals{
		HealthScore:   health[opp.AccountID],
		LastLoginDays: u.LastLoginDays,
		Sessions30d:   u.Sessions30d,
		DaysToClose:   days,
		Probability:   opp.Probability,
	}
	risk := RiskScore(s)
	stalled := IsStalled(s, risk)

	return PipelineRow{
		OpportunityID:   opp.ID,
		OpportunityName: opp.Name,
		AccountID:       opp.AccountID,
		AccountName:     opp.AccountName,
		Stage:           opp.Stage,
		Amount:          opp.Amount,
		CloseDate:       opp.CloseDate,
		DaysToClose:     days,
		Probability:     opp.Probability,
		HealthScore:     s.HealthScore,
		LastLoginDays:   u.LastLoginDays,
		Sessions30d:     u.Sessions30d,
		RiskScore:       risk,
		IsStalled:       stalled,
		Recommendation:  Recommendation(stalled, risk, s.HealthScore),
	}
}

// Last returns the most recent report, if any.
func (p *PipelineHealth) Last() (*PipelineReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.last != nil
}

func (p *PipelineHealth) lastOrRun(ctx context.Context) (*PipelineReport, error) {
	if r, ok := p.Last(); ok {
		return r, nil
	}
	return p.Run(ctx)
}

// StalledDeals runs the workflow and returns stalled rows, riskiest first.
func (p *PipelineHealth) StalledDeals(ctx context.Context) ([]PipelineRow, error) {
	r, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}
	return r.Stalled(), nil
}

// SummaryMetrics aggregates the last report, running the workflow first when
// there is none.
func (p *PipelineHealth) SummaryMetrics(ctx context.Context) (SummaryMetrics, error) {
	r, err := p.lastOrRun(ctx)
	if err != nil {
		return SummaryMetrics{}, err
	}
	return r.Summary(), nil
}

// DataQualityReport returns the data-quality section of the last report,
// running the workflow first when there is none.
func (p *PipelineHealth) DataQualityReport(ctx context.Context) (DataQuality, error) {
	r, err := p.lastOrRun(ctx)
	if err != nil {
		return DataQuality{}, err
	}
	return r.DataQuality, nil
}
