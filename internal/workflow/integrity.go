package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/telemetry"
)

// RiskLevel classifies a validation result.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

func classify(issues, warnings int) RiskLevel {
	switch {
	case issues > 2:
		return RiskHigh
	case issues > 0 || warnings > 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ValidationRow is the BANT result for one opportunity.
type ValidationRow struct {
	OpportunityID   string    `json:"opportunity_id"`
	OpportunityName string    `json:"opportunity_name"`
	AccountName     string    `json:"account_name"`
	Stage           string    `json:"stage"`
	Amount          float64   `json:"amount"`
	IsValid         bool      `json:"is_valid"`
	Issues          []string  `json:"issues"`
	Warnings        []string  `json:"warnings"`
	MissingFields   []string  `json:"missing_fields"`
	RiskLevel       RiskLevel `json:"risk_level"`
}

// ValidateBANT checks an opportunity against its stage gate. Issues make the
// row invalid; warnings only raise the risk level.
func ValidateBANT(o domain.Opportunity, now time.Time) ValidationRow {
	rule := RuleFor(o.Stage)
	row := ValidationRow{
		OpportunityID:   o.ID,
		OpportunityName: o.Name,
		AccountName:     o.AccountName,
		Stage:           o.Stage,
		Amount:          o.Amount,
		Issues:          []string{},
		Warnings:        []string{},
		MissingFields:   []string{},
	}

	// Budget
	if o.Amount < rule.MinAmount {
		row.Issues = append(row.Issues, fmt.Sprintf("Budget: Amount $%s below minimum $%s for %s",
			humanize.Commaf(o.Amount), humanize.Commaf(rule.MinAmount), o.Stage))
	}

	// Authority
	for _, f := range rule.RequiredFields {
		if !domain.Truthy(o.Field(f)) {
			row.Issues = append(row.Issues, fmt.Sprintf("Authority: Missing required field '%s'", f))
			row.MissingFields = append(row.MissingFields, f)
		}
	}

	// Need
	if needsType(o.Stage) && o.Type == "" {
		row.Warnings = append(row.Warnings, "Need: Opportunity type not specified")
	}

	// Timeline
	if o.CloseDate == "" {
		row.Issues = append(row.Issues, "Timeline: Close date not set")
	} else if t, err := domain.ParseCloseDate(o.CloseDate); err != nil {
		row.Warnings = append(row.Warnings, "Timeline: Invalid close date format")
	} else {
		days := domain.DaysUntil(t, now)
		switch {
		case days < 0:
			row.Issues = append(row.Issues, "Timeline: Close date is in the past")
		case days > rule.MaxDaysToClose:
			row.Warnings = append(row.Warnings, fmt.Sprintf("Timeline: Close date %d days away (max %d for %s)",
				days, rule.MaxDaysToClose, o.Stage))
		}
	}

	row.IsValid = len(row.Issues) == 0
	row.RiskLevel = classify(len(row.Issues), len(row.Warnings))
	return row
}

// IntegrityMetrics aggregates an integrity report.
type IntegrityMetrics struct {
	TotalRecords   int     `json:"total_records"`
	Valid          int     `json:"valid"`
	Invalid        int     `json:"invalid"`
	ValidationRate float64 `json:"validation_rate"`
	HighRisk       int     `json:"high_risk"`
	MediumRisk     int     `json:"medium_risk"`
	LowRisk        int     `json:"low_risk"`
}

// IntegrityReport is the output of one validation run.
type IntegrityReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Rows        []ValidationRow `json:"validations"`
	// MockSource is set when the CRM answered with fixture data.
	MockSource bool `json:"mock_source"`
}

// Metrics computes the report aggregates. ValidationRate is a percentage.
func (r *IntegrityReport) Metrics() IntegrityMetrics {
	m := IntegrityMetrics{TotalRecords: len(r.Rows)}
	for _, row := range r.Rows {
		if row.IsValid {
			m.Valid++
		}
		switch row.RiskLevel {
		case RiskHigh:
			m.HighRisk++
		case RiskMedium:
			m.MediumRisk++
		default:
			m.LowRisk++
		}
	}
	m.Invalid = m.TotalRecords - m.Valid
	if m.TotalRecords > 0 {
		m.ValidationRate = float64(m.Valid) / float64(m.TotalRecords) * 100
	}
	return m
}

// Violations returns the HIGH risk rows.
func (r *IntegrityReport) Violations() []ValidationRow {
	out := []ValidationRow{}
	for _, row := range r.Rows {
		if row.RiskLevel == RiskHigh {
			out = append(out, row)
		}
	}
	return out
}

// EscalationType tags BANT escalation items.
const EscalationType = "BANT_VIOLATION"

// EscalationAction is the fixed instruction attached to every escalation.
const EscalationAction = "Review and update opportunity or revert stage"

// EscalationItem is a HIGH risk row reshaped for human follow-up.
type EscalationItem struct {
	Type            string   `json:"type"`
	OpportunityID   string   `json:"opportunity_id"`
	OpportunityName string   `json:"opportunity_name"`
	AccountName     string   `json:"account_name,omitempty"`
	Stage           string   `json:"stage"`
	Issues          []string `json:"issues"`
	ActionRequired  string   `json:"action_required"`
}

// Escalations reshapes the report's violations.
func (r *IntegrityReport) Escalations() []EscalationItem {
	v := r.Violations()
	out := make([]EscalationItem, 0, len(v))
	for _, row := range v {
		out = append(out, EscalationItem{
			Type:            EscalationType,
			OpportunityID:   row.OpportunityID,
			OpportunityName: row.OpportunityName,
			AccountName:     row.AccountName,
			Stage:           row.Stage,
			Issues:          row.Issues,
			ActionRequired:  EscalationAction,
		})
	}
	return out
}

// CRMIntegrity validates CRM opportunities against stage gates.
type CRMIntegrity struct {
	q   Querier
	cfg config
}

// NewCRMIntegrity creates the workflow.
func NewCRMIntegrity(q Querier, opts ...Option) *CRMIntegrity {
	return &CRMIntegrity{q: q, cfg: newConfig(opts)}
}

// RunValidation validates every open opportunity. An empty CRM result is an
// empty report; a CRM failure is an error.
func (c *CRMIntegrity) RunValidation(ctx context.Context) (*IntegrityReport, error) {
	ctx, span := tracer.Start(ctx, "workflow.CRMIntegrity")
	defer span.End()

	report, err := c.run(ctx)
	if err != nil {
		telemetry.WorkflowRuns.WithLabelValues(NameCRMIntegrity, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	telemetry.WorkflowRuns.WithLabelValues(NameCRMIntegrity, "ok").Inc()
	m := report.Metrics()
	span.SetAttributes(
		attribute.Int("records", m.TotalRecords),
		attribute.Int("high_risk", m.HighRisk),
	)
	return report, nil
}

func (c *CRMIntegrity) run(ctx context.Context) (*IntegrityReport, error) {
	now := c.cfg.now()
	name := c.cfg.sources.CRM
	report := &IntegrityReport{GeneratedAt: now, Rows: []ValidationRow{}}

	res, err := c.q.Query(ctx, name, connector.Query{})
	if err != nil {
		return nil, fmt.Errorf("fetch opportunities: %w", err)
	}
	if res.Kind != connector.KindRecords {
		return nil, fmt.Errorf("fetch opportunities: unexpected %s result", res.Kind)
	}
	report.MockSource = res.Mock
	if res.Degraded {
		slog.Warn("crm query degraded, validating fallback data", "workflow", NameCRMIntegrity, "connector", name)
	}
	for _, rec := range res.Records {
		report.Rows = append(report.Rows, ValidateBANT(domain.OpportunityFromRecord(rec), now))
	}
	return report, nil
}

// StageGateViolations runs the validation and returns the HIGH risk rows.
func (c *CRMIntegrity) StageGateViolations(ctx context.Context) ([]ValidationRow, error) {
	r, err := c.RunValidation(ctx)
	if err != nil {
		return nil, err
	}
	return r.Violations(), nil
}

// EscalationItems runs the validation and returns the violations reshaped for
// the alert sink.
func (c *CRMIntegrity) EscalationItems(ctx context.Context) ([]EscalationItem, error) {
	r, err := c.RunValidation(ctx)
	if err != nil {
		return nil, err
	}
	return r.Escalations(), nil
}
