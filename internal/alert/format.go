package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/johnwards/pipemon/internal/workflow"
)

// Alert kinds, used as the metrics label.
const (
	KindBANT         = "bant"
	KindPipelineRisk = "pipeline_risk"
)

// BANTMessage formats a BANT escalation.
func (s *Sender) BANTMessage(item workflow.EscalationItem) Message {
	bullets := make([]string, len(item.Issues))
	for i, issue := range item.Issues {
		bullets[i] = "• " + issue
	}
	action := item.ActionRequired
	if action == "" {
		action = "Review immediately"
	}
	return Message{
		Text: "🚨 *CRM Integrity Alert: BANT Violation Detected*",
		Attachments: []Attachment{{
			Color: "danger",
			Fields: []Field{
				{Title: "Opportunity", Value: orUnknown(item.OpportunityName), Short: true},
				{Title: "Stage", Value: orUnknown(item.Stage), Short: true},
				{Title: "Issues Found", Value: strings.Join(bullets, "\n")},
				{Title: "Action Required", Value: action},
			},
			Footer: "Pipeline Health Monitor - CRM Integrity Workflow",
			TS:     s.now().Unix(),
		}},
	}
}

// PipelineRiskMessage formats an at-risk deal. Deals above 70 are HIGH.
func (s *Sender) PipelineRiskMessage(row workflow.PipelineRow) Message {
	level, color := "🟡 MEDIUM", "warning"
	if row.RiskScore > 70 {
		level, color = "🔴 HIGH", "danger"
	}
	activity := "N/A"
	if row.LastLoginDays != nil {
		activity = fmt.Sprintf("%d days ago", *row.LastLoginDays)
	}
	return Message{
		Text: level + " *Pipeline Risk Alert*",
		Attachments: []Attachment{{
			Color: color,
			Fields: []Field{
				{Title: "Opportunity", Value: orUnknown(row.OpportunityName), Short: true},
				{Title: "Account", Value: orUnknown(row.AccountName), Short: true},
				{Title: "Risk Score", Value: fmt.Sprintf("%.1f/100", row.RiskScore), Short: true},
				{Title: "Health Score", Value: fmt.Sprintf("%.0f/100", row.HealthScore), Short: true},
				{Title: "Last Activity", Value: activity, Short: true},
				{Title: "Amount", Value: "$" + humanize.Commaf(row.Amount), Short: true},
				{Title: "Recommendation", Value: row.Recommendation},
			},
			Footer: "Pipeline Health Monitor - Pipeline Health Workflow",
			TS:     s.now().Unix(),
		}},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// SendBANTViolation delivers one escalation.
func (s *Sender) SendBANTViolation(ctx context.Context, item workflow.EscalationItem) error {
	return s.deliver(ctx, KindBANT, s.BANTMessage(item))
}

// SendPipelineRisk delivers one at-risk deal.
func (s *Sender) SendPipelineRisk(ctx context.Context, row workflow.PipelineRow) error {
	return s.deliver(ctx, KindPipelineRisk, s.PipelineRiskMessage(row))
}

// SendEscalations delivers every escalation and returns the number delivered.
func (s *Sender) SendEscalations(ctx context.Context, items []workflow.EscalationItem) (int, error) {
	return sendAll(ctx, KindBANT, items, s.BANTMessage, s)
}

// SendPipelineRisks delivers every row and returns the number delivered.
func (s *Sender) SendPipelineRisks(ctx context.Context, rows []workflow.PipelineRow) (int, error) {
	return sendAll(ctx, KindPipelineRisk, rows, s.PipelineRiskMessage, s)
}

// AtRisk filters rows to those worth a risk alert: stalled with risk above 50.
func AtRisk(rows []workflow.PipelineRow) []workflow.PipelineRow {
	out := []workflow.PipelineRow{}
	for _, r := range rows {
		if r.IsStalled && r.RiskScore > 50 {
			out = append(out, r)
		}
	}
	return out
}
