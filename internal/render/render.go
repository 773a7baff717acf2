// Package render prints workflow reports as terminal tables.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/johnwards/pipemon/internal/connector"
	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/workflow"
)

var (
	colorOK      = lipgloss.Color("#51CF66")
	colorWarning = lipgloss.Color("#FFD93D")
	colorDanger  = lipgloss.Color("#FF6B6B")
	colorMuted   = lipgloss.Color("#6C7A89")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarning)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...)
}

func money(v float64) string { return "$" + humanize.Commaf(v) }

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

func riskColor(risk float64) lipgloss.TerminalColor {
	switch {
	case risk > 70:
		return colorDanger
	case risk > 50:
		return colorWarning
	default:
		return colorOK
	}
}

// Pipeline prints the summary, rows and data-quality warnings of a report.
func Pipeline(w io.Writer, r *workflow.PipelineReport, rows []workflow.PipelineRow) error {
	m := r.Summary()
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("Pipeline Health"))
	fmt.Fprintf(&b, "%d opportunities · %s pipeline · %d stalled · %d high risk · avg health %.0f · avg risk %.1f\n",
		m.TotalOpportunities, money(m.TotalPipelineValue), m.StalledDeals, m.HighRiskDeals,
		m.AvgHealthScore, m.AvgRiskScore)

	t := newTable("Opportunity", "Account", "Stage", "Amount", "Close", "Health", "Login", "Sessions", "Risk", "Stalled", "Recommendation")
	for _, row := range rows {
		stalled := ""
		if row.IsStalled {
			stalled = "yes"
		}
		t.Row(row.OpportunityName, row.AccountName, row.Stage, money(row.Amount), optInt(row.DaysToClose),
			fmt.Sprintf("%.0f", row.HealthScore), optInt(row.LastLoginDays), fmt.Sprintf("%d", row.Sessions30d),
			fmt.Sprintf("%.1f", row.RiskScore), stalled, row.Recommendation)
	}
	t.StyleFunc(func(i, col int) lipgloss.Style {
		if i == table.HeaderRow {
			return headerStyle
		}
		if col == 8 && i >= 0 && i < len(rows) {
			return cellStyle.Foreground(riskColor(rows[i].RiskScore))
		}
		return cellStyle
	})
	fmt.Fprintln(&b, t.Render())

	writeDataQuality(&b, r.DataQuality)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeDataQuality(b *strings.Builder, dq workflow.DataQuality) {
	if len(dq.MockSources) > 0 {
		fmt.Fprintln(b, mutedStyle.Render("mock data: "+strings.Join(dq.MockSources, ", ")))
	}
	for _, warn := range dq.Warnings {
		fmt.Fprintln(b, warnStyle.Render("warning: "+warn))
	}
}

var levelColors = map[workflow.RiskLevel]lipgloss.TerminalColor{
	workflow.RiskHigh:   colorDanger,
	workflow.RiskMedium: colorWarning,
	workflow.RiskLow:    colorOK,
}

// Integrity prints the validation metrics and rows.
func Integrity(w io.Writer, r *workflow.IntegrityReport) error {
	m := r.Metrics()
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("CRM Integrity (BANT)"))
	fmt.Fprintf(&b, "%d records · %d valid (%.1f%%) · %d invalid · %d high / %d medium / %d low risk\n",
		m.TotalRecords, m.Valid, m.ValidationRate, m.Invalid, m.HighRisk, m.MediumRisk, m.LowRisk)

	t := newTable("Opportunity", "Stage", "Amount", "Valid", "Risk", "Issues", "Warnings")
	for _, row := range r.Rows {
		valid := "no"
		if row.IsValid {
			valid = "yes"
		}
		t.Row(row.OpportunityName, row.Stage, money(row.Amount), valid, string(row.RiskLevel),
			strings.Join(row.Issues, "\n"), strings.Join(row.Warnings, "\n"))
	}
	t.StyleFunc(func(i, col int) lipgloss.Style {
		if i == table.HeaderRow {
			return headerStyle
		}
		if col == 4 && i >= 0 && i < len(r.Rows) {
			return cellStyle.Foreground(levelColors[r.Rows[i].RiskLevel])
		}
		return cellStyle
	})
	fmt.Fprintln(&b, t.Render())
	if r.MockSource {
		fmt.Fprintln(&b, mutedStyle.Render("mock data: "+workflow.SourceCRM))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Escalations prints escalation items.
func Escalations(w io.Writer, items []workflow.EscalationItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No escalations.")
		return err
	}
	t := newTable("Opportunity", "Stage", "Issues", "Action")
	for _, it := range items {
		t.Row(it.OpportunityName, it.Stage, strings.Join(it.Issues, "\n"), it.ActionRequired)
	}
	t.StyleFunc(func(i, _ int) lipgloss.Style {
		if i == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// ConnectorRow is one line of the connector table.
type ConnectorRow struct {
	Metadata connector.Metadata
	Health   connector.Health
}

var statusColors = map[connector.Status]lipgloss.TerminalColor{
	connector.StatusHealthy:      colorOK,
	connector.StatusMock:         colorWarning,
	connector.StatusFailed:       colorDanger,
	connector.StatusDisconnected: colorMuted,
}

// Connectors prints the connector status table, sorted by name.
func Connectors(w io.Writer, rows map[string]ConnectorRow) error {
	names := make([]string, 0, len(rows))
	for name := range rows {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable("Name", "Type", "Status", "Healthy", "Checked", "Error")
	for _, name := range names {
		r := rows[name]
		healthy := "no"
		if r.Health.Healthy {
			healthy = "yes"
		}
		checked := "-"
		if !r.Health.CheckedAt.IsZero() {
			checked = humanize.Time(r.Health.CheckedAt)
		}
		errText := r.Metadata.Error
		if errText == "" {
			errText = r.Health.Error
		}
		t.Row(name, r.Metadata.Type, string(r.Metadata.Status), healthy, checked, errText)
	}
	t.StyleFunc(func(i, col int) lipgloss.Style {
		if i == table.HeaderRow {
			return headerStyle
		}
		if col == 2 && i >= 0 && i < len(names) {
			return cellStyle.Foreground(statusColors[rows[names[i]].Metadata.Status])
		}
		return cellStyle
	})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Opportunities prints raw CRM opportunities ordered by pipeline stage, then
// by descending amount.
func Opportunities(w io.Writer, opps []domain.Opportunity) error {
	sorted := make([]domain.Opportunity, len(opps))
	copy(sorted, opps)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := stageOrder(sorted[i].Stage), stageOrder(sorted[j].Stage)
		if si != sj {
			return si < sj
		}
		return sorted[i].Amount > sorted[j].Amount
	})

	t := newTable("Stage", "Opportunity", "Account", "Amount", "Close", "Prob")
	for _, o := range sorted {
		t.Row(o.Stage, o.Name, o.AccountName, money(o.Amount), o.CloseDate, fmt.Sprintf("%.0f%%", o.Probability))
	}
	t.StyleFunc(func(i, _ int) lipgloss.Style {
		if i == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// stageOrder puts non-canonical stages after the known pipeline.
func stageOrder(stage string) int {
	if i := domain.StageIndex(stage); i >= 0 {
		return i
	}
	return len(domain.Stages)
}
