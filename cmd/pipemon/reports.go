package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnwards/pipemon/internal/app"
	"github.com/johnwards/pipemon/internal/domain"
	"github.com/johnwards/pipemon/internal/render"
	"github.com/johnwards/pipemon/internal/workflow"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type pipelineOutput struct {
	GeneratedAt   time.Time               `json:"generated_at"`
	Metrics       workflow.SummaryMetrics `json:"metrics"`
	Opportunities []workflow.PipelineRow  `json:"opportunities"`
	DataQuality   workflow.DataQuality    `json:"data_quality"`
}

func (c *cli) pipelineCmd() *cobra.Command {
	var stalled, asJSON bool
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the pipeline health workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.Pipeline.Run(ctx)
			if err != nil {
				return err
			}
			rows := report.Rows
			if stalled {
				rows = report.Stalled()
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), pipelineOutput{
					GeneratedAt:   report.GeneratedAt,
					Metrics:       report.Summary(),
					Opportunities: rows,
					DataQuality:   report.DataQuality,
				})
			}
			return render.Pipeline(cmd.OutOrStdout(), report, rows)
		},
	}
	cmd.Flags().BoolVar(&stalled, "stalled", false, "only show stalled deals, riskiest first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

type integrityOutput struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Metrics     workflow.IntegrityMetrics `json:"metrics"`
	Validations []workflow.ValidationRow  `json:"validations"`
	MockSource  bool                      `json:"mock_source"`
}

func (c *cli) integrityCmd() *cobra.Command {
	var escalations, sendAlerts, asJSON bool
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Validate opportunities against BANT stage gates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.Integrity.RunValidation(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if sendAlerts {
				items := report.Escalations()
				sent, err := a.Alerts.SendEscalations(ctx, items)
				if err != nil {
					return fmt.Errorf("send escalations: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "sent %d of %d escalation alerts\n", sent, len(items))
			}

			switch {
			case escalations && asJSON:
				return writeJSON(out, report.Escalations())
			case escalations:
				return render.Escalations(out, report.Escalations())
			case asJSON:
				return writeJSON(out, integrityOutput{
					GeneratedAt: report.GeneratedAt,
					Metrics:     report.Metrics(),
					Validations: report.Rows,
					MockSource:  report.MockSource,
				})
			default:
				return render.Integrity(out, report)
			}
		},
	}
	cmd.Flags().BoolVar(&escalations, "escalations", false, "only show escalation items")
	cmd.Flags().BoolVar(&sendAlerts, "alert", false, "send one alert per escalation to the webhook")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (c *cli) connectorsCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "connectors",
		Short: "Show connector status and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			rows := map[string]render.ConnectorRow{}
			for name, md := range a.Registry.List() {
				row := render.ConnectorRow{Metadata: md}
				if h, ok := a.Registry.Handle(name); ok {
					row.Health = h.CheckHealth(ctx, force)
				}
				rows[name] = row
			}
			return render.Connectors(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the cached health check")
	return cmd
}

func (c *cli) opportunitiesCmd() *cobra.Command {
	var stage string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "opportunities",
		Short: "List open CRM opportunities by stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx, app.WithoutUsagePopulation())
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			recs, err := a.CRM.OpportunitiesByStage(ctx, stage)
			if err != nil {
				return err
			}
			opps := make([]domain.Opportunity, 0, len(recs))
			for _, r := range recs {
				opps = append(opps, domain.OpportunityFromRecord(r))
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), opps)
			}
			return render.Opportunities(cmd.OutOrStdout(), opps)
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "only show opportunities in this stage")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
