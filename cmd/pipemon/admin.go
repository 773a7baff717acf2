package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/johnwards/pipemon/internal/app"
)

func (c *cli) seedHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-health",
		Short: "Create the health store tables and insert demo scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.SeedHealth(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "health store seeded")
			return err
		},
	}
}

func (c *cli) populateUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "populate-usage",
		Short: "Synthesize usage data for CRM accounts that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx, app.WithoutUsagePopulation())
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			n := a.PopulateUsage(ctx)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "populated usage for %d accounts\n", n)
			return err
		},
	}
}

func (c *cli) setHealthCmd() *cobra.Command {
	var details string
	cmd := &cobra.Command{
		Use:   "set-health ACCOUNT_ID SCORE",
		Short: "Write a customer health score to the health store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("score %q is not an integer", args[1])
			}

			ctx := cmd.Context()
			a, err := c.newApp(ctx, app.WithoutUsagePopulation())
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			h, err := a.Health.UpsertHealthScore(ctx, args[0], score, details)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s health score %d\n", h.AccountID, h.HealthScore)
			return err
		},
	}
	cmd.Flags().StringVar(&details, "details", "", "free-form note stored with the score")
	return cmd
}
