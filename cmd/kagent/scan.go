package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kagent/internal/output"
)

func newSecurityScanCmd(g *globals) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "security-scan",
		Short: "Scan workloads, namespaces, secrets and RBAC for security issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !output.ValidFormat(format) {
				return fmt.Errorf("unknown output format %q", format)
			}
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.scanner.Scan(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := output.Render(out, format, res, output.SecurityHeaders, output.SecurityRows(res)); err != nil {
				return err
			}
			if format == output.FormatTable {
				d := res.Details
				fmt.Fprintf(out, "\n%d issue(s): %d critical, %d high, %d medium, %d low. Score %d (%s), trend %s\n",
					res.TotalIssues, d.Critical, d.High, d.Medium, d.Low, res.Score, res.Posture, res.Trend)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", output.FormatTable, "Output format: table, json, csv or markdown")
	return cmd
}

func newOptimizeCostsCmd(g *globals) *cobra.Command {
	var (
		provider string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "optimize-costs",
		Short: "Find over-provisioned workloads and nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !output.ValidFormat(format) {
				return fmt.Errorf("unknown output format %q", format)
			}
			if cmd.Flags().Changed("cloud-provider") {
				g.cfg.Cost.Provider = provider
			}
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			sugg, err := a.optimizer.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := output.Render(out, format, sugg, output.CostHeaders, output.CostRows(sugg)); err != nil {
				return err
			}
			if format == output.FormatTable {
				total := a.optimizer.TotalSavings()
				fmt.Fprintf(out, "\nPotential savings on %s: $%.2f/month ($%.2f/year)\n",
					a.optimizer.Provider(), total.Monthly, total.Annual)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "cloud-provider", "aws", "Pricing table: aws, gcp or azure")
	cmd.Flags().StringVarP(&format, "output", "o", output.FormatTable, "Output format: table, json, csv or markdown")
	return cmd
}
