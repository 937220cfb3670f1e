package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kagent/internal/model"
	"kagent/internal/output"
	"kagent/internal/risk"
)

func newStatusCmd(g *globals) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show node health against the configured thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !output.ValidFormat(format) {
				return fmt.Errorf("unknown output format %q", format)
			}
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.source.Collect(cmd.Context())
			if err != nil {
				return err
			}
			th := g.cfg.Predictor.Thresholds
			out := cmd.OutOrStdout()

			names := make([]string, 0, len(m.Nodes))
			for name := range m.Nodes {
				if name != model.ClusterNode {
					names = append(names, name)
				}
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			statuses := map[string]risk.Status{}
			for _, name := range names {
				n := m.Nodes[name]
				st := risk.NodeStatus(n, th)
				statuses[name] = st
				rows = append(rows, []string{
					name,
					fmt.Sprintf("%.1f%%", n.CPUUsage),
					fmt.Sprintf("%.1f%%", n.MemoryUsage),
					pressures(n),
					string(st),
				})
			}
			overall := risk.ClusterStatus(m, th)

			if format == output.FormatJSON {
				return output.WriteJSON(out, map[string]any{
					"cluster_status": overall,
					"nodes":          statuses,
					"timestamp":      m.Timestamp,
				})
			}
			if err := output.Render(out, format, nil, []string{"NODE", "CPU", "MEMORY", "PRESSURE", "STATUS"}, rows); err != nil {
				return err
			}
			if format == output.FormatTable {
				fmt.Fprintf(out, "\nCluster status: %s\n", overall)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", output.FormatTable, "Output format: table, json, csv or markdown")
	return cmd
}

func pressures(n model.NodeMetrics) string {
	var p []string
	if n.DiskPressure {
		p = append(p, "disk")
	}
	if n.MemoryPressure {
		p = append(p, "memory")
	}
	if n.PIDPressure {
		p = append(p, "pid")
	}
	if len(p) == 0 {
		return "-"
	}
	return strings.Join(p, ",")
}
