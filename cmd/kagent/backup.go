package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kagent/internal/model"
	"kagent/internal/output"
)

func newBackupCmd(g *globals) *cobra.Command {
	var job model.BackupJob
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export cluster resources to a backup archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.backups.Create(cmd.Context(), job)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Status == model.JobFailed {
				return fmt.Errorf("backup %s failed: %s", res.ID, res.ErrorMessage)
			}
			fmt.Fprintf(out, "Backup %s (%s) completed: %s\n", res.ID, res.Name, countSummary(res.ResourcesBackedUp))
			if res.Archive != "" {
				fmt.Fprintf(out, "Archive: %s\n", res.Archive)
			}
			if res.RemoteKey != "" {
				fmt.Fprintf(out, "Uploaded to: %s\n", res.RemoteKey)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&job.Name, "name", "", "Backup name")
	f.StringSliceVar(&job.Namespaces, "namespaces", nil, "Namespaces to back up (default all)")
	f.StringSliceVar(&job.ResourceTypes, "resource-types", nil, "Resource types to back up (default all)")
	f.StringVar(&job.BackupLocation, "location", model.LocationLocal, "Where to keep the archive: local or s3")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newListBackupsCmd(g *globals) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list-backups",
		Short: "List recorded backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !output.ValidFormat(format) {
				return fmt.Errorf("unknown output format %q", format)
			}
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			jobs := a.backups.List()
			out := cmd.OutOrStdout()
			if len(jobs) == 0 && format == output.FormatTable {
				fmt.Fprintln(out, "No backups found.")
				return nil
			}
			return output.Render(out, format, jobs, output.BackupHeaders, output.BackupRows(jobs))
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", output.FormatTable, "Output format: table, json, csv or markdown")
	return cmd
}

func newRestoreCmd(g *globals) *cobra.Command {
	var job model.RestoreJob
	cmd := &cobra.Command{
		Use:   "restore BACKUP_ID",
		Short: "Apply a backup archive back to the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			job.BackupID = args[0]
			res, err := a.backups.Restore(cmd.Context(), job)
			if err != nil {
				return err
			}
			if res.Status == model.JobFailed {
				return fmt.Errorf("restore %s failed: %s", res.ID, res.ErrorMessage)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restore %s from %s completed (%s): %s\n",
				res.ID, res.BackupID, res.RestoreStrategy, countSummary(res.ResourcesRestored))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&job.RestoreStrategy, "strategy", model.StrategyCreateOrReplace, "create_or_replace, create_only or replace_only")
	f.StringSliceVar(&job.Namespaces, "namespaces", nil, "Only restore these namespaces (default all in the backup)")
	return cmd
}

func countSummary(counts map[string]int) string {
	if len(counts) == 0 {
		return "no resources"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
