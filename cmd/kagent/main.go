package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kagent/internal/config"
	"kagent/internal/logging"
)

// globals holds the persistent flags and what PersistentPreRunE builds from them.
type globals struct {
	configPath string
	kubeconfig string
	kubeCtx    string
	useMock    bool
	verbose    bool
	dataDir    string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "kagent",
		Short: "Kubernetes monitoring agent with prediction, security, cost, backup and remediation",
		Long: `kagent watches a Kubernetes cluster, predicts resource problems before
they become outages and optionally fixes them.

Run "kagent serve" to start the REST API and the background loops, or use the
one-shot subcommands from a terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default kagent.yaml in . or ~/.kagent)")
	pf.StringVar(&g.kubeconfig, "kubeconfig", "", "Path to kubeconfig")
	pf.StringVar(&g.kubeCtx, "context", "", "Kubeconfig context to use")
	pf.BoolVar(&g.useMock, "use-mock", false, "Use generated data instead of a live cluster")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&g.dataDir, "data-dir", "", "Directory for the agent database and backups")

	root.AddCommand(
		newServeCmd(g),
		newPredictCmd(g),
		newStatusCmd(g),
		newSecurityScanCmd(g),
		newOptimizeCostsCmd(g),
		newBackupCmd(g),
		newListBackupsCmd(g),
		newRestoreCmd(g),
		newTrainModelCmd(g),
	)
	return root
}

// load reads the config and applies flag overrides on top of it.
func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("kubeconfig") {
		cfg.Kube.Kubeconfig = g.kubeconfig
	}
	if flags.Changed("context") {
		cfg.Kube.Context = g.kubeCtx
	}
	if flags.Changed("use-mock") {
		cfg.UseMock = g.useMock
	}
	if flags.Changed("data-dir") {
		cfg.SetDataDir(g.dataDir)
	}
	if g.verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.New(cfg.LogLevel, g.verbose)
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.logger = logger
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
