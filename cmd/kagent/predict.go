package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kagent/internal/model"
	"kagent/internal/output"
)

func newPredictCmd(g *globals) *cobra.Command {
	var (
		runOnce            bool
		interval           time.Duration
		predictionInterval time.Duration
		autoRemediate      bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Collect metrics and report predicted issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("auto-remediate") {
				g.cfg.Remediation.AutoRemediate = autoRemediate
			}
			if !cmd.Flags().Changed("interval") {
				interval = g.cfg.Predictor.MetricsInterval
			}
			if !cmd.Flags().Changed("prediction-interval") {
				predictionInterval = g.cfg.Predictor.PredictionInterval
			}
			if interval <= 0 || predictionInterval <= 0 {
				return fmt.Errorf("intervals must be positive")
			}

			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			if runOnce {
				return predictOnce(ctx, a, out)
			}

			metricsTick := a.clock.NewTicker(interval)
			defer metricsTick.Stop()
			predictTick := a.clock.NewTicker(predictionInterval)
			defer predictTick.Stop()

			if err := predictOnce(ctx, a, out); err != nil {
				g.logger.Warn("prediction failed", zap.Error(err))
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-metricsTick.Chan():
					if err := a.service.CollectNow(ctx); err != nil {
						g.logger.Warn("metrics collection failed", zap.Error(err))
					}
				case <-predictTick.Chan():
					if err := predictOnce(ctx, a, out); err != nil {
						g.logger.Warn("prediction failed", zap.Error(err))
					}
				}
			}
		},
	}
	f := cmd.Flags()
	f.BoolVar(&runOnce, "run-once", false, "Predict once and exit")
	f.DurationVar(&interval, "interval", 60*time.Second, "Metrics collection interval")
	f.DurationVar(&predictionInterval, "prediction-interval", 300*time.Second, "Prediction interval")
	f.BoolVar(&autoRemediate, "auto-remediate", false, "Apply remediation for detected issues")
	return cmd
}

func predictOnce(ctx context.Context, a *app, w io.Writer) error {
	if err := a.service.CollectNow(ctx); err != nil {
		return err
	}
	pred, err := a.service.PredictNow(ctx)
	if err != nil {
		return err
	}
	return printPrediction(w, a, pred)
}

func printPrediction(w io.Writer, a *app, pred model.Prediction) error {
	fmt.Fprintf(w, "Prediction at %s: %d issue(s), confidence %.2f, ml model used: %t\n",
		pred.Timestamp.Format(time.RFC3339), len(pred.Issues), pred.Confidence, pred.MLModelUsed)
	if len(pred.Issues) == 0 {
		fmt.Fprintln(w, "No issues detected.")
		return nil
	}
	if err := output.Table(w, output.IssueHeaders, output.IssueRows(pred.Issues)); err != nil {
		return err
	}
	if a.remediator.Auto() || a.cfg.UseMock {
		for _, res := range a.remediator.History(1, len(pred.Issues)) {
			status := "ok"
			if !res.Success {
				status = "failed: " + res.ErrorMessage
			}
			fmt.Fprintf(w, "remediation %s on %s: %s\n", res.Action, res.Component, status)
		}
	}
	return nil
}
