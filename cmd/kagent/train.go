package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kagent/internal/model"
	"kagent/internal/predict"
)

func newTrainModelCmd(g *globals) *cobra.Command {
	var params model.TrainParams
	cmd := &cobra.Command{
		Use:   "train-model",
		Short: "Train the anomaly model from recorded history or synthetic samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			if params.Contamination < 0 || params.Contamination > 0.5 {
				return fmt.Errorf("contamination must be between 0 and 0.5")
			}
			if params.Samples < 0 || params.Samples > predict.MaxTrainSamples {
				return fmt.Errorf("samples must be between 0 and %d", predict.MaxTrainSamples)
			}
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.trainer.Train(params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (job %s): %s\n", res.Status, res.JobID, res.Message)
			return nil
		},
	}
	cmd.Flags().Float64Var(&params.Contamination, "contamination", 0.1, "Expected share of anomalous samples")
	cmd.Flags().IntVar(&params.Samples, "samples", 1000, "Synthetic samples when history is short")
	return cmd
}
