package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kagent/internal/api"
	"kagent/internal/collect"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the background agent loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				g.cfg.Server.Addr = addr
			}
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			g.cfg.Watch(a.remediator.SetAuto)

			srv := api.NewServer(g.cfg.Server, api.Agents{
				Service:    a.service,
				Predictor:  a.predictor,
				Trainer:    a.trainer,
				Scanner:    a.scanner,
				Optimizer:  a.optimizer,
				Backups:    a.backups,
				Remediator: a.remediator,
				Fallback:   collect.NewMock(a.clock, uint64(a.clock.Now().UnixNano())),
			}, a.clock, g.logger)

			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error { return a.service.Run(ctx) })
			eg.Go(func() error { return srv.ListenAndServe(ctx) })
			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8081", "Address for the REST API")
	return cmd
}
