package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"kagent/internal/backup"
	"kagent/internal/collect"
	"kagent/internal/config"
	"kagent/internal/cost"
	"kagent/internal/kube"
	"kagent/internal/model"
	"kagent/internal/predict"
	"kagent/internal/remediation"
	"kagent/internal/security"
	"kagent/internal/service"
	"kagent/internal/store"
)

// app is the wired set of agents shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  clockwork.Clock
	store  *store.Store

	typed     kubernetes.Interface
	dyn       dynamic.Interface
	source    collect.Source
	inventory func(context.Context) (*model.Inventory, error)

	predictor  *predict.Predictor
	trainer    *predict.Trainer
	scanner    *security.Scanner
	optimizer  *cost.Optimizer
	backups    *backup.Manager
	remediator *remediation.Remediator
	service    *service.Service
}

func newApp(g *globals) (*app, error) {
	cfg, logger := g.cfg, g.logger
	a := &app{cfg: cfg, logger: logger, clock: clockwork.NewRealClock()}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a.store = st

	if err := a.wireCluster(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.wireAgents(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wireCluster() error {
	var usage kube.MetricsReader
	if a.cfg.UseMock {
		seed := uint64(a.clock.Now().UnixNano())
		inv := collect.MockInventory(a.clock.Now())
		a.source = collect.NewMock(a.clock, seed)
		a.inventory = func(context.Context) (*model.Inventory, error) { return inv, nil }
		usage = collect.MockUsage{Inventory: inv}
		a.logger.Info("running against generated data")
	} else {
		clients, err := kube.NewClients(a.cfg.Kube.Kubeconfig, a.cfg.Kube.Context)
		if err != nil {
			return fmt.Errorf("connect to cluster: %w", err)
		}
		a.typed, a.dyn = clients.Typed, clients.Dynamic
		metrics := kube.NewMetricsClient(clients.Typed, a.logger)
		usage = metrics
		a.source = collect.NewCollector(clients.Typed, metrics, a.clock, a.logger)
		a.inventory = func(ctx context.Context) (*model.Inventory, error) {
			return collect.Inventory(ctx, clients.Typed, nil, a.logger)
		}
	}

	opt, err := cost.NewOptimizer(a.inventory, usage, cost.Options{
		Provider:   a.cfg.Cost.Provider,
		WindowDays: a.cfg.Cost.MetricsWindow,
		Client:     a.typed,
		Store:      a.store,
	}, a.clock, a.logger)
	if err != nil {
		return err
	}
	a.optimizer = opt
	return nil
}

func (a *app) wireAgents() error {
	cfg := a.cfg

	a.predictor = predict.NewPredictor(cfg.Predictor.Thresholds, a.clock, a.logger)
	if err := a.predictor.UseStore(a.store); err != nil {
		return err
	}
	a.trainer = predict.NewTrainer(a.predictor, a.store, a.clock, a.logger)
	switch m, err := predict.LoadModel(a.store); {
	case err == nil:
		a.predictor.SetModel(m)
	case !errors.Is(err, predict.ErrNotTrained):
		a.logger.Warn("load anomaly model", zap.Error(err))
	}

	scanner, err := security.NewScanner(a.inventory, cfg.Security.ExcludeNamespaces, a.store, a.clock, a.logger)
	if err != nil {
		return err
	}
	a.scanner = scanner

	var remote backup.Remote
	if cfg.Backup.S3.Configured() {
		s3, err := backup.NewS3(cfg.Backup.S3)
		if err != nil {
			return fmt.Errorf("configure object storage: %w", err)
		}
		remote = s3
	}
	backups, err := backup.NewManager(a.dyn, a.typed, backup.Options{
		Dir:        cfg.Backup.Dir,
		MaxBackups: cfg.Backup.MaxBackups,
		Remote:     remote,
		Store:      a.store,
		Mock:       cfg.UseMock,
		Seed:       uint64(a.clock.Now().UnixNano()),
	}, a.clock, a.logger)
	if err != nil {
		return err
	}
	a.backups = backups

	rem, err := remediation.NewRemediator(a.typed, remediation.Options{
		Auto:  cfg.Remediation.AutoRemediate,
		Mock:  cfg.UseMock,
		Store: a.store,
	}, a.clock, a.logger)
	if err != nil {
		return err
	}
	a.remediator = rem

	svc, err := service.New(service.Agents{
		Source:     a.source,
		Predictor:  a.predictor,
		Remediator: a.remediator,
		Scanner:    a.scanner,
		Optimizer:  a.optimizer,
		Backups:    a.backups,
	}, service.Options{
		Intervals: service.Intervals{
			Metrics:    cfg.Predictor.MetricsInterval,
			Prediction: cfg.Predictor.PredictionInterval,
			Security:   cfg.Security.ScanInterval,
			Cost:       cfg.Cost.AnalysisInterval,
		},
		Backup:  service.BackupSchedule{Cron: cfg.Backup.Schedule, Template: model.BackupJob{Name: "scheduled"}},
		UseMock: cfg.UseMock,
		Store:   a.store,
	}, a.clock, a.logger)
	if err != nil {
		return err
	}
	a.service = svc
	return nil
}

func (a *app) close() {
	if a.backups != nil {
		a.backups.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
}
