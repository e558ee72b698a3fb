package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/cpv"
	"github.com/civant/procure-intel/internal/evidence"
	"github.com/civant/procure-intel/internal/lifecycle"
	"github.com/civant/procure-intel/internal/predict"
	"github.com/civant/procure-intel/internal/reconcile"
	"github.com/civant/procure-intel/internal/resilience"
	"github.com/civant/procure-intel/internal/scoring"
	"github.com/civant/procure-intel/internal/store"
)

// runtimeEnv bundles the store and the engines built from it. Commands call
// initEnv once and defer Close.
type runtimeEnv struct {
	Store   store.Store
	Engine  *predict.Engine
	Queue   *reconcile.Queue
	Catalog *cpv.Catalog
}

func (e *runtimeEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initEnv(ctx context.Context) (*runtimeEnv, error) {
	s, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	catalog := cpv.DefaultCatalog()
	if cfg.Predict.ClusterCatalogPath != "" {
		catalog, err = cpv.LoadCatalog(cfg.Predict.ClusterCatalogPath)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	lc := lifecycle.Config{
		PublishThreshold: cfg.Predict.PublishThreshold,
		GraceDays:        cfg.Predict.GraceDays,
		SlackDays:        cfg.Predict.SlackDays,
	}

	agg := evidence.NewAggregator(s, evidence.NewCache(cfg.Predict.EvidenceCacheTTL()), cfg.Predict.RecencyWindowMonths)
	engine := predict.NewEngine(s, agg, predict.Params{
		Scorecard: scoring.ScorecardConfig{
			ExternalCap:       cfg.Predict.ExternalScoreCap,
			SupportThreshold:  cfg.Predict.SupportThreshold,
			TimingHorizonDays: float64(cfg.Predict.TimingHorizonDays),
		},
		Lifecycle:        lc,
		Retry:            resilience.RetryConfig{MaxAttempts: cfg.Predict.MaxUpsertRetries},
		BatchConcurrency: cfg.Batch.MaxConcurrentPairs,
		BatchRatePerSec:  cfg.Batch.RatePerSec,
	})

	queue := reconcile.NewQueue(s, reconcile.Config{
		AutoAcceptThreshold: cfg.Predict.AutoAcceptThreshold,
		AmbiguityMargin:     cfg.Predict.AmbiguityMargin,
		Lifecycle:           lc,
	})

	return &runtimeEnv{Store: s, Engine: engine, Queue: queue, Catalog: catalog}, nil
}
