package predict

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/civant/procure-intel/internal/guard"
)

// BatchResult summarizes a tenant-wide recompute run.
type BatchResult struct {
	Pairs  int
	Scored int
	Failed int
}

// RecomputeTenant rescores every known pair for the tenant. Pairs run
// concurrently under a rate limit; individual pair failures are logged and
// counted without aborting the run. Context cancellation stops the run.
func (e *Engine) RecomputeTenant(ctx context.Context) (BatchResult, error) {
	tenantID, err := guard.TenantFromContext(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	pairs, err := e.store.ListPairs(ctx, tenantID)
	if err != nil {
		return BatchResult{}, err
	}

	limiter := rate.NewLimiter(rate.Limit(e.params.BatchRatePerSec), e.params.BatchConcurrency)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.BatchConcurrency)

	var scored, failed atomic.Int64
	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			if _, err := e.RecomputePair(ctx, tenantID, pair.BuyerID, pair.CPVClusterID); err != nil {
				failed.Add(1)
				e.log.Warn("pair recompute failed",
					zap.String("tenant_id", tenantID),
					zap.String("buyer_id", pair.BuyerID),
					zap.String("cluster_id", pair.CPVClusterID),
					zap.Error(err))
				return nil
			}
			scored.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{Pairs: len(pairs), Scored: int(scored.Load()), Failed: int(failed.Load())}, err
	}

	res := BatchResult{Pairs: len(pairs), Scored: int(scored.Load()), Failed: int(failed.Load())}
	e.log.Info("tenant recompute complete",
		zap.String("tenant_id", tenantID),
		zap.Int("pairs", res.Pairs),
		zap.Int("scored", res.Scored),
		zap.Int("failed", res.Failed))
	return res, nil
}
