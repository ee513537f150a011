// Package service wires the sync runners behind the callable surface an
// external scheduler invokes.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nucleus/sync-core/internal/config"
	"github.com/nucleus/sync-core/internal/database"
	"github.com/nucleus/sync-core/internal/source"
	"github.com/nucleus/sync-core/internal/source/httpsource"
	syncengine "github.com/nucleus/sync-core/internal/sync"
)

// Service owns the sink pool and one runner per sync target.
type Service struct {
	pool    *database.Pool
	runners map[source.Kind]*syncengine.Runner
}

// New validates the config, opens the pool, ensures the replica schema,
// and wires a runner for each target.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.PoolConfig{
		DSN:            cfg.DatabaseURL,
		MinConns:       cfg.PoolMinConns,
		MaxConns:       cfg.PoolMaxConns,
		AcquireTimeout: cfg.AcquireTimeout,
	})
	if err != nil {
		return nil, err
	}

	// Surface an unreachable sink at construction, not mid-run. The
	// handle is scoped: released on every path below.
	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("sink health check: %w", err)
	}
	if err := conn.Conn().Ping(ctx); err != nil {
		conn.Release()
		pool.Close()
		return nil, fmt.Errorf("sink health check: %w", err)
	}
	conn.Release()

	if err := syncengine.EnsureSchema(ctx, pool.DB()); err != nil {
		pool.Close()
		return nil, err
	}

	client, err := httpsource.NewClient(httpsource.ClientConfig{
		BaseURL:   cfg.Source.BaseURL,
		APIToken:  cfg.Source.APIToken,
		RateLimit: cfg.Source.RateLimit,
		RateBurst: cfg.Source.RateBurst,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	runnerCfg := syncengine.RunnerConfig{
		Checkpoint: syncengine.CheckpointConfig{
			Lookback:     time.Duration(cfg.LookbackDays) * 24 * time.Hour,
			SafetyMargin: cfg.SafetyMargin,
		},
		ChunkSize:  cfg.ChunkSize,
		FetchLimit: cfg.FetchLimit,
		Retry: database.RetryPolicy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.RetryBaseDelay,
		},
	}

	return &Service{
		pool: pool,
		runners: map[source.Kind]*syncengine.Runner{
			source.KindSalesLine:      syncengine.NewRunner(pool.DB(), syncengine.SalesTarget, httpsource.NewSalesFetcher(client), runnerCfg),
			source.KindCatalogProduct: syncengine.NewRunner(pool.DB(), syncengine.CatalogTarget, httpsource.NewCatalogFetcher(client), runnerCfg),
		},
	}, nil
}

// Sync runs one target once and returns its result.
func (s *Service) Sync(ctx context.Context, kind source.Kind, opts syncengine.Options) (syncengine.Result, error) {
	runner, ok := s.runners[kind]
	if !ok {
		return syncengine.Result{}, fmt.Errorf("unknown sync target %q", kind)
	}
	return runner.Run(ctx, opts), nil
}

// SyncAll runs every target. Targets run concurrently with each other;
// each individual run stays a sequential pipeline, so the per-target
// checkpoint overlap caveat does not apply here.
func (s *Service) SyncAll(ctx context.Context, opts syncengine.Options) []syncengine.Result {
	kinds := make([]source.Kind, 0, len(s.runners))
	for kind := range s.runners {
		kinds = append(kinds, kind)
	}

	results := make([]syncengine.Result, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i := i
		runner := s.runners[kind]
		g.Go(func() error {
			results[i] = runner.Run(gctx, opts)
			return nil
		})
	}
	// Runners report failures in their Result, never as errors.
	_ = g.Wait()

	for _, res := range results {
		if res.Failed() {
			log.Printf("[service] %s sync failed: %v", res.Target, res.Errors)
		}
	}
	return results
}

// Close tears down the sink pool.
func (s *Service) Close() {
	s.pool.Close()
}
