package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/nucleus/sync-core/internal/database"
	"github.com/nucleus/sync-core/internal/source"
)

// Narrow views of the engines, so runs can be exercised without a sink.
type windowResolver interface {
	ResolveWindow(ctx context.Context, target Target, forceFull bool, overrideStart *time.Time) (time.Time, time.Time, error)
}

type upserter interface {
	Upsert(ctx context.Context, batch Batch) (UpsertStats, error)
}

type deactivator interface {
	DeactivateMissing(ctx context.Context, target Target, currentValid []source.Key) (int, error)
}

// RunnerConfig tunes one target's sync runs.
type RunnerConfig struct {
	Checkpoint CheckpointConfig
	ChunkSize  int
	FetchLimit int
	Retry      database.RetryPolicy
}

// Options select per-run behavior, the callable trigger surface for an
// external scheduler.
type Options struct {
	ForceFull     bool
	StartOverride *time.Time
}

// Runner sequences one sync run: resolve window, extract, normalize,
// upsert, reconcile. Every failure is converted into a failed Result;
// Run never panics or returns an error for run-level problems.
type Runner struct {
	target     Target
	fetcher    source.Fetcher
	resolver   windowResolver
	normalizer *Normalizer
	upserter   upserter
	deactivate deactivator
	retry      database.RetryPolicy
	fetchLimit int
}

// NewRunner wires the engines for one target over a shared sink handle.
func NewRunner(db *sql.DB, target Target, fetcher source.Fetcher, cfg RunnerConfig) *Runner {
	return &Runner{
		target:     target,
		fetcher:    fetcher,
		resolver:   NewCheckpointResolver(db, cfg.Checkpoint),
		normalizer: NewNormalizer(target),
		upserter:   NewUpsertEngine(db, cfg.ChunkSize, cfg.Retry),
		deactivate: NewReconciler(db, cfg.Retry),
		retry:      cfg.Retry,
		fetchLimit: cfg.FetchLimit,
	}
}

// newRunnerWith injects engine fakes; used by tests.
func newRunnerWith(target Target, fetcher source.Fetcher, resolver windowResolver, up upserter, de deactivator, retry database.RetryPolicy) *Runner {
	return &Runner{
		target:     target,
		fetcher:    fetcher,
		resolver:   resolver,
		normalizer: NewNormalizer(target),
		upserter:   up,
		deactivate: de,
		retry:      retry,
	}
}

// Run executes one sync run and reports its outcome. The context bounds
// the whole run; a deadline set by the caller caps extraction and every
// sink round-trip.
func (r *Runner) Run(ctx context.Context, opts Options) Result {
	started := time.Now()
	result := Result{
		RunID:  uuid.New().String(),
		Target: r.target.Kind,
		State:  StateIdle,
	}

	fail := func(err error) Result {
		from := result.State
		// A failed run claims zero counts, even when earlier chunks
		// committed; reruns are idempotent, so the accounting stays simple.
		result = Result{
			RunID:       result.RunID,
			Target:      result.Target,
			State:       StateFailed,
			WindowStart: result.WindowStart,
			WindowEnd:   result.WindowEnd,
			Duration:    time.Since(started),
			Errors:      append(result.Errors, err.Error()),
		}
		log.Printf("[sync] %s run %s failed during %s: %v", r.target.Table, result.RunID, from, err)
		return result
	}

	result.State = StateResolvingWindow
	var start, end time.Time
	err := database.WithRetry(ctx, r.retry, fmt.Sprintf("resolve window %s", r.target.Table), func(ctx context.Context) error {
		var err error
		start, end, err = r.resolver.ResolveWindow(ctx, r.target, opts.ForceFull, opts.StartOverride)
		return err
	})
	if err != nil {
		return fail(fmt.Errorf("resolve window: %w", err))
	}
	result.WindowStart = start
	result.WindowEnd = end

	result.State = StateExtracting
	records, err := r.fetcher.FetchWindow(ctx, start, end, r.fetchLimit)
	if err != nil {
		return fail(fmt.Errorf("extract: %w", err))
	}
	result.Seen = len(records)

	result.State = StateNormalizing
	batch, err := r.normalizer.Normalize(records)
	if err != nil {
		return fail(fmt.Errorf("normalize: %w", err))
	}
	result.Duplicates = result.Seen - len(batch.Rows)

	result.State = StateUpserting
	if len(batch.Rows) > 0 {
		stats, err := r.upserter.Upsert(ctx, batch)
		if err != nil {
			return fail(fmt.Errorf("upsert: %w", err))
		}
		result.Inserted = stats.Inserted
		result.Updated = stats.Updated
	}

	if r.target.HasActiveFlag {
		result.State = StateReconciling
		keys, err := r.fetcher.FetchActiveKeys(ctx)
		if err != nil {
			return fail(fmt.Errorf("fetch active keys: %w", err))
		}
		deactivated, err := r.deactivate.DeactivateMissing(ctx, r.target, keys)
		if err != nil {
			return fail(fmt.Errorf("reconcile: %w", err))
		}
		result.Deactivated = deactivated
	}

	result.State = StateDone
	result.Duration = time.Since(started)
	log.Printf("[sync] %s run %s done: seen=%d dups=%d inserted=%d updated=%d deactivated=%d in %v",
		r.target.Table, result.RunID, result.Seen, result.Duplicates,
		result.Inserted, result.Updated, result.Deactivated, result.Duration)
	return result
}
