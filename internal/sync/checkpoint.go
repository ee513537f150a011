package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// CheckpointConfig tunes fetch-window derivation.
type CheckpointConfig struct {
	// Lookback is the default window depth for a cold sink or a forced
	// full resync.
	Lookback time.Duration

	// SafetyMargin is subtracted from the sink's high-water mark so that
	// source writes committed slightly after their nominal timestamp are
	// not missed by the next window.
	SafetyMargin time.Duration
}

// DefaultCheckpointConfig returns the production defaults: 30 day
// lookback, 1 hour safety margin.
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Lookback:     30 * 24 * time.Hour,
		SafetyMargin: time.Hour,
	}
}

// CheckpointResolver derives the next fetch window from the sink's
// high-water mark. The checkpoint is not stored separately; it is always
// MAX(last_changed_at) over the target table.
type CheckpointResolver struct {
	db     *sql.DB
	config CheckpointConfig
}

// NewCheckpointResolver builds a resolver over the sink.
func NewCheckpointResolver(db *sql.DB, cfg CheckpointConfig) *CheckpointResolver {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultCheckpointConfig().Lookback
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultCheckpointConfig().SafetyMargin
	}
	return &CheckpointResolver{db: db, config: cfg}
}

// HighWaterMark reads MAX(last_changed_at) for the target. The bool is
// false when the sink holds no rows yet (cold start), which is not an
// error.
func (r *CheckpointResolver) HighWaterMark(ctx context.Context, target Target) (time.Time, bool, error) {
	query := fmt.Sprintf("SELECT MAX(last_changed_at) FROM %s", pq.QuoteIdentifier(target.Table))

	var mark sql.NullTime
	if err := r.db.QueryRowContext(ctx, query).Scan(&mark); err != nil {
		return time.Time{}, false, fmt.Errorf("read high-water mark for %s: %w", target.Table, err)
	}
	if !mark.Valid {
		return time.Time{}, false, nil
	}
	return mark.Time.UTC(), true, nil
}

// ResolveWindow computes the half-open fetch window [start, end) for the
// next run. The end is always now, so successive windows advance
// monotonically. A cold sink or forceFull falls back to the configured
// lookback rather than scanning unbounded history.
func (r *CheckpointResolver) ResolveWindow(ctx context.Context, target Target, forceFull bool, overrideStart *time.Time) (time.Time, time.Time, error) {
	end := time.Now().UTC()

	if overrideStart != nil {
		return overrideStart.UTC(), end, nil
	}
	if forceFull {
		return end.Add(-r.config.Lookback), end, nil
	}

	mark, ok, err := r.HighWaterMark(ctx, target)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		return end.Add(-r.config.Lookback), end, nil
	}
	return mark.Add(-r.config.SafetyMargin), end, nil
}
