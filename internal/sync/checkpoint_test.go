package sync

import (
	"context"
	"testing"
	"time"
)

func TestResolveWindow_ForceFullUsesLookback(t *testing.T) {
	cfg := CheckpointConfig{Lookback: 30 * 24 * time.Hour, SafetyMargin: time.Hour}
	r := NewCheckpointResolver(nil, cfg) // force-full path never touches the sink

	before := time.Now().UTC()
	start, end, err := r.ResolveWindow(context.Background(), SalesTarget, true, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if end.Before(before) {
		t.Error("window end must be now at call time")
	}
	if got := end.Sub(start); got != cfg.Lookback {
		t.Errorf("window depth %v, want lookback %v", got, cfg.Lookback)
	}
}

func TestResolveWindow_OverrideStartWins(t *testing.T) {
	r := NewCheckpointResolver(nil, DefaultCheckpointConfig())

	override := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	start, end, err := r.ResolveWindow(context.Background(), CatalogTarget, false, &override)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !start.Equal(override) {
		t.Errorf("start %v, want the override %v", start, override)
	}
	if !end.After(start) {
		t.Error("window must be half-open and forward")
	}
}

func TestResolveWindow_OverrideBeatsForceFull(t *testing.T) {
	r := NewCheckpointResolver(nil, DefaultCheckpointConfig())

	override := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	start, _, err := r.ResolveWindow(context.Background(), CatalogTarget, true, &override)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !start.Equal(override) {
		t.Errorf("explicit override should win over force-full, got start %v", start)
	}
}

func TestNewCheckpointResolver_AppliesDefaults(t *testing.T) {
	r := NewCheckpointResolver(nil, CheckpointConfig{})
	def := DefaultCheckpointConfig()
	if r.config.Lookback != def.Lookback {
		t.Errorf("lookback %v, want default %v", r.config.Lookback, def.Lookback)
	}
	if r.config.SafetyMargin != def.SafetyMargin {
		t.Errorf("safety margin %v, want default %v", r.config.SafetyMargin, def.SafetyMargin)
	}
}
