package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/scout-sh/scout/internal/research"
)

func TestConfigValidate(t *testing.T) {
	neg := float64(-1)
	cfg := Config{MaxCost: &neg}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}

	cost := float64(10)
	threshold := float64(20)
	cfg = Config{MaxCost: &cost, ApprovalThreshold: &threshold}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected threshold validation error")
	}
}

func TestFromProfile(t *testing.T) {
	profile := research.ProfileFor(research.DepthModerate)
	cfg := FromProfile(profile, 1.50)
	if cfg.MaxSeconds == nil || *cfg.MaxSeconds != int64(profile.Budget.Seconds()) {
		t.Fatalf("max seconds = %v, want %v", cfg.MaxSeconds, profile.Budget.Seconds())
	}
	if cfg.MaxCost == nil || *cfg.MaxCost != 1.50 {
		t.Fatalf("max cost = %v, want 1.50", cfg.MaxCost)
	}

	cfg = FromProfile(profile, 0)
	if cfg.MaxCost != nil {
		t.Fatalf("zero cap should leave cost unlimited, got %v", *cfg.MaxCost)
	}
}

func TestMergeClone(t *testing.T) {
	cost := float64(5)
	base := Config{MaxCost: &cost}
	override := Config{RequireApproval: true}
	merged := Merge(base, override)
	if !merged.RequireApproval {
		t.Fatalf("expected require approval flag")
	}
	if merged.MaxCost == nil || *merged.MaxCost != cost {
		t.Fatalf("expected max cost to persist")
	}
	// ensure clone
	*merged.MaxCost = 99
	if *base.MaxCost != cost {
		t.Fatalf("merged config should be isolated from base")
	}
}

func TestMonitorAddAndCalls(t *testing.T) {
	maxCost := 5.0
	maxCalls := int64(10)
	cfg := Config{MaxCost: &maxCost, MaxCalls: &maxCalls}
	mon := NewMonitor(cfg)
	if err := mon.Add(2.5, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := mon.Add(0.1, 7)
	if err == nil {
		t.Fatalf("expected call budget breach")
	}
	var exceeded ErrExceeded
	if !errors.As(err, &exceeded) || exceeded.Kind != "calls" {
		t.Fatalf("expected calls breach, got %v", err)
	}

	cost, calls, _ := mon.Usage()
	if cost < 2.59 || cost > 2.61 || calls != 11 {
		t.Fatalf("usage = %.2f/%d, want 2.60/11", cost, calls)
	}
}

func TestMonitorRemaining(t *testing.T) {
	seconds := int64(60)
	mon := NewMonitor(Config{MaxSeconds: &seconds})
	if left := mon.Remaining(); left <= 0 || left > time.Minute {
		t.Fatalf("remaining = %v, want (0, 1m]", left)
	}
	if err := mon.CheckTime(); err != nil {
		t.Fatalf("unexpected time breach: %v", err)
	}

	unlimited := NewMonitor(Config{})
	if left := unlimited.Remaining(); left < time.Hour {
		t.Fatalf("unlimited budget should report a large remainder, got %v", left)
	}
}

func TestRequiresApproval(t *testing.T) {
	cfg := Config{}
	if RequiresApproval(cfg, 5) {
		t.Fatalf("unexpected approval requirement")
	}
	threshold := 4.0
	cfg.ApprovalThreshold = &threshold
	if !RequiresApproval(cfg, 5) {
		t.Fatalf("expected approval requirement when exceeding threshold")
	}
}
