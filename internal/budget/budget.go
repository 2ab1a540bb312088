package budget

import (
	"fmt"

	"github.com/scout-sh/scout/internal/research"
)

// Config defines guardrails for one research run: spend, external API
// calls and wall-clock time. Nil means unlimited for that dimension.
type Config struct {
	MaxCost           *float64
	MaxCalls          *int64
	MaxSeconds        *int64
	ApprovalThreshold *float64
	RequireApproval   bool
}

// FromProfile derives a run budget from a depth profile. The wall clock
// limit comes straight from the tier; cost callers cap separately.
func FromProfile(p research.DepthProfile, maxCost float64) Config {
	seconds := int64(p.Budget.Seconds())
	cfg := Config{MaxSeconds: &seconds}
	if maxCost > 0 {
		cfg.MaxCost = &maxCost
	}
	return cfg
}

// Validate ensures the budget values are sane before use.
func (c Config) Validate() error {
	if c.MaxCost != nil && *c.MaxCost < 0 {
		return fmt.Errorf("max_cost cannot be negative")
	}
	if c.MaxCalls != nil && *c.MaxCalls < 0 {
		return fmt.Errorf("max_calls cannot be negative")
	}
	if c.MaxSeconds != nil && *c.MaxSeconds < 0 {
		return fmt.Errorf("max_seconds cannot be negative")
	}
	if c.ApprovalThreshold != nil {
		if *c.ApprovalThreshold < 0 {
			return fmt.Errorf("approval_threshold cannot be negative")
		}
		if c.MaxCost != nil && *c.ApprovalThreshold > *c.MaxCost {
			return fmt.Errorf("approval_threshold cannot exceed max_cost")
		}
	}
	return nil
}

// Clone produces a deep copy of the config.
func (c Config) Clone() Config {
	clone := Config{RequireApproval: c.RequireApproval}
	if c.MaxCost != nil {
		v := *c.MaxCost
		clone.MaxCost = &v
	}
	if c.MaxCalls != nil {
		v := *c.MaxCalls
		clone.MaxCalls = &v
	}
	if c.MaxSeconds != nil {
		v := *c.MaxSeconds
		clone.MaxSeconds = &v
	}
	if c.ApprovalThreshold != nil {
		v := *c.ApprovalThreshold
		clone.ApprovalThreshold = &v
	}
	return clone
}

// Merge overlays non-nil values from override onto base. Subscription
// budgets override the tier defaults this way.
func Merge(base Config, override Config) Config {
	result := base.Clone()
	if override.MaxCost != nil {
		v := *override.MaxCost
		result.MaxCost = &v
	}
	if override.MaxCalls != nil {
		v := *override.MaxCalls
		result.MaxCalls = &v
	}
	if override.MaxSeconds != nil {
		v := *override.MaxSeconds
		result.MaxSeconds = &v
	}
	if override.ApprovalThreshold != nil {
		v := *override.ApprovalThreshold
		result.ApprovalThreshold = &v
	}
	if override.RequireApproval {
		result.RequireApproval = true
	}
	return result
}

// IsZero reports whether the config defines no explicit limits or requirements.
func (c Config) IsZero() bool {
	if c.MaxCost != nil && *c.MaxCost != 0 {
		return false
	}
	if c.MaxCalls != nil && *c.MaxCalls != 0 {
		return false
	}
	if c.MaxSeconds != nil && *c.MaxSeconds != 0 {
		return false
	}
	if c.ApprovalThreshold != nil && *c.ApprovalThreshold != 0 {
		return false
	}
	return !c.RequireApproval
}

// RequiresApproval returns true when a run must be confirmed before it spends.
func RequiresApproval(cfg Config, estimatedCost float64) bool {
	if cfg.RequireApproval {
		return true
	}
	return cfg.ApprovalThreshold != nil && estimatedCost > *cfg.ApprovalThreshold
}
