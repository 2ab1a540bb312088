package budget

import (
	"fmt"
	"sync"
	"time"
)

// Monitor tracks actual usage against configured limits during a run.
type Monitor struct {
	config    Config
	costUsed  float64
	callsUsed int64
	startTime time.Time
	mu        sync.Mutex
}

// NewMonitor clones the provided config and starts the clock.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{
		config:    cfg.Clone(),
		startTime: time.Now(),
	}
}

// Add records incremental cost and API calls, returning an error if any
// limit is breached.
func (m *Monitor) Add(cost float64, calls int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costUsed += cost
	m.callsUsed += calls
	if m.config.MaxCost != nil && m.costUsed > *m.config.MaxCost {
		return ErrExceeded{
			Kind:  "cost",
			Usage: fmt.Sprintf("$%.4f", m.costUsed),
			Limit: fmt.Sprintf("$%.4f", *m.config.MaxCost),
		}
	}
	if m.config.MaxCalls != nil && m.callsUsed > *m.config.MaxCalls {
		return ErrExceeded{
			Kind:  "calls",
			Usage: fmt.Sprintf("%d calls", m.callsUsed),
			Limit: fmt.Sprintf("%d calls", *m.config.MaxCalls),
		}
	}
	return nil
}

// CheckTime verifies elapsed time against the configured limit.
func (m *Monitor) CheckTime() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.MaxSeconds == nil || *m.config.MaxSeconds <= 0 {
		return nil
	}
	elapsed := time.Since(m.startTime)
	limit := time.Duration(*m.config.MaxSeconds) * time.Second
	if elapsed > limit {
		return ErrExceeded{
			Kind:  "time",
			Usage: elapsed.String(),
			Limit: limit.String(),
		}
	}
	return nil
}

// Remaining reports how much wall clock is left, or a negative duration
// when the limit has passed. Unlimited budgets report a large remainder.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.MaxSeconds == nil || *m.config.MaxSeconds <= 0 {
		return time.Hour
	}
	limit := time.Duration(*m.config.MaxSeconds) * time.Second
	return limit - time.Since(m.startTime)
}

// Usage returns the accumulated metrics.
func (m *Monitor) Usage() (cost float64, calls int64, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.costUsed, m.callsUsed, time.Since(m.startTime)
}

// Config returns a clone of the underlying budget config.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone()
}
