package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/scout-sh/scout/internal/cache"
	"github.com/scout-sh/scout/internal/engine"
	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/store"
)

// Scheduler runs due subscriptions through the engine in the background.
// One goroutine walks all subscriptions each tick; runs execute inline so a
// slow run naturally delays the next sweep instead of piling up.
type Scheduler struct {
	Store    *store.Store
	Engine   *engine.Engine
	Cache    *cache.ReportCache
	Interval time.Duration
	Logger   *log.Logger
	Stop     chan struct{}
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	subs, err := s.Store.ListSubscriptions(ctx)
	if err != nil {
		s.Logger.Printf("list subscriptions: %v", err)
		return
	}
	now := time.Now()
	for _, sub := range subs {
		select {
		case <-s.Stop:
			return
		default:
		}
		if !isDue(sub.CronExpr, sub.LastRunAt, now) {
			continue
		}
		s.run(ctx, sub)
	}
}

func (s *Scheduler) run(ctx context.Context, sub store.Subscription) {
	q, err := research.NewQuery(sub.Topic, research.Depth(sub.Depth))
	if err != nil {
		s.Logger.Printf("subscription %s: %v", sub.ID, err)
		return
	}
	started := time.Now()
	rpt, err := s.Engine.Research(ctx, q)
	if err != nil {
		s.Logger.Printf("subscription %s research failed: %v", sub.ID, err)
		// Record the attempt so a broken subscription does not fire every tick.
		_ = s.Store.TouchSubscription(ctx, sub.ID, started)
		return
	}
	if err := s.Store.SaveReport(ctx, rpt); err != nil {
		s.Logger.Printf("subscription %s save report: %v", sub.ID, err)
	}
	if s.Cache != nil {
		if err := s.Cache.Put(ctx, rpt); err != nil {
			s.Logger.Printf("subscription %s cache put: %v", sub.ID, err)
		}
	}
	if err := s.Store.TouchSubscription(ctx, sub.ID, started); err != nil {
		s.Logger.Printf("subscription %s touch: %v", sub.ID, err)
	}
	s.Logger.Printf("subscription %s (%s) produced report %s with %d results", sub.ID, sub.Topic, rpt.ID, len(rpt.Results))
}

// isDue reports whether a subscription with cronSpec should run at now given
// its last run time. Supports "@daily", "@hourly" and 5-field cron expressions.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Creation validates the expression, so this only happens for rows
			// edited out of band. Fall back to daily.
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
