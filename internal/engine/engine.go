// Package engine drives the research pipeline: mandatory-source gate,
// concurrent fan-out, authority scoring, deduplication, the article upgrade
// pass, conflict detection and report assembly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/scout-sh/scout/internal/authority"
	"github.com/scout-sh/scout/internal/budget"
	"github.com/scout-sh/scout/internal/conflict"
	"github.com/scout-sh/scout/internal/dedup"
	"github.com/scout-sh/scout/internal/report"
	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/telemetry"
)

const (
	defaultMaxConcurrent = 6
	defaultUpgradeTopN   = 3

	// thinBodyThreshold marks a canonical result as worth a full-text
	// upgrade when its body is shorter than this.
	thinBodyThreshold = 500

	// upgradeAuthorityFloor is the minimum authority for a result to get
	// the full-text fetch.
	upgradeAuthorityFloor = 0.80

	// upgradeReserve is how much budget must remain before the upgrade
	// pass spends time on extractions.
	upgradeReserve = 5 * time.Second
)

// Extractor fetches the full article text behind a URL. The article source
// implements it; the engine uses it to thicken thin results after dedup.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (string, error)
}

// Options configures an Engine.
type Options struct {
	Adapters  []research.Adapter
	Embedder  dedup.Embedder // nil disables the vector similarity path
	Extractor Extractor      // nil disables the upgrade pass

	MaxConcurrentSources int
	MaxCostUSD           float64
	// Budget overrides the depth tier's wall clock when positive.
	Budget      time.Duration
	UpgradeTopN int
	Logger      *log.Logger
}

// Engine owns one adapter roster and runs queries against it. Safe for
// concurrent use; every run carries its own state.
type Engine struct {
	adapters       []research.Adapter
	dedup          *dedup.Deduplicator
	detector       *conflict.Detector
	extractor      Extractor
	maxConcurrent  int
	maxCost        float64
	budgetOverride time.Duration
	upgradeTopN    int
	logger         *log.Logger
}

// New builds an engine from options, applying defaults for zero values.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	}
	maxConcurrent := opts.MaxConcurrentSources
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	upgradeTopN := opts.UpgradeTopN
	if upgradeTopN <= 0 {
		upgradeTopN = defaultUpgradeTopN
	}
	return &Engine{
		adapters:       opts.Adapters,
		dedup:          dedup.New(opts.Embedder),
		detector:       conflict.NewDetector(),
		extractor:      opts.Extractor,
		maxConcurrent:  maxConcurrent,
		maxCost:        opts.MaxCostUSD,
		budgetOverride: opts.Budget,
		upgradeTopN:    upgradeTopN,
		logger:         logger,
	}
}

// Research executes one full pipeline run. The run deadline comes from the
// query's depth tier; hitting it truncates gracefully, while a caller
// cancellation discards all partial work.
func (e *Engine) Research(ctx context.Context, q research.Query) (research.ResearchReport, error) {
	start := time.Now()
	if strings.TrimSpace(q.Topic) == "" {
		return research.ResearchReport{}, fmt.Errorf("research: empty topic")
	}
	profile := research.ProfileFor(q.Depth)
	if e.budgetOverride > 0 {
		profile.Budget = e.budgetOverride
	}

	// Mandatory sources must be usable before anything touches the network.
	for _, a := range e.adapters {
		if a.Mandatory() && !a.Configured() {
			telemetry.ResearchRuns.WithLabelValues(string(q.Depth), "config-error").Inc()
			return research.ResearchReport{}, &research.ConfigurationError{
				Component: a.ID(),
				Reason:    "mandatory source is not configured",
			}
		}
	}

	monitor := budget.NewMonitor(budget.FromProfile(profile, e.maxCost))
	if err := monitor.Add(profile.EstimatedCost, 0); err != nil {
		telemetry.ResearchRuns.WithLabelValues(string(q.Depth), "budget-exceeded").Inc()
		return research.ResearchReport{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, profile.Budget)
	defer cancel()

	e.logger.Printf("researching %q depth=%s budget=%s adapters=%d", q.Topic, q.Depth, profile.Budget, len(e.adapters))
	raws, runs := e.fanOut(runCtx, q, profile)

	if errors.Is(ctx.Err(), context.Canceled) {
		telemetry.ResearchRuns.WithLabelValues(string(q.Depth), "canceled").Inc()
		return research.ResearchReport{}, ctx.Err()
	}

	scored := authority.Rank(raws)
	canon := e.dedup.Dedupe(runCtx, scored)
	if merged := len(scored) - len(canon); merged > 0 {
		telemetry.DuplicatesMerged.Add(float64(merged))
	}

	e.upgrade(runCtx, canon, monitor)

	conflicts := e.detector.Process(canon)
	for _, c := range conflicts {
		telemetry.ConflictsDetected.WithLabelValues(string(c.Kind)).Inc()
	}

	rpt := report.Build(q, canon, conflicts, runs, profile.MinResults, time.Since(start), profile.EstimatedCost)

	outcome := "ok"
	if rpt.Insufficient != nil {
		outcome = "insufficient"
	}
	telemetry.ObserveRun(string(q.Depth), outcome, rpt.Elapsed, len(rpt.Results), rpt.EstimatedCost)
	e.logger.Printf("run %s finished: %d results, %d conflicts in %s",
		rpt.ID, len(rpt.Results), len(rpt.Conflicts), rpt.Elapsed.Round(time.Millisecond))
	return rpt, nil
}

// upgrade replaces thin bodies on the highest-authority results with full
// article extractions, when an extractor is wired and budget remains.
func (e *Engine) upgrade(ctx context.Context, results []research.CanonicalResult, monitor *budget.Monitor) {
	if e.extractor == nil || len(results) == 0 {
		return
	}

	type candidate struct {
		idx       int
		authority float64
	}
	var cands []candidate
	for i, r := range results {
		if r.URL != "" && r.Authority >= upgradeAuthorityFloor && len(r.Body) < thinBodyThreshold {
			cands = append(cands, candidate{i, r.Authority})
		}
	}
	if len(cands) == 0 {
		return
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].authority > cands[j].authority })
	if len(cands) > e.upgradeTopN {
		cands = cands[:e.upgradeTopN]
	}

	for _, c := range cands {
		if ctx.Err() != nil || monitor.Remaining() < upgradeReserve {
			return
		}
		body, err := e.extractor.Extract(ctx, results[c.idx].URL)
		if err != nil {
			e.logger.Printf("upgrade failed for %s: %v", results[c.idx].URL, err)
			continue
		}
		// A replacement must be a real article, not a marginally longer stub.
		if len(body) >= thinBodyThreshold && len(body) > len(results[c.idx].Body) {
			results[c.idx].Body = body
		}
	}
}
