package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/telemetry"
)

// stragglerGrace is how long the collector waits after the deadline for
// adapters that honor cancellation to record their terminal status.
const stragglerGrace = 150 * time.Millisecond

// fanoutLeg is one adapter's contribution, tagged with its launch position
// so collected results keep a stable order regardless of completion order.
type fanoutLeg struct {
	index   int
	run     research.AdapterRun
	results []research.RawResult
}

// fanOut queries every configured adapter concurrently under the run
// deadline. Optional unconfigured adapters are recorded as skipped without
// spawning a goroutine; a failing adapter never aborts its siblings.
func (e *Engine) fanOut(ctx context.Context, q research.Query, profile research.DepthProfile) ([]research.RawResult, []research.AdapterRun) {
	legs := make(chan fanoutLeg, len(e.adapters))
	semaphore := make(chan struct{}, e.maxConcurrent)
	var wg sync.WaitGroup

	for i, adapter := range e.adapters {
		if !adapter.Configured() {
			legs <- fanoutLeg{index: i, run: research.AdapterRun{
				Source: adapter.ID(),
				Status: research.StatusSkipped,
			}}
			telemetry.ObserveAdapter(adapter.ID(), string(research.StatusSkipped), 0)
			continue
		}

		wg.Add(1)
		go func(i int, a research.Adapter) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				legs <- fanoutLeg{index: i, run: research.AdapterRun{
					Source: a.ID(),
					Status: statusForContext(ctx.Err()),
					Error:  ctx.Err().Error(),
				}}
				return
			}

			start := time.Now()
			results, err := a.Search(ctx, q)
			elapsed := time.Since(start)

			leg := fanoutLeg{index: i, run: research.AdapterRun{Source: a.ID(), Elapsed: elapsed}}
			switch {
			case err == nil && ctx.Err() == nil:
				if len(results) > profile.MaxPerSource {
					results = results[:profile.MaxPerSource]
				}
				leg.run.Status = research.StatusOK
				leg.run.Results = len(results)
				leg.results = results
			case err == nil:
				// Finished after the deadline: late results are dropped.
				leg.run.Status = statusForContext(ctx.Err())
				leg.run.Error = ctx.Err().Error()
			default:
				leg.run.Status, leg.run.Error = classify(err)
			}
			telemetry.ObserveAdapter(a.ID(), string(leg.run.Status), elapsed)
			legs <- leg
		}(i, adapter)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Never block on a straggler that ignores cancellation: after the
	// deadline, give adapters a short grace to record their status, then
	// move on. Late writes land in the buffered channel and are dropped.
	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(stragglerGrace):
		}
	}

	ordered := make([]fanoutLeg, len(e.adapters))
	seen := make([]bool, len(e.adapters))
drain:
	for {
		select {
		case leg := <-legs:
			ordered[leg.index] = leg
			seen[leg.index] = true
		default:
			break drain
		}
	}
	for i, adapter := range e.adapters {
		if seen[i] {
			continue
		}
		ordered[i] = fanoutLeg{index: i, run: research.AdapterRun{
			Source: adapter.ID(),
			Status: statusForContext(ctx.Err()),
			Error:  "did not return before the deadline",
		}}
		telemetry.ObserveAdapter(adapter.ID(), string(ordered[i].run.Status), 0)
	}

	var raws []research.RawResult
	runs := make([]research.AdapterRun, 0, len(ordered))
	for _, leg := range ordered {
		runs = append(runs, leg.run)
		raws = append(raws, leg.results...)
	}
	return raws, runs
}

func classify(err error) (research.AdapterStatus, string) {
	var srcErr *research.SourceError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return research.StatusTimeout, err.Error()
	case errors.As(err, &srcErr) && srcErr.Kind == research.SourceTimedOut:
		return research.StatusTimeout, err.Error()
	default:
		return research.StatusFailed, err.Error()
	}
}

func statusForContext(err error) research.AdapterStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return research.StatusTimeout
	}
	return research.StatusFailed
}
