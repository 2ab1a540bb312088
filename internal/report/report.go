// Package report assembles the terminal artifact of a research run: ranked
// canonical results, conflict annotations, per-adapter accounting and the
// rendered markdown handed back to callers.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/scout-sh/scout/internal/research"
)

// Build assembles a report from the pipeline outputs. When fewer canonical
// results survived than the depth profile's minimum, the report carries an
// insufficiency warning instead of failing the run.
func Build(query research.Query, results []research.CanonicalResult, conflicts []research.Conflict, runs []research.AdapterRun, minResults int, elapsed time.Duration, cost float64) research.ResearchReport {
	ranked := make([]research.CanonicalResult, len(results))
	copy(ranked, results)
	Rank(ranked)

	report := research.ResearchReport{
		ID:            uuid.NewString(),
		Query:         query,
		Results:       ranked,
		Conflicts:     conflicts,
		Stats:         buildStats(ranked, runs),
		Adapters:      runs,
		Elapsed:       elapsed,
		EstimatedCost: cost,
		CreatedAt:     time.Now(),
	}
	if len(ranked) < minResults {
		report.Insufficient = &research.InsufficientResults{Found: len(ranked), Minimum: minResults}
	}
	return report
}

// Rank sorts results in place: authority descending, fresher publication
// first with undated entries last, then arrival order. The sort is stable,
// so identical inputs always rank identically.
func Rank(results []research.CanonicalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Authority != results[j].Authority {
			return results[i].Authority > results[j].Authority
		}
		pi, pj := results[i].PublishedAt, results[j].PublishedAt
		if !pi.Equal(pj) {
			if pi.IsZero() {
				return false
			}
			if pj.IsZero() {
				return true
			}
			return pi.After(pj)
		}
		return results[i].Seq < results[j].Seq
	})
}

func buildStats(results []research.CanonicalResult, runs []research.AdapterRun) research.Stats {
	stats := research.Stats{PerSource: make(map[string]int, len(runs)), Unique: len(results)}
	for _, run := range runs {
		stats.PerSource[run.Source] = run.Results
	}
	if len(results) == 0 {
		return stats
	}
	var sum float64
	for _, r := range results {
		sum += r.Authority
	}
	stats.AvgAuthority = sum / float64(len(results))
	return stats
}
