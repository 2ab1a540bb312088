// Package authority assigns static reliability scores to results by source
// and domain. The table is read-only package data; scoring is pure and safe
// for concurrent use.
package authority

import (
	"strings"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

// domainScores is the exact-domain table. A leading "www." is stripped
// before lookup.
var domainScores = map[string]float64{
	"arxiv.org":                  0.95,
	"acm.org":                    0.95,
	"ieee.org":                   0.95,
	"openai.com":                 0.90,
	"research.google.com":        0.90,
	"ai.googleblog.com":          0.90,
	"deepmind.com":               0.90,
	"anthropic.com":              0.90,
	"github.com":                 0.85,
	"stackoverflow.com":          0.75,
	"medium.com":                 0.60,
	"towardsdatascience.com":     0.60,
	"kdnuggets.com":              0.60,
	"machinelearningmastery.com": 0.60,
	"reddit.com":                 0.50,
	"news.ycombinator.com":       0.50,
}

// sourceDefaults applies when the domain is unknown or absent: adapters
// whose results carry intrinsic trust independent of a web domain.
var sourceDefaults = map[string]float64{
	"vault":      0.70,
	"docstore":   0.65,
	"youtube":    0.55,
	"hackernews": 0.50,
}

const (
	// unknownDomainScore applies to any web domain not in the table.
	unknownDomainScore = 0.60
	// noDomainScore applies when a result has no usable URL and its source
	// has no default of its own.
	noDomainScore = 0.50
)

// Score maps (source, domain) to a reliability score in [0,1]. Deterministic
// for a given pair; unknown inputs yield the documented defaults.
func Score(source, domain string) float64 {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")

	if domain != "" {
		if s, ok := domainScores[domain]; ok {
			return s
		}
		if strings.HasSuffix(domain, ".edu") {
			return 0.95
		}
		if s, ok := sourceDefaults[source]; ok {
			return s
		}
		return unknownDomainScore
	}

	if s, ok := sourceDefaults[source]; ok {
		return s
	}
	return noDomainScore
}

// ScoreURL is Score with the domain extracted from a result URL.
func ScoreURL(source, rawURL string) float64 {
	return Score(source, helpers.Domain(rawURL))
}

// Rank converts raw results to scored results, one for one, in order.
func Rank(results []research.RawResult) []research.ScoredResult {
	out := make([]research.ScoredResult, 0, len(results))
	for _, r := range results {
		out = append(out, research.ScoredResult{RawResult: r, Authority: ScoreURL(r.Source, r.URL)})
	}
	return out
}
