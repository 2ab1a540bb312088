// Package dedup merges near-duplicate results into canonical records. Two
// equivalence rules apply in order: normalized-URL equality, then semantic
// similarity above a fixed threshold among results the URL rule left alone.
package dedup

import (
	"context"
	"log"
	"math"
	"sort"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

// SimilarityThreshold is the fixed contract above which two bodies are the
// same document. The algorithm behind the score may vary; the threshold
// does not.
const SimilarityThreshold = 0.90

const (
	// A lower-authority body replaces the winner's text only when it is
	// materially fuller: at least fullerRatio times longer, or longer by
	// fullerSlack characters.
	fullerRatio = 1.5
	fullerSlack = 400
)

// Embedder produces one vector per input text. Optional; without it the
// deduplicator scores similarity with a lexical term-frequency cosine.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Deduplicator collapses a scored result set into canonical results.
// Idempotent: running it over its own output merges nothing further.
type Deduplicator struct {
	embedder Embedder
	logger   *log.Logger
}

// New builds a Deduplicator. embedder may be nil.
func New(embedder Embedder) *Deduplicator {
	return &Deduplicator{
		embedder: embedder,
		logger:   log.New(log.Writer(), "[DEDUP] ", log.LstdFlags),
	}
}

// Dedupe partitions scored into duplicate groups and merges each group into
// one canonical record. Input order is the arrival order and survives into
// the output: canonical records are emitted by earliest member.
func (d *Deduplicator) Dedupe(ctx context.Context, scored []research.ScoredResult) []research.CanonicalResult {
	if len(scored) == 0 {
		return nil
	}

	keys := make([]string, len(scored))
	counts := make(map[string]int, len(scored))
	for i, r := range scored {
		if r.URL == "" {
			continue
		}
		if k, err := helpers.DedupKey(r.URL); err == nil {
			keys[i] = k
			counts[k]++
		}
	}

	// Rule 1: identical normalized URLs are duplicates regardless of text.
	var groups [][]int
	byKey := make(map[string]int)
	var loose []int
	for i := range scored {
		k := keys[i]
		if k != "" && counts[k] > 1 {
			gi, ok := byKey[k]
			if !ok {
				groups = append(groups, nil)
				gi = len(groups) - 1
				byKey[k] = gi
			}
			groups[gi] = append(groups[gi], i)
			continue
		}
		loose = append(loose, i)
	}

	// Rule 2: among the rest, bodies above the similarity threshold are
	// duplicates. A result joins the first group in which it exceeds the
	// threshold against any member, so no two emitted records can still be
	// near-duplicates of each other.
	sim := d.scorer(ctx, scored, loose)
	var semantic [][]int
	for _, i := range loose {
		placed := false
		for gi := range semantic {
			for _, j := range semantic[gi] {
				if sim(i, j) > SimilarityThreshold {
					semantic[gi] = append(semantic[gi], i)
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
		if !placed {
			semantic = append(semantic, []int{i})
		}
	}
	groups = append(groups, semantic...)

	sort.SliceStable(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })

	out := make([]research.CanonicalResult, 0, len(groups))
	for _, g := range groups {
		out = append(out, merge(scored, g, keys))
	}
	return out
}

// merge collapses one duplicate group: the highest-authority member's score
// always survives, its text only when no member is materially fuller.
func merge(scored []research.ScoredResult, group []int, keys []string) research.CanonicalResult {
	win := group[0]
	for _, i := range group[1:] {
		if scored[i].Authority > scored[win].Authority {
			win = i
		}
	}

	longest := win
	for _, i := range group {
		if len(scored[i].Body) > len(scored[longest].Body) {
			longest = i
		}
	}
	donor := win
	if longest != win && materiallyFuller(len(scored[longest].Body), len(scored[win].Body)) {
		donor = longest
	}

	c := research.CanonicalResult{
		ID:          scored[donor].ID,
		Title:       scored[donor].Title,
		URL:         scored[donor].URL,
		DedupKey:    keys[donor],
		Source:      scored[win].Source,
		Authority:   scored[win].Authority,
		Body:        scored[donor].Body,
		Author:      scored[donor].Author,
		PublishedAt: scored[donor].PublishedAt,
		Seq:         group[0],
	}
	if c.Title == "" {
		c.Title = scored[win].Title
	}
	if c.URL == "" {
		c.URL = scored[win].URL
		c.DedupKey = keys[win]
	}
	if c.PublishedAt.IsZero() {
		c.PublishedAt = scored[win].PublishedAt
	}

	seen := make(map[string]bool, len(group))
	for _, i := range group {
		c.Members = append(c.Members, scored[i].ID)
		if src := scored[i].Source; !seen[src] {
			seen[src] = true
			c.Sources = append(c.Sources, src)
		}
	}
	return c
}

func materiallyFuller(candidate, current int) bool {
	if candidate <= current {
		return false
	}
	return float64(candidate) >= float64(current)*fullerRatio || candidate >= current+fullerSlack
}

// scorer returns a pairwise similarity function over the loose indices,
// backed by provider embeddings when available and by term-frequency cosine
// otherwise. Embedding failures degrade to the lexical score.
func (d *Deduplicator) scorer(ctx context.Context, scored []research.ScoredResult, loose []int) func(i, j int) float64 {
	var vectors map[int][]float32
	if d.embedder != nil && len(loose) > 1 {
		texts := make([]string, 0, len(loose))
		for _, i := range loose {
			texts = append(texts, comparableText(scored[i]))
		}
		embs, err := d.embedder.CreateEmbedding(ctx, texts)
		if err != nil || len(embs) != len(loose) {
			d.logger.Printf("embedding unavailable, falling back to lexical similarity: %v", err)
		} else {
			vectors = make(map[int][]float32, len(loose))
			for pos, i := range loose {
				vectors[i] = embs[pos]
			}
		}
	}

	freqs := make(map[int]map[string]float64, len(loose))
	lexical := func(i int) map[string]float64 {
		tf, ok := freqs[i]
		if !ok {
			tf = helpers.TermFreq(comparableText(scored[i]))
			freqs[i] = tf
		}
		return tf
	}

	return func(i, j int) float64 {
		if vectors != nil {
			if vi, vj := vectors[i], vectors[j]; len(vi) > 0 && len(vi) == len(vj) {
				return cosine32(vi, vj)
			}
		}
		return cosineTF(lexical(i), lexical(j))
	}
}

func comparableText(r research.ScoredResult) string {
	if r.Body != "" {
		return r.Body
	}
	return r.Title
}

func cosine32(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func cosineTF(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for tok, w := range a {
		na += w * w
		if w2, ok := b[tok]; ok {
			dot += w * w2
		}
	}
	for _, w := range b {
		nb += w * w
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
