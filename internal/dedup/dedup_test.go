package dedup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scout-sh/scout/internal/research"
)

func scoredFixture(id, source, url, body string, authority float64) research.ScoredResult {
	return research.ScoredResult{
		RawResult: research.RawResult{ID: id, Source: source, Title: "title " + id, URL: url, Body: body},
		Authority: authority,
	}
}

func TestDedupeMergesByNormalizedURL(t *testing.T) {
	t.Parallel()
	// Bodies share almost no vocabulary, similarity is nowhere near the
	// threshold; the URL rule must still merge them.
	in := []research.ScoredResult{
		scoredFixture("a", "websearch", "https://example.com/post?utm_source=x&ref=1", "goroutines coordinate by passing values over channels", 0.60),
		scoredFixture("b", "hackernews", "http://example.com/post/", "an entirely different description written by someone else", 0.50),
	}
	out := New(nil).Dedupe(context.Background(), in)
	if len(out) != 1 {
		t.Fatalf("expected 1 canonical result, got %d", len(out))
	}
	if got := out[0].Members; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected members: %v", got)
	}
	if out[0].Authority != 0.60 {
		t.Fatalf("expected highest authority kept, got %v", out[0].Authority)
	}
	if len(out[0].Sources) != 2 {
		t.Fatalf("expected both contributing sources recorded, got %v", out[0].Sources)
	}
}

func TestDedupeMergesNearIdenticalBodies(t *testing.T) {
	t.Parallel()
	base := "Retrieval augmented generation combines a retriever with a generator to ground model answers in external documents."
	in := []research.ScoredResult{
		scoredFixture("a", "websearch", "https://one.example.com/rag", base, 0.60),
		scoredFixture("b", "youtube", "https://two.example.com/rag-video", strings.Replace(base, "combines", "pairs", 1), 0.55),
		scoredFixture("c", "websearch", "https://three.example.com/go", "Go channels coordinate goroutines by passing typed values between them.", 0.60),
	}
	out := New(nil).Dedupe(context.Background(), in)
	if len(out) != 2 {
		t.Fatalf("expected 2 canonical results, got %d", len(out))
	}
	if len(out[0].Members) != 2 {
		t.Fatalf("expected first canonical to hold the near-duplicates, got %v", out[0].Members)
	}
	if out[1].Members[0] != "c" {
		t.Fatalf("distinct result merged away: %+v", out[1])
	}
}

func TestDedupeKeepsDistinctResults(t *testing.T) {
	t.Parallel()
	in := []research.ScoredResult{
		scoredFixture("a", "websearch", "https://example.com/a", "vector indexes approximate nearest neighbour search at scale", 0.60),
		scoredFixture("b", "websearch", "https://example.com/b", "terraform modules package infrastructure for reuse across teams", 0.60),
		scoredFixture("c", "vault", "", "my private notes about sourdough starters and hydration ratios", 0.70),
	}
	out := New(nil).Dedupe(context.Background(), in)
	if len(out) != 3 {
		t.Fatalf("expected 3 canonical results, got %d", len(out))
	}
	for i, c := range out {
		if len(c.Members) != 1 {
			t.Fatalf("result %d unexpectedly merged: %v", i, c.Members)
		}
	}
}

func TestDedupePrefersFullerTextKeepsHigherAuthority(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("The full article text explains the whole pipeline in detail. ", 12)
	in := []research.ScoredResult{
		scoredFixture("short-high", "websearch", "https://example.com/article", "A brief snippet.", 0.90),
		scoredFixture("long-low", "hackernews", "https://example.com/article?utm_campaign=hn", long, 0.50),
	}
	out := New(nil).Dedupe(context.Background(), in)
	if len(out) != 1 {
		t.Fatalf("expected 1 canonical result, got %d", len(out))
	}
	c := out[0]
	if c.Body != long {
		t.Fatalf("expected the fuller body to be kept")
	}
	if c.Authority != 0.90 {
		t.Fatalf("expected the higher authority score to survive, got %v", c.Authority)
	}
	if c.Source != "websearch" {
		t.Fatalf("expected the authority winner's source, got %s", c.Source)
	}
	if c.ID != "long-low" {
		t.Fatalf("canonical identity should follow the kept text, got %s", c.ID)
	}
}

func TestDedupeMarginallyLongerTextDoesNotWin(t *testing.T) {
	t.Parallel()
	winner := strings.Repeat("carefully researched sentence ", 10)
	slightlyLonger := winner + "and a little extra."
	in := []research.ScoredResult{
		scoredFixture("high", "websearch", "https://example.com/one", winner, 0.90),
		scoredFixture("low", "websearch", "https://example.com/one/", slightlyLonger, 0.40),
	}
	out := New(nil).Dedupe(context.Background(), in)
	if len(out) != 1 {
		t.Fatalf("expected 1 canonical result, got %d", len(out))
	}
	if out[0].Body != winner {
		t.Fatalf("marginally longer body must not displace the winner's text")
	}
}

func TestDedupeIdempotent(t *testing.T) {
	t.Parallel()
	base := "Retrieval augmented generation combines a retriever with a generator to ground model answers in external documents."
	in := []research.ScoredResult{
		scoredFixture("a", "websearch", "https://example.com/rag?ref=x", base, 0.60),
		scoredFixture("b", "hackernews", "https://example.com/rag", base+" It reduces hallucinations.", 0.50),
		scoredFixture("c", "vault", "", "my own notes on retrieval augmented generation and grounding", 0.70),
		scoredFixture("d", "websearch", "https://example.com/other", "Postgres vacuuming reclaims dead tuples and keeps bloat in check.", 0.60),
	}
	d := New(nil)
	first := d.Dedupe(context.Background(), in)

	again := make([]research.ScoredResult, 0, len(first))
	for _, c := range first {
		again = append(again, research.ScoredResult{
			RawResult: research.RawResult{ID: c.ID, Source: c.Source, Title: c.Title, URL: c.URL, Body: c.Body, PublishedAt: c.PublishedAt},
			Authority: c.Authority,
		})
	}
	second := d.Dedupe(context.Background(), again)

	if len(second) != len(first) {
		t.Fatalf("second pass changed the set: %d -> %d", len(first), len(second))
	}
	for i := range second {
		if second[i].ID != first[i].ID {
			t.Fatalf("second pass reordered or re-merged: %s vs %s", second[i].ID, first[i].ID)
		}
		if len(second[i].Members) != 1 {
			t.Fatalf("second pass merged already-canonical results: %v", second[i].Members)
		}
	}
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, tx := range texts {
		out[i] = f.vectors[tx]
	}
	return out, nil
}

func TestDedupeUsesEmbeddingsWhenAvailable(t *testing.T) {
	t.Parallel()
	// Lexically unrelated bodies that the embedder maps to the same
	// direction must merge; the orthogonal one must not.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"alpha text": {1, 0, 0},
		"beta text":  {0.995, 0.1, 0},
		"gamma text": {0, 1, 0},
	}}
	in := []research.ScoredResult{
		scoredFixture("a", "websearch", "https://a.example.com/1", "alpha text", 0.60),
		scoredFixture("b", "websearch", "https://b.example.com/2", "beta text", 0.60),
		scoredFixture("c", "websearch", "https://c.example.com/3", "gamma text", 0.60),
	}
	out := New(emb).Dedupe(context.Background(), in)
	if len(out) != 2 {
		t.Fatalf("expected embedding-driven merge to 2 results, got %d", len(out))
	}
	if len(out[0].Members) != 2 {
		t.Fatalf("expected a+b merged, got %v", out[0].Members)
	}
}

func TestDedupeFallsBackWhenEmbedderFails(t *testing.T) {
	t.Parallel()
	base := "Retrieval augmented generation combines a retriever with a generator to ground model answers in external documents."
	emb := &fakeEmbedder{err: errors.New("provider down")}
	in := []research.ScoredResult{
		scoredFixture("a", "websearch", "https://one.example.com/rag", base, 0.60),
		scoredFixture("b", "websearch", "https://two.example.com/rag", strings.Replace(base, "combines", "pairs", 1), 0.60),
	}
	out := New(emb).Dedupe(context.Background(), in)
	if len(out) != 1 {
		t.Fatalf("expected lexical fallback to merge near-duplicates, got %d results", len(out))
	}
}
