package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scout-sh/scout/internal/research"
)

type fakeAdapter struct {
	id         string
	configured bool
	mandatory  bool
	results    []research.RawResult
	err        error
	delay      time.Duration
	block      bool
	calls      atomic.Int32
}

func (f *fakeAdapter) ID() string       { return f.id }
func (f *fakeAdapter) Configured() bool { return f.configured }
func (f *fakeAdapter) Mandatory() bool  { return f.mandatory }

func (f *fakeAdapter) Search(ctx context.Context, q research.Query) ([]research.RawResult, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func raw(id, source, url, body string) research.RawResult {
	return research.RawResult{ID: id, Source: source, Title: "Title " + id, URL: url, Body: body}
}

func mustQuery(t *testing.T, topic string, depth research.Depth) research.Query {
	t.Helper()
	q, err := research.NewQuery(topic, depth)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	return q
}

func TestResearchHappyPath(t *testing.T) {
	t.Parallel()

	vault := &fakeAdapter{id: "vault", configured: true, mandatory: true, results: []research.RawResult{
		raw("v1", "vault", "", "Personal notes describing retrieval augmented generation pipelines."),
	}}
	web := &fakeAdapter{id: "websearch", configured: true, results: []research.RawResult{
		raw("w1", "websearch", "https://arxiv.org/abs/2301.00001", "Survey paper covering dense retrieval models and evaluation."),
		raw("w2", "websearch", "https://medium.com/post", "Blog walkthrough of building a simple retrieval demo app."),
	}}

	e := New(Options{Adapters: []research.Adapter{vault, web}})
	rpt, err := e.Research(context.Background(), mustQuery(t, "retrieval augmented generation", research.DepthMinimal))
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(rpt.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(rpt.Results))
	}
	// arxiv outranks the vault note, which outranks the blog.
	if rpt.Results[0].URL != "https://arxiv.org/abs/2301.00001" {
		t.Fatalf("top result = %s, want the arxiv paper", rpt.Results[0].URL)
	}
	if rpt.Insufficient != nil {
		t.Fatalf("unexpected insufficiency warning: %+v", rpt.Insufficient)
	}
	if len(rpt.Adapters) != 2 {
		t.Fatalf("adapter runs = %d, want 2", len(rpt.Adapters))
	}
	for _, run := range rpt.Adapters {
		if run.Status != research.StatusOK {
			t.Fatalf("adapter %s status = %s, want ok", run.Source, run.Status)
		}
	}
	if rpt.EstimatedCost != research.ProfileFor(research.DepthMinimal).EstimatedCost {
		t.Fatalf("estimated cost = %f", rpt.EstimatedCost)
	}
}

func TestResearchMandatoryGateAbortsBeforeFanout(t *testing.T) {
	t.Parallel()

	vault := &fakeAdapter{id: "vault", configured: false, mandatory: true}
	web := &fakeAdapter{id: "websearch", configured: true, results: []research.RawResult{
		raw("w1", "websearch", "https://example.com/a", "body"),
	}}

	e := New(Options{Adapters: []research.Adapter{vault, web}})
	_, err := e.Research(context.Background(), mustQuery(t, "anything", research.DepthMinimal))

	var cfgErr *research.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if cfgErr.Component != "vault" {
		t.Fatalf("component = %s, want vault", cfgErr.Component)
	}
	if web.calls.Load() != 0 {
		t.Fatalf("optional adapter was queried %d times before the gate", web.calls.Load())
	}
}

func TestResearchOptionalUnconfiguredSkipped(t *testing.T) {
	t.Parallel()

	vault := &fakeAdapter{id: "vault", configured: true, mandatory: true, results: []research.RawResult{
		raw("v1", "vault", "", "Stored note one about the subject matter."),
		raw("v2", "vault", "", "Another saved reference with different wording entirely."),
	}}
	youtube := &fakeAdapter{id: "youtube", configured: false}

	e := New(Options{Adapters: []research.Adapter{vault, youtube}})
	rpt, err := e.Research(context.Background(), mustQuery(t, "saved notes", research.DepthMinimal))
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if got := rpt.Adapters[1].Status; got != research.StatusSkipped {
		t.Fatalf("youtube status = %s, want %s", got, research.StatusSkipped)
	}
	if youtube.calls.Load() != 0 {
		t.Fatalf("skipped adapter was queried")
	}
	if len(rpt.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(rpt.Results))
	}
}

func TestResearchFailedSourceRecordedNotFatal(t *testing.T) {
	t.Parallel()

	vault := &fakeAdapter{id: "vault", configured: true, mandatory: true, results: []research.RawResult{
		raw("v1", "vault", "", "Vault note covering the question at hand."),
		raw("v2", "vault", "", "Second vault entry with unrelated phrasing altogether."),
		raw("v3", "vault", "", "Third stored snippet mentioning deployment caveats."),
	}}
	web := &fakeAdapter{id: "websearch", configured: true, err: &research.SourceError{
		Source: "websearch", Kind: research.SourceUnavailable, Err: errors.New("503 from upstream"),
	}}

	e := New(Options{Adapters: []research.Adapter{vault, web}})
	rpt, err := e.Research(context.Background(), mustQuery(t, "What is RAG?", research.DepthMinimal))
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(rpt.Results) != 3 {
		t.Fatalf("results = %d, want the 3 vault notes", len(rpt.Results))
	}
	if rpt.Adapters[0].Status != research.StatusOK {
		t.Fatalf("vault status = %s, want ok", rpt.Adapters[0].Status)
	}
	if rpt.Adapters[1].Status != research.StatusFailed {
		t.Fatalf("websearch status = %s, want failed", rpt.Adapters[1].Status)
	}
	if rpt.Adapters[1].Error == "" {
		t.Fatal("failed adapter should carry its error")
	}
	if rpt.Insufficient != nil {
		t.Fatalf("3 results meet the minimal floor, got warning %+v", rpt.Insufficient)
	}
}

func TestResearchDeadlineTruncatesGracefully(t *testing.T) {
	t.Parallel()

	fast := &fakeAdapter{id: "vault", configured: true, mandatory: true, results: []research.RawResult{
		raw("v1", "vault", "", "Quick note that arrives well before the deadline."),
	}}
	slow := &fakeAdapter{id: "websearch", configured: true, delay: 500 * time.Millisecond, results: []research.RawResult{
		raw("w1", "websearch", "https://example.com/late", "Late body"),
	}}

	e := New(Options{Adapters: []research.Adapter{fast, slow}, Budget: 80 * time.Millisecond})
	rpt, err := e.Research(context.Background(), mustQuery(t, "deadline handling", research.DepthMinimal))
	if err != nil {
		t.Fatalf("deadline must truncate, not fail: %v", err)
	}
	if rpt.Adapters[0].Status != research.StatusOK {
		t.Fatalf("fast adapter status = %s, want ok", rpt.Adapters[0].Status)
	}
	if rpt.Adapters[1].Status != research.StatusTimeout {
		t.Fatalf("slow adapter status = %s, want %s", rpt.Adapters[1].Status, research.StatusTimeout)
	}
	if len(rpt.Results) != 1 {
		t.Fatalf("results = %d, want only the fast adapter's", len(rpt.Results))
	}
	if rpt.Insufficient == nil {
		t.Fatal("one result is under the minimal floor, expected a warning")
	}
}

type deafAdapter struct {
	id    string
	sleep time.Duration
}

func (d *deafAdapter) ID() string       { return d.id }
func (d *deafAdapter) Configured() bool { return true }
func (d *deafAdapter) Mandatory() bool  { return false }

func (d *deafAdapter) Search(ctx context.Context, q research.Query) ([]research.RawResult, error) {
	// Deliberately ignores cancellation.
	time.Sleep(d.sleep)
	return []research.RawResult{raw("late", d.id, "https://example.com/late", "too late")}, nil
}

func TestResearchDoesNotAwaitDeafStraggler(t *testing.T) {
	t.Parallel()

	fast := &fakeAdapter{id: "vault", configured: true, mandatory: true, results: []research.RawResult{
		raw("v1", "vault", "", "Arrives instantly."),
		raw("v2", "vault", "", "Second instant note with other words."),
	}}
	deaf := &deafAdapter{id: "websearch", sleep: 2 * time.Second}

	e := New(Options{Adapters: []research.Adapter{fast, deaf}, Budget: 60 * time.Millisecond})
	start := time.Now()
	rpt, err := e.Research(context.Background(), mustQuery(t, "straggler handling", research.DepthMinimal))
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("run awaited the straggler for %s", waited)
	}
	if rpt.Adapters[1].Status != research.StatusTimeout {
		t.Fatalf("straggler status = %s, want %s", rpt.Adapters[1].Status, research.StatusTimeout)
	}
	if len(rpt.Results) != 2 {
		t.Fatalf("results = %d, want only the fast adapter's 2", len(rpt.Results))
	}
}

func TestResearchCallerCancelDiscardsPartials(t *testing.T) {
	t.Parallel()

	done := &fakeAdapter{id: "vault", configured: true, mandatory: true, results: []research.RawResult{
		raw("v1", "vault", "", "Completed before the cancellation arrives."),
	}}
	hung := &fakeAdapter{id: "websearch", configured: true, block: true}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	e := New(Options{Adapters: []research.Adapter{done, hung}})
	rpt, err := e.Research(ctx, mustQuery(t, "cancelled run", research.DepthMinimal))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rpt.ID != "" || len(rpt.Results) != 0 {
		t.Fatalf("cancellation must discard partial work, got %+v", rpt)
	}
}

type fakeExtractor struct {
	body string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, rawURL string) (string, error) {
	return f.body, f.err
}

func TestResearchUpgradesThinBodies(t *testing.T) {
	t.Parallel()

	longBody := ""
	for i := 0; i < 40; i++ {
		longBody += "Full article paragraph with substantially more detail than the snippet. "
	}
	web := &fakeAdapter{id: "websearch", configured: true, results: []research.RawResult{
		raw("w1", "websearch", "https://arxiv.org/abs/2106.01345", "Short teaser snippet."),
		raw("w2", "websearch", "https://example.com/blog-take", "A different thin blurb covering unrelated ground."),
	}}

	e := New(Options{
		Adapters:  []research.Adapter{web},
		Extractor: &fakeExtractor{body: longBody},
	})
	rpt, err := e.Research(context.Background(), mustQuery(t, "upgrade pass", research.DepthMinimal))
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(rpt.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(rpt.Results))
	}
	if rpt.Results[0].Body != longBody {
		t.Fatalf("high-authority thin body was not upgraded, got %d chars", len(rpt.Results[0].Body))
	}
	if rpt.Results[1].Body == longBody {
		t.Fatal("low-authority result must keep its snippet body")
	}
}

func TestResearchEmptyTopicRejected(t *testing.T) {
	t.Parallel()

	e := New(Options{})
	if _, err := e.Research(context.Background(), research.Query{Topic: "  ", Depth: research.DepthMinimal}); err == nil {
		t.Fatal("expected an error for an empty topic")
	}
}
