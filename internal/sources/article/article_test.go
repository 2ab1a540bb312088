package article

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scout-sh/scout/internal/research"
)

func articlePage(published string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Consensus protocols in practice</title>")
	if published != "" {
		fmt.Fprintf(&b, `<meta property="article:published_time" content=%q>`, published)
	}
	b.WriteString("</head><body><article><h1>Consensus protocols in practice</h1>")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d discusses how replicated state machines agree on a log. "+
			"Leader election, quorum overlap and log matching each get a full treatment, "+
			"because operators keep tripping over the same failure modes in production clusters.</p>", i)
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

type stubFetcher struct {
	html  string
	err   error
	calls int
}

func (f *stubFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

func TestExtractPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.Contains(got, "scout-research") {
			t.Errorf("user agent = %q", got)
		}
		fmt.Fprint(w, articlePage("2024-05-10T08:30:00Z"))
	}))
	t.Cleanup(srv.Close)

	e := NewExtractor(Config{})
	page, err := e.ExtractPage(context.Background(), srv.URL+"/post")
	if err != nil {
		t.Fatalf("ExtractPage: %v", err)
	}
	if !strings.Contains(page.Title, "Consensus protocols") {
		t.Errorf("title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "replicated state machines") {
		t.Errorf("text missing article content: %q", page.Text[:min(len(page.Text), 120)])
	}
	if page.PublishedAt.Year() != 2024 || page.PublishedAt.Month() != time.May {
		t.Errorf("published = %v, want May 2024", page.PublishedAt)
	}
}

func TestExtractTruncatesAtMaxChars(t *testing.T) {
	t.Parallel()

	e := NewExtractorWithFetcher(&stubFetcher{html: articlePage("")}, 150)
	text, err := e.Extract(context.Background(), "https://example.com/long")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(text) != 150 {
		t.Errorf("len(text) = %d, want 150", len(text))
	}
}

func TestSearchExtractsURLTopic(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("2023-11-02T00:00:00Z"))
	}))
	t.Cleanup(srv.Close)

	a := New(Config{Enabled: true})
	q, err := research.NewQuery(srv.URL+"/deep-dive", research.DepthMinimal)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	results, err := a.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if !strings.HasPrefix(r.ID, "article-") {
		t.Errorf("id = %q", r.ID)
	}
	if r.Source != "article" || r.URL != srv.URL+"/deep-dive" {
		t.Errorf("unexpected result identity: %+v", r)
	}
	if !strings.Contains(r.Body, "quorum overlap") {
		t.Errorf("body missing extracted text")
	}
	if r.PublishedAt.IsZero() {
		t.Errorf("published time not recovered")
	}
}

func TestSearchIgnoresPlainTopics(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{html: articlePage("")}
	a := NewWithExtractor(Config{Enabled: true}, NewExtractorWithFetcher(fetcher, 0))
	q, err := research.NewQuery("vector databases", research.DepthMinimal)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	results, err := a.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("plain topic produced %d results", len(results))
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times for a non-URL topic", fetcher.calls)
	}
}

func TestSearchSurfacesFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	a := New(Config{Enabled: true})
	q, err := research.NewQuery(srv.URL+"/missing", research.DepthMinimal)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	_, err = a.Search(context.Background(), q)
	var srcErr *research.SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("error %T, want SourceError", err)
	}
	if srcErr.Kind != research.SourceUnavailable {
		t.Errorf("kind = %q", srcErr.Kind)
	}
}

func TestPublishedTimeFallbacks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		html string
		want time.Time
	}{
		{
			"meta name date",
			`<html><head><meta name="date" content="2023-07-04"></head><body></body></html>`,
			time.Date(2023, 7, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			"time element",
			`<html><body><time datetime="2022-01-15T12:00:00Z">Jan 15</time></body></html>`,
			time.Date(2022, 1, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			"nothing parseable",
			`<html><body><p>undated</p></body></html>`,
			time.Time{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := publishedTime(tc.html)
			if !got.Equal(tc.want) {
				t.Errorf("publishedTime = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsURLTopic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		topic string
		want  bool
	}{
		{"https://example.com/post", true},
		{"http://example.com", true},
		{"HTTPS://EXAMPLE.COM/POST", true},
		{"vector databases", false},
		{"https://example.com/post with trailing words", false},
		{"ftp://example.com/file", false},
	}
	for _, tc := range cases {
		if got := isURLTopic(tc.topic); got != tc.want {
			t.Errorf("isURLTopic(%q) = %v, want %v", tc.topic, got, tc.want)
		}
	}
}
