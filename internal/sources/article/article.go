// Package article turns web pages into clean text. It backs the engine's
// upgrade pass and doubles as a source adapter when the query topic is
// itself a URL.
package article

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultMaxChars  = 20000
	defaultUserAgent = "scout-research/1.0 (+https://github.com/scout-sh/scout)"
)

// Config controls fetching and extraction.
type Config struct {
	Enabled   bool
	Fetcher   FetcherType
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

// Page is one extracted article.
type Page struct {
	Title       string
	Byline      string
	Text        string
	SiteName    string
	PublishedAt time.Time
}

// Extractor fetches a URL and reduces it to readable article text.
type Extractor struct {
	fetcher  Fetcher
	maxChars int
	logger   *log.Logger
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	var fetcher Fetcher
	switch cfg.Fetcher {
	case FetcherChromedp:
		fetcher = newChromedpFetcher(cfg.UserAgent)
	default:
		fetcher = newHTTPFetcher(cfg.Timeout, cfg.UserAgent)
	}
	return &Extractor{
		fetcher:  fetcher,
		maxChars: cfg.MaxChars,
		logger:   log.New(log.Writer(), "[ARTICLE] ", log.LstdFlags),
	}
}

// NewExtractorWithFetcher swaps in a custom fetcher, for tests.
func NewExtractorWithFetcher(f Fetcher, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Extractor{
		fetcher:  f,
		maxChars: maxChars,
		logger:   log.New(log.Writer(), "[ARTICLE] ", log.LstdFlags),
	}
}

// ExtractPage fetches rawURL and runs readability extraction over it.
func (e *Extractor) ExtractPage(ctx context.Context, rawURL string) (Page, error) {
	html, err := e.fetcher.FetchHTML(ctx, rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("fetching %s: %w", rawURL, err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		parsed = &url.URL{}
	}
	art, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return Page{}, fmt.Errorf("extracting %s: %w", rawURL, err)
	}

	text := strings.TrimSpace(art.TextContent)
	if text == "" {
		return Page{}, fmt.Errorf("no readable content at %s", rawURL)
	}
	if len(text) > e.maxChars {
		text = text[:e.maxChars]
	}

	page := Page{
		Title:    strings.TrimSpace(art.Title),
		Byline:   strings.TrimSpace(art.Byline),
		Text:     text,
		SiteName: art.SiteName,
	}
	if art.PublishedTime != nil {
		page.PublishedAt = *art.PublishedTime
	} else {
		page.PublishedAt = publishedTime(html)
	}
	return page, nil
}

// Extract satisfies the engine's upgrade-pass contract.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (string, error) {
	page, err := e.ExtractPage(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return page.Text, nil
}

// Adapter answers queries whose topic is itself a URL by extracting that one
// page. For everything else it stays silent.
type Adapter struct {
	cfg       Config
	extractor *Extractor
	logger    *log.Logger
}

func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:       cfg,
		extractor: NewExtractor(cfg),
		logger:    log.New(log.Writer(), "[ARTICLE] ", log.LstdFlags),
	}
}

// NewWithExtractor wires a prebuilt extractor, for tests and for sharing the
// upgrade-pass extractor.
func NewWithExtractor(cfg Config, e *Extractor) *Adapter {
	return &Adapter{
		cfg:       cfg,
		extractor: e,
		logger:    log.New(log.Writer(), "[ARTICLE] ", log.LstdFlags),
	}
}

func (a *Adapter) ID() string       { return "article" }
func (a *Adapter) Configured() bool { return a.cfg.Enabled }
func (a *Adapter) Mandatory() bool  { return false }

// Search extracts the page when the topic is a URL and returns it as the
// single result. Non-URL topics yield no results.
func (a *Adapter) Search(ctx context.Context, q research.Query) ([]research.RawResult, error) {
	topic := strings.TrimSpace(q.Topic)
	if !isURLTopic(topic) {
		return nil, nil
	}

	page, err := a.extractor.ExtractPage(ctx, topic)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceTimedOut, Err: ctx.Err()}
		}
		return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceUnavailable, Err: err}
	}

	fp, err := helpers.URLFingerprint(topic)
	if err != nil {
		return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceUnavailable, Err: err}
	}
	title := page.Title
	if title == "" {
		title = topic
	}
	return []research.RawResult{{
		ID:          "article-" + fp[:12],
		Source:      a.ID(),
		Title:       title,
		URL:         topic,
		Body:        page.Text,
		Author:      page.Byline,
		PublishedAt: page.PublishedAt,
	}}, nil
}

func isURLTopic(topic string) bool {
	lower := strings.ToLower(topic)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	return !strings.ContainsAny(topic, " \t\n")
}
