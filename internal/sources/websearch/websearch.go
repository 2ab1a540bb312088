// Package websearch queries a general web search API. Brave is the default
// provider with Serper as the alternate; deeper tiers use the pro-tier Brave
// key when one is configured.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

type Provider string

const (
	ProviderBrave  Provider = "brave"
	ProviderSerper Provider = "serper"
)

const (
	braveBaseURL  = "https://api.search.brave.com"
	serperBaseURL = "https://google.serper.dev"

	defaultPerVariation = 10
)

// Config controls the web search adapter.
type Config struct {
	Provider Provider
	// BraveFreeKey serves every tier; BraveProKey takes over for deep and
	// extensive runs when present.
	BraveFreeKey string
	BraveProKey  string
	SerperKey    string
	// BaseURL overrides the provider endpoint, for tests.
	BaseURL      string
	PerVariation int
	Timeout      time.Duration
}

type Adapter struct {
	cfg    Config
	client *research.HTTPClient
	logger *log.Logger
}

func New(cfg Config) *Adapter {
	if cfg.Provider == "" {
		cfg.Provider = ProviderBrave
	}
	if cfg.PerVariation <= 0 {
		cfg.PerVariation = defaultPerVariation
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: research.NewHTTPClient(cfg.Timeout, 2, 0),
		logger: log.New(log.Writer(), "[WEBSEARCH] ", log.LstdFlags),
	}
}

func (a *Adapter) ID() string      { return "websearch" }
func (a *Adapter) Mandatory() bool { return false }

func (a *Adapter) Configured() bool {
	switch a.cfg.Provider {
	case ProviderBrave:
		return a.cfg.BraveFreeKey != "" || a.cfg.BraveProKey != ""
	case ProviderSerper:
		return a.cfg.SerperKey != ""
	default:
		return false
	}
}

type hit struct {
	Title   string
	URL     string
	Snippet string
}

// Search runs every query variation for the tier, deduplicates hits by URL
// identity within the adapter, and caps at the per-source limit.
func (a *Adapter) Search(ctx context.Context, q research.Query) ([]research.RawResult, error) {
	profile := research.ProfileFor(q.Depth)
	variations := research.QueryVariations(q.Topic, profile.Queries)

	seen := make(map[string]struct{})
	var results []research.RawResult
	for _, v := range variations {
		hits, err := a.search(ctx, v, q.Depth)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceTimedOut, Err: ctx.Err()}
			}
			kind := research.SourceUnavailable
			var statusErr *research.HTTPStatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
				kind = research.SourceRateLimited
				a.logger.Printf("%s rate limited after %d results", a.cfg.Provider, len(results))
			}
			return nil, &research.SourceError{Source: a.ID(), Kind: kind, Err: err}
		}
		for _, h := range hits {
			key, err := helpers.DedupKey(h.URL)
			if err != nil {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fp, err := helpers.URLFingerprint(h.URL)
			if err != nil {
				continue
			}
			results = append(results, research.RawResult{
				ID:     "web-" + fp[:12],
				Source: a.ID(),
				Title:  h.Title,
				URL:    h.URL,
				Body:   h.Snippet,
			})
			if len(results) >= profile.MaxPerSource {
				return results, nil
			}
		}
	}
	return results, nil
}

func (a *Adapter) search(ctx context.Context, query string, depth research.Depth) ([]hit, error) {
	switch a.cfg.Provider {
	case ProviderSerper:
		return a.searchSerper(ctx, query)
	default:
		return a.searchBrave(ctx, query, depth)
	}
}

func (a *Adapter) searchBrave(ctx context.Context, query string, depth research.Depth) ([]hit, error) {
	base := a.cfg.BaseURL
	if base == "" {
		base = braveBaseURL
	}
	endpoint := fmt.Sprintf("%s/res/v1/web/search?q=%s&count=%d",
		base, url.QueryEscape(query), a.cfg.PerVariation)

	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
				PageAge     string `json:"page_age"`
			} `json:"results"`
		} `json:"web"`
	}
	headers := map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": a.braveKey(depth),
	}
	if err := a.client.DoJSON(ctx, "GET", endpoint, headers, nil, &raw); err != nil {
		return nil, err
	}

	// Brave decorates descriptions with <strong> highlight markup and HTML
	// entities.
	out := make([]hit, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		out = append(out, hit{
			Title:   helpers.CleanSnippet(r.Title),
			URL:     r.URL,
			Snippet: helpers.CleanSnippet(r.Description),
		})
	}
	return out, nil
}

// braveKey picks the pro-tier subscription for the expensive tiers when it
// exists, and the free key otherwise.
func (a *Adapter) braveKey(depth research.Depth) string {
	if a.cfg.BraveProKey != "" && (depth == research.DepthDeep || depth == research.DepthExtensive) {
		return a.cfg.BraveProKey
	}
	if a.cfg.BraveFreeKey != "" {
		return a.cfg.BraveFreeKey
	}
	return a.cfg.BraveProKey
}

func (a *Adapter) searchSerper(ctx context.Context, query string) ([]hit, error) {
	base := a.cfg.BaseURL
	if base == "" {
		base = serperBaseURL
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	payload := map[string]any{"q": query, "num": a.cfg.PerVariation}
	headers := map[string]string{"X-API-KEY": a.cfg.SerperKey}
	if err := a.client.DoJSON(ctx, "POST", base+"/search", headers, payload, &raw); err != nil {
		return nil, err
	}

	out := make([]hit, 0, len(raw.Organic))
	for _, r := range raw.Organic {
		out = append(out, hit{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
