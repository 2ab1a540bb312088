package article

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

// FetcherType selects how pages are retrieved.
type FetcherType string

const (
	// FetcherHTTP issues a plain GET. Fast, cheap, no JavaScript.
	FetcherHTTP FetcherType = "http"
	// FetcherChromedp renders the page in headless Chrome first. Needed for
	// pages that build their content client-side.
	FetcherChromedp FetcherType = "chromedp"
)

// Fetcher retrieves the raw HTML behind a URL.
type Fetcher interface {
	FetchHTML(ctx context.Context, rawURL string) (string, error)
}

type httpFetcher struct {
	client    *http.Client
	userAgent string
}

func newHTTPFetcher(timeout time.Duration, userAgent string) *httpFetcher {
	return &httpFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (f *httpFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return "", &research.HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	body, err := helpers.ReadAllAndClose(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", rawURL, err)
	}
	return string(body), nil
}

type chromedpFetcher struct {
	userAgent string
}

func newChromedpFetcher(userAgent string) *chromedpFetcher {
	return &chromedpFetcher{userAgent: userAgent}
}

func (f *chromedpFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
