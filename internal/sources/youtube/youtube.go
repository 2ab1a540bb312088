// Package youtube searches the YouTube Data API v3. Video descriptions make
// up the body; when transcript fetching is on, the public timedtext endpoint
// contributes an English transcript best-effort.
package youtube

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

const (
	defaultBaseURL       = "https://www.googleapis.com/youtube/v3"
	defaultTranscriptURL = "https://video.google.com/timedtext"
	watchURLFormat       = "https://www.youtube.com/watch?v=%s"

	defaultMaxVideos   = 5
	maxSearchQueries   = 2
	maxTranscriptChars = 4000
)

// Config controls the youtube adapter.
type Config struct {
	APIKey string
	// BaseURL and TranscriptBaseURL override the endpoints, for tests.
	BaseURL           string
	TranscriptBaseURL string
	MaxVideos         int
	FetchTranscripts  bool
	Timeout           time.Duration
}

type Adapter struct {
	cfg        Config
	client     *research.HTTPClient
	transcript *http.Client
	logger     *log.Logger
}

func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TranscriptBaseURL == "" {
		cfg.TranscriptBaseURL = defaultTranscriptURL
	}
	if cfg.MaxVideos <= 0 {
		cfg.MaxVideos = defaultMaxVideos
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Adapter{
		cfg:        cfg,
		client:     research.NewHTTPClient(cfg.Timeout, 2, 0),
		transcript: &http.Client{Timeout: cfg.Timeout},
		logger:     log.New(log.Writer(), "[YOUTUBE] ", log.LstdFlags),
	}
}

func (a *Adapter) ID() string       { return "youtube" }
func (a *Adapter) Configured() bool { return a.cfg.APIKey != "" }
func (a *Adapter) Mandatory() bool  { return false }

type video struct {
	ID          string
	Title       string
	Description string
	Channel     string
	PublishedAt time.Time
}

// Search runs up to two query variations against the Data API; quota there
// is too precious to spend the full variation budget.
func (a *Adapter) Search(ctx context.Context, q research.Query) ([]research.RawResult, error) {
	profile := research.ProfileFor(q.Depth)
	variations := research.QueryVariations(q.Topic, profile.Queries)
	if len(variations) > maxSearchQueries {
		variations = variations[:maxSearchQueries]
	}

	seen := make(map[string]struct{})
	var results []research.RawResult
	for _, v := range variations {
		videos, err := a.searchVideos(ctx, v)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceTimedOut, Err: ctx.Err()}
			}
			kind := research.SourceUnavailable
			var statusErr *research.HTTPStatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
				kind = research.SourceRateLimited
			}
			return nil, &research.SourceError{Source: a.ID(), Kind: kind, Err: err}
		}
		for _, vid := range videos {
			if _, ok := seen[vid.ID]; ok {
				continue
			}
			seen[vid.ID] = struct{}{}
			results = append(results, a.toResult(ctx, vid))
			if len(results) >= profile.MaxPerSource {
				return results, nil
			}
		}
	}
	return results, nil
}

func (a *Adapter) searchVideos(ctx context.Context, query string) ([]video, error) {
	endpoint := fmt.Sprintf("%s/search?part=snippet&type=video&maxResults=%d&q=%s&key=%s",
		a.cfg.BaseURL, a.cfg.MaxVideos, url.QueryEscape(query), url.QueryEscape(a.cfg.APIKey))

	var raw struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				Description  string `json:"description"`
				ChannelTitle string `json:"channelTitle"`
				PublishedAt  string `json:"publishedAt"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := a.client.GetJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	videos := make([]video, 0, len(raw.Items))
	for _, item := range raw.Items {
		if item.ID.VideoID == "" {
			continue
		}
		// The Data API returns titles and descriptions entity-encoded.
		v := video{
			ID:          item.ID.VideoID,
			Title:       helpers.CleanSnippet(item.Snippet.Title),
			Description: helpers.CleanSnippet(item.Snippet.Description),
			Channel:     item.Snippet.ChannelTitle,
		}
		if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			v.PublishedAt = ts
		}
		videos = append(videos, v)
	}
	return videos, nil
}

func (a *Adapter) toResult(ctx context.Context, v video) research.RawResult {
	body := strings.TrimSpace(v.Description)
	if a.cfg.FetchTranscripts {
		if transcript := a.fetchTranscript(ctx, v.ID); transcript != "" {
			if body != "" {
				body += "\n\n"
			}
			body += "Transcript: " + transcript
		}
	}
	return research.RawResult{
		ID:          "yt-" + v.ID,
		Source:      a.ID(),
		Title:       v.Title,
		URL:         fmt.Sprintf(watchURLFormat, v.ID),
		Body:        body,
		Author:      v.Channel,
		PublishedAt: v.PublishedAt,
		Metadata:    map[string]string{"channel": v.Channel},
	}
}

// fetchTranscript pulls the public English caption track. Plenty of videos
// have none; every failure here degrades to description-only.
func (a *Adapter) fetchTranscript(ctx context.Context, videoID string) string {
	endpoint := fmt.Sprintf("%s?lang=en&v=%s", a.cfg.TranscriptBaseURL, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	resp, err := a.transcript.Do(req)
	if err != nil {
		a.logger.Printf("transcript fetch failed for %s: %v", videoID, err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var doc struct {
		Texts []struct {
			Value string `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		a.logger.Printf("transcript parse failed for %s: %v", videoID, err)
		return ""
	}

	parts := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		// timedtext double-escapes entities inside the XML character data.
		if s := strings.TrimSpace(html.UnescapeString(t.Value)); s != "" {
			parts = append(parts, s)
		}
	}
	transcript := strings.Join(parts, " ")
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}
	return transcript
}
