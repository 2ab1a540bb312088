// Package hackernews searches Hacker News through the Algolia API and folds
// top comments into each story's body.
package hackernews

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/scout-sh/scout/internal/research"
)

const (
	defaultBaseURL     = "https://hn.algolia.com/api/v1"
	defaultMaxStories  = 10
	defaultMaxComments = 3
	itemURLFormat      = "https://news.ycombinator.com/item?id=%s"
)

// Config controls the Hacker News adapter. The API needs no credentials, so
// the adapter is configured whenever it is enabled.
type Config struct {
	Enabled     bool
	BaseURL     string
	MaxStories  int
	MaxComments int
	Timeout     time.Duration
}

type Adapter struct {
	cfg    Config
	client *research.HTTPClient
	logger *log.Logger
}

func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxStories <= 0 {
		cfg.MaxStories = defaultMaxStories
	}
	if cfg.MaxComments < 0 {
		cfg.MaxComments = defaultMaxComments
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: research.NewHTTPClient(cfg.Timeout, 2, 0),
		logger: log.New(log.Writer(), "[HN] ", log.LstdFlags),
	}
}

func (a *Adapter) ID() string       { return "hackernews" }
func (a *Adapter) Configured() bool { return a.cfg.Enabled }
func (a *Adapter) Mandatory() bool  { return false }

type searchResponse struct {
	Hits []storyHit `json:"hits"`
}

type storyHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	StoryText   string `json:"story_text"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
}

type itemResponse struct {
	Children []struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	} `json:"children"`
}

// Search runs the depth tier's query variations against Algolia, merging
// hits by story ID. Top comments are fetched per story and appended to the
// body so discussion context survives into scoring.
func (a *Adapter) Search(ctx context.Context, q research.Query) ([]research.RawResult, error) {
	profile := research.ProfileFor(q.Depth)
	variations := research.QueryVariations(q.Topic, profile.Queries)
	// Algolia matches broadly; a few variations cover the rest.
	if len(variations) > 3 {
		variations = variations[:3]
	}

	seen := make(map[string]struct{})
	var hits []storyHit
	for _, v := range variations {
		endpoint := fmt.Sprintf("%s/search?query=%s&tags=story&hitsPerPage=%d",
			a.cfg.BaseURL, url.QueryEscape(v), a.cfg.MaxStories)
		var resp searchResponse
		if err := a.client.GetJSON(ctx, endpoint, &resp); err != nil {
			if ctx.Err() != nil {
				return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceTimedOut, Err: ctx.Err()}
			}
			return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceUnavailable, Err: err}
		}
		for _, hit := range resp.Hits {
			if _, ok := seen[hit.ObjectID]; ok {
				continue
			}
			seen[hit.ObjectID] = struct{}{}
			hits = append(hits, hit)
		}
		if len(hits) >= profile.MaxPerSource {
			break
		}
	}
	if len(hits) > profile.MaxPerSource {
		hits = hits[:profile.MaxPerSource]
	}

	results := make([]research.RawResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, a.toResult(ctx, hit))
	}
	return results, nil
}

func (a *Adapter) toResult(ctx context.Context, hit storyHit) research.RawResult {
	link := hit.URL
	if link == "" {
		link = fmt.Sprintf(itemURLFormat, hit.ObjectID)
	}

	var body strings.Builder
	if text := htmlToText(hit.StoryText); text != "" {
		body.WriteString(text)
	}
	for _, comment := range a.topComments(ctx, hit.ObjectID) {
		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(comment)
	}

	var published time.Time
	if hit.CreatedAtI > 0 {
		published = time.Unix(hit.CreatedAtI, 0).UTC()
	}

	return research.RawResult{
		ID:          "hn-" + hit.ObjectID,
		Source:      a.ID(),
		Title:       hit.Title,
		URL:         link,
		Body:        body.String(),
		Author:      hit.Author,
		PublishedAt: published,
		Metadata: map[string]string{
			"points":   fmt.Sprintf("%d", hit.Points),
			"comments": fmt.Sprintf("%d", hit.NumComments),
		},
	}
}

// topComments fetches the story's discussion and returns the first few
// comments as plain text. Comment failures degrade to a story-only body.
func (a *Adapter) topComments(ctx context.Context, storyID string) []string {
	if a.cfg.MaxComments == 0 {
		return nil
	}
	var item itemResponse
	if err := a.client.GetJSON(ctx, a.cfg.BaseURL+"/items/"+storyID, &item); err != nil {
		a.logger.Printf("comments for %s unavailable: %v", storyID, err)
		return nil
	}
	var out []string
	for _, child := range item.Children {
		text := htmlToText(child.Text)
		if text == "" {
			continue
		}
		if child.Author != "" {
			text = child.Author + ": " + text
		}
		out = append(out, text)
		if len(out) >= a.cfg.MaxComments {
			break
		}
	}
	return out
}

// htmlToText strips Algolia's HTML comment markup down to readable text.
func htmlToText(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
