package article

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// metaSelectors are tried in order; the first parseable value wins.
var metaSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[property="og:article:published_time"]`,
	`meta[itemprop="datePublished"]`,
	`meta[name="date"]`,
	`meta[name="publish-date"]`,
}

var metaTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
}

// publishedTime scrapes a publication timestamp out of the page's meta tags,
// falling back to the first <time datetime=...> element. Returns the zero
// time when nothing parses.
func publishedTime(html string) time.Time {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return time.Time{}
	}

	for _, sel := range metaSelectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if ts := parseMetaTime(content); !ts.IsZero() {
				return ts
			}
		}
	}
	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return parseMetaTime(datetime)
	}
	return time.Time{}
}

func parseMetaTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range metaTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
