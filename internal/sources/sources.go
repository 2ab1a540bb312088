// Package sources assembles the adapter roster from configuration.
package sources

import (
	"github.com/scout-sh/scout/config"
	"github.com/scout-sh/scout/internal/research"
	"github.com/scout-sh/scout/internal/sources/article"
	"github.com/scout-sh/scout/internal/sources/docstore"
	"github.com/scout-sh/scout/internal/sources/hackernews"
	"github.com/scout-sh/scout/internal/sources/vault"
	"github.com/scout-sh/scout/internal/sources/websearch"
	"github.com/scout-sh/scout/internal/sources/youtube"
)

// Build wires every adapter plus the shared article extractor. The slice
// order is the fan-out launch order, which also fixes result tie-breaking,
// so it stays stable: vault first, then the remote sources.
func Build(cfg config.SourcesConfig, embedder vault.Embedder) ([]research.Adapter, *article.Extractor) {
	articleCfg := article.Config{
		Enabled:   cfg.Article.Enabled,
		Fetcher:   article.FetcherType(cfg.Article.Fetcher),
		Timeout:   cfg.Article.Timeout,
		MaxChars:  cfg.Article.MaxChars,
		UserAgent: cfg.Article.UserAgent,
	}
	extractor := article.NewExtractor(articleCfg)

	adapters := []research.Adapter{
		vault.New(vault.Config{
			Path:     cfg.Vault.Path,
			MaxNotes: cfg.Vault.MaxNotes,
		}, embedder),
		websearch.New(websearch.Config{
			Provider:     websearch.Provider(cfg.WebSearch.Provider),
			BraveFreeKey: cfg.WebSearch.BraveFreeAPIKey,
			BraveProKey:  cfg.WebSearch.BraveProAPIKey,
			SerperKey:    cfg.WebSearch.SerperAPIKey,
			PerVariation: cfg.WebSearch.PerVariation,
			Timeout:      cfg.WebSearch.Timeout,
		}),
		hackernews.New(hackernews.Config{
			Enabled:     cfg.HackerNews.Enabled,
			MaxStories:  cfg.HackerNews.MaxStories,
			MaxComments: cfg.HackerNews.MaxComments,
			Timeout:     cfg.HackerNews.Timeout,
		}),
		article.NewWithExtractor(articleCfg, extractor),
		docstore.New(docstore.Config{
			Path:       cfg.Docstore.Path,
			Extensions: cfg.Docstore.Extensions,
			MaxFiles:   cfg.Docstore.MaxFiles,
		}),
		youtube.New(youtube.Config{
			APIKey:           cfg.YouTube.APIKey,
			MaxVideos:        cfg.YouTube.MaxVideos,
			FetchTranscripts: cfg.YouTube.FetchTranscripts,
			Timeout:          cfg.YouTube.Timeout,
		}),
	}
	return adapters, extractor
}
