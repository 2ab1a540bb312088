// Package docstore searches a local directory of plain documents. Unlike
// the vault it has no index; relevance is straight keyword overlap, which
// is plenty for the doc trees it is pointed at.
package docstore

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

const (
	defaultMaxFiles = 2000
	maxDocChars     = 5000

	titleWeight = 2.0
)

var defaultExtensions = []string{".md", ".txt", ".rst"}

// Config controls the docstore adapter.
type Config struct {
	// Path is the root of the document tree. Required.
	Path string
	// Extensions overrides the file types picked up by the walk.
	Extensions []string
	MaxFiles   int
}

type document struct {
	Path       string
	Title      string
	Body       string
	ModifiedAt time.Time
}

type Adapter struct {
	cfg        Config
	extensions map[string]struct{}
	logger     *log.Logger

	mu     sync.Mutex
	docs   []document
	loaded bool
}

func New(cfg Config) *Adapter {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = defaultMaxFiles
	}
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	extSet := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = struct{}{}
	}
	return &Adapter{
		cfg:        cfg,
		extensions: extSet,
		logger:     log.New(log.Writer(), "[DOCSTORE] ", log.LstdFlags),
	}
}

func (a *Adapter) ID() string      { return "docstore" }
func (a *Adapter) Mandatory() bool { return false }

func (a *Adapter) Configured() bool {
	if a.cfg.Path == "" {
		return false
	}
	info, err := os.Stat(a.cfg.Path)
	return err == nil && info.IsDir()
}

// Search scores every document against the topic's significant tokens and
// returns the best matches, capped at the tier's vault count.
func (a *Adapter) Search(ctx context.Context, q research.Query) ([]research.RawResult, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceTimedOut, Err: ctx.Err()}
		}
		return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceUnavailable, Err: err}
	}

	tokens := helpers.SignificantTokens(q.Topic)
	if len(tokens) == 0 {
		return nil, nil
	}

	type scoredDoc struct {
		doc   document
		score float64
	}
	a.mu.Lock()
	var matches []scoredDoc
	for _, d := range a.docs {
		if s := relevance(tokens, d); s > 0 {
			matches = append(matches, scoredDoc{doc: d, score: s})
		}
	}
	a.mu.Unlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].doc.Path < matches[j].doc.Path
	})
	k := research.ProfileFor(q.Depth).VaultResults
	if len(matches) > k {
		matches = matches[:k]
	}

	results := make([]research.RawResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, research.RawResult{
			ID:          "docstore-" + m.doc.Path,
			Source:      a.ID(),
			Title:       m.doc.Title,
			Body:        m.doc.Body,
			PublishedAt: m.doc.ModifiedAt,
			Confidence:  m.score,
			Metadata:    map[string]string{"path": m.doc.Path},
		})
	}
	return results, nil
}

// relevance counts how many topic tokens appear in the document, weighting
// title hits and adding the body's term frequency so denser coverage ranks
// higher between documents matching the same tokens.
func relevance(topicTokens []string, d document) float64 {
	titleSet := make(map[string]struct{})
	for _, tok := range helpers.SignificantTokens(d.Title) {
		titleSet[tok] = struct{}{}
	}
	tf := helpers.TermFreq(d.Body)

	var score float64
	for _, tok := range topicTokens {
		if _, ok := titleSet[tok]; ok {
			score += titleWeight
		}
		if f := tf[tok]; f > 0 {
			score += 1 + f
		}
	}
	return score
}

func (a *Adapter) ensureLoaded(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return nil
	}

	var docs []document
	err := filepath.WalkDir(a.cfg.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != a.cfg.Path {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if _, ok := a.extensions[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}
		if len(docs) >= a.cfg.MaxFiles {
			return filepath.SkipAll
		}

		doc, err := a.loadDocument(path)
		if err != nil {
			a.logger.Printf("skipping unreadable document %s: %v", path, err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	a.docs = docs
	a.loaded = true
	a.logger.Printf("loaded %d documents from %s", len(docs), a.cfg.Path)
	return nil
}

func (a *Adapter) loadDocument(path string) (document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return document{}, err
	}
	rel, err := filepath.Rel(a.cfg.Path, path)
	if err != nil {
		rel = path
	}

	body := string(raw)
	if len(body) > maxDocChars {
		body = body[:maxDocChars]
	}
	return document{
		Path:       filepath.ToSlash(rel),
		Title:      docTitle(body, path),
		Body:       body,
		ModifiedAt: info.ModTime(),
	}, nil
}

// docTitle takes the first markdown heading, then the first short line, then
// the file name.
func docTitle(body, path string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
		if len(line) <= 120 {
			return line
		}
		break
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
