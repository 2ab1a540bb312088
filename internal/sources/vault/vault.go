// Package vault searches the local markdown note tree. It is the one
// mandatory source: a run refuses to start without a usable vault path.
// Notes are indexed into an in-memory bleve index on first use; when an
// embedding provider is wired, BM25 and vector rankings are fused by
// reciprocal rank.
package vault

import (
	"context"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"

	"github.com/scout-sh/scout/internal/research"
)

const (
	rrfK         = 60
	maxNoteChars = 5000

	defaultMaxNotes = 2000
)

var noteExtensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
}

// Embedder produces one vector per input text. Optional.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Config controls the vault adapter.
type Config struct {
	// Path is the root of the note tree. Required.
	Path string
	// MaxNotes bounds how many files the walk will index.
	MaxNotes int
}

type note struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ModifiedAt time.Time
}

type noteVec struct {
	id  string
	vec []float32
}

type searchHit struct {
	id    string
	score float64
	rank  int
}

type Adapter struct {
	cfg      Config
	embedder Embedder
	logger   *log.Logger

	mu      sync.Mutex
	index   bleve.Index
	notes   map[string]note
	vectors []noteVec
	indexed bool
}

// New builds the vault adapter. embedder may be nil, which disables the
// vector half of the hybrid search.
func New(cfg Config, embedder Embedder) *Adapter {
	if cfg.MaxNotes <= 0 {
		cfg.MaxNotes = defaultMaxNotes
	}
	return &Adapter{
		cfg:      cfg,
		embedder: embedder,
		logger:   log.New(log.Writer(), "[VAULT] ", log.LstdFlags),
	}
}

func (a *Adapter) ID() string      { return "vault" }
func (a *Adapter) Mandatory() bool { return true }

// Configured reports whether the vault path exists and is a directory.
func (a *Adapter) Configured() bool {
	if a.cfg.Path == "" {
		return false
	}
	info, err := os.Stat(a.cfg.Path)
	return err == nil && info.IsDir()
}

// Search indexes the tree on first use, runs the hybrid search for the
// topic and returns at most the tier's vault result count.
func (a *Adapter) Search(ctx context.Context, q research.Query) ([]research.RawResult, error) {
	if err := a.ensureIndex(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceTimedOut, Err: ctx.Err()}
		}
		return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceUnavailable, Err: err}
	}

	k := research.ProfileFor(q.Depth).VaultResults

	a.mu.Lock()
	defer a.mu.Unlock()

	hits, err := a.bm25Search(q.Topic, k)
	if err != nil {
		return nil, &research.SourceError{Source: a.ID(), Kind: research.SourceUnavailable, Err: err}
	}
	if a.embedder != nil && len(a.vectors) > 0 {
		if vecHits := a.vectorHits(ctx, q.Topic, k); vecHits != nil {
			hits = fuseRRF(hits, vecHits, k)
		}
	}

	results := make([]research.RawResult, 0, len(hits))
	for _, h := range hits {
		n, ok := a.notes[h.id]
		if !ok {
			continue
		}
		results = append(results, research.RawResult{
			ID:          "vault-" + h.id,
			Source:      a.ID(),
			Title:       n.Title,
			Body:        n.Body,
			PublishedAt: n.ModifiedAt,
			Confidence:  h.score,
			Metadata:    map[string]string{"path": h.id},
		})
	}
	return results, nil
}

// ensureIndex walks the tree once and builds the bleve index plus, when an
// embedder is wired, one vector per note. Subsequent calls are no-ops.
func (a *Adapter) ensureIndex(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.indexed {
		return nil
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return err
	}
	notes := make(map[string]note)

	err = filepath.WalkDir(a.cfg.Path, func(path string, d fs.DirEntry, err error) error {
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
		if _, ok := noteExtensions[strings.ToLower(filepath.Ext(name))]; !ok {
			return nil
		}
		if len(notes) >= a.cfg.MaxNotes {
			return filepath.SkipAll
		}

		n, err := a.loadNote(path)
		if err != nil {
			a.logger.Printf("skipping unreadable note %s: %v", path, err)
			return nil
		}
		notes[n.ID] = n
		return index.Index(n.ID, n)
	})
	if err != nil {
		return err
	}

	a.index = index
	a.notes = notes
	a.indexed = true
	a.embedNotes(ctx)
	a.logger.Printf("indexed %d notes from %s", len(notes), a.cfg.Path)
	return nil
}

func (a *Adapter) loadNote(path string) (note, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return note{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return note{}, err
	}
	rel, err := filepath.Rel(a.cfg.Path, path)
	if err != nil {
		rel = path
	}

	body := string(raw)
	if len(body) > maxNoteChars {
		body = body[:maxNoteChars]
	}
	return note{
		ID:         filepath.ToSlash(rel),
		Title:      noteTitle(body, path),
		Body:       body,
		ModifiedAt: info.ModTime(),
	}, nil
}

// noteTitle prefers the first markdown heading, then the file name.
func noteTitle(body, path string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// embedNotes is best effort: a failing provider downgrades the vault to
// BM25-only search.
func (a *Adapter) embedNotes(ctx context.Context) {
	if a.embedder == nil || len(a.notes) == 0 {
		return
	}
	ids := make([]string, 0, len(a.notes))
	for id := range a.notes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	texts := make([]string, 0, len(ids))
	for _, id := range ids {
		n := a.notes[id]
		texts = append(texts, n.Title+"\n"+n.Body)
	}

	vecs, err := a.embedder.CreateEmbedding(ctx, texts)
	if err != nil || len(vecs) != len(ids) {
		a.logger.Printf("note embedding unavailable, BM25 only: %v", err)
		return
	}
	a.vectors = make([]noteVec, 0, len(ids))
	for i, id := range ids {
		a.vectors = append(a.vectors, noteVec{id: id, vec: vecs[i]})
	}
}

func (a *Adapter) bm25Search(topic string, k int) ([]searchHit, error) {
	query := bleve.NewMatchQuery(topic)
	req := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := a.index.Search(req)
	if err != nil {
		return nil, err
	}
	var out []searchHit
	for i, hit := range res.Hits {
		out = append(out, searchHit{id: hit.ID, score: hit.Score, rank: i + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (a *Adapter) vectorHits(ctx context.Context, topic string, k int) []searchHit {
	qvecs, err := a.embedder.CreateEmbedding(ctx, []string{topic})
	if err != nil || len(qvecs) != 1 {
		a.logger.Printf("query embedding unavailable, BM25 only: %v", err)
		return nil
	}
	qvec := qvecs[0]

	scored := make([]searchHit, 0, len(a.vectors))
	for _, v := range a.vectors {
		scored = append(scored, searchHit{id: v.id, score: cosine(qvec, v.vec)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id < scored[j].id
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	for i := range scored {
		scored[i].rank = i + 1
	}
	return scored
}

// fuseRRF merges two rankings by reciprocal rank. Ties break on note ID so
// the fused order is stable across runs.
func fuseRRF(a, b []searchHit, k int) []searchHit {
	fused := map[string]*searchHit{}
	add := func(list []searchHit) {
		for _, h := range list {
			x, ok := fused[h.id]
			if !ok {
				fused[h.id] = &searchHit{id: h.id, score: 1.0 / float64(rrfK+h.rank)}
				continue
			}
			x.score += 1.0 / float64(rrfK+h.rank)
		}
	}
	add(a)
	add(b)

	out := make([]searchHit, 0, len(fused))
	for _, h := range fused {
		out = append(out, *h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	if len(out) > k {
		out = out[:k]
	}
	for i := range out {
		out[i].rank = i + 1
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
