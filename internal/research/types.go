package research

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Depth selects how much effort a research run spends: how many query
// variations each adapter receives and how long the whole fan-out may take.
type Depth string

const (
	DepthMinimal   Depth = "minimal"
	DepthLight     Depth = "light"
	DepthModerate  Depth = "moderate"
	DepthDeep      Depth = "deep"
	DepthExtensive Depth = "extensive"
)

// ParseDepth validates a depth tier name.
func ParseDepth(s string) (Depth, error) {
	d := Depth(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := depthProfiles[d]; !ok {
		return "", fmt.Errorf("unknown depth %q (minimal|light|moderate|deep|extensive)", s)
	}
	return d, nil
}

// Query is a single research request. Immutable once issued.
type Query struct {
	Topic          string    `json:"topic"`
	Depth          Depth     `json:"depth"`
	TechnicalLevel string    `json:"technical_level,omitempty"`
	TargetWords    int       `json:"target_words,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
}

// NewQuery builds a validated query stamped with the issue time.
func NewQuery(topic string, depth Depth) (Query, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Query{}, fmt.Errorf("query topic must not be empty")
	}
	if _, ok := depthProfiles[depth]; !ok {
		return Query{}, fmt.Errorf("unknown depth %q", depth)
	}
	return Query{Topic: topic, Depth: depth, IssuedAt: time.Now()}, nil
}

// RawResult is one item returned by a source adapter. The adapter owns it
// until it is handed to the scheduler; the pipeline owns it afterwards.
type RawResult struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Title       string            `json:"title"`
	URL         string            `json:"url,omitempty"`
	Body        string            `json:"body,omitempty"`
	Author      string            `json:"author,omitempty"`
	PublishedAt time.Time         `json:"published_at"`
	Confidence  float64           `json:"confidence,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ScoredResult is a RawResult plus its authority score in [0,1].
type ScoredResult struct {
	RawResult
	Authority float64 `json:"authority"`
}

// CanonicalResult is the merged representative of one duplicate group: the
// highest authority score among members, the fullest body text, and every
// contributing member recorded for citation.
type CanonicalResult struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	DedupKey    string    `json:"-"`
	Source      string    `json:"source"`
	Authority   float64   `json:"authority"`
	Body        string    `json:"body,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Members     []string  `json:"members"`
	Sources     []string  `json:"sources"`
	Seq         int       `json:"-"`
}

// ConflictKind classifies what two results disagree about.
type ConflictKind string

const (
	ConflictFactual      ConflictKind = "factual"
	ConflictTemporal     ConflictKind = "temporal"
	ConflictDefinitional ConflictKind = "definitional"
	ConflictOpinion      ConflictKind = "opinion"
)

// Severity is fixed by conflict kind and never set independently.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// SeverityFor maps a conflict kind to its fixed severity.
func SeverityFor(kind ConflictKind) Severity {
	switch kind {
	case ConflictFactual:
		return SeverityHigh
	case ConflictTemporal, ConflictDefinitional:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Resolution records how a conflict ended.
type Resolution string

const (
	ResolvedWithWinner        Resolution = "resolved-with-winner"
	ResolvedWithBothPresented Resolution = "resolved-with-both-presented"
	UnresolvedFlagged         Resolution = "unresolved-flagged"
)

// Claim is one side of a conflict, tied back to its canonical result.
type Claim struct {
	ResultID string `json:"result_id"`
	Value    string `json:"value"`
	Excerpt  string `json:"excerpt,omitempty"`
}

// Conflict is a pair (or group) of canonical results whose claims about the
// same subject disagree. Created by detection, written once by resolution,
// never mutated afterwards. Unresolved conflicts stay in the report.
type Conflict struct {
	ID          string       `json:"id"`
	Kind        ConflictKind `json:"kind"`
	Severity    Severity     `json:"severity"`
	Subject     string       `json:"subject"`
	Description string       `json:"description"`
	Claims      []Claim      `json:"claims"`
	Resolution  Resolution   `json:"resolution"`
	WinnerID    string       `json:"winner_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// AdapterStatus is the per-adapter outcome of one fan-out.
type AdapterStatus string

const (
	StatusOK      AdapterStatus = "ok"
	StatusTimeout AdapterStatus = "timed-out"
	StatusFailed  AdapterStatus = "failed"
	StatusSkipped AdapterStatus = "skipped-optional"
)

// AdapterRun records how one adapter fared during a fan-out.
type AdapterRun struct {
	Source  string        `json:"source"`
	Status  AdapterStatus `json:"status"`
	Results int           `json:"results"`
	Elapsed time.Duration `json:"elapsed"`
	Error   string        `json:"error,omitempty"`
}

// Stats summarises a finished report.
type Stats struct {
	PerSource    map[string]int `json:"per_source"`
	Unique       int            `json:"unique"`
	AvgAuthority float64        `json:"avg_authority"`
}

// ResearchReport is the terminal aggregate of one run: canonical results
// ranked by authority then recency, detected conflicts, summary statistics
// and per-adapter statuses. Immutable once built.
type ResearchReport struct {
	ID            string               `json:"id"`
	Query         Query                `json:"query"`
	Results       []CanonicalResult    `json:"results"`
	Conflicts     []Conflict           `json:"conflicts,omitempty"`
	Stats         Stats                `json:"stats"`
	Adapters      []AdapterRun         `json:"adapters"`
	Elapsed       time.Duration        `json:"elapsed"`
	EstimatedCost float64              `json:"estimated_cost"`
	Insufficient  *InsufficientResults `json:"insufficient,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Adapter wraps one external information provider behind a uniform query
// interface. Search must respect ctx cancellation and return at most the
// per-source cap of the query's depth profile, preserving its own ordering.
type Adapter interface {
	ID() string
	Configured() bool
	Mandatory() bool
	Search(ctx context.Context, q Query) ([]RawResult, error)
}
