// Package conflict finds contradicting claims in a canonical result set,
// classifies them (factual, temporal, definitional, opinion) and applies an
// ordered resolution cascade. Losing claims are never discarded; resolution
// only marks the preferred one, and unresolved conflicts stay visible.
package conflict

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

// AuthorityMargin is the authority gap above which the higher-authority
// claim wins outright.
const AuthorityMargin = 0.15

// subjectOverlap is the significant-token containment at which two results
// are judged to describe the same subject.
const subjectOverlap = 0.5

// claimAnchorTokens is the minimum shared significant tokens two claim
// sentences need before their differing values count as a conflict.
const claimAnchorTokens = 2

// Detector groups results by inferred subject and compares their claims.
type Detector struct {
	logger *log.Logger
}

func NewDetector() *Detector {
	return &Detector{logger: log.New(log.Writer(), "[CONFLICT] ", log.LstdFlags)}
}

// Process detects conflicts and resolves each exactly once.
func (d *Detector) Process(results []research.CanonicalResult) []research.Conflict {
	conflicts := d.Detect(results)
	if len(conflicts) == 0 {
		return nil
	}
	byID := make(map[string]research.CanonicalResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	for i := range conflicts {
		Resolve(&conflicts[i], byID)
	}
	return conflicts
}

// Detect scans results pairwise within subject groups. Results arrive in
// canonical (arrival) order and groups are formed greedily in that order, so
// output is deterministic for a given input.
func (d *Detector) Detect(results []research.CanonicalResult) []research.Conflict {
	if len(results) < 2 {
		return nil
	}

	tokens := make([]map[string]struct{}, len(results))
	for i, r := range results {
		tokens[i] = tokenSet(helpers.SignificantTokens(r.Title + " " + r.Body))
	}

	var groups [][]int
	for i := range results {
		placed := false
		for gi := range groups {
			for _, j := range groups[gi] {
				if containment(tokens[i], tokens[j]) >= subjectOverlap {
					groups[gi] = append(groups[gi], i)
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
		if !placed {
			groups = append(groups, []int{i})
		}
	}

	var conflicts []research.Conflict
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		for x := 0; x < len(g); x++ {
			for y := x + 1; y < len(g); y++ {
				if c, ok := d.compare(results[g[x]], results[g[y]]); ok {
					conflicts = append(conflicts, c)
				}
			}
		}
	}
	if len(conflicts) > 0 {
		d.logger.Printf("detected %d conflict(s) across %d result(s)", len(conflicts), len(results))
	}
	return conflicts
}

// compare emits at most one conflict per pair, highest-precedence difference
// first: factual year, temporal date, definitional, opinion.
func (d *Detector) compare(a, b research.CanonicalResult) (research.Conflict, bool) {
	if c, ok := compareDates(a, b); ok {
		return c, true
	}
	if c, ok := compareDefinitions(a, b); ok {
		return c, true
	}
	if c, ok := compareOpinions(a, b); ok {
		return c, true
	}
	return research.Conflict{}, false
}

// compareDates covers both the factual and temporal kinds: differing years
// on the same fact are factual (high severity); same year but differing
// day/month is temporal (medium).
func compareDates(a, b research.CanonicalResult) (research.Conflict, bool) {
	da, db := primaryDate(a.Body), primaryDate(b.Body)
	if da == nil || db == nil {
		return research.Conflict{}, false
	}
	if !sharesAnchor(da.Sentence, db.Sentence) {
		return research.Conflict{}, false
	}

	if da.Year != db.Year {
		return newConflict(research.ConflictFactual, a, b,
			fmt.Sprintf("%d", da.Year), fmt.Sprintf("%d", db.Year),
			da.Sentence, db.Sentence,
			fmt.Sprintf("sources disagree on the year: %d vs %d", da.Year, db.Year)), true
	}
	if (da.Month != db.Month || da.Day != db.Day) && da.Month != 0 && db.Month != 0 {
		return newConflict(research.ConflictTemporal, a, b,
			da.Raw, db.Raw,
			da.Sentence, db.Sentence,
			fmt.Sprintf("sources disagree on the date: %s vs %s", da.Raw, db.Raw)), true
	}
	return research.Conflict{}, false
}

func compareDefinitions(a, b research.CanonicalResult) (research.Conflict, bool) {
	defA, defB := definitionSentence(a.Body), definitionSentence(b.Body)
	if defA == nil || defB == nil {
		return research.Conflict{}, false
	}
	if containment(tokenSet(helpers.SignificantTokens(defA.Term)), tokenSet(helpers.SignificantTokens(defB.Term))) < subjectOverlap {
		return research.Conflict{}, false
	}
	if containment(tokenSet(helpers.SignificantTokens(defA.Meaning)), tokenSet(helpers.SignificantTokens(defB.Meaning))) >= subjectOverlap {
		return research.Conflict{}, false
	}
	return newConflict(research.ConflictDefinitional, a, b,
		defA.Sentence, defB.Sentence,
		defA.Sentence, defB.Sentence,
		fmt.Sprintf("sources define %q differently", defA.Term)), true
}

func compareOpinions(a, b research.CanonicalResult) (research.Conflict, bool) {
	opA, opB := opinionSentence(a.Body), opinionSentence(b.Body)
	if opA == "" || opB == "" {
		return research.Conflict{}, false
	}
	if !sharesAnchor(opA, opB) {
		return research.Conflict{}, false
	}
	if containment(tokenSet(helpers.SignificantTokens(opA)), tokenSet(helpers.SignificantTokens(opB))) >= 0.8 {
		// Same recommendation phrased twice is agreement, not conflict.
		return research.Conflict{}, false
	}
	return newConflict(research.ConflictOpinion, a, b,
		opA, opB,
		opA, opB,
		"sources give differing recommendations"), true
}

func newConflict(kind research.ConflictKind, a, b research.CanonicalResult, valA, valB, exA, exB, desc string) research.Conflict {
	subject := subjectLabel([]string{exA, exB})
	if subject != "" {
		desc = subject + ": " + desc
	}
	return research.Conflict{
		ID:       uuid.NewString(),
		Kind:     kind,
		Severity: research.SeverityFor(kind),
		Subject:  subject,
		Claims: []research.Claim{
			{ResultID: a.ID, Value: valA, Excerpt: exA},
			{ResultID: b.ID, Value: valB, Excerpt: exB},
		},
		Description: desc,
		CreatedAt:   time.Now(),
	}
}

// sharesAnchor requires two claim sentences to talk about the same thing:
// at least claimAnchorTokens significant tokens in common.
func sharesAnchor(a, b string) bool {
	ta := tokenSet(helpers.SignificantTokens(a))
	tb := tokenSet(helpers.SignificantTokens(b))
	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
			if shared >= claimAnchorTokens {
				return true
			}
		}
	}
	return false
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// containment is |A∩B| / min(|A|,|B|), forgiving when one text is much
// longer than the other.
func containment(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
