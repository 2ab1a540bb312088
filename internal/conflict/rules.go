package conflict

import (
	"math"

	"github.com/scout-sh/scout/internal/research"
)

// resolutionRule is one step of the cascade. The first rule whose applies
// returns true settles the conflict; later rules are not consulted.
type resolutionRule struct {
	name    string
	applies func(c *research.Conflict, a, b research.CanonicalResult) bool
	apply   func(c *research.Conflict, a, b research.CanonicalResult)
}

var cascade = []resolutionRule{
	{
		name: "authority-gap",
		applies: func(_ *research.Conflict, a, b research.CanonicalResult) bool {
			return math.Abs(a.Authority-b.Authority) >= AuthorityMargin
		},
		apply: func(c *research.Conflict, a, b research.CanonicalResult) {
			winner := a
			if b.Authority > a.Authority {
				winner = b
			}
			c.Resolution = research.ResolvedWithWinner
			c.WinnerID = winner.ID
		},
	},
	{
		name: "recency",
		applies: func(_ *research.Conflict, a, b research.CanonicalResult) bool {
			return !a.PublishedAt.IsZero() && !b.PublishedAt.IsZero() && !a.PublishedAt.Equal(b.PublishedAt)
		},
		apply: func(c *research.Conflict, a, b research.CanonicalResult) {
			winner := a
			if b.PublishedAt.After(a.PublishedAt) {
				winner = b
			}
			c.Resolution = research.ResolvedWithWinner
			c.WinnerID = winner.ID
		},
	},
	{
		name: "opinion-both",
		applies: func(c *research.Conflict, _, _ research.CanonicalResult) bool {
			return c.Kind == research.ConflictOpinion
		},
		apply: func(c *research.Conflict, _, _ research.CanonicalResult) {
			c.Resolution = research.ResolvedWithBothPresented
		},
	},
	{
		name: "flag-unresolved",
		applies: func(_ *research.Conflict, _, _ research.CanonicalResult) bool {
			return true
		},
		apply: func(c *research.Conflict, _, _ research.CanonicalResult) {
			c.Resolution = research.UnresolvedFlagged
		},
	},
}

// Resolve runs the cascade over a detected conflict. A conflict is resolved
// at most once; calling Resolve on an already resolved conflict is a no-op.
// The losing claim keeps its excerpt and its result keeps its report slot.
func Resolve(c *research.Conflict, byID map[string]research.CanonicalResult) {
	if c.Resolution != "" || len(c.Claims) < 2 {
		return
	}
	a, okA := byID[c.Claims[0].ResultID]
	b, okB := byID[c.Claims[1].ResultID]
	if !okA || !okB {
		c.Resolution = research.UnresolvedFlagged
		return
	}
	for _, rule := range cascade {
		if rule.applies(c, a, b) {
			rule.apply(c, a, b)
			return
		}
	}
}
