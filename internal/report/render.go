package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/scout-sh/scout/internal/helpers"
	"github.com/scout-sh/scout/internal/research"
)

// Markdown renders a report for terminal or file output. Rendering is pure:
// the same report always produces the same bytes.
func Markdown(r research.ResearchReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Research: %s\n\n", r.Query.Topic)
	fmt.Fprintf(&b, "Depth: %s | Unique sources: %d | Avg authority: %.2f | Elapsed: %s | Est. cost: $%.2f\n\n",
		r.Query.Depth, r.Stats.Unique, r.Stats.AvgAuthority, r.Elapsed.Round(time.Millisecond), r.EstimatedCost)

	if r.Insufficient != nil {
		fmt.Fprintf(&b, "> Warning: %s\n\n", r.Insufficient.Error())
	}

	rank := make(map[string]int, len(r.Results))
	for i, res := range r.Results {
		rank[res.ID] = i + 1
	}

	b.WriteString("## Sources\n\n")
	if len(r.Results) == 0 {
		b.WriteString("No sources survived filtering.\n\n")
	} else {
		for _, line := range helpers.FormatCitations(Citations(r)) {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(r.Conflicts) > 0 {
		b.WriteString("## Conflicts\n\n")
		for _, c := range r.Conflicts {
			fmt.Fprintf(&b, "- [%s/%s] %s%s\n", c.Kind, c.Severity, c.Description, resolutionNote(c, rank))
			for _, claim := range c.Claims {
				fmt.Fprintf(&b, "  - %s: %s\n", claimLabel(claim.ResultID, rank), claim.Excerpt)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Source runs\n\n")
	for _, run := range r.Adapters {
		fmt.Fprintf(&b, "- %s: %s (%d results, %s)", run.Source, run.Status, run.Results, run.Elapsed.Round(time.Millisecond))
		if run.Error != "" {
			fmt.Fprintf(&b, " [%s]", run.Error)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// Citations maps the ranked results to citation metadata, numbered by rank.
func Citations(r research.ResearchReport) []helpers.Citation {
	if len(r.Results) == 0 {
		return nil
	}
	out := make([]helpers.Citation, 0, len(r.Results))
	for i, res := range r.Results {
		out = append(out, helpers.Citation{
			SourceID:  fmt.Sprintf("S%d", i+1),
			Title:     res.Title,
			URL:       res.URL,
			Snippet:   res.Body,
			Authority: res.Authority,
			Published: res.PublishedAt,
			Accessed:  r.CreatedAt,
		})
	}
	return out
}

func resolutionNote(c research.Conflict, rank map[string]int) string {
	switch c.Resolution {
	case research.ResolvedWithWinner:
		return fmt.Sprintf(" (preferred: %s)", claimLabel(c.WinnerID, rank))
	case research.ResolvedWithBothPresented:
		return " (both views presented)"
	case research.UnresolvedFlagged:
		return " (unresolved)"
	default:
		return ""
	}
}

func claimLabel(resultID string, rank map[string]int) string {
	if n, ok := rank[resultID]; ok {
		return fmt.Sprintf("S%d", n)
	}
	return resultID
}
