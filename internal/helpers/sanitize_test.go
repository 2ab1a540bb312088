package helpers

import "testing"

func TestCleanSnippetStripsHighlightMarkup(t *testing.T) {
	input := `The <strong>Raft</strong> consensus algorithm<script>alert('x')</script>`
	got := CleanSnippet(input)
	want := "The Raft consensus algorithm"
	if got != want {
		t.Fatalf("CleanSnippet = %q, want %q", got, want)
	}
}

func TestCleanSnippetDecodesEntities(t *testing.T) {
	got := CleanSnippet("Kafka&#x27;s log &amp; offsets")
	want := "Kafka's log & offsets"
	if got != want {
		t.Fatalf("CleanSnippet = %q, want %q", got, want)
	}
}

func TestCleanSnippetEmpty(t *testing.T) {
	if got := CleanSnippet("   "); got != "" {
		t.Fatalf("CleanSnippet on whitespace = %q, want empty", got)
	}
}
