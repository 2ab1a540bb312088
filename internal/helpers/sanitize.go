package helpers

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	snippetPolicyOnce sync.Once
	snippetPolicy     *bluemonday.Policy
)

// snippetHTMLPolicy is a singleton policy that strips every HTML element and
// attribute. Search APIs decorate snippets with highlight markup that has no
// place in result bodies.
func snippetHTMLPolicy() *bluemonday.Policy {
	snippetPolicyOnce.Do(func() {
		snippetPolicy = bluemonday.StrictPolicy()
	})
	return snippetPolicy
}

// CleanSnippet reduces an HTML-decorated snippet to plain text: tags stripped,
// entities decoded, surrounding whitespace trimmed.
func CleanSnippet(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(snippetHTMLPolicy().Sanitize(s)))
}
