package research

import (
	"fmt"
	"strings"
)

// queryTemplates are expanded in order; a tier asking for n variations gets
// the first n. The plain topic always comes first.
var queryTemplates = []string{
	"%s",
	"what is %s",
	"%s tutorial",
	"%s explained",
	"%s best practices",
	"%s examples",
	"how does %s work",
	"%s overview",
	"%s guide",
	"%s introduction",
	"%s advantages and disadvantages",
	"%s vs alternatives",
	"%s architecture",
	"%s getting started",
	"%s common pitfalls",
}

// QueryVariations expands a topic into up to n distinct search phrasings.
func QueryVariations(topic string, n int) []string {
	topic = strings.TrimSpace(topic)
	if topic == "" || n <= 0 {
		return nil
	}
	if n > len(queryTemplates) {
		n = len(queryTemplates)
	}
	out := make([]string, 0, n)
	for _, tpl := range queryTemplates[:n] {
		out = append(out, fmt.Sprintf(tpl, topic))
	}
	return out
}
