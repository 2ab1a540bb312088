package conflict

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/scout-sh/scout/internal/helpers"
)

// subjectSampleLimit caps the text handed to the entity extractor.
const subjectSampleLimit = 400

var (
	yearRe    = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	isoDateRe = regexp.MustCompile(`\b((?:19|20)\d{2})-(\d{2})-(\d{2})\b`)
	mdyRe     = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+((?:19|20)\d{2})\b`)
	dmyRe     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?,?\s+((?:19|20)\d{2})\b`)

	definitionRe = regexp.MustCompile(`(?i)^(?:an?\s+|the\s+)?(.{2,60}?)\s+(?:is|are|means|refers\s+to)\s+(.+)$`)
	opinionRe    = regexp.MustCompile(`(?i)\b(should|recommends?|recommended|prefers?|preferable|preferred|best|avoid|instead|better)\b`)
)

var monthNums = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// dateClaim is one date mention pulled out of a body, with the sentence it
// came from so the conflict can quote it.
type dateClaim struct {
	Year     int
	Month    int
	Day      int
	Raw      string
	Sentence string
}

type dateMention struct {
	year, month, day int
	raw              string
	index            int
}

type definition struct {
	Term     string
	Meaning  string
	Sentence string
}

// primaryDate picks the date a body is really about: the most frequently
// mentioned year wins, ties go to the earliest mention, and a full date
// beats a bare year for the same winner.
func primaryDate(text string) *dateClaim {
	mentions := extractDates(text)
	if len(mentions) == 0 {
		return nil
	}

	counts := map[int]int{}
	firstSeen := map[int]int{}
	for i, m := range mentions {
		counts[m.year]++
		if _, ok := firstSeen[m.year]; !ok {
			firstSeen[m.year] = i
		}
	}
	dominant := mentions[0].year
	for year, n := range counts {
		if n > counts[dominant] || (n == counts[dominant] && firstSeen[year] < firstSeen[dominant]) {
			dominant = year
		}
	}

	var rep *dateMention
	for i := range mentions {
		if mentions[i].year != dominant {
			continue
		}
		if mentions[i].month != 0 {
			rep = &mentions[i]
			break
		}
		if rep == nil {
			rep = &mentions[i]
		}
	}

	claim := &dateClaim{Year: rep.year, Month: rep.month, Day: rep.day, Raw: rep.raw}
	claim.Sentence = sentenceContaining(sentences(text), rep.raw)
	return claim
}

func extractDates(text string) []dateMention {
	var mentions []dateMention
	var spans [][2]int

	add := func(m dateMention, start, end int) {
		mentions = append(mentions, m)
		spans = append(spans, [2]int{start, end})
	}

	for _, loc := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		year, _ := strconv.Atoi(text[loc[2]:loc[3]])
		month, _ := strconv.Atoi(text[loc[4]:loc[5]])
		day, _ := strconv.Atoi(text[loc[6]:loc[7]])
		add(dateMention{year: year, month: month, day: day, raw: text[loc[0]:loc[1]], index: loc[0]}, loc[0], loc[1])
	}
	for _, loc := range mdyRe.FindAllStringSubmatchIndex(text, -1) {
		month := monthNums[strings.ToLower(text[loc[2]:loc[3]])[:3]]
		day, _ := strconv.Atoi(text[loc[4]:loc[5]])
		year, _ := strconv.Atoi(text[loc[6]:loc[7]])
		add(dateMention{year: year, month: month, day: day, raw: text[loc[0]:loc[1]], index: loc[0]}, loc[0], loc[1])
	}
	for _, loc := range dmyRe.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[loc[2]:loc[3]])
		month := monthNums[strings.ToLower(text[loc[4]:loc[5]])[:3]]
		year, _ := strconv.Atoi(text[loc[6]:loc[7]])
		add(dateMention{year: year, month: month, day: day, raw: text[loc[0]:loc[1]], index: loc[0]}, loc[0], loc[1])
	}
	for _, loc := range yearRe.FindAllStringIndex(text, -1) {
		if overlaps(spans, loc[0], loc[1]) {
			continue
		}
		year, _ := strconv.Atoi(text[loc[0]:loc[1]])
		add(dateMention{year: year, raw: text[loc[0]:loc[1]], index: loc[0]}, loc[0], loc[1])
	}

	sort.SliceStable(mentions, func(i, j int) bool { return mentions[i].index < mentions[j].index })
	return mentions
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// definitionSentence looks for a leading "X is ..." style sentence. Only the
// first few sentences are considered since definitions open a text.
func definitionSentence(text string) *definition {
	sents := sentences(text)
	if len(sents) > 3 {
		sents = sents[:3]
	}
	for _, s := range sents {
		m := definitionRe.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		term, meaning := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if len(meaning) < 20 || len(helpers.SignificantTokens(term)) == 0 {
			continue
		}
		return &definition{Term: term, Meaning: meaning, Sentence: s}
	}
	return nil
}

// opinionSentence returns the first sentence carrying a recommendation
// marker, or "" when the text states no preference.
func opinionSentence(text string) string {
	for _, s := range sentences(text) {
		if opinionRe.MatchString(s) {
			return s
		}
	}
	return ""
}

// subjectLabel names what a conflict is about. Entity extraction gets first
// shot; when it yields nothing the shared significant tokens of the claim
// sentences serve as the label.
func subjectLabel(texts []string) string {
	joined := strings.Join(texts, " ")
	if runes := []rune(joined); len(runes) > subjectSampleLimit {
		joined = string(runes[:subjectSampleLimit])
	}
	if doc, err := prose.NewDocument(joined); err == nil {
		if ent := dominantEntity(doc.Entities()); ent != "" {
			return ent
		}
	}
	shared := sharedTokens(texts)
	if len(shared) > 3 {
		shared = shared[:3]
	}
	return strings.Join(shared, " ")
}

func dominantEntity(ents []prose.Entity) string {
	if len(ents) == 0 {
		return ""
	}
	counts := map[string]int{}
	first := map[string]int{}
	for i, e := range ents {
		counts[e.Text]++
		if _, ok := first[e.Text]; !ok {
			first[e.Text] = i
		}
	}
	best := ents[0].Text
	for text, n := range counts {
		if n > counts[best] || (n == counts[best] && first[text] < first[best]) {
			best = text
		}
	}
	return best
}

// sharedTokens returns the significant tokens present in every text, in the
// order they appear in the first one.
func sharedTokens(texts []string) []string {
	if len(texts) == 0 {
		return nil
	}
	sets := make([]map[string]struct{}, len(texts))
	for i, t := range texts {
		sets[i] = tokenSet(helpers.SignificantTokens(t))
	}
	var shared []string
	for _, tok := range helpers.SignificantTokens(texts[0]) {
		inAll := true
		for _, set := range sets[1:] {
			if _, ok := set[tok]; !ok {
				inAll = false
				break
			}
		}
		if inAll && !contains(shared, tok) {
			shared = append(shared, tok)
		}
	}
	return shared
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// sentences splits text with the prose segmenter, falling back to a naive
// punctuation split if the pipeline fails.
func sentences(text string) []string {
	doc, err := prose.NewDocument(text, prose.WithTagging(false), prose.WithExtraction(false))
	if err == nil {
		sents := doc.Sentences()
		out := make([]string, 0, len(sents))
		for _, s := range sents {
			if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return naiveSentences(text)
}

func naiveSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			j := i + 1
			for j < len(text) && (text[j] == '.' || text[j] == '!' || text[j] == '?') {
				j++
			}
			if j >= len(text) || text[j] == ' ' || text[j] == '\n' || text[j] == '\t' {
				if seg := strings.TrimSpace(text[start:j]); seg != "" {
					out = append(out, seg)
				}
				start = j
				i = j - 1
			}
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// sentenceContaining finds the first sentence that quotes the raw mention,
// falling back to the first sentence.
func sentenceContaining(sents []string, raw string) string {
	for _, s := range sents {
		if strings.Contains(s, raw) {
			return s
		}
	}
	if len(sents) > 0 {
		return sents[0]
	}
	return ""
}
