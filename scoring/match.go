package scoring

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// termSet matches a configured keyword list as whole words, ignoring case.
type termSet struct {
	terms []string
	res   []*regexp.Regexp
}

func compileTerms(terms []string) termSet {
	ts := termSet{}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		ts.terms = append(ts.terms, t)
		ts.res = append(ts.res, regexp.MustCompile(termPattern(t)))
	}
	return ts
}

func termPattern(t string) string {
	p := regexp.QuoteMeta(t)
	p = strings.ReplaceAll(p, " ", `\s+`)
	first, _ := utf8.DecodeRuneInString(t)
	last, _ := utf8.DecodeLastRuneInString(t)
	if isWord(first) {
		p = `\b` + p
	}
	if isWord(last) {
		p += `\b`
	}
	return `(?i)` + p
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// matches returns the distinct terms present in text, in configured order.
func (ts termSet) matches(text string) []string {
	var found []string
	for i, re := range ts.res {
		if re.MatchString(text) {
			found = append(found, ts.terms[i])
		}
	}
	return found
}

func (ts termSet) len() int { return len(ts.terms) }
