package listing

import (
	"regexp"
	"strings"
	"time"
)

// Label words that open a posted or due segment. Longer alternatives come
// first so "responses due" is not read as a bare "due".
var labelRe = regexp.MustCompile(`(?i)\b(date posted|posted on|posted|published|issued|issue date|release date|released|opens|opened|open date|responses? due|submissions? due|proposals? due|due date|due|closing date|closing|closes|close date|deadline)\b\s*(?:date)?\s*(?:on)?\s*[:\-]?`)

var dueLabels = []string{"due", "clos", "deadline"}

var dateRe = regexp.MustCompile(`(?i)\b(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}/\d{1,2}/\d{4}|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?,?\s+\d{4})\b`)

var dateLayouts = []string{
	"2006-1-2",
	"1/2/2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

type segment struct {
	due  bool
	text string
}

// ParseDates splits compound date text ("Posted: 10/01/2024 Due: 10/15/2024")
// into labeled segments and parses the first date of each. Either result
// may be nil. Unlabeled dates are ignored.
func ParseDates(text string) (posted, due *time.Time) {
	for _, seg := range segments(text) {
		d := FirstDate(seg.text)
		if d == nil {
			continue
		}
		if seg.due && due == nil {
			due = d
		}
		if !seg.due && posted == nil {
			posted = d
		}
	}
	return posted, due
}

func segments(text string) []segment {
	locs := labelRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]segment, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		label := strings.ToLower(text[loc[2]:loc[3]])
		out = append(out, segment{due: isDueLabel(label), text: text[loc[1]:end]})
	}
	return out
}

func isDueLabel(label string) bool {
	for _, d := range dueLabels {
		if strings.Contains(label, d) {
			return true
		}
	}
	return false
}

// FirstDate parses the first recognisable date in s, as UTC midnight.
func FirstDate(s string) *time.Time {
	for _, m := range dateRe.FindAllString(s, -1) {
		if t, ok := parseDate(m); ok {
			return &t
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.NewReplacer(",", "", ".", "").Replace(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	if fields := strings.Fields(s); len(fields) == 3 {
		// "Sept" is not a Go month abbreviation.
		for i, f := range fields {
			if strings.EqualFold(f, "sept") {
				fields[i] = "Sep"
			}
		}
		s = strings.Join(fields, " ")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
