package scoring

import (
	"regexp"
	"sort"
	"strings"
)

var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "FL": "Florida", "GA": "Georgia",
	"HI": "Hawaii", "ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi", "MO": "Missouri",
	"MT": "Montana", "NE": "Nebraska", "NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey",
	"NM": "New Mexico", "NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"DC": "District of Columbia",
}

var (
	stateNameRe   *regexp.Regexp
	stateAbbrevRe *regexp.Regexp
	stateByName   = make(map[string]string, len(usStates))
)

func init() {
	names := make([]string, 0, len(usStates))
	abbrevs := make([]string, 0, len(usStates))
	for code, name := range usStates {
		names = append(names, regexp.QuoteMeta(name))
		abbrevs = append(abbrevs, code)
		stateByName[strings.ToLower(name)] = code
	}
	// Longest first so "West Virginia" wins over "Virginia".
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	sort.Strings(abbrevs)
	stateNameRe = regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
	stateAbbrevRe = regexp.MustCompile(`,\s*(` + strings.Join(abbrevs, "|") + `)\b`)
}

// ExtractState returns the two-letter code of the first US state named in
// text, by full name or by a ", XX" abbreviation, or "".
func ExtractState(text string) string {
	best, code := -1, ""
	if m := stateNameRe.FindStringSubmatchIndex(text); m != nil {
		best, code = m[0], stateByName[strings.ToLower(text[m[2]:m[3]])]
	}
	if m := stateAbbrevRe.FindStringSubmatchIndex(text); m != nil && (best < 0 || m[2] < best) {
		code = text[m[2]:m[3]]
	}
	return code
}
