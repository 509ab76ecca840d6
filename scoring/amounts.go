package scoring

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const amountNum = `(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?`
const amountSuffix = `(?:\s*(k|thousand|million|mil|mm|m)\b)?`

// Amount patterns. Each has the number in group 1, decimals in group 2 and
// the magnitude suffix in group 3.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:\$|\busd\s?)\s?` + amountNum + amountSuffix),
	regexp.MustCompile(`(?i)\bnot[\s-]+to[\s-]+exceed[:\s]+` + amountNum + amountSuffix),
	regexp.MustCompile(`(?i)\b` + amountNum + amountSuffix + `\s*(?:dollars|usd)\b`),
}

type amountAt struct {
	pos, end int
	value    float64
}

// rawAmounts returns every monetary mention in text, in text order,
// without plausibility filtering. A mention matched by two patterns counts
// once.
func rawAmounts(text string) []float64 {
	var found []amountAt
	for _, re := range amountPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			v, ok := parseAmount(text, m)
			if ok {
				found = append(found, amountAt{pos: m[0], end: m[1], value: v})
			}
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	var out []float64
	end := -1
	for _, a := range found {
		if a.pos < end {
			continue
		}
		out = append(out, a.value)
		end = a.end
	}
	return out
}

func parseAmount(text string, m []int) (float64, bool) {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}
	num := strings.ReplaceAll(group(1), ",", "")
	if frac := group(2); frac != "" {
		num += "." + frac
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(group(3)) {
	case "k", "thousand":
		v *= 1_000
	case "m", "mm", "mil", "million":
		v *= 1_000_000
	}
	return math.Round(v*100) / 100, true
}

// ExtractAmounts returns the plausible monetary amounts in text, in text
// order. Amounts below MinAmount or above MaxAmount are dropped.
func (s *Scorer) ExtractAmounts(text string) []float64 {
	var out []float64
	for _, v := range rawAmounts(text) {
		if v >= s.cfg.MinAmount && v <= s.cfg.MaxAmount {
			out = append(out, v)
		}
	}
	return out
}

// MaxAmount returns the largest plausible amount in text, or 0.
func (s *Scorer) MaxAmount(text string) float64 {
	var best float64
	for _, v := range s.ExtractAmounts(text) {
		if v > best {
			best = v
		}
	}
	return best
}
