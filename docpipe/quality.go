// CLAUDE:SUMMARY PDF text-yield metrics (chars per page, printable and word-like ratios, figure references) and the warnings they raise.
package docpipe

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// pdfQuality describes how much usable text a PDF gave up.
type pdfQuality struct {
	pages         int
	charsPerPage  float64
	printable     float64
	wordlike      float64
	hasImages     bool
	figureMention int
}

func measurePDF(text string, pages int, hasImages bool) pdfQuality {
	q := pdfQuality{
		pages:         pages,
		printable:     printableRatio(text),
		wordlike:      wordlikeRatio(text),
		hasImages:     hasImages,
		figureMention: visualRefs(text),
	}
	if pages > 0 {
		q.charsPerPage = float64(len([]rune(text))) / float64(pages)
	}
	return q
}

// scanned reports a PDF whose pages are mostly images, or whose text layer
// is unreadable.
func (q pdfQuality) scanned(c QualityConfig) bool {
	if q.printable < c.MinPrintableRatio {
		return true
	}
	return q.hasImages && q.charsPerPage < c.MinCharsPerPage
}

func (q pdfQuality) warnings(c QualityConfig) []string {
	var out []string
	if q.scanned(c) {
		out = append(out, fmt.Sprintf("pdf: low text yield (%.0f chars/page), scanned pages may need OCR", q.charsPerPage))
	}
	if q.hasImages && q.figureMention > 0 {
		out = append(out, fmt.Sprintf("pdf: %d figure/table references not captured as text", q.figureMention))
	}
	return out
}

// printableRatio is the share of runes that are printable text. Private-use
// runes, U+FFFD and control characters other than whitespace count against it.
func printableRatio(text string) float64 {
	var total, good int
	for _, r := range text {
		total++
		switch {
		case r >= 0xE000 && r <= 0xF8FF, r == unicode.ReplacementChar:
		case r == '\n' || r == '\r' || r == '\t':
			good++
		case r < 0x20:
		case unicode.IsPrint(r):
			good++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(good) / float64(total)
}

// wordlikeRatio is the share of whitespace-separated tokens 2 to 15 runes long.
func wordlikeRatio(text string) float64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}
	n := 0
	for _, tok := range tokens {
		if l := len([]rune(tok)); l >= 2 && l <= 15 {
			n++
		}
	}
	return float64(n) / float64(len(tokens))
}

var visualRefRe = regexp.MustCompile(`(?i)\b(figure|fig\.|table|exhibit|chart|diagram|illustration)\s+[0-9]+`)

// visualRefs counts numbered references to figures, tables and exhibits.
func visualRefs(text string) int {
	return len(visualRefRe.FindAllStringIndex(text, -1))
}
