package docpipe

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
)

// oleMagic opens every OLE2 compound file, legacy .doc included.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// minDocRun is the shortest text run kept from a .doc.
const minDocRun = 8

// Strings every Word binary carries in its directory and style tables.
var docNoise = map[string]bool{
	"root entry": true, "worddocument": true, "summaryinformation": true,
	"documentsummaryinformation": true, "compobj": true, "1table": true, "0table": true,
	"default paragraph font": true, "times new roman": true, "table normal": true,
	"no list": true, "microsoft word document": true, "msworddoc": true,
	"word.document.8": true, "normal.dot": true, "normal.dotm": true,
}

// extractDoc recovers text from a legacy Word binary without parsing its
// piece table: it collects printable UTF-16LE and 8-bit runs and keeps
// whichever encoding produced more text.
func extractDoc(data []byte) (extraction, error) {
	if !bytes.HasPrefix(data, oleMagic) {
		return extraction{}, fmt.Errorf("not an OLE2 compound document")
	}

	wide := docRunsUTF16(data[len(oleMagic):])
	narrow := docRuns8(data[len(oleMagic):])
	runs := wide
	if runeTotal(narrow) > runeTotal(wide) {
		runs = narrow
	}

	return extraction{
		text:     normalizeText(strings.Join(runs, "\n")),
		warnings: []string{"doc: legacy Word binary, text recovered heuristically"},
	}, nil
}

func docPrintable(r rune) bool {
	return r == '\r' || r == '\n' || r == '\t' || (r >= 0x20 && r < 0xD800 && unicode.IsPrint(r))
}

func docRunsUTF16(data []byte) []string {
	var runs []string
	var cur []rune
	flush := func() {
		keepDocRun(&runs, string(cur))
		cur = cur[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		r := rune(data[i]) | rune(data[i+1])<<8
		if docPrintable(r) {
			cur = append(cur, r)
			continue
		}
		flush()
	}
	flush()
	return runs
}

func docRuns8(data []byte) []string {
	var runs []string
	var cur []byte
	flush := func() {
		keepDocRun(&runs, string(cur))
		cur = cur[:0]
	}
	for _, b := range data {
		if b == '\r' || b == '\n' || b == '\t' || (b >= 0x20 && b < 0x7F) {
			cur = append(cur, b)
			continue
		}
		flush()
	}
	flush()
	return runs
}

// keepDocRun appends s when it looks like prose: long enough, mostly
// letters and spaces, containing at least one space, not a known
// structural string.
func keepDocRun(runs *[]string, s string) {
	s = strings.TrimSpace(s)
	if len([]rune(s)) < minDocRun || !strings.Contains(s, " ") || docNoise[strings.ToLower(s)] {
		return
	}
	letters, total := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			letters++
		}
	}
	if letters*10 < total*7 {
		return
	}
	*runs = append(*runs, s)
}

func runeTotal(runs []string) int {
	n := 0
	for _, r := range runs {
		n += len([]rune(r))
	}
	return n
}
