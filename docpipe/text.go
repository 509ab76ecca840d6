package docpipe

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText returns data as UTF-8. A BOM selects UTF-8 or UTF-16 and is
// stripped; invalid UTF-8 without a BOM is decoded as Windows-1252.
func decodeText(data []byte) (string, []string) {
	if bytes.HasPrefix(data, bomUTF8) || bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err == nil {
			return string(out), nil
		}
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�"), []string{"text: invalid encoding, undecodable bytes replaced"}
	}
	return string(out), []string{"text: not UTF-8, decoded as Windows-1252"}
}

// normalizeText unifies line endings, collapses runs of spaces inside
// lines and runs of blank lines into one.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// extractText handles plain text.
func extractText(data []byte) (extraction, error) {
	text, warnings := decodeText(data)
	return extraction{text: normalizeText(text), warnings: warnings}, nil
}

var (
	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdEmphasis = regexp.MustCompile(`(\*\*|__|~~|` + "`" + `)`)
	mdHeading  = regexp.MustCompile(`^#{1,6}\s+`)
	mdList     = regexp.MustCompile(`^(\s*)([-*+]|\d+[.)])\s+`)
	mdQuote    = regexp.MustCompile(`^(\s*>)+\s?`)
	mdRule     = regexp.MustCompile(`^\s*([-*_]\s*){3,}$`)
	mdTableSep = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?\s*$`)
	mdEscape   = regexp.MustCompile(`\\([\\*_{}\[\]()#+\-.!|~<>$])`)
)

// extractMarkdown strips Markdown syntax, keeping heading, list and table
// cell text.
func extractMarkdown(data []byte) (extraction, error) {
	text, warnings := decodeText(data)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			lines = append(lines, line)
			continue
		}
		if mdRule.MatchString(trimmed) || mdTableSep.MatchString(trimmed) && strings.Contains(trimmed, "-") {
			continue
		}
		if mdHeading.MatchString(trimmed) {
			trimmed = strings.TrimRight(mdHeading.ReplaceAllString(trimmed, ""), "# ")
		}
		trimmed = mdQuote.ReplaceAllString(trimmed, "")
		trimmed = mdList.ReplaceAllString(trimmed, "")
		trimmed = mdImage.ReplaceAllString(trimmed, "$1")
		trimmed = mdLink.ReplaceAllString(trimmed, "$1")
		trimmed = mdEmphasis.ReplaceAllString(trimmed, "")
		trimmed = mdEscape.ReplaceAllString(trimmed, "$1")
		if strings.HasPrefix(trimmed, "|") || strings.HasSuffix(trimmed, "|") {
			trimmed = strings.Trim(trimmed, "|")
			trimmed = strings.ReplaceAll(trimmed, "|", " ")
		}
		lines = append(lines, trimmed)
	}
	return extraction{text: normalizeText(strings.Join(lines, "\n")), warnings: warnings}, nil
}
