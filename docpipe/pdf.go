// CLAUDE:SUMMARY PDF text extractor: pdfcpu page content first, then a content-stream tokenizer over the raw bytes.
// CLAUDE:DEPENDS docpipe/quality.go
package docpipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	errPDFNoText    = errors.New("no text content found in PDF")
	errPDFImageOnly = errors.New("no text content found in PDF (image-only, OCR required)")
)

// pdfDoc is what pdfcpu could read from a file.
type pdfDoc struct {
	pages     []string
	pageCount int
	hasImages bool
}

func (d *pdfDoc) text() string { return strings.Join(d.pages, "\n\n") }

// extractPDF reads page text through pdfcpu. Files pdfcpu rejects, or that
// yield no text, are scanned raw for uncompressed text operators.
func (p *Pipeline) extractPDF(data []byte) (extraction, error) {
	doc, err := readPDF(data)
	if err == nil {
		if text := doc.text(); text != "" {
			q := measurePDF(text, doc.pageCount, doc.hasImages)
			return extraction{text: text, pages: doc.pageCount, warnings: q.warnings(p.cfg.Quality)}, nil
		}
	}

	raw := streamText(data)
	switch {
	case raw != "":
		ex := extraction{text: raw, warnings: []string{"pdf: structured parse failed, text recovered from raw content streams"}}
		if doc != nil {
			ex.pages = doc.pageCount
		}
		return ex, nil
	case err != nil:
		return extraction{}, err
	case doc.hasImages:
		return extraction{}, errPDFImageOnly
	default:
		return extraction{}, errPDFNoText
	}
}

func readPDF(data []byte) (doc *pdfDoc, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	doc = &pdfDoc{pageCount: ctx.PageCount, hasImages: hasImageXObjects(ctx)}
	for n := 1; n <= ctx.PageCount; n++ {
		r, err := pdfcpu.ExtractPageContent(ctx, n)
		if err != nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if t := streamText(content); t != "" {
			doc.pages = append(doc.pages, t)
		}
	}
	return doc, nil
}

func hasImageXObjects(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for n := 1; n <= ctx.PageCount; n++ {
			if len(pdfcpu.ImageObjNrs(ctx, n)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if st, ok := sd.Find("Subtype"); ok && st == types.Name("Image") {
			return true
		}
	}
	return false
}

// streamText tokenizes a content stream and collects the strings shown by
// Tj, TJ, ' and ". Positioning operators become whitespace.
func streamText(data []byte) string {
	var (
		out     strings.Builder
		pending []string
		inArray bool
	)
	show := func(newline bool) {
		if newline {
			out.WriteByte('\n')
		}
		for _, s := range pending {
			out.WriteString(s)
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := literalString(data[i:])
			pending = append(pending, s)
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			s, n := hexString(data[i:])
			pending = append(pending, s)
			i += n
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '/':
			i++
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelim(data[i]) {
				i++
			}
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelim(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			word := string(data[start:i])
			if inArray {
				// Wide negative kerning inside TJ separates words.
				if k, err := strconv.ParseFloat(word, 64); err == nil && k < -250 {
					pending = append(pending, " ")
				}
				continue
			}
			if _, err := strconv.ParseFloat(word, 64); err == nil {
				continue
			}
			switch word {
			case "Tj", "TJ":
				show(false)
			case "'", `"`:
				show(true)
			case "Td", "TD", "Tm":
				if out.Len() > 0 {
					out.WriteByte(' ')
				}
			case "T*", "ET":
				out.WriteByte('\n')
			}
			pending = pending[:0]
		}
	}
	return squashSpaces(out.String())
}

// literalString decodes a (...) string starting at data[0], honouring
// nested parentheses and backslash escapes. It returns the bytes consumed.
func literalString(data []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for ; i < len(data); i++ {
		c := data[i]
		switch c {
		case '(':
			depth++
			if depth == 1 {
				continue
			}
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
		case '\\':
			if i+1 >= len(data) {
				continue
			}
			i++
			switch e := data[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\n', '\r':
				// Line continuation.
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(data[i]-'0')
					}
					sb.WriteByte(byte(v))
				} else {
					sb.WriteByte(e)
				}
			}
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String(), i
}

// hexString decodes a <...> string starting at data[0].
func hexString(data []byte) (string, int) {
	end := bytes.IndexByte(data, '>')
	if end < 0 {
		return "", len(data)
	}
	var digits []byte
	for _, c := range data[1:end] {
		if unicode.Is(unicode.ASCII_Hex_Digit, rune(c)) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for k := 0; k < len(digits); k += 2 {
		v, _ := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if v >= 0x20 && v < 0x7f {
			out = append(out, byte(v))
		}
	}
	return string(out), end + 1
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

// squashSpaces collapses whitespace runs and drops unprintable runes.
func squashSpaces(text string) string {
	var sb strings.Builder
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			space = sb.Len() > 0
		case unicode.IsPrint(r):
			if space {
				sb.WriteByte(' ')
				space = false
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
