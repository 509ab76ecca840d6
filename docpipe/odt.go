// CLAUDE:SUMMARY Extracts text from .odt (OpenDocument) buffers by walking content.xml.
package docpipe

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// extractODT reads content.xml: headings and paragraphs become lines,
// <text:s/> and <text:tab/> become whitespace.
func extractODT(data []byte) (extraction, error) {
	body, err := openZipEntry(data, "content.xml")
	if err != nil {
		return extraction{}, err
	}

	decoder := xml.NewDecoder(bytes.NewReader(body))
	var lines []string
	var current strings.Builder
	depth := 0 // nesting of text:p / text:h
	var warnings []string
	nesting := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("odt: xml stopped early: %v", err))
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			nesting++
			if nesting > maxXMLDepth {
				return extraction{}, fmt.Errorf("odt: xml nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "p", "h":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "s":
				if depth > 0 {
					n := 1
					for _, a := range t.Attr {
						if a.Name.Local == "c" {
							if v, err := strconv.Atoi(a.Value); err == nil && v > 0 {
								n = v
							}
						}
					}
					current.WriteString(strings.Repeat(" ", n))
				}
			case "tab":
				if depth > 0 {
					current.WriteByte('\t')
				}
			case "line-break":
				if depth > 0 {
					current.WriteByte('\n')
				}
			}

		case xml.CharData:
			if depth > 0 {
				current.Write(t)
			}

		case xml.EndElement:
			nesting--
			if t.Name.Local == "p" || t.Name.Local == "h" {
				if depth > 0 {
					depth--
				}
				if depth == 0 {
					if text := strings.TrimSpace(current.String()); text != "" {
						lines = append(lines, text)
					}
				}
			}
		}
	}

	return extraction{text: normalizeText(strings.Join(lines, "\n")), warnings: warnings}, nil
}
