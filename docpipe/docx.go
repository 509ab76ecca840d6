package docpipe

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// maxXMLDepth bounds element nesting in office XML parts.
const maxXMLDepth = 256

// openZipEntry returns the contents of name inside the zip held in data.
func openZipEntry(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// extractDocx reads word/document.xml: one line per paragraph, tabs and
// breaks kept as whitespace.
func extractDocx(data []byte) (extraction, error) {
	body, err := openZipEntry(data, "word/document.xml")
	if err != nil {
		return extraction{}, err
	}

	decoder := xml.NewDecoder(bytes.NewReader(body))
	var paragraphs []string
	var current strings.Builder
	inParagraph, inText := false, false
	var warnings []string
	nesting := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("docx: xml stopped early: %v", err))
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			nesting++
			if nesting > maxXMLDepth {
				return extraction{}, fmt.Errorf("docx: xml nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inParagraph {
					current.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inText {
				current.Write(t)
			}

		case xml.EndElement:
			nesting--
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph {
					inParagraph = false
					if text := strings.TrimSpace(current.String()); text != "" {
						paragraphs = append(paragraphs, text)
					}
				}
			}
		}
	}

	return extraction{text: normalizeText(strings.Join(paragraphs, "\n")), warnings: warnings}, nil
}
