// CLAUDE:SUMMARY HTML to plain text: prune boilerplate and hidden nodes, sanitize with bluemonday, render via html-to-markdown.
package docpipe

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlPolicy is safe for concurrent use once built.
var htmlPolicy = bluemonday.UGCPolicy()

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)font-size\s*:\s*0[^1-9]`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0[^.]`),
	regexp.MustCompile(`(?i)position\s*:\s*absolute[^;]*-\d{4,}`),
}

func hasHiddenStyle(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "hidden" {
			return true
		}
		if a.Key == "style" {
			for _, pat := range hiddenStylePatterns {
				if pat.MatchString(a.Val) {
					return true
				}
			}
		}
	}
	return false
}

func boilerplate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer, atom.Header, atom.Form, atom.Iframe:
		return true
	}
	return hasHiddenStyle(n)
}

// prune removes boilerplate and hidden subtrees in place.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if boilerplate(c) {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

// extractHTML renders the visible content of an HTML document as text.
func extractHTML(data []byte) (extraction, error) {
	src, warnings := decodeText(data)
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return extraction{}, err
	}
	title := findHTMLTitle(doc)
	prune(doc)

	var rendered bytes.Buffer
	if err := html.Render(&rendered, doc); err != nil {
		return extraction{}, err
	}
	clean := htmlPolicy.Sanitize(rendered.String())

	conv := converter.NewConverter(converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	))

	var text string
	md, err := conv.ConvertString(clean)
	if err != nil {
		warnings = append(warnings, "html: markdown conversion failed, using raw text")
		text = collectHTMLText(doc)
	} else {
		ex, _ := extractMarkdown([]byte(md))
		text = ex.text
	}

	if title != "" && !strings.HasPrefix(text, title) {
		text = title + "\n\n" + text
	}
	return extraction{text: normalizeText(text), warnings: warnings}, nil
}

// findHTMLTitle extracts the <title> text.
func findHTMLTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findHTMLTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// collectHTMLText extracts all text from a node subtree.
func collectHTMLText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
