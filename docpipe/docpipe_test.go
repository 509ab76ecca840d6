package docpipe

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/hazyhaar/rfpwatch/rfp"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if name == "mimetype" {
			hdr.Method = zip.Store
		}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(body))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func normalize(t *testing.T, filename string, data []byte) *rfp.ExtractedText {
	t.Helper()
	pipe := New(Config{})
	doc, err := pipe.Normalize(context.Background(), rfp.DocumentBuffer{Data: data, Filename: filename})
	if err != nil {
		t.Fatalf("Normalize(%s): %v", filename, err)
	}
	return doc
}

func TestDetect(t *testing.T) {
	pipe := New(Config{})

	tests := []struct {
		filename string
		declared string
		format   Format
	}{
		{"doc.docx", "", FormatDocx},
		{"doc.odt", "", FormatODT},
		{"doc.pdf", "", FormatPDF},
		{"DOC.PDF", "", FormatPDF},
		{"doc.md", "", FormatMD},
		{"doc.markdown", "", FormatMD},
		{"doc.txt", "", FormatTXT},
		{"doc.html", "", FormatHTML},
		{"doc.htm", "", FormatHTML},
		{"doc.doc", "", FormatDoc},
		{"doc.rtf", "", FormatRTF},
		{"download", "application/pdf", FormatPDF},
		{"download", "text/html; charset=utf-8", FormatHTML},
		{"download", ".docx", FormatDocx},
		{"notes.txt", "application/pdf", FormatTXT},
	}

	for _, tt := range tests {
		f, err := pipe.Detect(tt.filename, tt.declared)
		if err != nil {
			t.Errorf("Detect(%q, %q): %v", tt.filename, tt.declared, err)
			continue
		}
		if f != tt.format {
			t.Errorf("Detect(%q, %q) = %q, want %q", tt.filename, tt.declared, f, tt.format)
		}
	}

	_, err := pipe.Detect("file.xyz", "application/octet-stream")
	if !errors.Is(err, rfp.ErrUnsupportedFormat) {
		t.Errorf("Detect(file.xyz) err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
		ok   bool
	}{
		{"pdf", []byte("%PDF-1.4\n"), FormatPDF, true},
		{"rtf", []byte(`{\rtf1 hello}`), FormatRTF, true},
		{"doc", append(append([]byte{}, oleMagic...), 0, 0), FormatDoc, true},
		{"docx", zipBytes(t, map[string]string{"word/document.xml": "<w:document/>"}), FormatDocx, true},
		{"odt", zipBytes(t, map[string]string{"mimetype": "application/vnd.oasis.opendocument.text"}), FormatODT, true},
		{"other zip", zipBytes(t, map[string]string{"a.csv": "x"}), "", false},
		{"plain", []byte("just text"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sniff(tt.data)
			if got != tt.want || ok != tt.ok {
				t.Errorf("sniff = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormalize_SniffsUnnamedBuffer(t *testing.T) {
	doc := normalize(t, "download", []byte(`{\rtf1\ansi Sniffed body text\par}`))
	if doc.Format != "rtf" {
		t.Errorf("Format = %q, want rtf", doc.Format)
	}
	if doc.Text != "Sniffed body text" {
		t.Errorf("Text = %q", doc.Text)
	}
}

func TestNormalize_Text(t *testing.T) {
	doc := normalize(t, "test.txt", []byte("Hello  world\r\n\r\n\r\n  test  "))
	if doc.Format != "txt" {
		t.Fatalf("expected txt format, got %s", doc.Format)
	}
	if doc.Text != "Hello world\n\ntest" {
		t.Errorf("Text = %q", doc.Text)
	}
	if doc.WordCount != 3 {
		t.Errorf("WordCount = %d, want 3", doc.WordCount)
	}
	if doc.CharCount != len([]rune(doc.Text)) {
		t.Errorf("CharCount = %d, want %d", doc.CharCount, len([]rune(doc.Text)))
	}
	if doc.SourceFilename != "test.txt" {
		t.Errorf("SourceFilename = %q", doc.SourceFilename)
	}
}

func TestNormalize_TextEncodings(t *testing.T) {
	utf16le := []byte{0xFF, 0xFE}
	for _, u := range utf16.Encode([]rune("Réunion budget")) {
		utf16le = append(utf16le, byte(u), byte(u>>8))
	}

	tests := []struct {
		name    string
		data    []byte
		want    string
		warning bool
	}{
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "Café menu"...), "Café menu", false},
		{"utf16 bom", utf16le, "Réunion budget", false},
		{"windows-1252", []byte("Caf\xe9 \x93quoted\x94"), "Café “quoted”", true},
		{"plain utf8", []byte("naïve résumé"), "naïve résumé", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := normalize(t, "enc.txt", tt.data)
			if doc.Text != tt.want {
				t.Errorf("Text = %q, want %q", doc.Text, tt.want)
			}
			if got := len(doc.Warnings) > 0; got != tt.warning {
				t.Errorf("warnings = %v, want warning=%v", doc.Warnings, tt.warning)
			}
		})
	}
}

func TestNormalize_Markdown(t *testing.T) {
	md := "# Project Title #\n\nIntro with **bold**, _plain_ and a [link](https://example.com).\n\n" +
		"## Scope\n\n- first item\n- second item\n\n> quoted line\n\n---\n\n" +
		"| Item | Cost |\n|------|------|\n| Hosting | 100 |\n\n```\ncode stays\n```\n\nC# and \\*literal\\*"
	doc := normalize(t, "readme.md", []byte(md))

	for _, want := range []string{"Project Title", "Intro with bold", "a link.", "Scope", "first item", "quoted line", "Hosting", "code stays", "C# and *literal*"} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("text missing %q:\n%s", want, doc.Text)
		}
	}
	for _, gone := range []string{"**", "](", "## ", "---", "> "} {
		if strings.Contains(doc.Text, gone) {
			t.Errorf("text still contains %q:\n%s", gone, doc.Text)
		}
	}
}

func TestNormalize_Docx(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Test Title</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">This is </w:t></w:r><w:r><w:t>body text.</w:t></w:r></w:p>
<w:p><w:r><w:t>Cell</w:t><w:tab/><w:t>value</w:t></w:r></w:p>
<w:p><w:r><w:t>More content here.</w:t></w:r></w:p>
</w:body>
</w:document>`
	doc := normalize(t, "test.docx", zipBytes(t, map[string]string{"word/document.xml": docXML}))

	want := "Test Title\nThis is body text.\nCell value\nMore content here."
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
	if doc.Format != "docx" {
		t.Errorf("Format = %q", doc.Format)
	}
}

func TestNormalize_DocxMissingBody(t *testing.T) {
	pipe := New(Config{})
	_, err := pipe.Normalize(context.Background(), rfp.DocumentBuffer{
		Data:     zipBytes(t, map[string]string{"word/styles.xml": "<x/>"}),
		Filename: "broken.docx",
	})
	if rfp.KindOf(err) != rfp.KindExtraction {
		t.Fatalf("err = %v, want extraction error", err)
	}
}

func TestNormalize_ODT(t *testing.T) {
	contentXML := `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body>
<office:text>
<text:h text:outline-level="1">ODT Title</text:h>
<text:p>First<text:s text:c="3"/>paragraph.</text:p>
<text:h text:outline-level="2">Sub Heading</text:h>
<text:p>Second <text:span>styled</text:span> paragraph.</text:p>
</office:text>
</office:body>
</office:document-content>`
	doc := normalize(t, "test.odt", zipBytes(t, map[string]string{"content.xml": contentXML}))

	for _, want := range []string{"ODT Title", "First paragraph.", "Sub Heading", "Second styled paragraph."} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("text missing %q: %q", want, doc.Text)
		}
	}
}

func TestNormalize_RTF(t *testing.T) {
	src := `{\rtf1\ansi\deff0{\fonttbl{\f0 Arial;}}{\colortbl;\red0\green0\blue0;}` +
		`{\*\generator Writer;}\f0\fs24 Hello \'e9t\'e9 world\par Second line \u8364?\par` +
		`Braces \{kept\} and back\\slash\par}`
	doc := normalize(t, "memo.rtf", []byte(src))

	want := "Hello été world\nSecond line €\nBraces {kept} and back\\slash"
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
	if strings.Contains(doc.Text, "Arial") || strings.Contains(doc.Text, "Writer") {
		t.Errorf("destination text leaked: %q", doc.Text)
	}
}

func buildDoc(body string) []byte {
	data := append([]byte{}, oleMagic...)
	data = append(data, make([]byte, 8)...)
	data = append(data, "Root Entry"...)
	data = append(data, make([]byte, 8)...)
	for _, u := range utf16.Encode([]rune(body)) {
		data = append(data, byte(u), byte(u>>8))
	}
	data = append(data, make([]byte, 16)...)
	return data
}

func TestNormalize_Doc(t *testing.T) {
	doc := normalize(t, "legacy.doc", buildDoc("Scope of work for the campus website redesign"))

	if doc.Text != "Scope of work for the campus website redesign" {
		t.Errorf("Text = %q", doc.Text)
	}
	if len(doc.Warnings) == 0 {
		t.Error("expected heuristic warning for .doc")
	}
}

func TestNormalize_HTML(t *testing.T) {
	src := `<!DOCTYPE html>
<html><head><title>HTML Test</title><style>p { color: red }</style></head>
<body>
<nav><a href="/">Home</a> menu links</nav>
<article>
<h1>Main Heading</h1>
<p>This is a substantial paragraph of <strong>text</strong> that should be extracted.</p>
<table><tr><th>Item</th><th>Cost</th></tr><tr><td>Hosting</td><td>100</td></tr></table>
</article>
<script>var secret = "tracking";</script>
<footer>Copyright footer</footer>
</body></html>`
	doc := normalize(t, "test.html", []byte(src))

	if !strings.HasPrefix(doc.Text, "HTML Test") {
		t.Errorf("expected title first, got %q", doc.Text)
	}
	for _, want := range []string{"Main Heading", "substantial paragraph of text", "Hosting"} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("text missing %q: %q", want, doc.Text)
		}
	}
	for _, gone := range []string{"tracking", "menu links", "Copyright footer", "color: red", "**"} {
		if strings.Contains(doc.Text, gone) {
			t.Errorf("text contains %q: %q", gone, doc.Text)
		}
	}
}

func TestNormalize_HTMLHidden(t *testing.T) {
	tests := []struct {
		name   string
		hidden string
	}{
		{"display none", `<div style="display:none">secret hidden text</div>`},
		{"visibility hidden", `<span style="visibility:hidden">secret hidden text</span>`},
		{"font size zero", `<span style="font-size:0px">secret hidden text</span>`},
		{"opacity zero", `<span style="opacity:0;">secret hidden text</span>`},
		{"hidden attribute", `<p hidden>secret hidden text</p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `<!DOCTYPE html><html><body><p style="color:red">Styled but visible</p>` + tt.hidden + `</body></html>`
			doc := normalize(t, "hidden.html", []byte(src))
			if strings.Contains(doc.Text, "secret hidden text") {
				t.Errorf("hidden text kept: %q", doc.Text)
			}
			if !strings.Contains(doc.Text, "Styled but visible") {
				t.Errorf("visible text lost: %q", doc.Text)
			}
		})
	}
}

func TestNormalize_Failures(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		cfg  Config
		buf  rfp.DocumentBuffer
		is   error
	}{
		{"unsupported", context.Background(), Config{}, rfp.DocumentBuffer{Data: []byte("a,b"), Filename: "sheet.xlsx"}, rfp.ErrUnsupportedFormat},
		{"too large", context.Background(), Config{MaxFileSize: 10}, rfp.DocumentBuffer{Data: []byte("more than ten bytes"), Filename: "big.txt"}, rfp.ErrTooLarge},
		{"empty text", context.Background(), Config{}, rfp.DocumentBuffer{Data: []byte("  \n\t "), Filename: "blank.txt"}, nil},
		{"canceled", canceled, Config{}, rfp.DocumentBuffer{Data: []byte("text"), Filename: "a.txt"}, context.Canceled},
		{"corrupt docx", context.Background(), Config{}, rfp.DocumentBuffer{Data: []byte("not a zip"), Filename: "x.docx"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg).Normalize(tt.ctx, tt.buf)
			if err == nil {
				t.Fatal("expected error")
			}
			if rfp.KindOf(err) != rfp.KindExtraction {
				t.Errorf("kind = %q, want extraction", rfp.KindOf(err))
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	if len(formats) != 8 {
		t.Fatalf("expected 8 formats, got %d: %v", len(formats), formats)
	}
	pipe := New(Config{})
	for _, f := range formats {
		if _, err := pipe.Detect("file."+f, ""); err != nil {
			t.Errorf("format %q not detectable: %v", f, err)
		}
	}
}

// --- XML bomb tests ---

func nestedXML(open, close, prefix, suffix, leaf string, depth int) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i := 0; i < depth; i++ {
		b.WriteString(open)
	}
	b.WriteString(leaf)
	for i := 0; i < depth; i++ {
		b.WriteString(close)
	}
	b.WriteString(suffix)
	return b.String()
}

func TestDOCX_XMLBomb(t *testing.T) {
	body := nestedXML("<w:p>", "</w:p>",
		`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`,
		"</w:body></w:document>", "<w:r><w:t>deep</w:t></w:r>", 300)

	_, err := extractDocx(zipBytes(t, map[string]string{"word/document.xml": body}))
	if err == nil {
		t.Fatal("expected error for deeply nested XML")
	}
	if !strings.Contains(err.Error(), "nesting depth") {
		t.Errorf("expected 'nesting depth' error, got: %v", err)
	}
}

func TestODT_XMLBomb(t *testing.T) {
	body := nestedXML("<text:p>", "</text:p>",
		`<?xml version="1.0" encoding="UTF-8"?><office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text>`,
		"</office:text></office:body></office:document-content>", "deep text", 300)

	_, err := extractODT(zipBytes(t, map[string]string{"content.xml": body}))
	if err == nil {
		t.Fatal("expected error for deeply nested XML")
	}
	if !strings.Contains(err.Error(), "nesting depth") {
		t.Errorf("expected 'nesting depth' error, got: %v", err)
	}
}
