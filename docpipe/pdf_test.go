package docpipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hazyhaar/rfpwatch/rfp"
)

func TestNormalize_PDF(t *testing.T) {
	pipe := New(Config{})
	doc, err := pipe.Normalize(context.Background(), rfp.DocumentBuffer{
		Data:     buildRealTextPDF("Hello World from PDF extraction test"),
		Filename: "text.pdf",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if doc.Format != "pdf" {
		t.Errorf("Format = %q", doc.Format)
	}
	if !strings.Contains(doc.Text, "Hello World from PDF extraction test") {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestNormalize_PDFByDeclaredType(t *testing.T) {
	pipe := New(Config{})
	doc, err := pipe.Normalize(context.Background(), rfp.DocumentBuffer{
		Data:         buildRealTextPDF("Declared content type only"),
		Filename:     "download",
		DeclaredType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !strings.Contains(doc.Text, "Declared content type only") {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestExtractPDF_ImageOnly(t *testing.T) {
	_, err := New(Config{}).extractPDF(buildImageOnlyPDF())
	if err == nil {
		t.Fatal("expected error for image-only PDF")
	}
	if !errors.Is(err, errPDFImageOnly) && !strings.Contains(err.Error(), "pdfcpu") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractPDF_Garbage(t *testing.T) {
	_, err := New(Config{}).extractPDF([]byte("%PDF-1.4\nthis is not a pdf body"))
	if err == nil {
		t.Fatal("expected error for unparseable PDF without text operators")
	}
}

func TestExtractPDF_RawFallback(t *testing.T) {
	// Not a readable PDF, but it carries an uncompressed text object.
	data := []byte("%PDF-1.4\nBT /F1 12 Tf 72 720 Td (Scope of Work) Tj ET\n%%EOF")
	ex, err := New(Config{}).extractPDF(data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ex.text != "Scope of Work" {
		t.Errorf("text = %q", ex.text)
	}
	if len(ex.warnings) != 1 || !strings.Contains(ex.warnings[0], "raw content streams") {
		t.Errorf("warnings = %v", ex.warnings)
	}
}

func TestStreamText(t *testing.T) {
	tests := []struct {
		name, stream, want string
	}{
		{
			"operators",
			"BT\n/F1 12 Tf\n72 720 Td\n(Request for) Tj\n0 -14 Td\n[(Pro) -20 (posal)] TJ\nT*\n(Line \\050two\\051) '\nET",
			"Request for Proposal Line (two)",
		},
		{"kerning gap", "BT [(Website) -400 (Redesign)] TJ ET", "Website Redesign"},
		{"nested parens", "BT (Phase (1) only) Tj ET", "Phase (1) only"},
		{"hex string", "BT <48656C6C6F> Tj ET", "Hello"},
		{"dictionary ignored", "<< /Length 44 >> BT (Due Friday) Tj ET", "Due Friday"},
		{"comment ignored", "% (not shown) Tj\nBT (shown) Tj ET", "shown"},
		{"strings without operator", "(orphan) (strings)", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := streamText([]byte(tt.stream)); got != tt.want {
				t.Errorf("streamText = %q, want %q", got, tt.want)
			}
		})
	}
}

// assemblePDF numbers objs from 1, writes a valid xref table and makes
// object 1 the catalog root.
func assemblePDF(objs ...string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return []byte(b.String())
}

func pdfStream(dict, body string) string {
	return fmt.Sprintf("<< %s/Length %d >>\nstream\n%s\nendstream", dict, len(body), body)
}

// buildRealTextPDF is a one-page PDF showing text in Helvetica.
func buildRealTextPDF(text string) []byte {
	esc := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(text)
	return assemblePDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		pdfStream("", "BT\n/F1 12 Tf\n72 720 Td\n("+esc+") Tj\nET"),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
}

// buildImageOnlyPDF is a one-page PDF that draws a single image and no text.
func buildImageOnlyPDF() []byte {
	return assemblePDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>",
		pdfStream("/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 ", "\xff\xd8\xff\xe0"),
		pdfStream("", "q 100 0 0 100 72 692 cm /Im1 Do Q"),
	)
}
