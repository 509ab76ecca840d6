package docpipe

import (
	"strings"
	"testing"
)

func TestPrintableRatio(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		min, max float64
	}{
		{"normal", "Request for proposals: website redesign and hosting.", 0.95, 1},
		{"empty", "", 1, 1},
		{"private use and controls", "abcdefghi\x01\x02\x03\x04\x05", 0, 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := printableRatio(tt.text)
			if r < tt.min || r > tt.max {
				t.Errorf("printable ratio = %f, want in [%f, %f]", r, tt.min, tt.max)
			}
		})
	}
}

func TestWordlikeRatio(t *testing.T) {
	if r := wordlikeRatio("The contractor shall migrate the existing content"); r < 0.70 {
		t.Errorf("wordlike ratio = %f, want > 0.70", r)
	}
	if r := wordlikeRatio("a b c d e f g h i j k l"); r >= 0.40 {
		t.Errorf("wordlike ratio = %f, want < 0.40 for one-letter tokens", r)
	}
}

func TestCountVisualRefs(t *testing.T) {
	count := visualRefs("see Figure 1 for the sitemap, refer to table 2 and Exhibit 3")
	if count != 3 {
		t.Errorf("visual refs = %d, want 3", count)
	}
	if n := visualRefs("no visual references here"); n != 0 {
		t.Errorf("visual refs = %d, want 0", n)
	}
}

func TestQualityWarnings(t *testing.T) {
	tests := []struct {
		name string
		q    pdfQuality
		want []string
	}{
		{"clean", pdfQuality{charsPerPage: 1800, printable: 1}, nil},
		{"scanned", pdfQuality{charsPerPage: 30, hasImages: true, printable: 0.9}, []string{"OCR"}},
		{"sparse without images", pdfQuality{charsPerPage: 30, printable: 1}, nil},
		{"garbled", pdfQuality{charsPerPage: 900, printable: 0.5}, []string{"OCR"}},
		{"figures", pdfQuality{charsPerPage: 900, printable: 1, hasImages: true, figureMention: 2}, []string{"2 figure/table references"}},
	}
	cfg := Config{}
	cfg.defaults()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.q.warnings(cfg.Quality)
			if len(got) != len(tt.want) {
				t.Fatalf("warnings = %v, want %d entries", got, len(tt.want))
			}
			for i, w := range tt.want {
				if !strings.Contains(got[i], w) {
					t.Errorf("warning %d = %q, want it to mention %q", i, got[i], w)
				}
			}
		})
	}
}

func TestQualityThresholdsConfigurable(t *testing.T) {
	q := pdfQuality{charsPerPage: 120, hasImages: true, printable: 1}
	strict := QualityConfig{MinCharsPerPage: 200, MinPrintableRatio: 0.85}
	if !q.scanned(strict) {
		t.Error("120 chars/page should be scanned under a 200 floor")
	}
	if q.scanned(QualityConfig{MinCharsPerPage: 50, MinPrintableRatio: 0.85}) {
		t.Error("120 chars/page should pass a 50 floor")
	}
}

func TestMeasurePDF(t *testing.T) {
	q := measurePDF("Scope of work, see Table 1.", 1, true)
	if q.charsPerPage != 27 || q.figureMention != 1 || q.printable != 1 {
		t.Errorf("measurePDF = %+v", q)
	}
	if q := measurePDF("", 0, false); q.charsPerPage != 0 {
		t.Errorf("zero pages: charsPerPage = %f", q.charsPerPage)
	}
}
