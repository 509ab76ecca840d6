// CLAUDE:SUMMARY Shared domain types: listings, document buffers, extracted text, corpus, fit results, tiers.
// Package rfp holds the records that flow between the rfpwatch components.
//
// Data flows strictly one way: a Listing is discovered, its documents are
// acquired as DocumentBuffers, normalised into ExtractedText, concatenated
// into a Corpus and scored into a FitResult.
package rfp

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Listing sources.
const (
	SourceListing = "listing"
	SourceRSS     = "rss"
)

// Listing is one procurement opportunity as discovered on the listing page.
// Optional fields are nil or empty when the markup did not carry them.
type Listing struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Agency      string     `json:"agency,omitempty"`
	PostedDate  *time.Time `json:"posted_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	DetailURL   string     `json:"detail_url"`
	DownloadURL string     `json:"download_url,omitempty"`
	Source      string     `json:"source"`
}

// AuthSession is a snapshot of the authenticated browsing session.
type AuthSession struct {
	Authenticated bool          `json:"authenticated"`
	LoginTime     *time.Time    `json:"login_time,omitempty"`
	Budget        time.Duration `json:"budget"`
}

// DocumentBuffer is an in-memory document awaiting normalisation.
type DocumentBuffer struct {
	Data          []byte
	Filename      string
	DeclaredType  string
	OpportunityID string
}

// Skip records an artifact or archive entry that was rejected, and why.
// Rejections are reported, never silent.
type Skip struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ExtractedText is the normalised text of one document.
type ExtractedText struct {
	SourceFilename string   `json:"source_filename"`
	Text           string   `json:"text"`
	WordCount      int      `json:"word_count"`
	CharCount      int      `json:"char_count"`
	Format         string   `json:"format"`
	PageCount      int      `json:"page_count,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// NewExtractedText builds an ExtractedText and computes its counts once.
func NewExtractedText(filename, format, text string) *ExtractedText {
	return &ExtractedText{
		SourceFilename: filename,
		Text:           text,
		WordCount:      CountWords(text),
		CharCount:      utf8.RuneCountInString(text),
		Format:         format,
	}
}

// CountWords counts whitespace-separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Corpus is the concatenated text of every document of one opportunity.
type Corpus struct {
	OpportunityID string `json:"opportunity_id"`
	CombinedText  string `json:"combined_text"`
	DocumentCount int    `json:"document_count"`
	TotalWords    int    `json:"total_words"`
}

// CharCount returns the length of the combined text in runes.
func (c Corpus) CharCount() int {
	return utf8.RuneCountInString(c.CombinedText)
}

// DocumentDelimiter returns the provenance line written before each document.
func DocumentDelimiter(filename, format string) string {
	return fmt.Sprintf("===== document: %s (%s) =====", filename, format)
}

// BuildCorpus joins texts in order, each preceded by its provenance delimiter.
// Word counts are summed from the texts, not recomputed.
func BuildCorpus(opportunityID string, texts []ExtractedText) Corpus {
	var sb strings.Builder
	total := 0
	for i, t := range texts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(DocumentDelimiter(t.SourceFilename, t.Format))
		sb.WriteString("\n\n")
		sb.WriteString(t.Text)
		total += t.WordCount
	}
	return Corpus{
		OpportunityID: opportunityID,
		CombinedText:  sb.String(),
		DocumentCount: len(texts),
		TotalWords:    total,
	}
}

// Polarity tells whether a category helped, hurt, or did not move the score.
type Polarity string

const (
	Positive Polarity = "positive"
	Negative Polarity = "negative"
	Neutral  Polarity = "neutral"
)

// CategoryScore is one line of a ScoreBreakdown.
type CategoryScore struct {
	Category  string   `json:"category"`
	Score     int      `json:"score"`
	MaxScore  int      `json:"max_score"`
	Rationale string   `json:"rationale"`
	Polarity  Polarity `json:"polarity"`
}

// FitResult is the scored outcome for one opportunity.
type FitResult struct {
	OpportunityID   string          `json:"opportunity_id"`
	TotalScore      int             `json:"total_score"`
	MaxScore        int             `json:"max_score"`
	Percentage      int             `json:"percentage"`
	Tier            Tier            `json:"tier"`
	Breakdown       []CategoryScore `json:"breakdown"`
	Advantages      []string        `json:"advantages"`
	RedFlags        []string        `json:"red_flags"`
	InstitutionType string          `json:"institution_type,omitempty"`
	Budget          float64         `json:"budget,omitempty"`
	State           string          `json:"state,omitempty"`
	Reasoning       string          `json:"reasoning,omitempty"`
	Narrative       string          `json:"narrative,omitempty"`
	Failed          bool            `json:"failed"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// FailedResult builds the result of an opportunity that never reached scoring.
func FailedResult(opportunityID string, err error) FitResult {
	return FitResult{
		OpportunityID: opportunityID,
		Tier:          TierSkip,
		Failed:        true,
		FailureReason: err.Error(),
		Breakdown:     []CategoryScore{},
		Advantages:    []string{},
		RedFlags:      []string{},
	}
}
