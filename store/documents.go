// CLAUDE:SUMMARY Stores and reloads the normalised text of an opportunity's documents, in corpus order.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/rfpwatch/dbopen"
	"github.com/hazyhaar/rfpwatch/rfp"
)

// SaveTexts replaces the stored documents of opportunity id.
func (s *Store) SaveTexts(ctx context.Context, id string, texts []rfp.ExtractedText) error {
	now := time.Now().UnixMilli()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE opportunity_id = ?`, id); err != nil {
			return fmt.Errorf("store: clear documents %s: %w", id, err)
		}
		for i, t := range texts {
			warnings, err := json.Marshal(nonNil(t.Warnings))
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO documents (opportunity_id, position, filename, format, text,
				word_count, char_count, page_count, warnings_json, extracted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, i, t.SourceFilename, t.Format, t.Text, t.WordCount, t.CharCount,
				t.PageCount, string(warnings), now,
			)
			if err != nil {
				return fmt.Errorf("store: insert document %s/%s: %w", id, t.SourceFilename, err)
			}
		}
		return nil
	})
}

// Texts returns the stored documents of opportunity id in the order they
// were saved.
func (s *Store) Texts(ctx context.Context, id string) ([]rfp.ExtractedText, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT filename, format, text, word_count, char_count, page_count, warnings_json
		FROM documents WHERE opportunity_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rfp.ExtractedText
	for rows.Next() {
		var (
			t        rfp.ExtractedText
			warnings string
		)
		if err := rows.Scan(&t.SourceFilename, &t.Format, &t.Text, &t.WordCount,
			&t.CharCount, &t.PageCount, &warnings); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(warnings), &t.Warnings); err != nil {
			return nil, fmt.Errorf("store: decode warnings %s: %w", id, err)
		}
		if len(t.Warnings) == 0 {
			t.Warnings = nil
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
