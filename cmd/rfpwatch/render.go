package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hazyhaar/rfpwatch/pipeline"
	"github.com/hazyhaar/rfpwatch/rfp"
	"github.com/hazyhaar/rfpwatch/store"
)

const titleWidth = 48

func checkFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	}
	return fmt.Errorf("--format must be table or json, got %q", format)
}

// parseAge accepts Go durations plus a whole-day suffix ("30d").
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("--max-age: invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("--max-age: %w", err)
	}
	return d, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(header)
	t.SetStyle(table.StyleRounded)
	return t
}

// renderRecords prints stored results in the order given.
func renderRecords(w io.Writer, recs []store.Record, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		if recs == nil {
			recs = []store.Record{}
		}
		return writeIndented(w, recs)
	}

	t := newTable(w, table.Row{"ID", "Title", "Posted", "Due", "Tier", "Score", "Budget", "State", "Notes"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Score", Align: text.AlignRight},
		{Name: "Budget", Align: text.AlignRight},
	})
	for _, r := range recs {
		res := r.Result
		t.AppendRow(table.Row{
			r.Opportunity.ID,
			truncate(r.Opportunity.Title, titleWidth),
			date(r.Opportunity.PostedDate),
			date(r.Opportunity.DueDate),
			res.Tier,
			score(res),
			budget(res.Budget),
			res.State,
			notes(res),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d opportunities", len(recs))})
	t.Render()
	return nil
}

// renderRun prints the per-opportunity outcome of a run.
func renderRun(w io.Writer, rep *pipeline.Report, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		return writeIndented(w, rep)
	}

	t := newTable(w, table.Row{"ID", "Title", "Tier", "Score", "Budget", "Notes"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Score", Align: text.AlignRight},
		{Name: "Budget", Align: text.AlignRight},
	})
	for _, it := range rep.Items {
		t.AppendRow(table.Row{
			it.Listing.ID,
			truncate(it.Listing.Title, titleWidth),
			it.Result.Tier,
			score(it.Result),
			budget(it.Result.Budget),
			notes(it.Result),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("discovered %d, new %d, scored %d, failed %d",
		rep.Discovered, rep.New, rep.Succeeded(), rep.Failed())})
	t.Render()
	return nil
}

// renderScrape prints what discovery found.
func renderScrape(w io.Writer, rep *pipeline.Report, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		return writeIndented(w, rep)
	}
	fmt.Fprintf(w, "run %s: discovered %d, before cutoff %d, new %d\n",
		rep.RunID, rep.Discovered, rep.BeforeCutoff, rep.New)
	return nil
}

func score(res rfp.FitResult) string {
	if res.Failed {
		return "-"
	}
	return fmt.Sprintf("%d%%", res.Percentage)
}

func budget(v float64) string {
	if v <= 0 {
		return ""
	}
	return "$" + strconv.FormatFloat(v, 'f', 0, 64)
}

func notes(res rfp.FitResult) string {
	if res.Failed {
		return res.FailureReason
	}
	if len(res.RedFlags) > 0 {
		return "red flags: " + strings.Join(res.RedFlags, ", ")
	}
	return ""
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
