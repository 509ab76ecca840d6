package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/rfpwatch/dbopen"
	"github.com/hazyhaar/rfpwatch/docpipe"
	"github.com/hazyhaar/rfpwatch/pipeline"
	"github.com/hazyhaar/rfpwatch/rfp"
	"github.com/hazyhaar/rfpwatch/scoring"
	"github.com/hazyhaar/rfpwatch/store"
)

func TestParseSince(t *testing.T) {
	got, err := parseSince("2026-03-01")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("since = %v, want %v", got, want)
	}
	if got, err := parseSince(""); err != nil || !got.IsZero() {
		t.Errorf("empty since = %v, %v", got, err)
	}
	if _, err := parseSince("03/01/2026"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestCutoff(t *testing.T) {
	a := &app{logger: slog.New(slog.DiscardHandler)}
	st := store.New(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)))
	ctx := context.Background()

	got, err := a.cutoff(ctx, st, pipeline.ModeRun, time.Time{})
	if err != nil || !got.IsZero() {
		t.Fatalf("no runs: cutoff = %v, %v", got, err)
	}

	finish := func(mode string) {
		id, err := st.StartRun(ctx, mode)
		if err != nil {
			t.Fatal(err)
		}
		if err := st.FinishRun(ctx, id, store.RunStats{}); err != nil {
			t.Fatal(err)
		}
	}
	finish(pipeline.ModeRescore)
	if got, _ := a.cutoff(ctx, st, pipeline.ModeRun, time.Time{}); !got.IsZero() {
		t.Errorf("rescore moved the run cutoff to %v", got)
	}

	finish(pipeline.ModeRun)
	y, m, d := time.Now().UTC().Date()
	want := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if got, err := a.cutoff(ctx, st, pipeline.ModeRun, time.Time{}); err != nil || !got.Equal(want) {
		t.Errorf("after run: cutoff = %v, %v, want %v", got, err, want)
	}

	explicit := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if got, _ := a.cutoff(ctx, st, pipeline.ModeRun, explicit); !got.Equal(explicit) {
		t.Errorf("explicit since = %v, want %v", got, explicit)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"72h", 72 * time.Hour, false},
		{"-1d", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAge(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAge(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAge(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("Université Website Redesign", 10); got != "Universit…" {
		t.Errorf("truncate long = %q", got)
	}
}

func sampleRecords() []store.Record {
	posted := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	rec := store.Record{
		Result: rfp.FitResult{
			OpportunityID: "rfp-1", Percentage: 88, Tier: rfp.TierHigh,
			Budget: 120000, State: "TX",
		},
	}
	rec.Opportunity.ID = "rfp-1"
	rec.Opportunity.Title = "State University Website Redesign"
	rec.Opportunity.PostedDate = &posted

	failed := store.Record{Result: rfp.FailedResult("rfp-2", rfp.ErrNoDownload)}
	failed.Opportunity.ID = "rfp-2"
	failed.Opportunity.Title = "Broken Listing"
	return []store.Record{rec, failed}
}

func TestRenderRecords_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := renderRecords(&buf, sampleRecords(), "table"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"rfp-1", "88%", "$120000", "2026-03-05", "HIGH", "rfp-2", rfp.ErrNoDownload.Error()} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRecords_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderRecords(&buf, sampleRecords(), "json"); err != nil {
		t.Fatal(err)
	}
	var got []store.Record
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Result.Tier != rfp.TierHigh || !got[1].Result.Failed {
		t.Errorf("decoded = %+v", got)
	}

	buf.Reset()
	if err := renderRecords(&buf, nil, "json"); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty json = %q", buf.String())
	}

	if err := renderRecords(&buf, nil, "csv"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "rfpwatch.db")
	cfgPath := filepath.Join(dir, "rfpwatch.yaml")
	if err := os.WriteFile(cfgPath, []byte("db: "+dbPath+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, r := range sampleRecords() {
		if err := st.UpsertListing(ctx, r.Opportunity.Listing); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveResult(ctx, "run-1", r.Result); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", cfgPath, "--log-level", "error", "report", "--format", "json"})
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("report: %v", err)
	}

	var got []store.Record
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	ids := []string{}
	for _, r := range got {
		ids = append(ids, r.Opportunity.ID)
	}
	if diff := cmp.Diff([]string{"rfp-1", "rfp-2"}, ids); diff != "" {
		t.Errorf("report ids (-want +got):\n%s", diff)
	}
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rfpwatch.yaml")
	if err := os.WriteFile(cfgPath, []byte("db: "+filepath.Join(dir, "x.db")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RFPWATCH_USERNAME", "")
	t.Setenv("RFPWATCH_PASSWORD", "")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "--log-level", "error", "run"})
	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "login_url") {
		t.Errorf("run without login url: err = %v", err)
	}
}

func TestMCPServer_ListsTools(t *testing.T) {
	srv := newMCPServer(scoring.New(scoring.Config{}), docpipe.New(docpipe.Config{}))
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(&mcp.Implementation{Name: "rfpwatch-test", Version: "0.1.0"}, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"docpipe_detect", "docpipe_formats", "docpipe_normalize", "rfp_extract_budget", "rfp_score_text"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tools (-want +got):\n%s", diff)
	}
}
