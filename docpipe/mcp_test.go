package docpipe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "docpipe-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	New(Config{}).RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(testMCPImpl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// call invokes a tool and decodes its JSON reply into out. It returns
// whether the tool reported an error.
func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any, out any) bool {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		return true
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(tc.Text), out); err != nil {
			t.Fatalf("CallTool(%s): decode %q: %v", name, tc.Text, err)
		}
	}
	return false
}

func TestMCP_Formats(t *testing.T) {
	var resp struct {
		Formats []string `json:"formats"`
	}
	if call(t, mcpSession(t), "docpipe_formats", map[string]any{}, &resp) {
		t.Fatal("unexpected tool error")
	}
	sort.Strings(resp.Formats)
	want := []string{"doc", "docx", "html", "md", "odt", "pdf", "rtf", "txt"}
	if diff := cmp.Diff(want, resp.Formats); diff != "" {
		t.Errorf("formats (-want +got):\n%s", diff)
	}
}

func TestMCP_Detect(t *testing.T) {
	session := mcpSession(t)
	tests := []struct {
		filename, declared, want string
	}{
		{"scope.docx", "", "docx"},
		{"notes.md", "", "md"},
		{"addendum.txt", "", "txt"},
		{"notice.html", "", "html"},
		{"rfp.pdf", "", "pdf"},
		{"pricing.odt", "", "odt"},
		{"legacy.doc", "", "doc"},
		{"terms.rtf", "", "rtf"},
		{"download", "application/pdf", "pdf"},
	}
	for _, tt := range tests {
		var resp struct {
			Format string `json:"format"`
		}
		if call(t, session, "docpipe_detect", map[string]any{"filename": tt.filename, "declared_type": tt.declared}, &resp) {
			t.Errorf("detect %q: tool error", tt.filename)
			continue
		}
		if resp.Format != tt.want {
			t.Errorf("detect(%q, %q) = %q, want %q", tt.filename, tt.declared, resp.Format, tt.want)
		}
	}

	if !call(t, session, "docpipe_detect", map[string]any{"filename": "budget.xlsx"}, nil) {
		t.Error("expected tool error for xlsx")
	}
}

func TestMCP_Normalize_Path(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scope.txt")
	if err := os.WriteFile(path, []byte("Website redesign\nfor the college"), 0o644); err != nil {
		t.Fatal(err)
	}

	var doc normalizeResp
	if call(t, mcpSession(t), "docpipe_normalize", map[string]any{"path": path}, &doc) {
		t.Fatal("unexpected tool error")
	}
	if doc.Format != "txt" || doc.SourceFilename != "scope.txt" || doc.WordCount != 5 {
		t.Errorf("doc = %+v", doc.ExtractedText)
	}
	if doc.Truncated {
		t.Error("short text reported as truncated")
	}
}

func TestMCP_Normalize_Inline(t *testing.T) {
	md := "# Scope\n\nRedesign **all** pages.\n\n## Budget\n\nNot to exceed $80,000."
	args := map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString([]byte(md)),
		"filename":       "scope.md",
	}

	var doc normalizeResp
	if call(t, mcpSession(t), "docpipe_normalize", args, &doc) {
		t.Fatal("unexpected tool error")
	}
	if doc.Format != "md" {
		t.Errorf("Format = %q, want md", doc.Format)
	}
	if strings.Contains(doc.Text, "#") || strings.Contains(doc.Text, "**") {
		t.Errorf("markdown syntax left in text: %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "Redesign all pages.") {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestMCP_Normalize_MaxChars(t *testing.T) {
	args := map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString([]byte("Request for proposals")),
		"filename":       "notice.txt",
		"max_chars":      7,
	}
	var doc normalizeResp
	if call(t, mcpSession(t), "docpipe_normalize", args, &doc) {
		t.Fatal("unexpected tool error")
	}
	if doc.Text != "Request" || !doc.Truncated {
		t.Errorf("text = %q truncated = %v", doc.Text, doc.Truncated)
	}
	if doc.CharCount != len("Request for proposals") {
		t.Errorf("CharCount = %d, want the untruncated count", doc.CharCount)
	}
}

func TestMCP_Normalize_Errors(t *testing.T) {
	session := mcpSession(t)
	tests := map[string]map[string]any{
		"missing file": {"path": filepath.Join(t.TempDir(), "nope.txt")},
		"no input":     {},
		"both inputs":  {"path": "a.txt", "content_base64": "YQ=="},
		"bad base64":   {"content_base64": "not base64!", "filename": "a.txt"},
		"unsupported":  {"content_base64": "UEsDBA==", "filename": "sheet.xlsx"},
	}
	for name, args := range tests {
		if !call(t, session, "docpipe_normalize", args, nil) {
			t.Errorf("%s: expected tool error", name)
		}
	}
}
