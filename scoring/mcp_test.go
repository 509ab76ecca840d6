package scoring

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/rfpwatch/rfp"
)

var testMCPImpl = &mcp.Implementation{Name: "scoring-test", Version: "0.1.0"}

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

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (*mcp.CallToolResult, string) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return result, tc.Text
}

func TestMCP_ScoreText(t *testing.T) {
	session := mcpSession(t)
	result, text := callTool(t, session, "rfp_score_text", map[string]any{"id": "opp-9", "text": highFitText})
	if result.IsError {
		t.Fatalf("tool error: %s", text)
	}

	var res rfp.FitResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.OpportunityID != "opp-9" || res.Tier != rfp.TierHigh || len(res.Breakdown) != 8 {
		t.Errorf("got id=%q tier=%s breakdown=%d", res.OpportunityID, res.Tier, len(res.Breakdown))
	}
}

func TestMCP_ScoreText_Empty(t *testing.T) {
	session := mcpSession(t)
	result, _ := callTool(t, session, "rfp_score_text", map[string]any{"text": "  "})
	if !result.IsError {
		t.Error("expected tool error for empty text")
	}
}

func TestMCP_ExtractBudget(t *testing.T) {
	session := mcpSession(t)
	result, text := callTool(t, session, "rfp_extract_budget", map[string]any{"text": "phase one $20k, phase two $90,000, fee $10"})
	if result.IsError {
		t.Fatalf("tool error: %s", text)
	}

	var resp struct {
		Amounts []float64 `json:"amounts"`
		Max     float64   `json:"max"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Amounts) != 2 || resp.Max != 90000 {
		t.Errorf("got %+v, want two amounts and max 90000", resp)
	}
}
