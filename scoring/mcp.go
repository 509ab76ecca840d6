package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/rfpwatch/kit"
)

// RegisterMCP registers scoring tools on an MCP server.
func (s *Scorer) RegisterMCP(srv *mcp.Server) {
	s.registerScoreTool(srv)
	s.registerBudgetTool(srv)
}

type scoreReq struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (s *Scorer) registerScoreTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rfp_score_text",
		Description: "Score an opportunity's text against the fit rubric and return the breakdown and tier.",
		InputSchema: kit.ObjectSchema(map[string]any{
			"id":   kit.Prop("string", "Opportunity identifier (optional)"),
			"text": kit.Prop("string", "Title and document text to score"),
		}, "text"),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*scoreReq)
		if strings.TrimSpace(r.Text) == "" {
			return nil, fmt.Errorf("text is required")
		}
		id := r.ID
		if id == "" {
			id = "adhoc"
		}
		return s.Score(id, r.Text), nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[scoreReq])
}

type budgetReq struct {
	Text string `json:"text"`
}

func (s *Scorer) registerBudgetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "rfp_extract_budget",
		Description: "List the plausible dollar amounts in a text and the largest one.",
		InputSchema: kit.ObjectSchema(map[string]any{
			"text": kit.Prop("string", "Text to scan"),
		}, "text"),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*budgetReq)
		amounts := s.ExtractAmounts(r.Text)
		if amounts == nil {
			amounts = []float64{}
		}
		return map[string]any{"amounts": amounts, "max": s.MaxAmount(r.Text)}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[budgetReq])
}
