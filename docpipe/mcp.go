// CLAUDE:SUMMARY MCP tools over the document pipeline: normalize a file or inline bytes, detect a format, list formats.
package docpipe

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/rfpwatch/kit"
	"github.com/hazyhaar/rfpwatch/rfp"
)

// RegisterMCP registers the docpipe_* tools on srv.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docpipe_normalize",
		Description: "Extract plain text from a procurement document (pdf, docx, odt, doc, rtf, txt, md, html), given a local path or base64 content.",
		InputSchema: kit.ObjectSchema(map[string]any{
			"path":           kit.Prop("string", "Local file path"),
			"content_base64": kit.Prop("string", "Document bytes, base64 encoded, instead of path"),
			"filename":       kit.Prop("string", "Filename of the inline content, used for format detection"),
			"declared_type":  kit.Prop("string", "Content-Type reported by the server"),
			"max_chars":      kit.Prop("integer", "Truncate the returned text to this many characters (0 = no limit)"),
		}),
	}, p.normalizeEndpoint, kit.DecodeArgs[normalizeReq])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docpipe_detect",
		Description: "Detect a document's format from its filename and optional declared MIME type.",
		InputSchema: kit.ObjectSchema(map[string]any{
			"filename":      kit.Prop("string", "Document filename"),
			"declared_type": kit.Prop("string", "Content-Type reported by the server"),
		}, "filename"),
	}, p.detectEndpoint, kit.DecodeArgs[detectReq])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docpipe_formats",
		Description: "List the supported document formats.",
		InputSchema: kit.ObjectSchema(map[string]any{}),
	}, func(context.Context, any) (any, error) {
		return map[string]any{"formats": SupportedFormats()}, nil
	}, func(*mcp.CallToolRequest) (any, error) { return nil, nil })
}

type normalizeReq struct {
	Path          string `json:"path"`
	ContentBase64 string `json:"content_base64"`
	Filename      string `json:"filename"`
	DeclaredType  string `json:"declared_type"`
	MaxChars      int    `json:"max_chars"`
}

type normalizeResp struct {
	rfp.ExtractedText
	Truncated bool `json:"truncated,omitempty"`
}

func (p *Pipeline) normalizeEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*normalizeReq)
	buf, err := p.loadBuffer(r)
	if err != nil {
		return nil, err
	}
	doc, err := p.Normalize(ctx, buf)
	if err != nil {
		return nil, err
	}

	resp := normalizeResp{ExtractedText: *doc}
	if r.MaxChars > 0 {
		if runes := []rune(doc.Text); len(runes) > r.MaxChars {
			resp.Text = string(runes[:r.MaxChars])
			resp.Truncated = true
		}
	}
	return resp, nil
}

func (p *Pipeline) loadBuffer(r *normalizeReq) (rfp.DocumentBuffer, error) {
	switch {
	case r.Path != "" && r.ContentBase64 != "":
		return rfp.DocumentBuffer{}, errors.New("give either path or content_base64, not both")
	case r.ContentBase64 != "":
		data, err := base64.StdEncoding.DecodeString(r.ContentBase64)
		if err != nil {
			return rfp.DocumentBuffer{}, fmt.Errorf("content_base64: %w", err)
		}
		return rfp.DocumentBuffer{Data: data, Filename: r.Filename, DeclaredType: r.DeclaredType}, nil
	case r.Path != "":
		info, err := os.Stat(r.Path)
		if err != nil {
			return rfp.DocumentBuffer{}, err
		}
		if info.Size() > p.cfg.MaxFileSize {
			return rfp.DocumentBuffer{}, fmt.Errorf("%w: %d bytes (max %d)", rfp.ErrTooLarge, info.Size(), p.cfg.MaxFileSize)
		}
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return rfp.DocumentBuffer{}, err
		}
		name := r.Filename
		if name == "" {
			name = filepath.Base(r.Path)
		}
		return rfp.DocumentBuffer{Data: data, Filename: name, DeclaredType: r.DeclaredType}, nil
	}
	return rfp.DocumentBuffer{}, errors.New("path or content_base64 is required")
}

type detectReq struct {
	Filename     string `json:"filename"`
	DeclaredType string `json:"declared_type"`
}

func (p *Pipeline) detectEndpoint(_ context.Context, req any) (any, error) {
	r := req.(*detectReq)
	format, err := p.Detect(r.Filename, r.DeclaredType)
	if err != nil {
		return nil, err
	}
	return map[string]any{"format": string(format)}, nil
}
