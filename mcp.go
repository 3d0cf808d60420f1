package scrollshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/scrollshot/internal/encoder"
	"github.com/hazyhaar/scrollshot/kit"
)

// RegisterMCP registers scrollshot tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerCaptureTool(srv)
	e.registerStatusTool(srv)
	e.registerCancelTool(srv)
	e.registerFormatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- capture ---

type captureResp struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Bytes    int    `json:"bytes"`
	DataURI  string `json:"data_uri"`
}

func (e *Engine) registerCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrollshot_capture",
		Description: "Capture a full-length screenshot of a scrollable page region and return it as a data URI.",
		InputSchema: inputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Page URL to capture"},
			"selector": map[string]any{"type": "string", "description": "CSS selector of the region; empty captures the page"},
			"format":   map[string]any{"type": "string", "enum": []string{"png", "jpeg", "pdf"}},
			"quality":  map[string]any{"type": "number", "description": "JPEG quality in [0,1]"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*Request)
		out, err := e.Capture(ctx, *r)
		if err != nil {
			return nil, err
		}
		return &captureResp{
			Filename: out.Filename,
			Format:   string(out.Format),
			Bytes:    len(out.Bytes),
			DataURI:  out.DataURI(),
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r Request
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request:   &r,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithTransport(ctx, "mcp") },
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- status ---

type statusReq struct {
	SessionID string `json:"session_id"`
}

func (e *Engine) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrollshot_status",
		Description: "Report progress of a capture session.",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string"},
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*statusReq)
		snap, ok := e.Session(r.SessionID)
		if !ok {
			return nil, fmt.Errorf("unknown session %q", r.SessionID)
		}
		return snap, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r statusReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- cancel ---

func (e *Engine) registerCancelTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrollshot_cancel",
		Description: "Cancel a running capture session.",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string"},
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*statusReq)
		if !e.CancelSession(r.SessionID) {
			return nil, fmt.Errorf("session %q is not running", r.SessionID)
		}
		return map[string]any{"canceled": true}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r statusReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- formats ---

func (e *Engine) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scrollshot_formats",
		Description: "List supported output formats.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		type fm struct {
			Format    string `json:"format"`
			Extension string `json:"extension"`
			MIME      string `json:"mime"`
		}
		var out []fm
		for _, f := range []encoder.Format{encoder.FormatPNG, encoder.FormatJPEG, encoder.FormatPDF} {
			out = append(out, fm{string(f), encoder.Extension(f), encoder.MIMEType(f)})
		}
		return out, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
