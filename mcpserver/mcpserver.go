// Package mcpserver publishes a tool.Box over the Model Context Protocol, so
// MCP clients can call the Bedrock and Wikipedia tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/quells-bot/llmkit/tool"
	"github.com/rs/zerolog"
)

// emptySchema is advertised for tools that declare no input schema.
var emptySchema = json.RawMessage(`{"type":"object"}`)

// Server is an MCP server whose tools dispatch to tool.Tool handlers.
type Server struct {
	mcp *mcp.Server
	log zerolog.Logger
}

// New returns a Server that identifies itself as name/version.
func New(name, version string, log zerolog.Logger) *Server {
	impl := &mcp.Implementation{Name: name, Version: version}
	return &Server{
		mcp: mcp.NewServer(impl, nil),
		log: log.With().Str("component", "mcpserver").Logger(),
	}
}

// Register publishes tools. A tool registered twice replaces the earlier one.
func (s *Server) Register(tools ...tool.Tool) {
	for _, t := range tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = emptySchema
		}
		s.mcp.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		}, s.callHandler(t))
		s.log.Debug().Str("tool", t.Name).Msg("Registered tool")
	}
}

// Serve speaks MCP over newline-delimited JSON on in and out. Neither is
// closed when the session ends.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: writeNopCloser{out},
	})
}

// Run serves a single session on transport until ctx is done or the peer
// disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

// callHandler adapts a tool handler. Handler errors are returned as IsError
// results so the calling model can read them.
func (s *Server) callHandler(t tool.Tool) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := req.Params.Arguments
		if len(input) == 0 || string(input) == "null" {
			input = json.RawMessage("{}")
		}

		start := time.Now()
		text, err := t.Handler(ctx, input)
		if err != nil {
			s.log.Warn().Err(err).Str("tool", t.Name).Dur("elapsed", time.Since(start)).Msg("Tool call failed")
			return textResult(err.Error(), true), nil
		}
		s.log.Debug().Str("tool", t.Name).Dur("elapsed", time.Since(start)).Msg("Tool call complete")
		return textResult(text, false), nil
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

type writeNopCloser struct{ io.Writer }

func (writeNopCloser) Close() error { return nil }
