// Package mcp exposes a document space as MCP tools and implements the
// store transport as an MCP client.
//
// Success results carry one text content holding the JSON result object.
// Failures set isError and carry {"status": <int>, "message": <string>}.
//
// MCP arguments are decoded as plain JSON, which turns numbers into
// float64. To keep content exact, the client sends files.writeJson content
// as JSON text in "dataJson"; "data" is still accepted from other clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/acmhack/filesdb/pkg/core"
)

const serverName = "filesdb"

// ArgDataJSON carries files.writeJson content as JSON text. It takes
// precedence over "data".
const ArgDataJSON = "dataJson"

var writeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "path": {"type": "string", "description": "Document path."},
    "data": {"description": "JSON content to store. Numbers beyond float64 precision may change; prefer dataJson."},
    "dataJson": {"type": "string", "description": "JSON content to store, as JSON text. Takes precedence over data."},
    "ifMatch": {"type": ["string", "null"], "description": "Expected current version token; null writes unconditionally."}
  },
  "required": ["path"]
}`)

// Server serves the files tools for a space.
type Server struct {
	space  core.Space
	mcp    *server.MCPServer
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	version string
	logger  *slog.Logger
}

// WithServerVersion sets the version advertised during initialization.
func WithServerVersion(v string) ServerOption {
	return func(o *serverOptions) { o.version = v }
}

// WithServerLogger sets the logger used for tool calls.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// NewServer registers files.readJson and files.writeJson over space.
func NewServer(space core.Space, opts ...ServerOption) *Server {
	o := serverOptions{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		space:  space,
		mcp:    server.NewMCPServer(serverName, o.version, server.WithToolCapabilities(false)),
		logger: o.logger,
	}

	s.mcp.AddTool(mcp.NewTool(core.OpReadJSON,
		mcp.WithDescription("Read a JSON document and its version token."),
		mcp.WithString(core.ArgPath, mcp.Required(), mcp.Description("Document path.")),
	), s.handler(core.OpReadJSON))

	s.mcp.AddTool(mcp.NewToolWithRawSchema(core.OpWriteJSON,
		"Write a JSON document, optionally only if its version token matches.",
		writeSchema,
	), s.handler(core.OpWriteJSON))

	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Space returns the served space.
func (s *Server) Space() core.Space { return s.space }

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := exactArgs(req.GetArguments())
		if err != nil {
			return errorResult(err), nil
		}

		res, err := core.Dispatch(ctx, s.space, name, args)
		if err != nil {
			if s.logger != nil {
				s.logger.Debug("tool call rejected", "tool", name, "error", err)
			}
			return errorResult(err), nil
		}

		b, err := json.Marshal(res)
		if err != nil {
			return errorResult(core.WrapRemoteToolError(core.StatusInternal, err, "")), nil
		}
		if s.logger != nil {
			s.logger.Debug("tool call", "tool", name, "path", req.GetArguments()[core.ArgPath])
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}

// exactArgs replaces dataJson with the raw content it holds.
func exactArgs(args map[string]any) (map[string]any, error) {
	v, ok := args[ArgDataJSON]
	if !ok {
		return args, nil
	}
	text, ok := v.(string)
	if !ok {
		return nil, core.NewRemoteToolError(core.StatusBadRequest, "argument %q must be a string", ArgDataJSON)
	}
	if !json.Valid([]byte(text)) {
		return nil, core.NewRemoteToolError(core.StatusBadRequest, "argument %q is not valid json", ArgDataJSON)
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	delete(out, ArgDataJSON)
	out[core.ArgData] = json.RawMessage(text)
	return out, nil
}

// toolError is the wire shape of a failed call.
type toolError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func errorResult(err error) *mcp.CallToolResult {
	te := toolError{Status: core.StatusInternal, Message: err.Error()}
	var rte *core.RemoteToolError
	if errors.As(err, &rte) {
		te = toolError{Status: rte.Status, Message: rte.Message}
	}
	b, _ := json.Marshal(te)
	return mcp.NewToolResultError(string(b))
}

// ServeStdio serves over in and out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	if s.logger != nil {
		stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	}
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ServeSSE serves over HTTP server-sent events on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sse := server.NewSSEServer(s.mcp, server.WithBaseURL("http://"+addr))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.logger != nil {
			s.logger.Info("serving mcp over sse", "addr", addr)
		}
		if err := sse.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sse server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return sse.Shutdown(context.WithoutCancel(ctx))
	})
	return g.Wait()
}
