package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/acmhack/filesdb/pkg/core"
)

// DefaultCallTimeout bounds a single tool call.
const DefaultCallTimeout = 30 * time.Second

// ErrMalformedResult reports a tool result that does not follow the wire shape.
var ErrMalformedResult = errors.New("malformed tool result")

// toolCaller is the part of the mcp-go client the transport uses.
type toolCaller interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Client implements core.Transport over an MCP session.
type Client struct {
	name        string
	client      toolCaller
	callTimeout time.Duration
	maxRetries  int
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCallTimeout bounds each tool call. Zero disables the bound.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.callTimeout = d }
}

// WithMaxRetries sets how many times a read is retried after a
// connection-level failure. Writes are never retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithClientLogger sets the logger for tool calls.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithName labels the client in logs.
func WithName(name string) ClientOption {
	return func(c *Client) { c.name = name }
}

func newClient(ctx context.Context, tc toolCaller, opts ...ClientOption) (*Client, error) {
	c := &Client{
		name:        serverName,
		client:      tc,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	initCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{Name: "filesdb-client", Version: "0.1.0"}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := tc.Initialize(initCtx, initRequest); err != nil {
		tc.Close()
		return nil, fmt.Errorf("initialize mcp client %s: %w", c.name, err)
	}
	if c.logger != nil {
		c.logger.Debug("mcp client initialized", "name", c.name)
	}
	return c, nil
}

// NewStream runs a session over an established byte stream: r carries
// server output and w carries client input.
func NewStream(ctx context.Context, r io.Reader, w io.WriteCloser, opts ...ClientOption) (*Client, error) {
	cl := mcpclient.NewClient(transport.NewIO(r, w, io.NopCloser(strings.NewReader(""))))
	if err := cl.Start(ctx); err != nil {
		return nil, fmt.Errorf("start stream transport: %w", err)
	}
	return newClient(ctx, cl, opts...)
}

// NewInProcess connects a client directly to srv without any I/O.
func NewInProcess(ctx context.Context, srv *Server, opts ...ClientOption) (*Client, error) {
	cl, err := mcpclient.NewInProcessClient(srv.MCPServer())
	if err != nil {
		return nil, fmt.Errorf("create in-process client: %w", err)
	}
	if err := cl.Start(ctx); err != nil {
		return nil, fmt.Errorf("start in-process client: %w", err)
	}
	return newClient(ctx, cl, opts...)
}

// Dial starts or connects to the server described by sc.
func Dial(ctx context.Context, sc ServerConfig, opts ...ClientOption) (*Client, error) {
	var (
		cl  *mcpclient.Client
		err error
	)
	if sc.Command == SSECommand {
		if len(sc.Args) == 0 {
			return nil, fmt.Errorf("no arguments provided for sse command")
		}
		cl, err = mcpclient.NewSSEMCPClient(sc.Args[0])
		if err == nil {
			err = cl.Start(ctx)
		}
	} else {
		cl, err = mcpclient.NewStdioMCPClient(sc.Command, sc.env(), sc.Args...)
	}
	if err != nil {
		return nil, fmt.Errorf("connect mcp server: %w", err)
	}
	return newClient(ctx, cl, opts...)
}

// DialNamed connects to the server called name in cfg.
func DialNamed(ctx context.Context, cfg *Config, name string, opts ...ClientOption) (*Client, error) {
	sc, err := cfg.Server(name)
	if err != nil {
		return nil, err
	}
	return Dial(ctx, sc, append([]ClientOption{WithName(name)}, opts...)...)
}

// Invoke implements core.Transport.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	request := mcp.CallToolRequest{
		Request: mcp.Request{
			Method: "tools/call",
		},
	}
	request.Params.Name = name
	wireArgs, err := encodeArgs(args)
	if err != nil {
		return nil, core.WrapRemoteToolError(core.StatusBadRequest, err, "")
	}
	request.Params.Arguments = wireArgs

	callID := uuid.NewString()
	attempts := 1
	if name == core.OpReadJSON {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.logger != nil {
			c.logger.Debug("tool call", "server", c.name, "tool", name, "call_id", callID, "attempt", attempt)
		}

		callCtx, cancel := c.withTimeout(ctx)
		result, err := c.client.CallTool(callCtx, request)
		cancel()
		if err == nil {
			return decodeResult(name, result)
		}

		lastErr = core.WrapRemoteToolError(core.StatusUnavailable, err, "")
		if c.logger != nil {
			c.logger.Warn("tool call failed", "server", c.name, "tool", name, "call_id", callID, "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Close ends the session.
func (c *Client) Close() error {
	return c.client.Close()
}

// ComponentType implements introspection.Component.
func (c *Client) ComponentType() string {
	return "mcp"
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

// encodeArgs moves "data" into its exact JSON text form, dataJson.
func encodeArgs(args map[string]any) (map[string]any, error) {
	v, ok := args[core.ArgData]
	if !ok {
		return args, nil
	}
	raw, err := core.EncodeData(v)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	delete(out, core.ArgData)
	out[ArgDataJSON] = string(raw)
	return out, nil
}

func decodeResult(tool string, result *mcp.CallToolResult) (map[string]any, error) {
	if result == nil {
		return nil, core.WrapRemoteToolError(core.StatusInternal, ErrMalformedResult, "empty result from "+tool)
	}
	text, ok := textOf(result)

	if result.IsError {
		var te toolError
		if !ok || json.Unmarshal([]byte(text), &te) != nil || te.Status == 0 {
			msg := text
			if !ok {
				msg = "failed to call tool " + tool
			}
			return nil, core.NewRemoteToolError(core.StatusInternal, "%s", msg)
		}
		return nil, core.NewRemoteToolError(te.Status, "%s", te.Message)
	}

	if !ok {
		return nil, core.WrapRemoteToolError(core.StatusInternal, ErrMalformedResult, "no text content from "+tool)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, core.WrapRemoteToolError(core.StatusInternal, errors.Join(ErrMalformedResult, err), "")
	}

	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		out[k] = fieldValue(raw)
	}
	return out, nil
}

// fieldValue turns JSON strings into Go strings and null into nil. Other
// values stay raw so numbers keep their exact text.
func fieldValue(raw json.RawMessage) any {
	if string(raw) == "null" {
		return nil
	}
	var s string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return raw
}

func textOf(result *mcp.CallToolResult) (string, bool) {
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			return c.Text, true
		case *mcp.TextContent:
			return c.Text, true
		}
	}
	return "", false
}

var _ core.Transport = (*Client)(nil)
