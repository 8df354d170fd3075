package core

import "context"

// Tool names understood by every transport.
const (
	OpReadJSON  = "files.readJson"
	OpWriteJSON = "files.writeJson"
)

// Argument and result keys of the files tools.
const (
	ArgPath    = "path"
	ArgData    = "data"
	ArgIfMatch = "ifMatch"
	ResultData = "data"
	ResultETag = "etag"
)

// Transport invokes a named remote operation.
//
// Implementations return a *RemoteToolError for every rejection. For
// files.writeJson, a non-null ifMatch that differs from the current token
// must fail with StatusConflict, and the compare and the mutation must be
// one atomic step per path.
type Transport interface {
	Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, name string, args map[string]any) (map[string]any, error)

func (f TransportFunc) Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	return f(ctx, name, args)
}
