package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Space owns a document space: the mapping from path to content and token.
//
// WriteDocument must compare ifMatch against the current token and apply
// the write as one atomic step per path. A nil ifMatch means unconditional.
type Space interface {
	ReadDocument(ctx context.Context, path string) (Document, error)
	WriteDocument(ctx context.Context, path string, data json.RawMessage, ifMatch *string) (string, error)
}

// Watchable defines spaces that can report changes.
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

// LocalTransport dispatches tool invocations directly to a Space.
type LocalTransport struct {
	space Space
}

// NewLocalTransport creates a transport serving the files tools from space.
func NewLocalTransport(space Space) *LocalTransport {
	return &LocalTransport{space: space}
}

// Space returns the space behind the transport.
func (t *LocalTransport) Space() Space { return t.space }

// Close closes the space if it holds resources.
func (t *LocalTransport) Close() error {
	if c, ok := t.space.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Invoke implements Transport.
func (t *LocalTransport) Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	return Dispatch(ctx, t.space, name, args)
}

// Dispatch runs a files tool against space. Request validation failures are
// StatusBadRequest; space errors outside the taxonomy become StatusInternal.
func Dispatch(ctx context.Context, space Space, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case OpReadJSON:
		path, err := pathArg(args)
		if err != nil {
			return nil, err
		}
		doc, err := space.ReadDocument(ctx, path)
		if err != nil {
			return nil, asRemote(err)
		}
		var data any
		if doc.Data != nil {
			data = doc.Data
		}
		return map[string]any{ResultData: data, ResultETag: doc.ETag}, nil

	case OpWriteJSON:
		path, err := pathArg(args)
		if err != nil {
			return nil, err
		}
		data, err := dataArg(args)
		if err != nil {
			return nil, err
		}
		ifMatch, err := ifMatchArg(args)
		if err != nil {
			return nil, err
		}
		tag, err := space.WriteDocument(ctx, path, data, ifMatch)
		if err != nil {
			return nil, asRemote(err)
		}
		return map[string]any{ResultETag: tag}, nil

	default:
		return nil, NewRemoteToolError(StatusBadRequest, "unknown tool %s", name)
	}
}

func pathArg(args map[string]any) (string, error) {
	path, ok := args[ArgPath].(string)
	if !ok || path == "" {
		return "", NewRemoteToolError(StatusBadRequest, "argument %q must be a non-empty string", ArgPath)
	}
	return path, nil
}

func dataArg(args map[string]any) (json.RawMessage, error) {
	v, ok := args[ArgData]
	if !ok {
		return nil, NewRemoteToolError(StatusBadRequest, "argument %q is required", ArgData)
	}
	data, err := EncodeData(v)
	if err != nil {
		return nil, WrapRemoteToolError(StatusBadRequest, err, "")
	}
	return data, nil
}

func ifMatchArg(args map[string]any) (*string, error) {
	v, ok := args[ArgIfMatch]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, NewRemoteToolError(StatusBadRequest, "argument %q must be a string or null", ArgIfMatch)
	}
	return &s, nil
}

// EncodeData converts a content value into JSON. Raw JSON is validated and
// passed through unchanged.
func EncodeData(v any) (json.RawMessage, error) {
	switch d := v.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if !json.Valid(d) {
			return nil, fmt.Errorf("data is not valid json")
		}
		return d, nil
	case []byte:
		if !json.Valid(d) {
			return nil, fmt.Errorf("data is not valid json")
		}
		return json.RawMessage(d), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode data: %w", err)
		}
		return b, nil
	}
}

func asRemote(err error) error {
	var rte *RemoteToolError
	if errors.As(err, &rte) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return WrapRemoteToolError(StatusUnavailable, err, "")
	}
	return WrapRemoteToolError(StatusInternal, err, "")
}
