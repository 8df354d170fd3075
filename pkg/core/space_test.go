package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmhack/filesdb/pkg/adapters/memory"
	"github.com/acmhack/filesdb/pkg/core"
)

func TestDispatch_Validation(t *testing.T) {
	tr := memory.NewTransport()
	ctx := context.Background()

	tests := []struct {
		name string
		op   string
		args map[string]any
	}{
		{"unknown tool", "files.deleteJson", map[string]any{"path": "/a"}},
		{"read without path", core.OpReadJSON, map[string]any{}},
		{"read with numeric path", core.OpReadJSON, map[string]any{"path": 7}},
		{"write without data", core.OpWriteJSON, map[string]any{"path": "/a"}},
		{"write with invalid raw data", core.OpWriteJSON, map[string]any{"path": "/a", "data": json.RawMessage("{")}},
		{"write with numeric ifMatch", core.OpWriteJSON, map[string]any{"path": "/a", "data": 1, "ifMatch": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Invoke(ctx, tt.op, tt.args)
			status, ok := core.StatusOf(err)
			require.True(t, ok, "expected RemoteToolError, got %v", err)
			assert.Equal(t, core.StatusBadRequest, status)
		})
	}
}

type failingSpace struct{ err error }

func (f failingSpace) ReadDocument(context.Context, string) (core.Document, error) {
	return core.Document{}, f.err
}

func (f failingSpace) WriteDocument(context.Context, string, json.RawMessage, *string) (string, error) {
	return "", f.err
}

func TestDispatch_SpaceErrors(t *testing.T) {
	ctx := context.Background()

	cause := errors.New("disk full")
	_, err := core.Dispatch(ctx, failingSpace{cause}, core.OpWriteJSON, map[string]any{"path": "/a", "data": 1})
	status, _ := core.StatusOf(err)
	assert.Equal(t, core.StatusInternal, status)
	assert.ErrorIs(t, err, cause)

	conflict := core.NewRemoteToolError(core.StatusConflict, "etag mismatch")
	_, err = core.Dispatch(ctx, failingSpace{conflict}, core.OpWriteJSON, map[string]any{"path": "/a", "data": 1})
	assert.Same(t, conflict, err)

	_, err = core.Dispatch(ctx, failingSpace{context.Canceled}, core.OpReadJSON, map[string]any{"path": "/a"})
	status, _ = core.StatusOf(err)
	assert.Equal(t, core.StatusUnavailable, status)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteToolError(t *testing.T) {
	err := core.NewRemoteToolError(core.StatusConflict, "etag mismatch")
	assert.Equal(t, "remote tool error 409: etag mismatch", err.Error())
	assert.True(t, core.IsConflict(err))
	assert.False(t, core.IsConflict(errors.New("409")))

	wrapped := core.WrapRemoteToolError(core.StatusUnavailable, context.DeadlineExceeded, "")
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
	assert.Equal(t, context.DeadlineExceeded.Error(), wrapped.Message)

	_, ok := core.StatusOf(nil)
	assert.False(t, ok)
}
