package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmhack/filesdb/pkg/adapters/memory"
	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/core/spacetest"
	"github.com/acmhack/filesdb/pkg/etag"
)

func TestStore_MemoryTransport(t *testing.T) {
	spacetest.Run(t, func(t *testing.T) core.Transport {
		return memory.NewTransport()
	})
}

func TestStore_CanonicalScenario(t *testing.T) {
	store := core.NewStore(memory.NewTransport())
	ctx := context.Background()

	doc, err := store.Read(ctx, "/data/test.json")
	require.NoError(t, err)
	assert.Nil(t, doc.Data)
	assert.True(t, strings.HasPrefix(doc.ETag, "etag-"))

	tag, err := store.Write(ctx, "/data/test.json", map[string]any{"hello": "world"}, doc.ETag)
	require.NoError(t, err)
	assert.NotEqual(t, doc.ETag, tag)

	back, err := store.Read(ctx, "/data/test.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(back.Data))
	assert.Equal(t, tag, back.ETag)
}

// stub answers every call with a fixed response.
func stub(res map[string]any, err error) core.TransportFunc {
	return func(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
		return res, err
	}
}

func TestStore_MissingETagEscalates(t *testing.T) {
	ctx := context.Background()

	responses := map[string]map[string]any{
		"nil response":   nil,
		"no etag key":    {"data": json.RawMessage(`{}`)},
		"null etag":      {"data": nil, "etag": nil},
		"empty etag":     {"etag": ""},
		"non-string tag": {"etag": 42},
	}

	for name, res := range responses {
		t.Run(name, func(t *testing.T) {
			store := core.NewStore(stub(res, nil))

			_, err := store.Read(ctx, "/x.json")
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrMissingETag))
			status, ok := core.StatusOf(err)
			require.True(t, ok)
			assert.Equal(t, core.StatusInternal, status)
			assert.Contains(t, err.Error(), core.OpReadJSON)

			tag, err := store.Write(ctx, "/x.json", map[string]any{"a": 1}, "")
			require.Error(t, err)
			assert.Empty(t, tag)
			assert.True(t, errors.Is(err, core.ErrMissingETag))
			assert.Contains(t, err.Error(), core.OpWriteJSON)

			_, err = store.Swap(ctx, "/x.json", map[string]any{"a": 1}, "")
			assert.True(t, errors.Is(err, core.ErrMissingETag))
		})
	}
}

func TestStore_FailuresPropagateUnchanged(t *testing.T) {
	ctx := context.Background()

	for _, status := range []int{core.StatusBadRequest, core.StatusConflict, core.StatusInternal, 503} {
		remote := core.NewRemoteToolError(status, "rejected")
		store := core.NewStore(stub(nil, remote))

		_, err := store.Read(ctx, "/x.json")
		assert.Same(t, remote, err)

		_, err = store.Write(ctx, "/x.json", 1, "etag-old")
		assert.Same(t, remote, err)
		assert.False(t, errors.Is(err, core.ErrMissingETag))
	}
}

func TestStore_NoAutomaticRetry(t *testing.T) {
	calls := 0
	store := core.NewStore(core.TransportFunc(func(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
		calls++
		return nil, core.NewRemoteToolError(core.StatusConflict, "etag mismatch")
	}))

	_, err := store.Write(context.Background(), "/x.json", 1, "etag-stale")
	require.True(t, core.IsConflict(err))
	assert.Equal(t, 1, calls)
}

func TestStore_WriteArguments(t *testing.T) {
	var got map[string]any
	store := core.NewStore(core.TransportFunc(func(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
		assert.Equal(t, core.OpWriteJSON, name)
		got = args
		return map[string]any{"etag": "etag-new"}, nil
	}))
	ctx := context.Background()

	_, err := store.Write(ctx, "/a.json", map[string]int{"n": 1}, "")
	require.NoError(t, err)
	assert.Equal(t, "/a.json", got[core.ArgPath])
	assert.Nil(t, got[core.ArgIfMatch], "unconditional writes send a null ifMatch")
	assert.JSONEq(t, `{"n":1}`, string(got[core.ArgData].(json.RawMessage)))

	_, err = store.Write(ctx, "/a.json", json.RawMessage(`[1,2]`), "etag-abc")
	require.NoError(t, err)
	assert.Equal(t, "etag-abc", got[core.ArgIfMatch])

	_, err = store.Write(ctx, "/a.json", json.RawMessage(`{broken`), "")
	require.Error(t, err)
	_, ok := core.StatusOf(err)
	assert.False(t, ok, "local encoding failures are not transport errors")
}

func TestStore_Swap(t *testing.T) {
	store := core.NewStore(memory.NewTransport())
	ctx := context.Background()

	res, err := store.Swap(ctx, "/s.json", map[string]any{"v": 1}, "")
	require.NoError(t, err)
	assert.Equal(t, core.Written, res.Outcome)
	first := res.ETag

	res, err = store.Swap(ctx, "/s.json", map[string]any{"v": 2}, first)
	require.NoError(t, err)
	assert.Equal(t, core.Written, res.Outcome)

	res, err = store.Swap(ctx, "/s.json", map[string]any{"v": 3}, first)
	require.NoError(t, err)
	assert.Equal(t, core.Conflict, res.Outcome)
	assert.Equal(t, core.StatusConflict, res.Status)
	assert.Empty(t, res.ETag)

	failing := core.NewStore(stub(nil, core.NewRemoteToolError(core.StatusBadRequest, "bad path")))
	res, err = failing.Swap(ctx, "", 1, "")
	require.NoError(t, err)
	assert.Equal(t, core.Failed, res.Outcome)
	assert.Equal(t, core.StatusBadRequest, res.Status)
	assert.Equal(t, "bad path", res.Message)

	broken := core.NewStore(stub(nil, errors.New("pipe closed")))
	_, err = broken.Swap(ctx, "/s.json", 1, "")
	assert.EqualError(t, err, "pipe closed")
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("retries on conflict", func(t *testing.T) {
		space := memory.NewSpace()
		store := core.NewStore(core.NewLocalTransport(space))
		_, err := store.Write(ctx, "/c.json", map[string]int{"n": 1}, "")
		require.NoError(t, err)

		interfered := false
		doc, err := store.Update(ctx, "/c.json", func(cur core.Document) (any, error) {
			var v map[string]int
			require.NoError(t, cur.Decode(&v))
			if !interfered {
				// A competing writer lands between our read and write.
				interfered = true
				_, err := store.Write(ctx, "/c.json", map[string]int{"n": 10}, "")
				require.NoError(t, err)
			}
			v["n"]++
			return v, nil
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":11}`, string(doc.Data))

		cur, err := store.Read(ctx, "/c.json")
		require.NoError(t, err)
		assert.Equal(t, cur.ETag, doc.ETag)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		store := core.NewStore(memory.NewTransport())
		n := 0
		_, err := store.Update(ctx, "/c.json", func(cur core.Document) (any, error) {
			n++
			_, err := store.Write(ctx, "/c.json", map[string]int{"other": n}, "")
			require.NoError(t, err)
			return map[string]int{"mine": n}, nil
		}, core.WithMaxAttempts(3))
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrTooManyConflicts))
		assert.True(t, core.IsConflict(err))
		assert.Equal(t, 3, n)
	})

	t.Run("fn error stops the loop", func(t *testing.T) {
		store := core.NewStore(memory.NewTransport())
		boom := errors.New("boom")
		_, err := store.Update(ctx, "/c.json", func(core.Document) (any, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	})
}

func TestStore_State(t *testing.T) {
	store := core.NewStore(memory.NewTransport())
	state, ok := store.State().(core.StoreState)
	require.True(t, ok)
	assert.Equal(t, "local", state.TransportType)
	assert.Equal(t, "memory", state.SpaceType)
	assert.Equal(t, "store", store.ComponentType())
	assert.NoError(t, store.Close())
}

func TestDocument_Exists(t *testing.T) {
	assert.False(t, core.Document{}.Exists())
	assert.False(t, core.Document{Data: json.RawMessage("null")}.Exists())
	assert.True(t, core.Document{Data: json.RawMessage("0")}.Exists())

	var v any
	require.NoError(t, core.Document{ETag: etag.Empty}.Decode(&v))
	assert.Nil(t, v)
}
