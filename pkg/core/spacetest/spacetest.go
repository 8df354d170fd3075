// Package spacetest holds conformance scenarios shared by every transport.
package spacetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/etag"
)

// Factory returns a fresh, empty transport for one subtest.
type Factory func(t *testing.T) core.Transport

// Run exercises the store contract against transports built by newTransport.
func Run(t *testing.T, newTransport Factory) {
	t.Helper()

	t.Run("ImplicitEmptyThenRoundTrip", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		doc, err := store.Read(ctx, "/data/test.json")
		require.NoError(t, err)
		assert.False(t, doc.Exists())
		assert.Equal(t, etag.Empty, doc.ETag)

		tag, err := store.Write(ctx, "/data/test.json", map[string]any{"hello": "world"}, doc.ETag)
		require.NoError(t, err)
		assert.NotEqual(t, doc.ETag, tag)

		back, err := store.Read(ctx, "/data/test.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"hello":"world"}`, string(back.Data))
		assert.Equal(t, tag, back.ETag)
	})

	t.Run("UnconditionalRoundTrip", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		content := map[string]any{"list": []any{1, "two", 3.5}, "nested": map[string]any{"ok": true}}
		tag, err := store.Write(ctx, "/rt.json", content, "")
		require.NoError(t, err)

		doc, err := store.Read(ctx, "/rt.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"list":[1,"two",3.5],"nested":{"ok":true}}`, string(doc.Data))
		assert.Equal(t, tag, doc.ETag)
	})

	t.Run("LargeIntegersStayExact", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		content := json.RawMessage(`{"id":9007199254740993,"ratio":0.1000000000000000055511151231257827}`)
		want, err := etag.Of(content)
		require.NoError(t, err)

		tag, err := store.Write(ctx, "/big.json", content, etag.Empty)
		require.NoError(t, err)
		assert.Equal(t, want, tag)

		doc, err := store.Read(ctx, "/big.json")
		require.NoError(t, err)
		assert.Contains(t, string(doc.Data), `9007199254740993`)
		assert.Contains(t, string(doc.Data), `0.1000000000000000055511151231257827`)
		assert.Equal(t, want, doc.ETag)

		_, err = store.Write(ctx, "/big.json", json.RawMessage(`{"id":9007199254740992}`), want)
		require.NoError(t, err)
		_, err = store.Write(ctx, "/big.json", content, want)
		assert.True(t, core.IsConflict(err), "a neighbouring integer must not share the etag")
	})

	t.Run("ContentAddressing", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		first, err := store.Write(ctx, "/same.json", map[string]any{"a": 1, "b": 2}, "")
		require.NoError(t, err)
		second, err := store.Write(ctx, "/same.json", map[string]any{"b": 2, "a": 1}, "")
		require.NoError(t, err)
		assert.Equal(t, first, second)

		want, err := etag.Of([]byte(`{"a":1,"b":2}`))
		require.NoError(t, err)
		assert.Equal(t, want, first)
	})

	t.Run("StaleETagConflicts", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		doc, err := store.Read(ctx, "/data/thing.json")
		require.NoError(t, err)

		e1, err := store.Write(ctx, "/data/thing.json", map[string]any{"v": 1}, doc.ETag)
		require.NoError(t, err)

		e2, err := store.Write(ctx, "/data/thing.json", map[string]any{"v": 2}, e1)
		require.NoError(t, err)
		assert.NotEqual(t, e1, e2)

		_, err = store.Write(ctx, "/data/thing.json", map[string]any{"v": 3}, e1)
		require.Error(t, err)
		status, ok := core.StatusOf(err)
		require.True(t, ok, "conflict must be a RemoteToolError, got %v", err)
		assert.Equal(t, core.StatusConflict, status)
		assert.True(t, core.IsConflict(err))

		// State unchanged by the rejected write.
		cur, err := store.Read(ctx, "/data/thing.json")
		require.NoError(t, err)
		assert.Equal(t, e2, cur.ETag)
		assert.JSONEq(t, `{"v":2}`, string(cur.Data))
	})

	t.Run("RecoveryAfterConflict", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		e0, err := store.Write(ctx, "/r.json", map[string]any{"v": 0}, "")
		require.NoError(t, err)
		e1, err := store.Write(ctx, "/r.json", map[string]any{"v": 1}, e0)
		require.NoError(t, err)

		_, err = store.Write(ctx, "/r.json", map[string]any{"v": 2}, e0)
		require.True(t, core.IsConflict(err))

		cur, err := store.Read(ctx, "/r.json")
		require.NoError(t, err)
		require.Equal(t, e1, cur.ETag)

		e2, err := store.Write(ctx, "/r.json", map[string]any{"v": 2}, cur.ETag)
		require.NoError(t, err)
		assert.NotEqual(t, e1, e2)
	})

	t.Run("UnconditionalWriteWins", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		_, err := store.Write(ctx, "/u.json", map[string]any{"owner": "a"}, "")
		require.NoError(t, err)
		_, err = store.Write(ctx, "/u.json", map[string]any{"owner": "b"}, "")
		require.NoError(t, err)

		tag, err := store.Write(ctx, "/u.json", map[string]any{"owner": "c"}, "")
		require.NoError(t, err)
		want, err := etag.Of([]byte(`{"owner":"c"}`))
		require.NoError(t, err)
		assert.Equal(t, want, tag)
	})

	t.Run("ConcurrentStaleWritersExactlyOneWins", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		base, err := store.Read(ctx, "/race.json")
		require.NoError(t, err)

		const writers = 8
		var (
			mu        sync.Mutex
			wins      int
			conflicts int
		)
		start := make(chan struct{})
		var g errgroup.Group
		for i := 0; i < writers; i++ {
			g.Go(func() error {
				<-start
				_, err := store.Write(ctx, "/race.json", map[string]any{"writer": i}, base.ETag)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case core.IsConflict(err):
					conflicts++
				default:
					return fmt.Errorf("writer %d: %w", i, err)
				}
				return nil
			})
		}
		close(start)
		require.NoError(t, g.Wait())

		assert.Equal(t, 1, wins)
		assert.Equal(t, writers-1, conflicts)
	})

	t.Run("ConcurrentUpdatesAreLinear", func(t *testing.T) {
		store := core.NewStore(newTransport(t))
		ctx := context.Background()

		const workers = 4
		const perWorker = 5
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				for j := 0; j < perWorker; j++ {
					_, err := store.Update(ctx, "/counter.json", func(cur core.Document) (any, error) {
						var c struct{ N int }
						if err := cur.Decode(&c); err != nil {
							return nil, err
						}
						c.N++
						return c, nil
					}, core.WithMaxAttempts(1000))
					if err != nil {
						return err
					}
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		doc, err := store.Read(ctx, "/counter.json")
		require.NoError(t, err)
		assert.JSONEq(t, fmt.Sprintf(`{"N":%d}`, workers*perWorker), string(doc.Data))
	})
}
