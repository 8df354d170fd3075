package platform_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmhack/filesdb/internal/platform"
	"github.com/acmhack/filesdb/pkg/adapters/memory"
	"github.com/acmhack/filesdb/pkg/core"
)

func TestOpen_Adapters(t *testing.T) {
	tests := []struct {
		name string
		uri  func(t *testing.T) string
		opts []platform.Option
	}{
		{"fs", func(t *testing.T) string { return t.TempDir() }, nil},
		{"memory", func(*testing.T) string { return "" }, []platform.Option{platform.WithAdapter(platform.AdapterMemory)}},
		{"badger in memory", func(*testing.T) string { return "" }, []platform.Option{
			platform.WithAdapter(platform.AdapterBadger), platform.WithInMemory(true),
		}},
		{"badger on disk", func(t *testing.T) string { return t.TempDir() }, []platform.Option{platform.WithAdapter(platform.AdapterBadger)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := platform.Open(ctx, tt.uri(t), tt.opts...)
			require.NoError(t, err)
			defer store.Close()

			tag, err := store.Write(ctx, "/a.json", map[string]int{"n": 1}, "")
			require.NoError(t, err)

			doc, err := store.Read(ctx, "/a.json")
			require.NoError(t, err)
			assert.Equal(t, tag, doc.ETag)
			assert.JSONEq(t, `{"n":1}`, string(doc.Data))
		})
	}
}

func TestOpen_FSWritesUnderRoot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := platform.Open(ctx, dir, platform.WithSystemDir(".meta"))
	require.NoError(t, err)

	_, err = store.Write(ctx, "/notes/today.json", []string{"a"}, "")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "notes", "today.json"))
	require.NoError(t, err)
	var got []string
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, []string{"a"}, got)

	_, err = os.Stat(filepath.Join(dir, ".meta"))
	assert.NoError(t, err)
}

func TestOpen_Injection(t *testing.T) {
	ctx := context.Background()

	tr := memory.NewTransport()
	store, err := platform.Open(ctx, "ignored", platform.WithTransport(tr))
	require.NoError(t, err)
	assert.Same(t, tr, store.Transport())

	space := memory.NewSpace()
	store, err = platform.Open(ctx, "ignored", platform.WithAdapter(platform.AdapterMCP), platform.WithSpace(space))
	require.NoError(t, err)
	local, ok := store.Transport().(*core.LocalTransport)
	require.True(t, ok)
	assert.Same(t, space, local.Space())
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := platform.Open(ctx, "x", platform.WithAdapter("s3"))
	assert.ErrorContains(t, err, "unknown adapter")

	_, err = platform.Open(ctx, "files", platform.WithAdapter(platform.AdapterMCP))
	assert.Error(t, err)

	_, err = platform.Open(ctx, filepath.Join(t.TempDir(), "missing"), platform.WithMustExist(true))
	assert.Error(t, err)
}

func TestOpen_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := platform.Open(ctx, dir, platform.WithReadOnly(true))
	require.NoError(t, err)

	_, err = store.Write(ctx, "/a.json", 1, "")
	assert.ErrorIs(t, err, core.ErrReadOnly)
}

func TestResolvePath(t *testing.T) {
	tmp := t.TempDir()
	assert.Equal(t, tmp, platform.ResolvePath(tmp, true))
	assert.Equal(t, "data", platform.ResolvePath("data", false))
	assert.Equal(t, ".", platform.ResolvePath("", false))
	assert.Equal(t, filepath.Join(os.TempDir(), "filesdb-dev", "data"), platform.ResolvePath("/srv/data", true))
}
