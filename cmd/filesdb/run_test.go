package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmhack/filesdb/internal/platform"
	"github.com/acmhack/filesdb/pkg/adapters/badger"
	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/etag"
)

func TestRunWrite_ClosesStoreOnEveryOutcome(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	open := func() *core.Store {
		store, err := platform.Open(ctx, dir, platform.WithAdapter(platform.AdapterBadger))
		require.NoError(t, err)
		return store
	}

	var stdout, stderr bytes.Buffer
	code := runWrite(ctx, open(), "/a.json", []byte(`{"v":1}`), etag.Empty, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	first := strings.TrimSpace(stdout.String())

	stderr.Reset()
	code = runWrite(ctx, open(), "/a.json", []byte(`{"v":2}`), etag.Empty, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "conflict")

	// badger locks its directory; reopening only works if the last run closed it.
	space, err := badger.Open(badger.Options{Dir: dir})
	require.NoError(t, err)
	doc, err := space.ReadDocument(ctx, "/a.json")
	require.NoError(t, err)
	assert.Equal(t, first, doc.ETag)
	require.NoError(t, space.Close())
}

func TestRunRead_DataOnlyKeepsNumbersExact(t *testing.T) {
	ctx := context.Background()
	store, err := platform.Open(ctx, "", platform.WithAdapter(platform.AdapterMemory))
	require.NoError(t, err)
	_, err = store.Write(ctx, "/n.json", []byte(`{"id":9007199254740993}`), "")
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	code := runRead(ctx, store, "/n.json", true, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "9007199254740993")
	assert.True(t, strings.HasPrefix(stderr.String(), etag.Prefix))
}
