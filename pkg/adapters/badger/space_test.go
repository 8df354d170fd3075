package badger_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmhack/filesdb/pkg/adapters/badger"
	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/core/spacetest"
	"github.com/acmhack/filesdb/pkg/etag"
)

func openSpace(t *testing.T) *badger.Space {
	t.Helper()
	space, err := badger.Open(badger.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { space.Close() })
	return space
}

func TestSpace_Conformance(t *testing.T) {
	spacetest.Run(t, func(t *testing.T) core.Transport {
		return core.NewLocalTransport(openSpace(t))
	})
}

func TestSpace_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	space, err := badger.Open(badger.Options{Dir: dir})
	require.NoError(t, err)
	tag, err := space.WriteDocument(ctx, "/p.json", json.RawMessage(`{"kept":true}`), nil)
	require.NoError(t, err)
	require.NoError(t, space.Close())

	reopened, err := badger.Open(badger.Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	doc, err := reopened.ReadDocument(ctx, "/p.json")
	require.NoError(t, err)
	assert.Equal(t, tag, doc.ETag)
	assert.JSONEq(t, `{"kept":true}`, string(doc.Data))
}

func TestSpace_NullContent(t *testing.T) {
	space := openSpace(t)
	ctx := context.Background()

	tag, err := space.WriteDocument(ctx, "/n.json", json.RawMessage(`null`), nil)
	require.NoError(t, err)
	assert.Equal(t, etag.Empty, tag)

	doc, err := space.ReadDocument(ctx, "/n.json")
	require.NoError(t, err)
	assert.Nil(t, doc.Data)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := badger.Open(badger.Options{})
	assert.Error(t, err)
}

func TestSpace_EmptyPath(t *testing.T) {
	space := openSpace(t)
	_, err := space.WriteDocument(context.Background(), "", json.RawMessage(`1`), nil)
	status, _ := core.StatusOf(err)
	assert.Equal(t, core.StatusBadRequest, status)
}
