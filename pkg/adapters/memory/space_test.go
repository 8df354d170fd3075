package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmhack/filesdb/pkg/adapters/memory"
	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/core/spacetest"
	"github.com/acmhack/filesdb/pkg/etag"
)

func TestSpace_Conformance(t *testing.T) {
	spacetest.Run(t, func(t *testing.T) core.Transport {
		return memory.NewTransport()
	})
}

func TestSpace_MaterializesOnRead(t *testing.T) {
	s := memory.NewSpace()
	ctx := context.Background()

	doc, err := s.ReadDocument(ctx, "/fresh.json")
	require.NoError(t, err)
	assert.Nil(t, doc.Data)
	assert.Equal(t, etag.Empty, doc.ETag)
	assert.Equal(t, 1, s.Len())
}

func TestSpace_SharedEmptyToken(t *testing.T) {
	s := memory.NewSpace()
	ctx := context.Background()

	a, err := s.ReadDocument(ctx, "/a.json")
	require.NoError(t, err)

	// Absence is one content identity, so another fresh path's token matches.
	tag := a.ETag
	_, err = s.WriteDocument(ctx, "/b.json", json.RawMessage(`1`), &tag)
	assert.NoError(t, err)
}

func TestSpace_InstancesAreIndependent(t *testing.T) {
	ctx := context.Background()
	a, b := memory.NewSpace(), memory.NewSpace()

	_, err := a.WriteDocument(ctx, "/x.json", json.RawMessage(`{"v":1}`), nil)
	require.NoError(t, err)

	doc, err := b.ReadDocument(ctx, "/x.json")
	require.NoError(t, err)
	assert.False(t, doc.Exists())
}

func TestSpace_ReturnsCopies(t *testing.T) {
	s := memory.NewSpace()
	ctx := context.Background()
	_, err := s.WriteDocument(ctx, "/x.json", json.RawMessage(`"abc"`), nil)
	require.NoError(t, err)

	doc, err := s.ReadDocument(ctx, "/x.json")
	require.NoError(t, err)
	doc.Data[1] = 'z'

	again, err := s.ReadDocument(ctx, "/x.json")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(again.Data))
}

func TestSpace_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := memory.NewSpace().ReadDocument(ctx, "/x.json")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpace_RejectsInvalidUTF8(t *testing.T) {
	space := memory.NewSpace()
	ctx := context.Background()

	_, err := space.WriteDocument(ctx, "/bad.json", json.RawMessage("\"caf\xe9\""), nil)
	status, ok := core.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, core.StatusBadRequest, status)

	doc, err := space.ReadDocument(ctx, "/bad.json")
	require.NoError(t, err)
	assert.Equal(t, etag.Empty, doc.ETag)
}
