package typed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acmhack/filesdb/pkg/adapters/memory"
	"github.com/acmhack/filesdb/pkg/core"
	"github.com/acmhack/filesdb/pkg/typed"
)

type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

func setupStore(t *testing.T) *typed.Store[UserProfile] {
	t.Helper()
	return typed.NewStore[UserProfile](core.NewStore(memory.NewTransport()))
}

func TestTypedStore_GetMissing(t *testing.T) {
	users := setupStore(t)

	doc, err := users.Get(context.Background(), "/users/nobody.json")
	require.NoError(t, err)
	assert.False(t, doc.Exists)
	assert.Equal(t, UserProfile{}, doc.Data)
	assert.NotEmpty(t, doc.ETag)
}

func TestTypedStore_SaveRoundTrip(t *testing.T) {
	users := setupStore(t)
	ctx := context.Background()

	doc, err := users.Get(ctx, "/users/alice.json")
	require.NoError(t, err)

	doc.Data = UserProfile{Name: "Alice", Email: "alice@example.com", Age: 30}
	before := doc.ETag
	require.NoError(t, doc.Save(ctx))
	assert.NotEqual(t, before, doc.ETag)
	assert.True(t, doc.Exists)

	got, err := users.Get(ctx, "/users/alice.json")
	require.NoError(t, err)
	assert.Equal(t, doc.Data, got.Data)
	assert.Equal(t, doc.ETag, got.ETag)
}

func TestTypedStore_StaleSaveConflicts(t *testing.T) {
	users := setupStore(t)
	ctx := context.Background()

	_, err := users.Put(ctx, "/users/bob.json", UserProfile{Name: "Bob", Age: 40})
	require.NoError(t, err)

	first, err := users.Get(ctx, "/users/bob.json")
	require.NoError(t, err)
	second, err := users.Get(ctx, "/users/bob.json")
	require.NoError(t, err)

	first.Data.Age = 41
	require.NoError(t, first.Save(ctx))

	second.Data.Age = 42
	err = second.Save(ctx)
	assert.True(t, core.IsConflict(err))
}

func TestTypedStore_Update(t *testing.T) {
	users := setupStore(t)
	ctx := context.Background()

	doc, err := users.Update(ctx, "/users/carol.json", func(u *UserProfile) error {
		u.Name = "Carol"
		u.Age++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Data.Age)

	doc, err = users.Update(ctx, "/users/carol.json", func(u *UserProfile) error {
		u.Age++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Carol", doc.Data.Name)
	assert.Equal(t, 2, doc.Data.Age)

	boom := errors.New("boom")
	_, err = users.Update(ctx, "/users/carol.json", func(*UserProfile) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDocument_DetachedSave(t *testing.T) {
	doc := &typed.Document[UserProfile]{Path: "/x.json"}
	assert.Error(t, doc.Save(context.Background()))
}
