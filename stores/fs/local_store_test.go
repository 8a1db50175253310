package fs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_RoundTripAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "local.json")
	ctx := context.Background()

	store, err := NewLocalStore(path, "")
	require.NoError(t, err)

	v, err := store.Get(ctx, "savedItems")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.Set(ctx, "savedItems", []byte(`[{"id":"r1"}]`)))
	require.NoError(t, store.Set(ctx, "auth.session", []byte("not json")))

	reloaded, err := NewLocalStore(path, "")
	require.NoError(t, err)

	v, err = reloaded.Get(ctx, "savedItems")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"r1"}]`, string(v))

	v, err = reloaded.Get(ctx, "auth.session")
	require.NoError(t, err)
	assert.Equal(t, "not json", string(v))
	assert.Equal(t, []string{"auth.session", "savedItems"}, reloaded.Keys())
}

func TestLocalStore_Delete(t *testing.T) {
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "local.json"), "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestLocalStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	require.NoError(t, writeAtomicFile(path, []byte("{broken")))

	_, err := NewLocalStore(path, "")
	assert.Error(t, err)
}
