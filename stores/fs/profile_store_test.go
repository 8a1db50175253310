package fs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ra "github.com/panyam/recipeauth"
)

func TestProfileStore_GetMissing(t *testing.T) {
	store := NewProfileStore(t.TempDir())

	_, err := store.GetProfile(context.Background(), "nobody")
	assert.ErrorIs(t, err, ra.ErrProfileNotFound)
}

func TestProfileStore_UpsertCreatesThenMerges(t *testing.T) {
	store := NewProfileStore(t.TempDir())
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first := &ra.Profile{
		ID: "u1", DisplayName: "Ana", Email: "ana@gmail.com",
		CreatedAt: t0, LastLogin: t0,
		SavedItems: []ra.Item{json.RawMessage(`{"id":"r1"}`)},
	}
	require.NoError(t, store.UpsertProfile(ctx, first))

	later := t0.Add(time.Hour)
	second := &ra.Profile{
		ID: "u1", CreatedAt: later, LastLogin: later,
		SavedItems:   []ra.Item{json.RawMessage(`{"id":"r1"}`), json.RawMessage(`{"id":"r2"}`)},
		DerivedItems: []ra.Item{json.RawMessage(`{"id":"d1"}`)},
	}
	require.NoError(t, store.UpsertProfile(ctx, second))

	got, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.DisplayName)
	assert.True(t, got.CreatedAt.Equal(t0), "created at must survive merges")
	assert.True(t, got.LastLogin.Equal(later))
	assert.Len(t, got.SavedItems, 2)
	assert.Len(t, got.DerivedItems, 1)
	assert.Equal(t, 2, got.Version)
}

func TestProfileStore_UpdateLastLoginIsMonotonic(t *testing.T) {
	store := NewProfileStore(t.TempDir())
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, store.UpdateLastLogin(ctx, "u1", t0), ra.ErrProfileNotFound)

	require.NoError(t, store.UpsertProfile(ctx, &ra.Profile{ID: "u1", CreatedAt: t0, LastLogin: t0}))
	require.NoError(t, store.UpdateLastLogin(ctx, "u1", t0.Add(2*time.Hour)))
	require.NoError(t, store.UpdateLastLogin(ctx, "u1", t0.Add(time.Hour)))

	got, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.LastLogin.Equal(t0.Add(2*time.Hour)))
}

func TestProfileStore_ConcurrentUpsertsKeepEverything(t *testing.T) {
	store := NewProfileStore(t.TempDir())
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item, _ := json.Marshal(map[string]any{"id": i})
			err := store.UpsertProfile(ctx, &ra.Profile{
				ID: "u1", CreatedAt: now, LastLogin: now,
				SavedItems: []ra.Item{item},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got.SavedItems, 8)
}

func TestProfileStore_IDsCannotEscapeStorage(t *testing.T) {
	dir := t.TempDir()
	store := NewProfileStore(dir)

	path := store.getProfilePath("../../etc/passwd")
	assert.Contains(t, path, dir)
}
