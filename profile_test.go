package recipeauth_test

import (
	"context"
	"testing"
	"time"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/stores/fs"
)

func items(raw ...string) []ra.Item {
	out := make([]ra.Item, len(raw))
	for i, r := range raw {
		out[i] = ra.Item(r)
	}
	return out
}

func TestMergeItems(t *testing.T) {
	tests := []struct {
		name     string
		existing []ra.Item
		incoming []ra.Item
		want     int
	}{
		{"both empty", nil, nil, 0},
		{"dedupe by id", items(`{"id":"a","v":1}`), items(`{"id":"a","v":2}`, `{"id":"b"}`), 2},
		{"numeric and string ids differ", items(`{"id":1}`), items(`{"id":"1"}`), 2},
		{"dedupe by canonical form", items(`{"a":1,"b":2}`), items(`{"b":2, "a":1}`), 1},
		{"non-objects", items(`"soup"`, `[1,2]`), items(`"soup"`, `[1, 2]`), 2},
		{"repeats within incoming are kept", nil, items(`{"name":"soup"}`, `{"name":"soup"}`), 2},
		{"repeats of an existing record are dropped", items(`{"name":"soup"}`), items(`{"name":"soup"}`, `{"name":"soup"}`), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ra.MergeItems(tt.existing, tt.incoming)
			if got == nil {
				t.Fatal("MergeItems must never return nil")
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d items, got %d: %s", tt.want, len(got), got)
			}
		})
	}

	// existing records win and keep their order
	got := ra.MergeItems(items(`{"id":"a","v":1}`, `{"id":"c"}`), items(`{"id":"a","v":2}`))
	if string(got[0]) != `{"id":"a","v":1}` || string(got[1]) != `{"id":"c"}` {
		t.Errorf("Existing records should be kept in order, got %s", got)
	}
}

func TestMergeProfile(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &ra.Profile{
		ID:          "u1",
		DisplayName: "Ada",
		Email:       "ada@gmail.com",
		CreatedAt:   t0,
		LastLogin:   t0.Add(time.Hour),
		SavedItems:  items(`{"id":"r1"}`),
		Version:     3,
	}

	t.Run("create", func(t *testing.T) {
		incoming := ra.NewProfile(&ra.User{ID: "u1", DisplayName: "Ada"}, t0, ra.PendingData{})
		got := ra.MergeProfile(nil, incoming)
		if got.Version != 1 || got.SavedItems == nil || got.DerivedItems == nil {
			t.Errorf("Unexpected new profile %+v", got)
		}
	})

	t.Run("create copies pending records as-is", func(t *testing.T) {
		pending := ra.PendingData{SavedItems: items(`{"name":"soup"}`, `{"name":"soup"}`)}
		got := ra.MergeProfile(nil, ra.NewProfile(&ra.User{ID: "u1"}, t0, pending))
		if len(got.SavedItems) != 2 {
			t.Errorf("Expected both pending records, got %s", got.SavedItems)
		}
		got.SavedItems[0] = ra.Item(`{}`)
		if string(pending.SavedItems[0]) != `{"name":"soup"}` {
			t.Error("MergeProfile must not share the pending slice")
		}
	})

	t.Run("merge keeps created and collections", func(t *testing.T) {
		incoming := &ra.Profile{
			ID:          "u1",
			DisplayName: "Ada L.",
			CreatedAt:   t0.Add(24 * time.Hour),
			LastLogin:   t0,
			SavedItems:  items(`{"id":"r1"}`, `{"id":"r2"}`),
		}
		got := ra.MergeProfile(existing, incoming)
		if !got.CreatedAt.Equal(t0) {
			t.Errorf("CreatedAt replaced: %v", got.CreatedAt)
		}
		if !got.LastLogin.Equal(t0.Add(time.Hour)) {
			t.Errorf("LastLogin moved back: %v", got.LastLogin)
		}
		if got.DisplayName != "Ada L." || got.Email != "ada@gmail.com" {
			t.Errorf("Unexpected identity fields %+v", got)
		}
		if len(got.SavedItems) != 2 {
			t.Errorf("Expected 2 saved items, got %d", len(got.SavedItems))
		}
		if got.Version != 4 {
			t.Errorf("Expected version 4, got %d", got.Version)
		}
		if len(existing.SavedItems) != 1 {
			t.Error("MergeProfile must not modify its inputs")
		}
	})
}

func TestPendingData(t *testing.T) {
	ctx := context.Background()
	store, err := fs.NewLocalStore(t.TempDir()+"/local.json", "")
	if err != nil {
		t.Fatal(err)
	}

	pending, err := ra.ReadPendingData(ctx, store, quietLogger())
	if err != nil {
		t.Fatalf("ReadPendingData failed: %v", err)
	}
	if pending.SavedItems == nil || pending.DerivedItems == nil || len(pending.SavedItems)+len(pending.DerivedItems) != 0 {
		t.Errorf("Missing keys should read as empty, got %+v", pending)
	}

	if err := ra.AppendPendingItem(ctx, store, ra.PendingSavedItemsKey, ra.Item(`{"id":"r1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := ra.AppendPendingItem(ctx, store, ra.PendingDerivedItemsKey, ra.Item(`{"id":"d1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := ra.AppendPendingItem(ctx, store, "other", ra.Item(`{}`)); err == nil {
		t.Error("Expected an error for an unknown collection")
	}
	if err := ra.AppendPendingItem(ctx, store, ra.PendingSavedItemsKey, ra.Item(`{oops`)); err == nil {
		t.Error("Expected an error for invalid JSON")
	}

	pending, err = ra.ReadPendingData(ctx, store, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending.SavedItems) != 1 || len(pending.DerivedItems) != 1 {
		t.Errorf("Expected one item in each collection, got %+v", pending)
	}

	if pending, err := ra.ReadPendingData(ctx, nil, nil); err != nil || pending.SavedItems == nil {
		t.Errorf("A nil store should read as empty, got %+v, %v", pending, err)
	}
}
