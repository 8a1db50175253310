package recipeauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Fixed LocalStore keys for data collected before the user signs in
const (
	PendingSavedItemsKey   = "savedItems"
	PendingDerivedItemsKey = "derivedItems"
)

// PendingData holds the two collections cached on the device before sign-in
type PendingData struct {
	SavedItems   []Item
	DerivedItems []Item
}

// ReadPendingData loads both collections. A missing key or a value that is not
// a JSON array reads as an empty collection; only store failures are errors.
func ReadPendingData(ctx context.Context, store LocalStore, logger *slog.Logger) (PendingData, error) {
	out := PendingData{SavedItems: []Item{}, DerivedItems: []Item{}}
	if store == nil {
		return out, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	if out.SavedItems, err = readItems(ctx, store, PendingSavedItemsKey, logger); err != nil {
		return out, err
	}
	if out.DerivedItems, err = readItems(ctx, store, PendingDerivedItemsKey, logger); err != nil {
		return out, err
	}
	return out, nil
}

func readItems(ctx context.Context, store LocalStore, key string, logger *slog.Logger) ([]Item, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return []Item{}, fmt.Errorf("failed to read pending %s: %w", key, err)
	}
	if len(data) == 0 {
		return []Item{}, nil
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		logger.Warn("ignoring malformed pending data", "key", key, "err", err)
		return []Item{}, nil
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// AppendPendingItem adds a record to one of the pending collections.
// This is what a signed-out client calls when the user saves something.
func AppendPendingItem(ctx context.Context, store LocalStore, key string, item Item) error {
	if key != PendingSavedItemsKey && key != PendingDerivedItemsKey {
		return fmt.Errorf("unknown pending collection %q", key)
	}
	if !json.Valid(item) {
		return fmt.Errorf("pending item is not valid JSON")
	}
	items, err := readItems(ctx, store, key, slog.Default())
	if err != nil {
		return err
	}
	items = append(items, item)
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode pending %s: %w", key, err)
	}
	return store.Set(ctx, key, data)
}
