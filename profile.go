package recipeauth

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"
)

// NewProfile builds a fresh profile for a user with both timestamps set to now
func NewProfile(user *User, now time.Time, pending PendingData) *Profile {
	return &Profile{
		ID:           user.ID,
		DisplayName:  user.DisplayName,
		Email:        user.Email,
		PhotoURL:     user.PhotoURL,
		CreatedAt:    now,
		LastLogin:    now,
		SavedItems:   nonNilItems(pending.SavedItems),
		DerivedItems: nonNilItems(pending.DerivedItems),
	}
}

// MergeProfile folds incoming into existing and returns the result.
// Stores call this inside their read-modify-write so that:
//   - CreatedAt is set once and never replaced
//   - LastLogin never moves backwards
//   - collections only gain records; incoming records already held are dropped
//
// Scalar identity fields take the incoming value when it is non-empty.
// A nil existing profile means the document is being created.
func MergeProfile(existing, incoming *Profile) *Profile {
	if existing == nil {
		out := *incoming
		out.SavedItems = nonNilItems(slices.Clone(incoming.SavedItems))
		out.DerivedItems = nonNilItems(slices.Clone(incoming.DerivedItems))
		if out.Version == 0 {
			out.Version = 1
		}
		return &out
	}

	out := *existing
	if incoming.DisplayName != "" {
		out.DisplayName = incoming.DisplayName
	}
	if incoming.Email != "" {
		out.Email = incoming.Email
	}
	if incoming.PhotoURL != "" {
		out.PhotoURL = incoming.PhotoURL
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = incoming.CreatedAt
	}
	if incoming.LastLogin.After(out.LastLogin) {
		out.LastLogin = incoming.LastLogin
	}
	out.SavedItems = MergeItems(existing.SavedItems, incoming.SavedItems)
	out.DerivedItems = MergeItems(existing.DerivedItems, incoming.DerivedItems)
	out.Version = existing.Version + 1
	return &out
}

// MergeItems appends the incoming records that existing does not already hold.
// Incoming records are only compared against existing ones, so repeats within
// incoming are kept. Order of existing records is kept; the result is never nil.
func MergeItems(existing, incoming []Item) []Item {
	out := make([]Item, 0, len(existing)+len(incoming))
	held := make(map[string]bool, len(existing))
	for _, item := range existing {
		held[itemKey(item)] = true
		out = append(out, item)
	}
	for _, item := range incoming {
		if held[itemKey(item)] {
			continue
		}
		out = append(out, item)
	}
	return out
}

// itemKey identifies a record by its "id" field, else by its canonical encoding
func itemKey(item Item) string {
	var obj map[string]any
	if err := json.Unmarshal(item, &obj); err == nil {
		if id, ok := obj["id"]; ok && id != nil {
			if idBytes, err := json.Marshal(id); err == nil {
				return "id:" + string(idBytes)
			}
		}
		// map keys marshal sorted, which gives us a canonical form
		if canon, err := json.Marshal(obj); err == nil {
			return "doc:" + string(canon)
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, item); err == nil {
		return "raw:" + compact.String()
	}
	return "raw:" + string(item)
}

func nonNilItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}
