//go:build !wasm
// +build !wasm

package gae

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/datastore"
	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/identity"
)

// ProfileEntity is the Datastore entity for profiles. Items are opaque so they
// are stored JSON encoded and unindexed.
type ProfileEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	DisplayName  string         `datastore:"display_name"`
	Email        string         `datastore:"email"`
	PhotoURL     string         `datastore:"photo_url,noindex"`
	CreatedAt    time.Time      `datastore:"created_at"`
	LastLogin    time.Time      `datastore:"last_login"`
	SavedItems   []byte         `datastore:"saved_items,noindex"`
	DerivedItems []byte         `datastore:"derived_items,noindex"`
	Version      int            `datastore:"version"`
}

func (e *ProfileEntity) ToProfile() (*ra.Profile, error) {
	p := &ra.Profile{
		ID:          e.Key.Name,
		DisplayName: e.DisplayName,
		Email:       e.Email,
		PhotoURL:    e.PhotoURL,
		CreatedAt:   e.CreatedAt,
		LastLogin:   e.LastLogin,
		Version:     e.Version,
	}
	var err error
	if p.SavedItems, err = decodeItems(e.SavedItems); err != nil {
		return nil, err
	}
	if p.DerivedItems, err = decodeItems(e.DerivedItems); err != nil {
		return nil, err
	}
	return p, nil
}

func ProfileToEntity(p *ra.Profile, key *datastore.Key) (*ProfileEntity, error) {
	saved, err := json.Marshal(nonNil(p.SavedItems))
	if err != nil {
		return nil, err
	}
	derived, err := json.Marshal(nonNil(p.DerivedItems))
	if err != nil {
		return nil, err
	}
	return &ProfileEntity{
		Key:          key,
		DisplayName:  p.DisplayName,
		Email:        p.Email,
		PhotoURL:     p.PhotoURL,
		CreatedAt:    p.CreatedAt,
		LastLogin:    p.LastLogin,
		SavedItems:   saved,
		DerivedItems: derived,
		Version:      p.Version,
	}, nil
}

func decodeItems(data []byte) ([]ra.Item, error) {
	items := []ra.Item{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func nonNil(items []ra.Item) []ra.Item {
	if items == nil {
		return []ra.Item{}
	}
	return items
}

// AccountEntity is the Datastore entity for identity accounts
type AccountEntity struct {
	Key           *datastore.Key `datastore:"__key__"`
	Email         string         `datastore:"email"`
	DisplayName   string         `datastore:"display_name"`
	PhotoURL      string         `datastore:"photo_url,noindex"`
	EmailVerified bool           `datastore:"email_verified"`
	PasswordHash  string         `datastore:"password_hash,noindex"`
	Providers     []string       `datastore:"providers"`
	CreatedAt     time.Time      `datastore:"created_at"`
	UpdatedAt     time.Time      `datastore:"updated_at"`
}

func (e *AccountEntity) ToAccount() *identity.Account {
	return &identity.Account{
		ID:            e.Key.Name,
		Email:         e.Email,
		DisplayName:   e.DisplayName,
		PhotoURL:      e.PhotoURL,
		EmailVerified: e.EmailVerified,
		PasswordHash:  e.PasswordHash,
		Providers:     e.Providers,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func AccountToEntity(a *identity.Account, key *datastore.Key) *AccountEntity {
	return &AccountEntity{
		Key:           key,
		Email:         a.Email,
		DisplayName:   a.DisplayName,
		PhotoURL:      a.PhotoURL,
		EmailVerified: a.EmailVerified,
		PasswordHash:  a.PasswordHash,
		Providers:     a.Providers,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// AccountEmailEntity maps a lowercased email (the key name) to an account id
type AccountEmailEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id"`
}

// AuthTokenEntity is the Datastore entity for verification/reset tokens
type AuthTokenEntity struct {
	Key       *datastore.Key     `datastore:"__key__"`
	Type      identity.TokenType `datastore:"type"`
	UserID    string             `datastore:"user_id"`
	Email     string             `datastore:"email"`
	CreatedAt time.Time          `datastore:"created_at"`
	ExpiresAt time.Time          `datastore:"expires_at"`
}

func (e *AuthTokenEntity) ToAuthToken() *identity.AuthToken {
	return &identity.AuthToken{
		Token:     e.Key.Name,
		Type:      e.Type,
		UserID:    e.UserID,
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	}
}
