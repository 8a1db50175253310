//go:build !wasm
// +build !wasm

package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/identity"
)

// ItemList stores a collection of opaque records as a JSON array
type ItemList []ra.Item

func (l ItemList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]ra.Item(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *ItemList) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*l = ItemList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ItemList", value)
	}
	items := []ra.Item{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
	}
	*l = items
	return nil
}

// StringSlice is a helper type for storing string slices in GORM
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *StringSlice) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("cannot scan %T into StringSlice", value)
}

// ProfileModel is the GORM model for profiles
type ProfileModel struct {
	ID           string    `gorm:"primaryKey;size:128"`
	DisplayName  string    `gorm:"size:255"`
	Email        string    `gorm:"size:255;index"`
	PhotoURL     string    `gorm:"size:1024"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	LastLogin    time.Time
	SavedItems   ItemList `gorm:"type:text"`
	DerivedItems ItemList `gorm:"type:text"`
	Version      int      `gorm:"default:1"`
}

func (ProfileModel) TableName() string {
	return "profiles"
}

func (m *ProfileModel) ToProfile() *ra.Profile {
	return &ra.Profile{
		ID:           m.ID,
		DisplayName:  m.DisplayName,
		Email:        m.Email,
		PhotoURL:     m.PhotoURL,
		CreatedAt:    m.CreatedAt,
		LastLogin:    m.LastLogin,
		SavedItems:   nonNil(m.SavedItems),
		DerivedItems: nonNil(m.DerivedItems),
		Version:      m.Version,
	}
}

func ProfileToModel(p *ra.Profile) *ProfileModel {
	return &ProfileModel{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		Email:        p.Email,
		PhotoURL:     p.PhotoURL,
		CreatedAt:    p.CreatedAt.UTC(),
		LastLogin:    p.LastLogin.UTC(),
		SavedItems:   ItemList(nonNil(p.SavedItems)),
		DerivedItems: ItemList(nonNil(p.DerivedItems)),
		Version:      p.Version,
	}
}

func nonNil(items []ra.Item) []ra.Item {
	if items == nil {
		return []ra.Item{}
	}
	return items
}

// AccountModel is the GORM model for identity accounts
type AccountModel struct {
	ID            string      `gorm:"primaryKey;size:64"`
	Email         string      `gorm:"size:255"`
	EmailKey      string      `gorm:"size:255;uniqueIndex"` // lowercased email
	DisplayName   string      `gorm:"size:255"`
	PhotoURL      string      `gorm:"size:1024"`
	EmailVerified bool        `gorm:"default:false"`
	PasswordHash  string      `gorm:"size:255"`
	Providers     StringSlice `gorm:"type:text"`
	CreatedAt     time.Time   `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime:false"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *identity.Account {
	return &identity.Account{
		ID:            m.ID,
		Email:         m.Email,
		DisplayName:   m.DisplayName,
		PhotoURL:      m.PhotoURL,
		EmailVerified: m.EmailVerified,
		PasswordHash:  m.PasswordHash,
		Providers:     m.Providers,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func AccountToModel(a *identity.Account) *AccountModel {
	return &AccountModel{
		ID:            a.ID,
		Email:         a.Email,
		EmailKey:      emailKey(a.Email),
		DisplayName:   a.DisplayName,
		PhotoURL:      a.PhotoURL,
		EmailVerified: a.EmailVerified,
		PasswordHash:  a.PasswordHash,
		Providers:     a.Providers,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuthTokenModel is the GORM model for verification/reset tokens
type AuthTokenModel struct {
	Token     string             `gorm:"primaryKey;size:128"`
	Type      identity.TokenType `gorm:"size:32;index"`
	UserID    string             `gorm:"size:64;index"`
	Email     string             `gorm:"size:255"`
	CreatedAt time.Time          `gorm:"autoCreateTime"`
	ExpiresAt time.Time          `gorm:"index"`
}

func (AuthTokenModel) TableName() string {
	return "auth_tokens"
}

func (m *AuthTokenModel) ToAuthToken() *identity.AuthToken {
	return &identity.AuthToken{
		Token:     m.Token,
		Type:      m.Type,
		UserID:    m.UserID,
		Email:     m.Email,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
