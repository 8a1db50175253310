package recipeauth

import (
	"context"
	"encoding/json"
	"time"
)

// User is the identity record reported by the identity provider
type User struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	PhotoURL      string `json:"photo_url,omitempty"`
}

// Clone returns a copy so callers can't mutate session state through a snapshot
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

// Item is an opaque user-owned record (a saved or derived recipe)
type Item = json.RawMessage

// Profile is the denormalized per-account document kept in the ProfileStore
type Profile struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login"`
	SavedItems   []Item    `json:"saved_items"`
	DerivedItems []Item    `json:"derived_items"`
	Version      int       `json:"version"` // optimistic locking version
}

// RedirectResult is what a completed federated sign-in leaves behind
type RedirectResult struct {
	User     *User  `json:"user"`
	Provider string `json:"provider"`
}

// IdentityClient is the external authentication service the coordinator drives.
// Errors returned should be *AuthError values so callers can branch on Code.
type IdentityClient interface {
	// Subscribe delivers the current and every subsequent user (nil when signed out)
	// in order. The returned func stops delivery.
	Subscribe(onChange func(user *User)) (unsubscribe func())

	// SignInWithRedirect starts a federated sign-in with the named provider ("google")
	SignInWithRedirect(ctx context.Context, provider string) error

	// GetRedirectResult returns the result of a completed redirect sign-in, or nil
	GetRedirectResult(ctx context.Context) (*RedirectResult, error)

	SignOut(ctx context.Context) error

	SignInWithPassword(ctx context.Context, email, password string) (*User, error)
	CreateAccount(ctx context.Context, email, password string) (*User, error)
	UpdateDisplayName(ctx context.Context, user *User, name string) error
	SendVerificationEmail(ctx context.Context, user *User) error
	SendPasswordResetEmail(ctx context.Context, email string) error
	DeleteAccount(ctx context.Context, user *User) error
}

// ProfileStore persists profiles keyed by account id
type ProfileStore interface {
	// GetProfile returns ErrProfileNotFound if no document exists for the id
	GetProfile(ctx context.Context, id string) (*Profile, error)

	// UpsertProfile creates or merges a profile (see MergeProfile for semantics)
	UpsertProfile(ctx context.Context, profile *Profile) error

	// UpdateLastLogin moves LastLogin forward; it never moves it back.
	// Returns ErrProfileNotFound if no document exists for the id.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// LocalStore is device-local key/value storage that exists before sign-in
type LocalStore interface {
	// Get returns nil, nil when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
