package identity

import (
	"context"
	"errors"
	"time"

	ra "github.com/panyam/recipeauth"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is the credential record behind a recipeauth.User
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	PasswordHash  string    `json:"password_hash,omitempty"` // empty for federated-only accounts
	Providers     []string  `json:"providers,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User returns the public view of the account
func (a *Account) User() *ra.User {
	return &ra.User{
		ID:            a.ID,
		DisplayName:   a.DisplayName,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		PhotoURL:      a.PhotoURL,
	}
}

// HasProvider reports whether the account has signed in through the named provider
func (a *Account) HasProvider(provider string) bool {
	for _, p := range a.Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// AccountStore persists accounts. Emails are matched case-insensitively.
type AccountStore interface {
	// CreateAccount fails with ra.ErrAccountExists if the email is taken
	CreateAccount(ctx context.Context, account *Account) error

	// Both getters return ErrAccountNotFound when there is no match
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	SaveAccount(ctx context.Context, account *Account) error

	// DeleteAccount is a no-op for unknown ids
	DeleteAccount(ctx context.Context, id string) error
}
