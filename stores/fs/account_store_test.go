package fs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/identity"
)

func TestAccountStore_CreateAndLookup(t *testing.T) {
	store := NewAccountStore(t.TempDir())
	ctx := context.Background()

	account := &identity.Account{ID: "a1", Email: "Ana@Gmail.com", CreatedAt: time.Now()}
	require.NoError(t, store.CreateAccount(ctx, account))

	byEmail, err := store.GetAccountByEmail(ctx, "ana@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "a1", byEmail.ID)

	err = store.CreateAccount(ctx, &identity.Account{ID: "a2", Email: "ana@gmail.com"})
	assert.ErrorIs(t, err, ra.ErrAccountExists)

	_, err = store.GetAccountByID(ctx, "missing")
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestAccountStore_SaveMovesEmailIndex(t *testing.T) {
	store := NewAccountStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, &identity.Account{ID: "a1", Email: "old@gmail.com"}))
	require.NoError(t, store.SaveAccount(ctx, &identity.Account{ID: "a1", Email: "new@gmail.com"}))

	_, err := store.GetAccountByEmail(ctx, "old@gmail.com")
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)

	got, err := store.GetAccountByEmail(ctx, "new@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
}

func TestAccountStore_Delete(t *testing.T) {
	store := NewAccountStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, &identity.Account{ID: "a1", Email: "ana@gmail.com"}))
	require.NoError(t, store.DeleteAccount(ctx, "a1"))
	require.NoError(t, store.DeleteAccount(ctx, "a1"))

	_, err := store.GetAccountByEmail(ctx, "ana@gmail.com")
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)

	// the email is free again
	require.NoError(t, store.CreateAccount(ctx, &identity.Account{ID: "a2", Email: "ana@gmail.com"}))
}

func TestTokenStore_Lifecycle(t *testing.T) {
	store := NewTokenStore(t.TempDir())
	ctx := context.Background()

	tok, err := store.CreateToken(ctx, "a1", "ana@gmail.com", identity.TokenTypeEmailVerification, time.Hour)
	require.NoError(t, err)

	got, err := store.GetToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.True(t, got.IsValid(identity.TokenTypeEmailVerification))
	assert.False(t, got.IsValid(identity.TokenTypePasswordReset))

	expired, err := store.CreateToken(ctx, "a1", "ana@gmail.com", identity.TokenTypePasswordReset, -time.Minute)
	require.NoError(t, err)
	_, err = store.GetToken(ctx, expired.Token)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)

	require.NoError(t, store.DeleteUserTokens(ctx, "a1", identity.TokenTypeEmailVerification))
	_, err = store.GetToken(ctx, tok.Token)
	assert.ErrorIs(t, err, identity.ErrTokenNotFound)
}
