package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	ra "github.com/panyam/recipeauth"
)

// FederatedIdentity is what a provider tells us about the user after consent
type FederatedIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	DisplayName   string
	PhotoURL      string
}

// FederatedProvider is an OAuth2 style provider driven by a browser redirect
type FederatedProvider interface {
	// AuthCodeURL returns the consent page URL carrying state
	AuthCodeURL(state string) string

	// Exchange trades the callback code for the user's identity
	Exchange(ctx context.Context, code string) (*FederatedIdentity, error)
}

// SignInWithRedirect records a fresh state and sends the user to the provider.
// The flow finishes in CompleteRedirect once the callback arrives.
func (c *LocalClient) SignInWithRedirect(ctx context.Context, provider string) error {
	if c.Local == nil {
		return ra.ErrUnsupportedEnvironment
	}
	p, ok := c.Providers[provider]
	if !ok {
		return ra.NewAuthError(ra.ErrCodeMissingField, fmt.Sprintf("Provider %q is not configured", provider), "provider")
	}

	state, err := GenerateSecureToken()
	if err != nil {
		return err
	}
	pending := pendingRedirect{Provider: provider, State: state, CreatedAt: c.now()}
	if err := c.writeJSON(ctx, RedirectStateKey, pending); err != nil {
		return ra.WrapAuthError(ra.ErrCodeUnsupportedStorage, "could not save redirect state", err)
	}

	consentURL := p.AuthCodeURL(state)
	if c.OpenURL == nil {
		c.logger().InfoContext(ctx, "open this URL to continue sign-in", "provider", provider, "url", consentURL)
		return nil
	}
	if err := c.OpenURL(ctx, consentURL); err != nil {
		_ = c.Local.Delete(ctx, RedirectStateKey)
		return ra.WrapAuthError(ra.ErrCodeNetwork, "could not open sign-in page", err)
	}
	return nil
}

// CompleteRedirect finishes a redirect sign-in from the provider callback.
// The account is found by email or created, signed in, and the outcome is kept
// for the next GetRedirectResult.
func (c *LocalClient) CompleteRedirect(ctx context.Context, state, code string) (*ra.User, error) {
	if c.Local == nil {
		return nil, ra.ErrUnsupportedEnvironment
	}
	var pending pendingRedirect
	found, err := c.readJSON(ctx, RedirectStateKey, &pending)
	if err != nil {
		return nil, ra.WrapAuthError(ra.ErrCodeUnsupportedStorage, "could not read redirect state", err)
	}
	if !found || state == "" || pending.State != state {
		return nil, ra.NewAuthError(ra.ErrCodeInvalidToken, "Sign-in state mismatch", "state")
	}
	_ = c.Local.Delete(ctx, RedirectStateKey)

	p, ok := c.Providers[pending.Provider]
	if !ok {
		return nil, ra.NewAuthError(ra.ErrCodeMissingField, fmt.Sprintf("Provider %q is not configured", pending.Provider), "provider")
	}
	ident, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, ra.WrapAuthError(ra.ErrCodeNetwork, "could not complete sign-in", err)
	}
	if ident.Email == "" {
		return nil, ra.NewAuthError(ra.ErrCodeMissingField, "Provider did not share an email address", "email")
	}

	account, err := c.linkFederatedAccount(ctx, pending.Provider, ident)
	if err != nil {
		return nil, err
	}

	result := ra.RedirectResult{User: account.User(), Provider: pending.Provider}
	if err := c.writeJSON(ctx, RedirectResultKey, result); err != nil {
		c.logger().WarnContext(ctx, "could not save redirect result", "err", err)
	}
	return c.signIn(ctx, account)
}

// linkFederatedAccount finds the account for ident's email, creating it on first
// use, and folds in what the provider says about the user
func (c *LocalClient) linkFederatedAccount(ctx context.Context, provider string, ident *FederatedIdentity) (*Account, error) {
	now := c.now()
	account, err := c.Accounts.GetAccountByEmail(ctx, ident.Email)
	if errors.Is(err, ErrAccountNotFound) {
		account = &Account{
			ID:            uuid.NewString(),
			Email:         strings.TrimSpace(ident.Email),
			DisplayName:   ident.DisplayName,
			PhotoURL:      ident.PhotoURL,
			EmailVerified: ident.EmailVerified,
			Providers:     []string{provider},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := c.Accounts.CreateAccount(ctx, account); err != nil {
			return nil, ra.WrapAuthError(ra.ErrCodeNetwork, "could not create account", err)
		}
		return account, nil
	}
	if err != nil {
		return nil, ra.WrapAuthError(ra.ErrCodeNetwork, "account lookup failed", err)
	}
	// an unverified provider email proves nothing about the existing account's owner
	if !ident.EmailVerified {
		c.logger().WarnContext(ctx, "refusing to link unverified federated email", "provider", provider, "account_id", account.ID)
		return nil, ra.NewAuthError(ra.ErrCodeInvalidCreds, "Provider did not verify this email address", "email")
	}

	if account.DisplayName == "" {
		account.DisplayName = ident.DisplayName
	}
	if account.PhotoURL == "" {
		account.PhotoURL = ident.PhotoURL
	}
	account.EmailVerified = true
	if !account.HasProvider(provider) {
		account.Providers = append(account.Providers, provider)
	}
	account.UpdatedAt = now
	if err := c.Accounts.SaveAccount(ctx, account); err != nil {
		return nil, ra.WrapAuthError(ra.ErrCodeNetwork, "could not update account", err)
	}
	return account, nil
}

// GetRedirectResult returns and clears the outcome of the last completed
// redirect sign-in. It is nil when there is none.
func (c *LocalClient) GetRedirectResult(ctx context.Context) (*ra.RedirectResult, error) {
	if c.Local == nil {
		return nil, ra.ErrUnsupportedEnvironment
	}
	var result ra.RedirectResult
	found, err := c.readJSON(ctx, RedirectResultKey, &result)
	if err != nil {
		_ = c.Local.Delete(ctx, RedirectResultKey)
		return nil, ra.WrapAuthError(ra.ErrCodeUnsupportedStorage, "could not read redirect result", err)
	}
	if !found {
		return nil, nil
	}
	if err := c.Local.Delete(ctx, RedirectResultKey); err != nil {
		c.logger().WarnContext(ctx, "could not clear redirect result", "err", err)
	}
	return &result, nil
}
