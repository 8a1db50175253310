package recipeauth

import (
	"context"
	"errors"
	"fmt"
)

// SignInWithGoogle starts a redirect-based Google sign-in. Loading stays set
// until the provider reports the resulting state; on initiation failure it is
// cleared and a failure notification fires.
func (c *Coordinator) SignInWithGoogle(ctx context.Context) error {
	c.EnsureDefaults()
	c.updateSession(func(s *Snapshot) { s.Loading = true })

	if err := c.Identity.SignInWithRedirect(ctx, ProviderGoogle); err != nil {
		c.Logger.WarnContext(ctx, "google sign-in could not start", "err", err)
		c.notify(ctx, Notification{Kind: NotifySignInFailed, Message: "Sign-in failed: " + messageOf(err), Error: true})
		c.updateSession(func(s *Snapshot) { s.Loading = false })
		return err
	}
	return nil
}

// SignInWithEmail verifies credentials and refuses accounts whose email is not
// verified yet (they are signed straight back out). Provider errors are returned
// unchanged so callers can map them with KindOf.
func (c *Coordinator) SignInWithEmail(ctx context.Context, email, password string) (*User, error) {
	c.EnsureDefaults()
	user, err := c.Identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if !user.EmailVerified {
		if err := c.Identity.SignOut(ctx); err != nil {
			c.Logger.WarnContext(ctx, "failed to sign out unverified user", "user_id", user.ID, "err", err)
		}
		return nil, ErrNotVerified
	}

	// The subscription provisions a missing profile, so not-found is fine here
	if err := c.Profiles.UpdateLastLogin(ctx, user.ID, c.Now()); err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			return nil, fmt.Errorf("failed to update last login: %w", err)
		}
		c.Logger.DebugContext(ctx, "no profile yet at sign-in", "user_id", user.ID)
	}

	c.notify(ctx, Notification{Kind: NotifySignInWelcome, Message: welcomeMessage(user.DisplayName)})
	return user.Clone(), nil
}

// SignOut signs out with the provider and clears the current user
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.EnsureDefaults()
	if err := c.Identity.SignOut(ctx); err != nil {
		c.notify(ctx, Notification{Kind: NotifySignOutFailed, Message: "Sign out failed: " + messageOf(err), Error: true})
		return err
	}

	c.updateSession(func(s *Snapshot) {
		s.CurrentUser = nil
		s.State = StateUnauthenticated
		s.Loading = false
	})
	c.notify(ctx, Notification{Kind: NotifySignedOut, Message: "Signed out successfully"})
	return nil
}

// SendPasswordReset asks the provider to email a reset link. It never reports
// failure, so callers can't tell whether the address has an account.
func (c *Coordinator) SendPasswordReset(ctx context.Context, email string) {
	c.EnsureDefaults()
	if err := c.Identity.SendPasswordResetEmail(ctx, email); err != nil {
		c.Logger.WarnContext(ctx, "password reset email not sent", "err", err)
	}
}

func messageOf(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return err.Error()
}
