package recipeauth

import (
	"context"
	"fmt"
)

type signupStep int

const (
	stepDisplayName signupStep = iota
	stepVerificationEmail
	stepCreateProfile
	stepSignOut
)

func (s signupStep) String() string {
	switch s {
	case stepDisplayName:
		return "display name"
	case stepVerificationEmail:
		return "verification email"
	case stepCreateProfile:
		return "profile"
	case stepSignOut:
		return "sign out"
	}
	return "unknown"
}

// SignUpWithEmail creates an email/password account, sends the verification
// email and creates an empty profile. The new account is signed out straight
// away; it can sign in once the email is verified.
//
// The email domain is checked against the signup policy before anything
// remote happens. If any step after account creation fails the account is
// deleted again. Failures in the verification email step (or any network
// failure) are reported as ErrVerificationSendFailed.
func (c *Coordinator) SignUpWithEmail(ctx context.Context, email, password, displayName string) error {
	c.EnsureDefaults()
	if err := c.policy().CheckDomain(email); err != nil {
		return err
	}

	// Nothing to roll back if this fails
	user, err := c.Identity.CreateAccount(ctx, email, password)
	if err != nil {
		return err
	}

	step, err := c.completeSignup(ctx, user, displayName)
	if err != nil {
		c.Logger.WarnContext(ctx, "sign-up failed, removing account", "user_id", user.ID, "step", step.String(), "err", err)
		if delErr := c.Identity.DeleteAccount(ctx, user); delErr != nil {
			c.Logger.WarnContext(ctx, "failed to delete half-created account", "user_id", user.ID, "err", delErr)
		}
		if step == stepVerificationEmail || KindOf(err) == KindNetworkError {
			return WrapAuthError(ErrCodeVerificationSendFailed, ErrVerificationSendFailed.Message, err)
		}
		return err
	}

	c.notify(ctx, Notification{
		Kind:    NotifySignUpCheckMail,
		Message: "Account created. Please check your email to verify your account.",
	})
	return nil
}

// completeSignup runs the steps that must be undone if any of them fails
func (c *Coordinator) completeSignup(ctx context.Context, user *User, displayName string) (signupStep, error) {
	if err := c.Identity.UpdateDisplayName(ctx, user, displayName); err != nil {
		return stepDisplayName, err
	}
	user = user.Clone()
	user.DisplayName = displayName

	if err := c.Identity.SendVerificationEmail(ctx, user); err != nil {
		return stepVerificationEmail, err
	}

	if err := c.Profiles.UpsertProfile(ctx, NewProfile(user, c.Now(), PendingData{})); err != nil {
		return stepCreateProfile, fmt.Errorf("failed to create profile: %w", err)
	}

	// Unverified accounts must never be left signed in
	if err := c.Identity.SignOut(ctx); err != nil {
		return stepSignOut, err
	}
	return stepSignOut, nil
}
