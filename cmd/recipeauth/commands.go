package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/oauth2"
)

// withApp builds the app for cmd, optionally starts the coordinator, and
// tears everything down after fn returns
func withApp(cmd *cobra.Command, start bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	if start {
		if _, err := a.start(ctx); err != nil {
			return err
		}
	}
	if err := fn(ctx, a); err != nil {
		return err
	}
	if start {
		return a.coord.Flush(ctx)
	}
	return nil
}

func newSignUpCmd() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			var err error
			if email, err = valueOrPrompt(in, email, "Email", out); err != nil {
				return err
			}
			if name, err = valueOrPrompt(in, name, "Display name", out); err != nil {
				return err
			}
			password, err := promptPassword(in, "Password", out)
			if err != nil {
				return err
			}

			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				err := a.coord.SignUpWithEmail(ctx, email, password, name)
				if err == nil {
					return nil
				}
				switch ra.KindOf(err) {
				case ra.KindDomainNotAllowed:
					return fmt.Errorf("sign-up is limited to %v addresses", a.cfg.Signup.AllowedDomains)
				case ra.KindAccountExists:
					return fmt.Errorf("an account already exists for %s; try signin or reset-password", email)
				case ra.KindVerificationSendFailed:
					return fmt.Errorf("could not send the verification email, please try again: %w", err)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	return cmd
}

func newSignInCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			var err error
			if email, err = valueOrPrompt(in, email, "Email", out); err != nil {
				return err
			}
			password, err := promptPassword(in, "Password", out)
			if err != nil {
				return err
			}

			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				_, err := a.coord.SignInWithEmail(ctx, email, password)
				switch {
				case err == nil:
					return nil
				case errors.Is(err, ra.ErrNotVerified):
					return fmt.Errorf("verify your email first: follow the link we sent, or run verify-email")
				case ra.KindOf(err) == ra.KindInvalidCredentials:
					return fmt.Errorf("invalid email or password")
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	return cmd
}

func newGoogleCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with Google through the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Google.ClientID == "" {
				return fmt.Errorf("set RECIPEAUTH_GOOGLE_CLIENT_ID and RECIPEAUTH_GOOGLE_CLIENT_SECRET first")
			}
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return runGoogleSignIn(ctx, a)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser")
	return cmd
}

// runGoogleSignIn serves the OAuth callback on the loopback address, starts the
// redirect and waits until the browser has been shown the done page
func runGoogleSignIn(ctx context.Context, a *app) error {
	completed := make(chan error, 1)
	shown := make(chan struct{}, 1)

	h := oauth2.NewCallbackHandler(a.client)
	h.Logger = a.logger
	h.OnComplete = func(_ *ra.User, err error) {
		select {
		case completed <- err:
		default:
		}
	}
	routes := h.Handler()

	ln, err := net.Listen("tcp", a.cfg.Google.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not listen for the callback: %w", err)
	}
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			routes.ServeHTTP(w, r)
			if r.URL.Path == "/auth/done" {
				select {
				case shown <- struct{}{}:
				default:
				}
			}
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("callback server stopped", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := a.coord.SignInWithGoogle(ctx); err != nil {
		return err
	}

	var signInErr error
	select {
	case signInErr = <-completed:
	case <-ctx.Done():
		return fmt.Errorf("gave up waiting for the browser: %w", ctx.Err())
	}
	select {
	case <-shown:
	case <-time.After(3 * time.Second):
	}

	if err := a.coord.Flush(ctx); err != nil {
		return err
	}
	a.coord.CheckRedirectResult(ctx)
	return signInErr
}

func newSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out of this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				return a.coord.SignOut(ctx)
			})
		},
	}
}

func newResetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Email a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			var err error
			if email, err = valueOrPrompt(in, email, "Email", out); err != nil {
				return err
			}
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				a.coord.SendPasswordReset(ctx, email)
				fmt.Fprintln(a.out, "If an account exists for that address, a reset link is on its way.")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	return cmd
}

func newVerifyEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-email TOKEN",
		Short: "Confirm an email address with the token from the verification link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				if err := a.client.VerifyEmail(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Email verified. You can sign in now.")
				return nil
			})
		},
	}
}

func newSetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-password TOKEN",
		Short: "Choose a new password with the token from the reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			password, err := promptPassword(in, "New password", out)
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				if err := a.client.ResetPassword(ctx, args[0], password); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Password updated. You can sign in now.")
				return nil
			})
		},
	}
}

func newWhoAmICmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and their profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				out := a.out
				if err := a.coord.Flush(ctx); err != nil {
					return err
				}
				snap := a.coord.Snapshot()
				if !snap.IsAuthenticated() {
					fmt.Fprintln(out, "Not signed in.")
					return nil
				}
				profile, err := a.profiles.GetProfile(ctx, snap.CurrentUser.ID)
				if err != nil && !errors.Is(err, ra.ErrProfileNotFound) {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(struct {
						User    *ra.User    `json:"user"`
						Profile *ra.Profile `json:"profile,omitempty"`
					}{snap.CurrentUser, profile})
				}

				u := snap.CurrentUser
				fmt.Fprintf(out, "%s <%s>\n  id: %s\n", u.DisplayName, u.Email, u.ID)
				if profile != nil {
					fmt.Fprintf(out, "  member since: %s\n  last login: %s\n  saved: %d  derived: %d\n",
						profile.CreatedAt.Format(time.RFC3339), profile.LastLogin.Format(time.RFC3339),
						len(profile.SavedItems), len(profile.DerivedItems))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newStashCmd() *cobra.Command {
	var derived bool

	cmd := &cobra.Command{
		Use:   "stash JSON",
		Short: "Save a recipe on this device; it is copied to your profile on first sign-in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ra.PendingSavedItemsKey
			if derived {
				key = ra.PendingDerivedItemsKey
			}
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				if err := ra.AppendPendingItem(ctx, a.local, key, ra.Item(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Stashed in %s.\n", key)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&derived, "derived", false, "Stash as a derived recipe instead of a saved one")
	return cmd
}
