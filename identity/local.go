package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	ra "github.com/panyam/recipeauth"
	"golang.org/x/crypto/bcrypt"
)

var _ ra.IdentityClient = (*LocalClient)(nil)

// LocalStore keys owned by the client
const (
	SessionKey        = "auth.session"
	RedirectStateKey  = "auth.redirectState"
	RedirectResultKey = "auth.redirectResult"
)

// LocalClient is a self-hosted ra.IdentityClient backed by an AccountStore.
// Passwords are hashed with bcrypt; the signed-in account is kept as a signed
// JWT in the LocalStore so it survives restarts.
type LocalClient struct {
	// Must be passed in
	Accounts AccountStore
	Tokens   TokenStore

	// Device storage for the session and redirect state. Without it sessions
	// only live in memory and redirect sign-in reports unsupported_storage.
	Local ra.LocalStore

	// Optional; defaults to ConsoleEmailSender
	EmailSender EmailSender

	// Base URL for generating verification/reset links
	BaseURL string

	// HMAC key for session tokens. Required when Local is set.
	SessionSecret []byte
	SessionIssuer string
	SessionExpiry time.Duration

	// Defaults to 6
	MinPasswordLength int

	// Federated providers by name ("google")
	Providers map[string]FederatedProvider

	// OpenURL sends the user to a provider's consent page. When nil the URL
	// is only logged.
	OpenURL func(ctx context.Context, url string) error

	Logger *slog.Logger
	Now    func() time.Time

	mu       sync.Mutex
	current  *ra.User
	restored bool
	subs     map[int]func(*ra.User)
	nextSub  int

	// delivers user changes to subscribers in order
	publishMu sync.Mutex
}

func (c *LocalClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *LocalClient) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *LocalClient) minPasswordLength() int {
	if c.MinPasswordLength <= 0 {
		return 6
	}
	return c.MinPasswordLength
}

func (c *LocalClient) emailSender() EmailSender {
	if c.EmailSender != nil {
		return c.EmailSender
	}
	return &ConsoleEmailSender{Logger: c.Logger}
}

// Subscribe reports the current user right away and every change after that.
// The first subscription restores a persisted session.
func (c *LocalClient) Subscribe(onChange func(user *ra.User)) func() {
	c.restoreOnce(context.Background())

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if c.subs == nil {
		c.subs = make(map[int]func(*ra.User))
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = onChange
	current := c.current.Clone()
	c.mu.Unlock()

	onChange(current)
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// setCurrent swaps the signed-in user and tells subscribers
func (c *LocalClient) setCurrent(user *ra.User) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	c.current = user.Clone()
	c.restored = true
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	fns := make([]func(*ra.User), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(user.Clone())
	}
}

// CurrentUser returns the signed-in user, or nil
func (c *LocalClient) CurrentUser(ctx context.Context) *ra.User {
	c.restoreOnce(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

func (c *LocalClient) restoreOnce(ctx context.Context) {
	c.mu.Lock()
	done := c.restored
	c.restored = true
	c.mu.Unlock()
	if done {
		return
	}

	user, err := c.restoreSession(ctx)
	if err != nil {
		c.logger().WarnContext(ctx, "discarding stored session", "err", err)
		if c.Local != nil {
			_ = c.Local.Delete(ctx, SessionKey)
		}
		return
	}
	c.mu.Lock()
	if c.current == nil {
		c.current = user
	}
	c.mu.Unlock()
}

func (c *LocalClient) restoreSession(ctx context.Context) (*ra.User, error) {
	if c.Local == nil {
		return nil, nil
	}
	data, err := c.Local.Get(ctx, SessionKey)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	accountID, err := parseSessionToken(c.SessionSecret, c.SessionIssuer, string(data))
	if err != nil {
		return nil, err
	}
	account, err := c.Accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.User(), nil
}

// signIn makes account the current user and persists the session
func (c *LocalClient) signIn(ctx context.Context, account *Account) (*ra.User, error) {
	if c.Local != nil {
		token, err := createSessionToken(c.SessionSecret, c.SessionIssuer, account.ID, c.now(), c.SessionExpiry)
		if err != nil {
			return nil, err
		}
		if err := c.Local.Set(ctx, SessionKey, []byte(token)); err != nil {
			return nil, ra.WrapAuthError(ra.ErrCodeUnsupportedStorage, "could not persist session", err)
		}
	}
	user := account.User()
	c.setCurrent(user)
	return user.Clone(), nil
}

func (c *LocalClient) SignInWithPassword(ctx context.Context, email, password string) (*ra.User, error) {
	if email == "" || password == "" {
		return nil, ra.NewAuthError(ra.ErrCodeMissingField, "Email and password are required", "email")
	}
	account, err := c.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ra.NewAuthError(ra.ErrCodeUserNotFound, "No account for this email", "email")
		}
		return nil, ra.WrapAuthError(ra.ErrCodeNetwork, "account lookup failed", err)
	}
	if account.PasswordHash == "" {
		return nil, ra.NewAuthError(ra.ErrCodeInvalidCreds, "Invalid credentials", "password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ra.NewAuthError(ra.ErrCodeWrongPassword, "Incorrect password", "password")
	}
	return c.signIn(ctx, account)
}

// CreateAccount registers an email/password account and signs it in
func (c *LocalClient) CreateAccount(ctx context.Context, email, password string) (*ra.User, error) {
	email = strings.TrimSpace(email)
	if !ra.IsValidEmail(email) {
		return nil, ra.NewAuthError(ra.ErrCodeInvalidEmail, "Invalid email address", "email")
	}
	if len(password) < c.minPasswordLength() {
		return nil, ra.NewAuthError(ra.ErrCodeWeakPassword,
			fmt.Sprintf("Password must be at least %d characters", c.minPasswordLength()), "password")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := c.now()
	account := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(passwordHash),
		Providers:    []string{"password"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.Accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ra.ErrAccountExists) {
			return nil, ra.ErrAccountExists
		}
		return nil, ra.WrapAuthError(ra.ErrCodeNetwork, "could not create account", err)
	}
	return c.signIn(ctx, account)
}

func (c *LocalClient) UpdateDisplayName(ctx context.Context, user *ra.User, name string) error {
	account, err := c.Accounts.GetAccountByID(ctx, user.ID)
	if err != nil {
		return c.lookupError(err)
	}
	account.DisplayName = name
	account.UpdatedAt = c.now()
	if err := c.Accounts.SaveAccount(ctx, account); err != nil {
		return ra.WrapAuthError(ra.ErrCodeNetwork, "could not update profile", err)
	}

	// Profile edits don't count as an auth state change
	c.mu.Lock()
	if c.current != nil && c.current.ID == user.ID {
		c.current.DisplayName = name
	}
	c.mu.Unlock()
	return nil
}

func (c *LocalClient) SendVerificationEmail(ctx context.Context, user *ra.User) error {
	token, err := c.Tokens.CreateToken(ctx, user.ID, user.Email, TokenTypeEmailVerification, TokenExpiryEmailVerification)
	if err != nil {
		return ra.WrapAuthError(ra.ErrCodeNetwork, "could not create verification token", err)
	}
	link := c.link("/verify-email", token.Token)
	if err := c.emailSender().SendVerificationEmail(ctx, user.Email, link); err != nil {
		return ra.WrapAuthError(ra.ErrCodeNetwork, "could not send verification email", err)
	}
	return nil
}

func (c *LocalClient) SendPasswordResetEmail(ctx context.Context, email string) error {
	account, err := c.Accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return c.lookupError(err)
	}
	token, err := c.Tokens.CreateToken(ctx, account.ID, account.Email, TokenTypePasswordReset, TokenExpiryPasswordReset)
	if err != nil {
		return ra.WrapAuthError(ra.ErrCodeNetwork, "could not create reset token", err)
	}
	if err := c.emailSender().SendPasswordResetEmail(ctx, account.Email, c.link("/reset-password", token.Token)); err != nil {
		return ra.WrapAuthError(ra.ErrCodeNetwork, "could not send reset email", err)
	}
	return nil
}

func (c *LocalClient) SignOut(ctx context.Context) error {
	if c.Local != nil {
		if err := c.Local.Delete(ctx, SessionKey); err != nil {
			return ra.WrapAuthError(ra.ErrCodeUnsupportedStorage, "could not clear session", err)
		}
	}
	c.setCurrent(nil)
	return nil
}

// DeleteAccount removes the account, its tokens and (if it is signed in) the session
func (c *LocalClient) DeleteAccount(ctx context.Context, user *ra.User) error {
	if err := c.Accounts.DeleteAccount(ctx, user.ID); err != nil {
		return ra.WrapAuthError(ra.ErrCodeNetwork, "could not delete account", err)
	}
	for _, tokenType := range []TokenType{TokenTypeEmailVerification, TokenTypePasswordReset} {
		if err := c.Tokens.DeleteUserTokens(ctx, user.ID, tokenType); err != nil {
			c.logger().WarnContext(ctx, "failed to delete tokens", "user_id", user.ID, "type", tokenType, "err", err)
		}
	}

	c.mu.Lock()
	signedIn := c.current != nil && c.current.ID == user.ID
	c.mu.Unlock()
	if signedIn {
		return c.SignOut(ctx)
	}
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified
func (c *LocalClient) VerifyEmail(ctx context.Context, token string) error {
	authToken, err := c.consumeToken(ctx, token, TokenTypeEmailVerification)
	if err != nil {
		return err
	}
	account, err := c.Accounts.GetAccountByID(ctx, authToken.UserID)
	if err != nil {
		return c.lookupError(err)
	}
	account.EmailVerified = true
	account.UpdatedAt = c.now()
	if err := c.Accounts.SaveAccount(ctx, account); err != nil {
		return ra.WrapAuthError(ra.ErrCodeNetwork, "failed to verify email", err)
	}

	c.mu.Lock()
	signedIn := c.current != nil && c.current.ID == account.ID
	c.mu.Unlock()
	if signedIn {
		c.setCurrent(account.User())
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the account's password
func (c *LocalClient) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < c.minPasswordLength() {
		return ra.NewAuthError(ra.ErrCodeWeakPassword,
			fmt.Sprintf("Password must be at least %d characters", c.minPasswordLength()), "password")
	}
	authToken, err := c.consumeToken(ctx, token, TokenTypePasswordReset)
	if err != nil {
		return err
	}
	account, err := c.Accounts.GetAccountByID(ctx, authToken.UserID)
	if err != nil {
		return c.lookupError(err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	account.PasswordHash = string(passwordHash)
	if !account.HasProvider("password") {
		account.Providers = append(account.Providers, "password")
	}
	account.UpdatedAt = c.now()
	if err := c.Accounts.SaveAccount(ctx, account); err != nil {
		return ra.WrapAuthError(ra.ErrCodeNetwork, "failed to update password", err)
	}

	// Outstanding reset links die with the old password
	if err := c.Tokens.DeleteUserTokens(ctx, account.ID, TokenTypePasswordReset); err != nil {
		c.logger().WarnContext(ctx, "failed to delete reset tokens", "user_id", account.ID, "err", err)
	}
	return nil
}

func (c *LocalClient) consumeToken(ctx context.Context, token string, tokenType TokenType) (*AuthToken, error) {
	authToken, err := c.Tokens.GetToken(ctx, token)
	if err != nil || !authToken.IsValid(tokenType) {
		return nil, ra.NewAuthError(ra.ErrCodeInvalidToken, "Invalid or expired token", "token")
	}
	// One time use
	if err := c.Tokens.DeleteToken(ctx, token); err != nil {
		c.logger().WarnContext(ctx, "failed to delete token", "err", err)
	}
	return authToken, nil
}

func (c *LocalClient) lookupError(err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		return ra.NewAuthError(ra.ErrCodeUserNotFound, "No such account", "email")
	}
	return ra.WrapAuthError(ra.ErrCodeNetwork, "account lookup failed", err)
}

func (c *LocalClient) link(path, token string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// pendingRedirect is what SignInWithRedirect leaves in the LocalStore for
// CompleteRedirect to check
type pendingRedirect struct {
	Provider  string    `json:"provider"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *LocalClient) writeJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Local.Set(ctx, key, data)
}

// readJSON returns false when the key is absent
func (c *LocalClient) readJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.Local.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("corrupt %s: %w", key, err)
	}
	return true, nil
}
