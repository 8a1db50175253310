package identity_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ra "github.com/panyam/recipeauth"
	"github.com/panyam/recipeauth/identity"
)

type stubProvider struct {
	ident *identity.FederatedIdentity
	err   error
}

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://idp.example/auth?state=" + url.QueryEscape(state)
}

func (p *stubProvider) Exchange(ctx context.Context, code string) (*identity.FederatedIdentity, error) {
	return p.ident, p.err
}

func startRedirect(t *testing.T, c *identity.LocalClient) string {
	t.Helper()
	var opened string
	c.OpenURL = func(ctx context.Context, u string) error {
		opened = u
		return nil
	}
	require.NoError(t, c.SignInWithRedirect(context.Background(), ra.ProviderGoogle))
	u, err := url.Parse(opened)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestRedirect_CreatesAndLinksAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.client()

	// an existing password account with the same email gets linked
	existing, err := c.CreateAccount(ctx, "cook@gmail.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, c.SignOut(ctx))

	c.Providers = map[string]identity.FederatedProvider{
		ra.ProviderGoogle: &stubProvider{ident: &identity.FederatedIdentity{
			Subject: "g-1", Email: "Cook@gmail.com", EmailVerified: true, DisplayName: "Cook", PhotoURL: "https://img/cook.png",
		}},
	}
	state := startRedirect(t, c)

	user, err := c.CompleteRedirect(ctx, state, "code")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, "Cook", user.DisplayName)
	assert.Equal(t, "https://img/cook.png", user.PhotoURL)

	result, err := c.GetRedirectResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, ra.ProviderGoogle, result.Provider)
	assert.Equal(t, user.ID, result.User.ID)

	result, err = c.GetRedirectResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, result, "results are consumed")

	// the password still works after linking
	_, err = c.SignInWithPassword(ctx, "cook@gmail.com", "secret1")
	assert.NoError(t, err)
}

func TestRedirect_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		c := newFixture(t).client()
		assert.Equal(t, ra.ErrCodeMissingField, code(c.SignInWithRedirect(ctx, "myspace")))
	})

	t.Run("state mismatch", func(t *testing.T) {
		c := newFixture(t).client()
		c.Providers = map[string]identity.FederatedProvider{ra.ProviderGoogle: &stubProvider{}}
		startRedirect(t, c)
		_, err := c.CompleteRedirect(ctx, "forged", "code")
		assert.Equal(t, ra.ErrCodeInvalidToken, code(err))
	})

	t.Run("exchange fails", func(t *testing.T) {
		c := newFixture(t).client()
		c.Providers = map[string]identity.FederatedProvider{ra.ProviderGoogle: &stubProvider{err: errors.New("denied")}}
		state := startRedirect(t, c)
		_, err := c.CompleteRedirect(ctx, state, "code")
		assert.Equal(t, ra.ErrCodeNetwork, code(err))
		assert.Nil(t, c.CurrentUser(ctx))
	})

	t.Run("no local store", func(t *testing.T) {
		c := newFixture(t).client()
		c.Local = nil
		assert.ErrorIs(t, c.SignInWithRedirect(ctx, ra.ProviderGoogle), ra.ErrUnsupportedEnvironment)
		_, err := c.GetRedirectResult(ctx)
		assert.Equal(t, ra.KindUnsupportedEnvironment, ra.KindOf(err))
	})

	t.Run("corrupt result", func(t *testing.T) {
		f := newFixture(t)
		c := f.client()
		require.NoError(t, f.local.Set(ctx, identity.RedirectResultKey, []byte("{broken")))
		_, err := c.GetRedirectResult(ctx)
		assert.Equal(t, ra.KindUnsupportedEnvironment, ra.KindOf(err))
		result, err := c.GetRedirectResult(ctx)
		assert.NoError(t, err)
		assert.Nil(t, result, "corrupt results are cleared")
	})
}

func TestRedirect_UnverifiedEmailDoesNotLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.client()

	victim, err := c.CreateAccount(ctx, "victim@gmail.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, c.SendVerificationEmail(ctx, victim))
	require.NoError(t, c.VerifyEmail(ctx, f.mail.lastToken(t)))
	require.NoError(t, c.SignOut(ctx))

	c.Providers = map[string]identity.FederatedProvider{
		ra.ProviderGoogle: &stubProvider{ident: &identity.FederatedIdentity{
			Subject: "g-evil", Email: "victim@gmail.com", EmailVerified: false, DisplayName: "Mallory",
		}},
	}
	state := startRedirect(t, c)

	user, err := c.CompleteRedirect(ctx, state, "code")
	assert.Nil(t, user)
	assert.Equal(t, ra.ErrCodeInvalidCreds, code(err))
	assert.Nil(t, c.CurrentUser(ctx), "nobody is signed in")

	result, err := c.GetRedirectResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, result)

	// the account is untouched and still signs in with its password
	signedIn, err := c.SignInWithPassword(ctx, "victim@gmail.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, victim.ID, signedIn.ID)
	assert.Empty(t, signedIn.DisplayName)
}

func TestRedirect_UnverifiedEmailCreatesUnverifiedAccount(t *testing.T) {
	ctx := context.Background()
	c := newFixture(t).client()
	c.Providers = map[string]identity.FederatedProvider{
		ra.ProviderGoogle: &stubProvider{ident: &identity.FederatedIdentity{
			Subject: "g-2", Email: "new@gmail.com", EmailVerified: false,
		}},
	}
	state := startRedirect(t, c)

	user, err := c.CompleteRedirect(ctx, state, "code")
	require.NoError(t, err)
	assert.Equal(t, "new@gmail.com", user.Email)
	assert.False(t, user.EmailVerified)
}
