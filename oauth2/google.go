package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/panyam/recipeauth/identity"
)

var _ identity.FederatedProvider = (*GoogleProvider)(nil)

// GoogleProvider runs the Google OAuth2 authorization code flow and reads the
// user's profile from the userinfo API
type GoogleProvider struct {
	Config oauth2.Config

	// APIEndpoint overrides https://www.googleapis.com/ (tests point it at a fake)
	APIEndpoint string

	// HTTPClient is used for the token exchange and API calls when set
	HTTPClient *http.Client
}

// NewGoogleProvider builds a provider, falling back to the OAUTH2_GOOGLE_*
// environment variables for empty arguments
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}
	return &GoogleProvider{
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				googleoauth2.UserinfoEmailScope,
				googleoauth2.UserinfoProfileScope,
			},
		},
	}
}

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.Config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*identity.FederatedIdentity, error) {
	if g.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
	}
	token, err := g.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	opts := []option.ClientOption{option.WithTokenSource(g.Config.TokenSource(ctx, token))}
	if g.APIEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.APIEndpoint))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}

	return &identity.FederatedIdentity{
		Subject:       info.Id,
		Email:         info.Email,
		EmailVerified: info.VerifiedEmail != nil && *info.VerifiedEmail,
		DisplayName:   info.Name,
		PhotoURL:      info.Picture,
	}, nil
}
