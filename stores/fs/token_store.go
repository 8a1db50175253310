package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/panyam/recipeauth/identity"
)

// TokenStore stores verification and reset tokens as JSON files
type TokenStore struct {
	StoragePath string
}

func NewTokenStore(storagePath string) *TokenStore {
	return &TokenStore{StoragePath: storagePath}
}

func (s *TokenStore) getTokenPath(token string) string {
	return filepath.Join(s.StoragePath, "tokens", safeName(token)+".json")
}

func (s *TokenStore) CreateToken(ctx context.Context, userID, email string, tokenType identity.TokenType, expiry time.Duration) (*identity.AuthToken, error) {
	token, err := identity.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	authToken := &identity.AuthToken{
		Token:     token,
		Type:      tokenType,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}
	if err := writeJSONFile(s.getTokenPath(token), authToken); err != nil {
		return nil, err
	}
	return authToken, nil
}

func (s *TokenStore) GetToken(ctx context.Context, token string) (*identity.AuthToken, error) {
	var authToken identity.AuthToken
	if err := readJSONFile(s.getTokenPath(token), &authToken); err != nil {
		if os.IsNotExist(err) {
			return nil, identity.ErrTokenNotFound
		}
		return nil, err
	}

	if authToken.IsExpired() {
		// Auto-delete expired token
		_ = s.DeleteToken(ctx, token)
		return nil, identity.ErrTokenExpired
	}
	return &authToken, nil
}

func (s *TokenStore) DeleteToken(ctx context.Context, token string) error {
	err := os.Remove(s.getTokenPath(token))
	if os.IsNotExist(err) {
		return nil // Already deleted
	}
	return err
}

func (s *TokenStore) DeleteUserTokens(ctx context.Context, userID string, tokenType identity.TokenType) error {
	tokensDir := filepath.Join(s.StoragePath, "tokens")
	entries, err := os.ReadDir(tokensDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tokensDir, entry.Name()))
		if err != nil {
			continue
		}
		var authToken identity.AuthToken
		if err := json.Unmarshal(data, &authToken); err != nil {
			continue
		}
		if authToken.UserID == userID && authToken.Type == tokenType {
			_ = os.Remove(filepath.Join(tokensDir, entry.Name()))
		}
	}
	return nil
}
