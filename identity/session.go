package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionExpiry is how long a persisted sign-in stays valid
const DefaultSessionExpiry = 30 * 24 * time.Hour

// sessionTokenType marks our tokens so a verification token can't be replayed as one
const sessionTokenType = "session"

// createSessionToken signs a JWT naming the account that is signed in
func createSessionToken(secret []byte, issuer, accountID string, now time.Time, expiry time.Duration) (string, error) {
	if expiry == 0 {
		expiry = DefaultSessionExpiry
	}
	claims := jwt.MapClaims{
		"sub":  accountID,
		"type": sessionTokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(expiry).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// parseSessionToken validates a session JWT and returns the account id
func parseSessionToken(secret []byte, issuer, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid session")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != sessionTokenType {
		return "", fmt.Errorf("invalid token type")
	}
	if issuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != issuer {
			return "", fmt.Errorf("invalid issuer")
		}
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("missing subject")
	}
	return sub, nil
}
