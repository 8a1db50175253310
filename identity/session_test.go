package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken(t *testing.T) {
	secret := []byte("secret")
	now := time.Now()

	token, err := createSessionToken(secret, "recipeauth", "acct-1", now, time.Hour)
	require.NoError(t, err)

	id, err := parseSessionToken(secret, "recipeauth", token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", id)

	_, err = parseSessionToken([]byte("other"), "recipeauth", token)
	assert.Error(t, err, "wrong secret")

	_, err = parseSessionToken(secret, "someone-else", token)
	assert.Error(t, err, "wrong issuer")

	expired, err := createSessionToken(secret, "recipeauth", "acct-1", now.Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	_, err = parseSessionToken(secret, "recipeauth", expired)
	assert.Error(t, err, "expired")
}
