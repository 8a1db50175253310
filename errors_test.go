package recipeauth_test

import (
	"errors"
	"fmt"
	"testing"

	ra "github.com/panyam/recipeauth"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ra.ErrorKind
	}{
		{nil, ra.KindUnknown},
		{errors.New("plain"), ra.KindUnknown},
		{ra.NewAuthError(ra.ErrCodeWrongPassword, "x", ""), ra.KindInvalidCredentials},
		{ra.NewAuthError(ra.ErrCodeUserNotFound, "x", ""), ra.KindInvalidCredentials},
		{ra.ErrInvalidCredentials, ra.KindInvalidCredentials},
		{ra.ErrNotVerified, ra.KindNotVerified},
		{ra.ErrDomainNotAllowed, ra.KindDomainNotAllowed},
		{ra.ErrAccountExists, ra.KindAccountExists},
		{ra.ErrVerificationSendFailed, ra.KindVerificationSendFailed},
		{ra.ErrNetwork, ra.KindNetworkError},
		{ra.ErrUnsupportedEnvironment, ra.KindUnsupportedEnvironment},
		{fmt.Errorf("wrapped: %w", ra.ErrNotVerified), ra.KindNotVerified},
		{ra.NewAuthError(ra.ErrCodeInvalidToken, "x", ""), ra.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := ra.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAuthErrorIsMatchesByCode(t *testing.T) {
	err := ra.WrapAuthError(ra.ErrCodeNetwork, "different message", errors.New("dial tcp"))
	if !errors.Is(err, ra.ErrNetwork) {
		t.Error("Expected errors.Is to match on code")
	}
	if errors.Is(err, ra.ErrNotVerified) {
		t.Error("Different codes must not match")
	}
	if err.Error() != "different message: dial tcp" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if errors.Unwrap(err) == nil {
		t.Error("Expected the cause to be unwrappable")
	}
}
