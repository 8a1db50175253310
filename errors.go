package recipeauth

import (
	"errors"
	"fmt"
)

// Error codes carried by AuthError. Identity clients report the provider codes;
// the coordinator adds the policy codes.
const (
	// provider codes
	ErrCodeWrongPassword      = "wrong_password"
	ErrCodeUserNotFound       = "user_not_found"
	ErrCodeInvalidCreds       = "invalid_credentials"
	ErrCodeEmailExists        = "email_exists"
	ErrCodeNetwork            = "network_request_failed"
	ErrCodeUnsupportedStorage = "unsupported_storage"
	ErrCodeInvalidEmail       = "invalid_email"
	ErrCodeWeakPassword       = "weak_password"
	ErrCodeMissingField       = "missing_field"
	ErrCodeInvalidToken       = "invalid_token"

	// coordinator codes
	ErrCodeNotVerified            = "not_verified"
	ErrCodeDomainNotAllowed       = "domain_not_allowed"
	ErrCodeVerificationSendFailed = "verification_send_failed"
)

// AuthError is a structured authentication failure
type AuthError struct {
	Code    string // machine readable, one of the ErrCode* constants
	Message string // human readable
	Field   string // form field the error relates to, if any
	Err     error  // underlying cause
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// WrapAuthError attaches a cause to a new AuthError
func WrapAuthError(code, message string, err error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError with the same Code, so sentinels work with errors.Is
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

var (
	ErrNotVerified            = NewAuthError(ErrCodeNotVerified, "Please verify your email before signing in", "email")
	ErrDomainNotAllowed       = NewAuthError(ErrCodeDomainNotAllowed, "Email domain is not allowed", "email")
	ErrVerificationSendFailed = NewAuthError(ErrCodeVerificationSendFailed, "Could not send verification email", "email")
	ErrInvalidCredentials     = NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password")
	ErrAccountExists          = NewAuthError(ErrCodeEmailExists, "An account with this email already exists", "email")
	ErrNetwork                = NewAuthError(ErrCodeNetwork, "Network request failed", "")
	ErrUnsupportedEnvironment = NewAuthError(ErrCodeUnsupportedStorage, "Storage is not supported in this environment", "")
	ErrProfileNotFound        = errors.New("profile not found")
)

// ErrorKind is the coarse classification callers branch on
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidCredentials
	KindNotVerified
	KindDomainNotAllowed
	KindAccountExists
	KindVerificationSendFailed
	KindNetworkError
	KindUnsupportedEnvironment
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindNotVerified:
		return "NotVerified"
	case KindDomainNotAllowed:
		return "DomainNotAllowed"
	case KindAccountExists:
		return "AccountExists"
	case KindVerificationSendFailed:
		return "VerificationSendFailed"
	case KindNetworkError:
		return "NetworkError"
	case KindUnsupportedEnvironment:
		return "UnsupportedEnvironment"
	}
	return "Unknown"
}

// KindOf classifies an error. Non-AuthErrors are KindUnknown.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return KindUnknown
	}
	switch authErr.Code {
	case ErrCodeWrongPassword, ErrCodeUserNotFound, ErrCodeInvalidCreds:
		return KindInvalidCredentials
	case ErrCodeNotVerified:
		return KindNotVerified
	case ErrCodeDomainNotAllowed:
		return KindDomainNotAllowed
	case ErrCodeEmailExists:
		return KindAccountExists
	case ErrCodeVerificationSendFailed:
		return KindVerificationSendFailed
	case ErrCodeNetwork:
		return KindNetworkError
	case ErrCodeUnsupportedStorage:
		return KindUnsupportedEnvironment
	}
	return KindUnknown
}
