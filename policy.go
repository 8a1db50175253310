package recipeauth

import (
	"regexp"
	"strings"
)

// DefaultAllowedDomains are the email providers accepted at sign-up
var DefaultAllowedDomains = []string{"gmail.com", "yahoo.com", "outlook.com", "microsoft.com"}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// SignupPolicy defines what is accepted at sign-up
type SignupPolicy struct {
	// AllowedDomains lists accepted email domains. Nil means DefaultAllowedDomains.
	AllowedDomains []string

	// MinPasswordLength is enforced by the identity client, not here.
	// It is carried so CLIs can prompt with the right hint. 0 means 6.
	MinPasswordLength int
}

func DefaultSignupPolicy() SignupPolicy {
	return SignupPolicy{
		AllowedDomains:    DefaultAllowedDomains,
		MinPasswordLength: 6,
	}
}

func (p SignupPolicy) GetAllowedDomains() []string {
	if p.AllowedDomains == nil {
		return DefaultAllowedDomains
	}
	return p.AllowedDomains
}

func (p SignupPolicy) GetMinPasswordLength() int {
	if p.MinPasswordLength <= 0 {
		return 6
	}
	return p.MinPasswordLength
}

// EmailDomain returns the lowercased text after the last "@", or "" if there is none
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// CheckDomain returns ErrDomainNotAllowed unless the email's domain is allowed
func (p SignupPolicy) CheckDomain(email string) error {
	domain := EmailDomain(email)
	if domain == "" {
		return ErrDomainNotAllowed
	}
	for _, allowed := range p.GetAllowedDomains() {
		if strings.EqualFold(domain, allowed) {
			return nil
		}
	}
	return ErrDomainNotAllowed
}

// IsValidEmail is a basic format check
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
