package lettergate

import (
	"crypto/subtle"
	"fmt"
)

// Authorizer decides whether a caller may use the service.
// The two shipped policies are mutually exclusive deployment choices:
// a shared secret checked per request, or a static user allow-list.
type Authorizer interface {
	Authorize(userID, credential string) bool
}

// SecretAuthorizer authorizes callers presenting the configured shared secret.
type SecretAuthorizer struct {
	secret string
}

// NewSecretAuthorizer creates an Authorizer that compares the caller
// credential against secret in constant time.
func NewSecretAuthorizer(secret string) *SecretAuthorizer {
	return &SecretAuthorizer{secret: secret}
}

func (a *SecretAuthorizer) Authorize(_, credential string) bool {
	if a.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), []byte(a.secret)) == 1
}

// AllowListAuthorizer authorizes callers whose userID is on a static list.
type AllowListAuthorizer struct {
	users map[string]struct{}
}

// NewAllowListAuthorizer creates an Authorizer backed by a fixed set of user IDs.
func NewAllowListAuthorizer(userIDs []string) *AllowListAuthorizer {
	users := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		users[id] = struct{}{}
	}
	return &AllowListAuthorizer{users: users}
}

func (a *AllowListAuthorizer) Authorize(userID, _ string) bool {
	_, ok := a.users[userID]
	return ok
}

// DefaultMaxWords is the word limit applied when none is configured.
const DefaultMaxWords = 350

// Validator checks structural well-formedness and authorization before any
// expensive work happens. A failed validation performs no side effects: no
// ledger read, no completion call.
type Validator struct {
	auth     Authorizer
	maxWords int
}

// NewValidator creates a Validator. maxWords <= 0 selects DefaultMaxWords.
func NewValidator(auth Authorizer, maxWords int) (*Validator, error) {
	if auth == nil {
		return nil, fmt.Errorf("lettergate: authorizer is required")
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return &Validator{auth: auth, maxWords: maxWords}, nil
}

// MaxWords returns the configured word limit.
func (v *Validator) MaxWords() int {
	return v.maxWords
}

// Authorize checks only the caller's authorization, for endpoints that
// carry no letter text.
func (v *Validator) Authorize(userID, credential string) error {
	if !v.auth.Authorize(userID, credential) {
		return ErrUnauthorized
	}
	if userID == "" {
		return &ValidationError{Reason: "Missing userId"}
	}
	return nil
}

// Validate checks the request, short-circuiting on the first failure:
// authorization, then required fields, then the word limit.
// It returns ErrUnauthorized or a *ValidationError.
func (v *Validator) Validate(userID, text, credential string) error {
	if !v.auth.Authorize(userID, credential) {
		return ErrUnauthorized
	}
	if userID == "" || text == "" {
		return &ValidationError{Reason: "Missing userId or text"}
	}
	if WordCount(text) > v.maxWords {
		return &ValidationError{Reason: fmt.Sprintf(
			"Your letter exceeds the %d word limit. Please shorten it and try again.", v.maxWords)}
	}
	return nil
}
