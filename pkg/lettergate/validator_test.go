package lettergate_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

func TestNewValidator(t *testing.T) {
	_, err := lettergate.NewValidator(nil, 0)
	if err == nil {
		t.Fatal("Expected error for nil authorizer")
	}

	v, err := lettergate.NewValidator(lettergate.NewSecretAuthorizer("s"), 0)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	if v.MaxWords() != lettergate.DefaultMaxWords {
		t.Errorf("Expected default max words %d, got %d",
			lettergate.DefaultMaxWords, v.MaxWords())
	}
}

func TestValidator_Validate_SecretPolicy(t *testing.T) {
	v, err := lettergate.NewValidator(lettergate.NewSecretAuthorizer("topsecret"), 10)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	if err := v.Validate("user1", "a short letter", "topsecret"); err != nil {
		t.Errorf("Expected valid request, got %v", err)
	}

	// Authorization short-circuits everything else
	if err := v.Validate("user1", "a short letter", "wrong"); !errors.Is(err, lettergate.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
	if err := v.Validate("", "", "wrong"); !errors.Is(err, lettergate.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized before field checks, got %v", err)
	}

	// Missing fields
	err = v.Validate("", "text", "topsecret")
	if !lettergate.IsValidation(err) {
		t.Errorf("Expected validation error for missing userId, got %v", err)
	}
	err = v.Validate("user1", "", "topsecret")
	if !lettergate.IsValidation(err) {
		t.Errorf("Expected validation error for missing text, got %v", err)
	}

	// Word limit
	long := strings.Repeat("word ", 11)
	err = v.Validate("user1", long, "topsecret")
	if !lettergate.IsValidation(err) {
		t.Fatalf("Expected validation error for long letter, got %v", err)
	}
	if !strings.Contains(err.Error(), "10 word limit") {
		t.Errorf("Expected word-limit message, got %q", err.Error())
	}

	// Exactly at the limit is fine
	exact := strings.TrimSpace(strings.Repeat("word ", 10))
	if err := v.Validate("user1", exact, "topsecret"); err != nil {
		t.Errorf("Expected letter at the limit to pass, got %v", err)
	}
}

func TestValidator_Validate_AllowListPolicy(t *testing.T) {
	auth := lettergate.NewAllowListAuthorizer([]string{"alice", "bob"})
	v, err := lettergate.NewValidator(auth, 0)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	if err := v.Validate("alice", "hello", ""); err != nil {
		t.Errorf("Expected listed user to pass, got %v", err)
	}
	if err := v.Validate("mallory", "hello", ""); !errors.Is(err, lettergate.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for unlisted user, got %v", err)
	}
}

func TestValidator_Authorize(t *testing.T) {
	v, err := lettergate.NewValidator(lettergate.NewSecretAuthorizer("s"), 0)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	if err := v.Authorize("user1", "s"); err != nil {
		t.Errorf("Expected authorized, got %v", err)
	}
	if err := v.Authorize("user1", "nope"); !errors.Is(err, lettergate.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
	if err := v.Authorize("", "s"); !lettergate.IsValidation(err) {
		t.Errorf("Expected validation error for empty userId, got %v", err)
	}
}

func TestSecretAuthorizer_EmptySecretRejectsAll(t *testing.T) {
	auth := lettergate.NewSecretAuthorizer("")
	if auth.Authorize("user1", "") {
		t.Error("Expected empty secret to reject even empty credentials")
	}
}
