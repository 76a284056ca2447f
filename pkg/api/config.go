package api

import (
	"fmt"
	"net/http"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// Config holds configuration for the letter-check API handler
type Config struct {
	// Ledger is the quota ledger instance (required)
	Ledger *lettergate.Ledger

	// Validator performs authorization and input checks (required)
	Validator *lettergate.Validator

	// Complete invokes the upstream model for an admitted letter (required)
	Complete lettergate.CompletionFunc

	// GetCredential extracts the service credential from the request.
	// Used when the request body carries no apiKey field.
	// If nil, defaults to reading the X-Api-Key header.
	GetCredential func(*http.Request) string

	// Logger is optional structured logging for request handling
	// If nil, logging is disabled
	Logger lettergate.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Ledger == nil {
		return fmt.Errorf("ledger is required")
	}
	if c.Validator == nil {
		return fmt.Errorf("validator is required")
	}
	if c.Complete == nil {
		return fmt.Errorf("completion func is required")
	}
	return nil
}

// NewHandler creates a new letter-check API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.GetCredential == nil {
		config.GetCredential = FromHeader("X-Api-Key")
	}
	if config.Logger == nil {
		config.Logger = &lettergate.NoopLogger{}
	}
	return &Handler{
		config: config,
	}, nil
}

// FromHeader returns a GetCredential function that reads a header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}
