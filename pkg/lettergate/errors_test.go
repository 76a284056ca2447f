package lettergate_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		lettergate.ErrLimitReached,
		lettergate.ErrUnauthorized,
		lettergate.ErrTimeout,
		lettergate.ErrMalformedResponse,
		lettergate.ErrUpstream,
		lettergate.ErrStorageUnavailable,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: connection refused", lettergate.ErrUpstream)
	assert.ErrorIs(t, wrapped, lettergate.ErrUpstream)
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestValidationError(t *testing.T) {
	err := &lettergate.ValidationError{Reason: "Missing userId or text"}
	assert.Equal(t, "Missing userId or text", err.Error())
	assert.True(t, lettergate.IsValidation(err))
	assert.True(t, lettergate.IsValidation(fmt.Errorf("request rejected: %w", err)))

	assert.False(t, lettergate.IsValidation(lettergate.ErrUnauthorized))
	assert.False(t, lettergate.IsValidation(errors.New("other")))
	assert.False(t, lettergate.IsValidation(nil))
}
