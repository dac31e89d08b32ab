package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableClassifiesKnownKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"io error", NewIOError("/backups/x", "disk full", nil), true},
		{"runtime error", NewRuntimeError("app", "exec failed", nil), true},
		{"runtime timeout", NewRuntimeTimeout("app", nil), true},
		{"validation error", NewValidationError("app", []string{"bad label"}, nil), false},
		{"security error", NewSecurityError("forbidden arg", nil), false},
		{"encryption error", NewEncryptionError("bad key", nil), false},
		{"integrity error", NewIntegrityError("/backups/x.sql", "too small"), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestConfigErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("underlying")
	err := NewConfigError("cron_schedule", "invalid", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cron_schedule")
}

func TestRuntimeErrorFormatsWithoutContainer(t *testing.T) {
	err := NewRuntimeError("", "ping failed", nil)
	assert.Equal(t, "ping failed", err.Error())
}
