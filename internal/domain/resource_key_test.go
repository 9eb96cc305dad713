package domain

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeResourceKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "CN1234567A", NormalizeResourceKey("  cn 1234567a "))
	assert.Equal(t, "", NormalizeResourceKey("   "))
}

func TestValidateResourceKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key     string
		wantErr error
	}{
		{"CN1234567A", nil},
		{"CN202310123456.7", nil},
		{"CN2023101234567", nil},
		{"US12345B2", nil},
		{"", ErrEmptyResourceKey},
		{"1234567", ErrInvalidResourceKey},
		{"CN12", ErrInvalidResourceKey},
		{"CN1234567A/../x", ErrInvalidResourceKey},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			err := ValidateResourceKey(tc.key)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("code", "is required", nil)
	assert.Equal(t, "code is required", err.Error())
	assert.ErrorIs(t, err, ErrValidation)

	var vErr *ValidationError
	assert.True(t, errors.As(error(err), &vErr))
	assert.Equal(t, "code", vErr.Field)
}

func TestChallengeSession(t *testing.T) {
	t.Parallel()

	task := &FetchTask{ID: "download_CN1234567A_1", ResourceKey: "CN1234567A"}
	session := &ChallengeSession{
		TaskID:      task.ID,
		ResourceKey: task.ResourceKey,
		Image:       []byte{1},
		State:       SessionState{Cookies: []Cookie{{Name: "JSESSIONID", Value: "secret"}}},
	}

	assert.NoError(t, session.Validate())
	assert.True(t, session.BelongsTo(task))
	assert.False(t, session.BelongsTo(&FetchTask{ID: task.ID, ResourceKey: "CN7654321A"}))

	clone := session.Clone()
	clone.State.Cookies[0].Value = "changed"
	assert.Equal(t, "secret", session.State.Cookies[0].Value)

	empty := &ChallengeSession{TaskID: "t", ResourceKey: "k"}
	assert.ErrorIs(t, empty.Validate(), ErrEmptyChallengeImage)
}

func TestSessionState_LogValueHidesCookieValues(t *testing.T) {
	t.Parallel()

	state := SessionState{Cookies: []Cookie{{Name: "sid", Value: "very-secret"}}}
	value := state.LogValue()

	assert.Equal(t, slog.KindGroup, value.Kind())
	assert.NotContains(t, value.String(), "very-secret")
	assert.Contains(t, value.String(), "sid")
}
