package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandByteArray(t *testing.T) {
	assert.Len(t, GenerateRandByteArray(24), 24)
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte("secret1")
	WipeByteArray(buf)
	assert.Equal(t, make([]byte, 7), buf)
	WipeByteArray(nil)
}

func TestError_UnwrapsToKind(t *testing.T) {
	err := fmt.Errorf("register: %w", NewError(ErrorConflict, "User already exists"))

	assert.True(t, errors.Is(err, ErrorConflict))
	assert.False(t, errors.Is(err, ErrorNotFound))
	assert.Equal(t, "User already exists", Message(err))
}

func TestError_EmptyMessageFallsBackToKind(t *testing.T) {
	assert.Equal(t, "not found", NewError(ErrorNotFound, "").Error())
	assert.Equal(t, "boom", Message(errors.New("boom")))
}

func TestRateLimited(t *testing.T) {
	err := RateLimited("Too many attempts", 90*time.Second)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 90*time.Second, e.RetryAfter)
	assert.ErrorIs(t, err, ErrorRateLimited)
}
