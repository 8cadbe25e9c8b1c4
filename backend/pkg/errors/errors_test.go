package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		err  error
		typ  ErrorType
		key  string
	}{
		{"not found", NewNotFound("channel", "c1"), ErrorTypeNotFound, "channelNotFound"},
		{"validation", NewValidation("Freet content", "must be at least one character long."), ErrorTypeValidation, "Freet content"},
		{"not authorized", NewNotAuthorized("bob", "follow", "Cannot follow own channels."), ErrorTypeNotAuthorized, "follow"},
		{"duplicate", NewDuplicate("subscribe", "a|b", "Already subscribing to this user."), ErrorTypeDuplicate, "subscribe"},
		{"store", NewStoreFailed("get", stderrors.New("io")), ErrorTypeStore, "store"},
		{"config", NewConfigMissingRequired("MONGO_URI"), ErrorTypeConfig, "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			typ, ok := TypeOf(wrapped)
			assert.True(t, ok)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.key, KeyOf(wrapped))
		})
	}
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "Cannot subscribe to yourself.",
		MessageOf(NewNotAuthorized("a", "subscribe", "Cannot subscribe to yourself.")))
	assert.Equal(t, "Channel title must be no more than 140 characters.",
		MessageOf(NewTooLong("Channel title", 140)))
	assert.Equal(t, "An unexpected error occurred.", MessageOf(stderrors.New("secret detail")))
	assert.Equal(t, "error", KeyOf(stderrors.New("x")))
}

func TestStoreFailedRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStoreFailed("get", context.DeadlineExceeded)))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", NewStoreFailed("get", context.Canceled))))
	assert.False(t, IsRetryable(NewStoreFailed("get", stderrors.New("disk on fire"))))
	assert.False(t, IsRetryable(NewNotFound("user", "u1")))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify("op", nil))

	nf := NewNotFound("freet", "f1")
	assert.Same(t, nf, Classify("op", nf))

	raw := stderrors.New("boom")
	got := Classify("op", raw)
	assert.True(t, IsErrorType(got, ErrorTypeStore))
	assert.ErrorIs(t, got, raw)
}
