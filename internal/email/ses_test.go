package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetURLEscapesToken(t *testing.T) {
	assert.Equal(t, "https://tt.example/reset-password?token=a%2Bb", ResetURL("https://tt.example", "a+b"))
}

func TestNewEmailServiceRequiresSender(t *testing.T) {
	_, err := NewEmailService("us-east-1", "", "Travel Tweets", "https://tt.example")
	assert.Error(t, err)
}

func TestMemorySender(t *testing.T) {
	sender := &MemorySender{}
	require.NoError(t, sender.SendPasswordResetEmail(context.Background(), "a@example.com", "tok"))

	last, ok := sender.Last()
	require.True(t, ok)
	assert.Equal(t, "a@example.com", last.To)
	assert.Equal(t, "tok", last.Token)

	sender.Err = errors.New("ses down")
	assert.Error(t, sender.SendPasswordResetEmail(context.Background(), "b@example.com", "tok2"))
	assert.Len(t, sender.Sent, 1)
}
