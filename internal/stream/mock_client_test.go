package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockStreamClientDefaults(t *testing.T) {
	mock := NewMockStreamClient()

	err := mock.CreateUser(context.Background(), "user123", "nomad")
	assert.NoError(t, err)
	assert.True(t, mock.AssertCalled("CreateUser"))

	calls := mock.GetCallsForMethod("CreateUser")
	assert.Len(t, calls, 1)
	assert.Equal(t, "user123", calls[0].Args[0])
	assert.Equal(t, "nomad", calls[0].Args[1])
}

func TestMockStreamClientCreateToken(t *testing.T) {
	mock := NewMockStreamClient()

	expiration := time.Now().Add(time.Hour)
	token, err := mock.CreateToken("user123", expiration)

	assert.NoError(t, err)
	assert.Contains(t, token, "mock_token_user123")
	assert.True(t, mock.AssertCalled("CreateToken"))
}

func TestMockStreamClientCustomFunction(t *testing.T) {
	mock := NewMockStreamClient()
	mock.TriggerFunc = func(conversationID, eventType, userID string, data map[string]interface{}) error {
		if eventType == EventTyping {
			return errors.New("rate limited")
		}
		return nil
	}

	err := mock.Trigger(context.Background(), "conv1", EventTyping, "u1", nil)
	assert.EqualError(t, err, "rate limited")

	err = mock.Trigger(context.Background(), "conv1", EventRead, "u1", nil)
	assert.NoError(t, err)
	assert.True(t, mock.AssertCallCount("Trigger", 2))
}

func TestMockStreamClientDefaultError(t *testing.T) {
	mock := NewMockStreamClient()
	mock.DefaultError = errors.New("default error")

	assert.Error(t, mock.FollowUser(context.Background(), "a", "b"))
	_, err := mock.CreateToken("a", time.Time{})
	assert.Error(t, err)
}

func TestMockStreamClientAddTweetActivitySetsID(t *testing.T) {
	mock := NewMockStreamClient()
	activity := &TweetActivity{UserID: "u1", TweetID: "t1"}

	assert.NoError(t, mock.AddTweetActivity(context.Background(), activity))
	assert.Equal(t, "mock_activity_t1", activity.ID)
}

func TestMockStreamClientReset(t *testing.T) {
	mock := NewMockStreamClient()
	_ = mock.UnfollowUser(context.Background(), "a", "b")
	assert.Len(t, mock.GetCalls(), 1)

	mock.Reset()
	assert.Len(t, mock.GetCalls(), 0)
	assert.True(t, mock.AssertNotCalled("UnfollowUser"))
}
