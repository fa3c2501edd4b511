package stream

import (
	"context"
	"time"
)

// Realtime event names published on conversation channels
const (
	EventNewMessage = "new-message"
	EventRead       = "read"
	EventTyping     = "typing"
)

// StreamClientInterface is the subset of Stream used by handlers. It lets
// tests run without a getstream.io account.
type StreamClientInterface interface {
	// User operations
	CreateUser(ctx context.Context, userID, username string) error
	CreateToken(userID string, expiration time.Time) (string, error)

	// Activity feeds
	AddTweetActivity(ctx context.Context, activity *TweetActivity) error
	RemoveTweetActivity(ctx context.Context, userID, tweetID string) error
	FollowUser(ctx context.Context, userID, targetUserID string) error
	UnfollowUser(ctx context.Context, userID, targetUserID string) error

	// Conversation pub/sub
	EnsureConversationChannel(ctx context.Context, conversationID, creatorID string, memberIDs []string) error
	Trigger(ctx context.Context, conversationID, eventType, userID string, data map[string]interface{}) error
	DeleteConversationChannel(ctx context.Context, conversationID string) error
}

// Ensure Client implements StreamClientInterface
var _ StreamClientInterface = (*Client)(nil)
