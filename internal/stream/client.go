package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat "github.com/GetStream/stream-chat-go/v5"
	stream "github.com/GetStream/stream-go2/v8"
	"github.com/zfogg/traveltweets/internal/logger"
	"go.uber.org/zap"
)

// Feed group names configured in the Stream dashboard
const (
	FeedGroupUser     = "user"     // a traveller's own tweets
	FeedGroupTimeline = "timeline" // tweets from accounts the user follows
	FeedGroupGlobal   = "global"   // tweets from public accounts
)

// ChannelTypeMessaging is the chat channel type for direct messages
const ChannelTypeMessaging = "messaging"

// ErrMissingCredentials is returned when the Stream keys are not configured
var ErrMissingCredentials = errors.New("STREAM_API_KEY and STREAM_API_SECRET must be set")

// Client wraps the Stream feeds and chat SDKs
type Client struct {
	feedsClient *stream.Client
	ChatClient  *chat.Client
}

// TweetActivity is the feed representation of a tweet
type TweetActivity struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	TweetID   string `json:"tweet_id"`
	Content   string `json:"content"`
	Location  string `json:"location,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	IsPublic  bool   `json:"is_public"`
	CreatedAt time.Time
}

// NewClient creates a Stream client from API credentials
func NewClient(apiKey, apiSecret string) (*Client, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}

	feedsClient, err := stream.New(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stream feeds client: %w", err)
	}

	chatClient, err := chat.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stream chat client: %w", err)
	}

	return &Client{
		feedsClient: feedsClient,
		ChatClient:  chatClient,
	}, nil
}

// FeedsClient returns the underlying feeds client
func (c *Client) FeedsClient() *stream.Client {
	return c.feedsClient
}

// CreateUser upserts the chat user so the client can subscribe to channels
func (c *Client) CreateUser(ctx context.Context, userID, username string) error {
	_, err := c.ChatClient.UpsertUser(ctx, &chat.User{
		ID:   userID,
		Name: username,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat user: %w", err)
	}
	return nil
}

// CreateToken issues a client token for chat subscriptions. A zero
// expiration creates a non-expiring token.
func (c *Client) CreateToken(userID string, expiration time.Time) (string, error) {
	token, err := c.ChatClient.CreateToken(userID, expiration)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return token, nil
}

// AddTweetActivity posts a tweet to the author's user feed, and to the
// global feed when the author is public.
func (c *Client) AddTweetActivity(ctx context.Context, activity *TweetActivity) error {
	userFeed, err := c.feedsClient.FlatFeed(FeedGroupUser, activity.UserID)
	if err != nil {
		return fmt.Errorf("failed to get user feed: %w", err)
	}

	streamActivity := stream.Activity{
		Actor:     "user:" + activity.UserID,
		Verb:      "tweet",
		Object:    "tweet:" + activity.TweetID,
		ForeignID: tweetForeignID(activity.TweetID),
		Time:      stream.Time{Time: activity.CreatedAt},
		Extra: map[string]any{
			"content": activity.Content,
		},
	}
	if activity.Location != "" {
		streamActivity.Extra["location"] = activity.Location
	}
	if activity.ImageURL != "" {
		streamActivity.Extra["image_url"] = activity.ImageURL
	}

	if activity.IsPublic {
		globalFeed, err := c.feedsClient.FlatFeed(FeedGroupGlobal, "main")
		if err != nil {
			return fmt.Errorf("failed to get global feed: %w", err)
		}
		streamActivity.To = []string{globalFeed.ID()}
	}

	resp, err := userFeed.AddActivity(ctx, streamActivity)
	if err != nil {
		return fmt.Errorf("failed to create Stream activity: %w", err)
	}
	activity.ID = resp.ID

	logger.Log.Debug("Stream activity created",
		logger.WithUserID(activity.UserID),
		logger.WithTweetID(activity.TweetID),
		zap.String("activity_id", resp.ID),
	)
	return nil
}

// RemoveTweetActivity removes a tweet from the author's feed by foreign ID
func (c *Client) RemoveTweetActivity(ctx context.Context, userID, tweetID string) error {
	userFeed, err := c.feedsClient.FlatFeed(FeedGroupUser, userID)
	if err != nil {
		return fmt.Errorf("failed to get user feed: %w", err)
	}
	if _, err := userFeed.RemoveActivityByForeignID(ctx, tweetForeignID(tweetID)); err != nil {
		return fmt.Errorf("failed to remove Stream activity: %w", err)
	}
	return nil
}

// FollowUser connects userID's timeline feed to targetUserID's user feed
func (c *Client) FollowUser(ctx context.Context, userID, targetUserID string) error {
	timelineFeed, err := c.feedsClient.FlatFeed(FeedGroupTimeline, userID)
	if err != nil {
		return fmt.Errorf("failed to get timeline feed: %w", err)
	}
	targetFeed, err := c.feedsClient.FlatFeed(FeedGroupUser, targetUserID)
	if err != nil {
		return fmt.Errorf("failed to get target user feed: %w", err)
	}

	if _, err := timelineFeed.Follow(ctx, targetFeed); err != nil {
		return fmt.Errorf("failed to follow user feed: %w", err)
	}
	return nil
}

// UnfollowUser disconnects userID's timeline feed from targetUserID
func (c *Client) UnfollowUser(ctx context.Context, userID, targetUserID string) error {
	timelineFeed, err := c.feedsClient.FlatFeed(FeedGroupTimeline, userID)
	if err != nil {
		return fmt.Errorf("failed to get timeline feed: %w", err)
	}
	targetFeed, err := c.feedsClient.FlatFeed(FeedGroupUser, targetUserID)
	if err != nil {
		return fmt.Errorf("failed to get target user feed: %w", err)
	}

	if _, err := timelineFeed.Unfollow(ctx, targetFeed); err != nil {
		return fmt.Errorf("failed to unfollow user feed: %w", err)
	}
	return nil
}

// EnsureConversationChannel creates (or fetches) the chat channel backing a
// direct message conversation
func (c *Client) EnsureConversationChannel(ctx context.Context, conversationID, creatorID string, memberIDs []string) error {
	_, err := c.ChatClient.CreateChannel(ctx, ChannelTypeMessaging, ConversationChannelID(conversationID), creatorID, &chat.ChannelRequest{
		Members: memberIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation channel: %w", err)
	}
	return nil
}

// Trigger publishes a custom event on a conversation channel on behalf of
// userID
func (c *Client) Trigger(ctx context.Context, conversationID, eventType, userID string, data map[string]interface{}) error {
	channel := c.ChatClient.Channel(ChannelTypeMessaging, ConversationChannelID(conversationID))
	event := &chat.Event{
		Type:      chat.EventType(eventType),
		ExtraData: data,
	}
	if _, err := channel.SendEvent(ctx, event, userID); err != nil {
		return fmt.Errorf("failed to send %s event: %w", eventType, err)
	}
	return nil
}

// DeleteConversationChannel removes the chat channel of a declined conversation
func (c *Client) DeleteConversationChannel(ctx context.Context, conversationID string) error {
	channel := c.ChatClient.Channel(ChannelTypeMessaging, ConversationChannelID(conversationID))
	if _, err := channel.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete conversation channel: %w", err)
	}
	return nil
}

// ConversationChannelID is the pub/sub channel name of a conversation
func ConversationChannelID(conversationID string) string {
	return "conversation-" + conversationID
}

func tweetForeignID(tweetID string) string {
	return "tweet:" + tweetID
}
