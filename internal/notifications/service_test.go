package notifications

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/realtime"
	"github.com/zfogg/traveltweets/internal/websocket"
	"gorm.io/gorm"
)

type recordingPusher struct {
	mu   sync.Mutex
	sent []*websocket.Message
}

func (r *recordingPusher) SendToUser(_ string, message *websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, message)
}

type NotificationsTestSuite struct {
	suite.Suite
	svc    *Service
	pusher *recordingPusher
	alice  *models.User
	bob    *models.User
	tweet  *models.Tweet
}

func TestNotificationsSuite(t *testing.T) {
	suite.Run(t, new(NotificationsTestSuite))
}

func (s *NotificationsTestSuite) SetupTest() {
	var err error
	database.DB, err = database.NewTestDB()
	s.Require().NoError(err)

	s.pusher = &recordingPusher{}
	s.svc = NewService(realtime.NewPublisher(nil, s.pusher), nil)

	s.alice = &models.User{Email: "alice@example.com", Username: "alice", DisplayName: "Alice"}
	s.bob = &models.User{Email: "bob@example.com", Username: "bob", DisplayName: "Bob"}
	s.Require().NoError(database.DB.Create(s.alice).Error)
	s.Require().NoError(database.DB.Create(s.bob).Error)

	s.tweet = &models.Tweet{UserID: s.alice.ID, Content: "Sunrise over Bagan"}
	s.Require().NoError(database.DB.Create(s.tweet).Error)
}

func (s *NotificationsTestSuite) TearDownTest() {
	_ = database.Close()
}

func (s *NotificationsTestSuite) notify(n models.Notification) bool {
	var written bool
	var batch *Batch
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		batch = s.svc.Begin(tx)
		var err error
		written, err = batch.Add(n)
		return err
	})
	s.Require().NoError(err)
	batch.Flush(context.Background())
	return written
}

func (s *NotificationsTestSuite) TestAddSkipsSelfNotification() {
	written := s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.alice.ID, Type: models.NotificationLike, TweetID: &s.tweet.ID})
	s.False(written)
	s.Empty(s.pusher.sent)
}

func (s *NotificationsTestSuite) TestAddWritesAndPushesWithActor() {
	written := s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationLike, TweetID: &s.tweet.ID})
	s.True(written)

	s.Require().Len(s.pusher.sent, 1)
	s.Equal(websocket.MessageTypeNotification, s.pusher.sent[0].Type)
	n, ok := s.pusher.sent[0].Payload.(*models.Notification)
	s.Require().True(ok)
	s.Require().NotNil(n.Actor)
	s.Equal("bob", n.Actor.Username)
}

func (s *NotificationsTestSuite) TestMutedTypeIsSkippedButFollowRequestIsNot() {
	off := false
	_, err := s.svc.UpdatePreferences(context.Background(), s.alice.ID, PreferencesUpdate{
		LikesEnabled:   &off,
		FollowsEnabled: &off,
	})
	s.Require().NoError(err)

	s.False(s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationLike, TweetID: &s.tweet.ID}))
	s.False(s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationFollow}))
	s.True(s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationFollowRequest}))

	s.Require().Len(s.pusher.sent, 1)
	s.Equal(websocket.MessageTypeFollowRequest, s.pusher.sent[0].Type)
}

func (s *NotificationsTestSuite) TestRemoveDeletesMatchingNotification() {
	s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationLike, TweetID: &s.tweet.ID})
	s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationRetweet, TweetID: &s.tweet.ID})

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		return s.svc.Begin(tx).Remove(s.alice.ID, s.bob.ID, models.NotificationLike, &s.tweet.ID)
	})
	s.Require().NoError(err)

	items, total, err := s.svc.List(context.Background(), s.alice.ID, 20, 0)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(models.NotificationRetweet, items[0].Type)
}

func (s *NotificationsTestSuite) TestRemoveForConversationTouchesRecipients() {
	convID := "conv-1"
	s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationMessage, ConversationID: &convID})
	s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationLike, TweetID: &s.tweet.ID})

	var batch *Batch
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		batch = s.svc.Begin(tx)
		return batch.RemoveForConversation(convID)
	})
	s.Require().NoError(err)

	s.Contains(batch.touched, s.alice.ID)
	s.NotContains(batch.touched, s.bob.ID)

	count, err := s.svc.UnreadCount(context.Background(), s.alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *NotificationsTestSuite) TestUnreadCountAndMarkRead() {
	ctx := context.Background()
	s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationLike, TweetID: &s.tweet.ID})
	s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationFollow})

	count, err := s.svc.UnreadCount(ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	items, _, err := s.svc.List(ctx, s.alice.ID, 20, 0)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.MarkRead(ctx, s.alice.ID, items[0].ID))
	s.Require().NoError(s.svc.MarkRead(ctx, s.alice.ID, items[0].ID), "marking twice is fine")

	count, err = s.svc.UnreadCount(ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	changed, err := s.svc.MarkAllRead(ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), changed)
}

func (s *NotificationsTestSuite) TestOtherUsersNotificationIsNotFound() {
	ctx := context.Background()
	s.notify(models.Notification{UserID: s.alice.ID, ActorID: s.bob.ID, Type: models.NotificationFollow})
	items, _, err := s.svc.List(ctx, s.alice.ID, 20, 0)
	s.Require().NoError(err)

	s.ErrorIs(s.svc.MarkRead(ctx, s.bob.ID, items[0].ID), ErrNotFound)
	s.ErrorIs(s.svc.Delete(ctx, s.bob.ID, items[0].ID), ErrNotFound)
	s.NoError(s.svc.Delete(ctx, s.alice.ID, items[0].ID))
}

func TestPreferencesDefaultToEnabled(t *testing.T) {
	var err error
	database.DB, err = database.NewTestDB()
	require.NoError(t, err)
	defer database.Close()

	prefs, err := NewService(nil, nil).Preferences(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, prefs.LikesEnabled)
	assert.True(t, prefs.MessagesEnabled)
}
