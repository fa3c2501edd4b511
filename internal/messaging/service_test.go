package messaging

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/zfogg/traveltweets/internal/cache"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/realtime"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/websocket"
)

type push struct {
	userID string
	msg    *websocket.Message
}

type recordingPusher struct {
	mu   sync.Mutex
	sent []push
}

func (r *recordingPusher) SendToUser(userID string, message *websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, push{userID: userID, msg: message})
}

func (r *recordingPusher) ofType(msgType string) []push {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []push
	for _, p := range r.sent {
		if p.msg.Type == msgType {
			out = append(out, p)
		}
	}
	return out
}

type MessagingTestSuite struct {
	suite.Suite
	ctx    context.Context
	svc    *Service
	broker *stream.MockStreamClient
	pusher *recordingPusher

	alice *models.User
	bob   *models.User
	carol *models.User
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, new(MessagingTestSuite))
}

func (s *MessagingTestSuite) SetupTest() {
	var err error
	database.DB, err = database.NewTestDB()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.broker = stream.NewMockStreamClient()
	s.pusher = &recordingPusher{}
	publisher := realtime.NewPublisher(s.broker, s.pusher)
	s.svc = NewService(notifications.NewService(publisher, nil), publisher, s.broker)

	s.alice = s.createUser("alice")
	s.bob = s.createUser("bob")
	s.carol = s.createUser("carol")
}

func (s *MessagingTestSuite) TearDownTest() {
	_ = database.Close()
}

func (s *MessagingTestSuite) createUser(username string) *models.User {
	user := &models.User{Email: username + "@example.com", Username: username, DisplayName: username}
	s.Require().NoError(database.DB.Create(user).Error)
	return user
}

func (s *MessagingTestSuite) send(from *models.User, to *models.User, content string) (*models.Message, *models.Conversation) {
	msg, conv, err := s.svc.SendMessage(s.ctx, from, SendInput{RecipientID: to.ID, Content: content})
	s.Require().NoError(err)
	return msg, conv
}

func (s *MessagingTestSuite) TestFirstMessageStartsRequest() {
	msg, conv := s.send(s.alice, s.bob, "  Any tips for Hoi An?  ")

	s.Equal("Any tips for Hoi An?", msg.Content)
	s.Equal(models.ConversationRequest, conv.Status)
	s.Equal(s.alice.ID, conv.CreatorID)
	s.True(s.broker.AssertCallCount("EnsureConversationChannel", 1))
	s.True(s.broker.AssertCalled("Trigger"))

	pushed := s.pusher.ofType(websocket.MessageTypeNewMessage)
	s.Require().Len(pushed, 1)
	s.Equal(s.bob.ID, pushed[0].userID)

	var notes int64
	database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", s.bob.ID, models.NotificationMessage).Count(&notes)
	s.Equal(int64(1), notes)
}

func (s *MessagingTestSuite) TestStartsAcceptedWhenRecipientFollowsSender() {
	now := time.Now()
	s.Require().NoError(database.DB.Create(&models.Follow{
		FollowerID:  s.bob.ID,
		FollowingID: s.alice.ID,
		Status:      models.FollowStatusAccepted,
		AcceptedAt:  &now,
	}).Error)

	_, conv := s.send(s.alice, s.bob, "Hey!")
	s.Equal(models.ConversationAccepted, conv.Status)
}

func (s *MessagingTestSuite) TestAcceptOnReplyOnlyWhenRecipientReplies() {
	_, conv := s.send(s.alice, s.bob, "Hello")
	_, conv = s.send(s.alice, s.bob, "Are you there?")
	s.Equal(models.ConversationRequest, conv.Status, "the creator sending again does not accept")

	_, conv = s.send(s.bob, s.alice, "Hi Alice")
	s.Equal(models.ConversationAccepted, conv.Status)

	var stored models.Conversation
	s.Require().NoError(database.DB.First(&stored, "id = ?", conv.ID).Error)
	s.Equal(models.ConversationAccepted, stored.Status)
	s.True(s.broker.AssertCallCount("EnsureConversationChannel", 1), "one channel per pair")
}

func (s *MessagingTestSuite) TestInboxAndRequestsFilters() {
	s.send(s.alice, s.bob, "Hello")

	inbox, err := s.svc.ListConversations(s.ctx, s.alice.ID, FilterInbox, 20, 0)
	s.Require().NoError(err)
	s.Len(inbox, 1, "creators see their request in the inbox")
	s.Equal(s.bob.ID, inbox[0].OtherUser.ID)

	inbox, err = s.svc.ListConversations(s.ctx, s.bob.ID, FilterInbox, 20, 0)
	s.Require().NoError(err)
	s.Empty(inbox)

	requests, err := s.svc.ListConversations(s.ctx, s.bob.ID, FilterRequests, 20, 0)
	s.Require().NoError(err)
	s.Require().Len(requests, 1)
	s.Equal(int64(1), requests[0].UnreadCount)
	s.Equal("Hello", requests[0].LastMessage.Content)
}

func (s *MessagingTestSuite) TestNonParticipantsAreRejected() {
	msg, conv := s.send(s.alice, s.bob, "Hello")

	_, err := s.svc.GetMessages(s.ctx, s.carol.ID, conv.ID, 20, 0)
	s.ErrorIs(err, ErrNotParticipant)
	_, err = s.svc.MarkRead(s.ctx, s.carol.ID, conv.ID)
	s.ErrorIs(err, ErrNotParticipant)
	s.ErrorIs(s.svc.Decline(s.ctx, s.carol.ID, conv.ID), ErrNotParticipant)
	s.ErrorIs(s.svc.DeleteMessage(s.ctx, s.carol.ID, conv.ID, msg.ID), ErrNotParticipant)

	_, err = s.svc.GetMessages(s.ctx, s.alice.ID, "missing", 20, 0)
	s.ErrorIs(err, ErrConversationNotFound)
}

func (s *MessagingTestSuite) TestMarkReadPublishesReadEvent() {
	_, conv := s.send(s.alice, s.bob, "one")
	s.send(s.alice, s.bob, "two")

	changed, err := s.svc.MarkRead(s.ctx, s.bob.ID, conv.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), changed)

	reads := s.pusher.ofType(websocket.MessageTypeMessageRead)
	s.Require().Len(reads, 1)
	s.Equal(s.alice.ID, reads[0].userID)

	changed, err = s.svc.MarkRead(s.ctx, s.alice.ID, conv.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), changed, "own messages are not marked")
}

func (s *MessagingTestSuite) TestGetMessagesOldestFirst() {
	_, conv := s.send(s.alice, s.bob, "first")
	s.send(s.bob, s.alice, "second")

	messages, err := s.svc.GetMessages(s.ctx, s.alice.ID, conv.ID, 20, 0)
	s.Require().NoError(err)
	s.Require().Len(messages, 2)
	s.Equal("first", messages[0].Content)
	s.Equal("second", messages[1].Content)
}

func (s *MessagingTestSuite) TestAcceptIsRecipientOnly() {
	_, conv := s.send(s.alice, s.bob, "Hello")

	_, err := s.svc.Accept(s.ctx, s.alice.ID, conv.ID)
	s.ErrorIs(err, ErrNotRecipient)

	accepted, err := s.svc.Accept(s.ctx, s.bob.ID, conv.ID)
	s.Require().NoError(err)
	s.Equal(models.ConversationAccepted, accepted.Status)
}

func (s *MessagingTestSuite) TestDeclineDeletesConversation() {
	_, conv := s.send(s.alice, s.bob, "Hello")

	s.Require().NoError(s.svc.Decline(s.ctx, s.bob.ID, conv.ID))
	s.True(s.broker.AssertCalled("DeleteConversationChannel"))

	var count int64
	database.DB.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&count)
	s.Equal(int64(0), count)
	database.DB.Model(&models.Notification{}).Where("conversation_id = ?", conv.ID).Count(&count)
	s.Equal(int64(0), count)

	_, err := s.svc.GetConversation(s.ctx, s.bob.ID, conv.ID)
	s.ErrorIs(err, ErrConversationNotFound)
}

func (s *MessagingTestSuite) TestDeclineDropsCachedUnreadCount() {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		s.T().Skip("REDIS_HOST not set, skipping Redis integration test")
	}
	rc, err := cache.NewRedisClient(host, os.Getenv("REDIS_PORT"), os.Getenv("REDIS_PASSWORD"))
	s.Require().NoError(err)
	defer rc.Close()
	defer rc.Del(s.ctx, cache.UnreadNotificationsKey(s.bob.ID))

	publisher := realtime.NewPublisher(s.broker, s.pusher)
	notifier := notifications.NewService(publisher, rc)
	svc := NewService(notifier, publisher, s.broker)

	_, _, err = svc.SendMessage(s.ctx, s.alice, SendInput{RecipientID: s.bob.ID, Content: "Hello"})
	s.Require().NoError(err)
	_, conv, err := svc.SendMessage(s.ctx, s.alice, SendInput{RecipientID: s.bob.ID, Content: "Still there?"})
	s.Require().NoError(err)

	count, err := notifier.UnreadCount(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	s.Require().NoError(svc.Decline(s.ctx, s.bob.ID, conv.ID))

	count, err = notifier.UnreadCount(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), count)
}

func (s *MessagingTestSuite) TestDeleteMessageSenderOnly() {
	msg, conv := s.send(s.alice, s.bob, "oops")

	s.ErrorIs(s.svc.DeleteMessage(s.ctx, s.bob.ID, conv.ID, msg.ID), ErrNotSender)
	s.NoError(s.svc.DeleteMessage(s.ctx, s.alice.ID, conv.ID, msg.ID))
	s.ErrorIs(s.svc.DeleteMessage(s.ctx, s.alice.ID, conv.ID, msg.ID), ErrMessageNotFound)
}

func (s *MessagingTestSuite) TestTypingFrameIsForwarded() {
	_, conv := s.send(s.alice, s.bob, "Hello")

	hub := websocket.NewHub()
	client := websocket.NewClient(hub, nil, s.bob.ID, "bob")
	frame := websocket.NewMessage(websocket.MessageTypeTyping, websocket.TypingFrame{ConversationID: conv.ID, IsTyping: true})

	s.Require().NoError(s.svc.HandleTypingFrame(s.ctx, client, frame))

	typing := s.pusher.ofType(websocket.MessageTypeUserTyping)
	s.Require().Len(typing, 1)
	s.Equal(s.alice.ID, typing[0].userID)

	outsider := websocket.NewClient(hub, nil, s.carol.ID, "carol")
	s.ErrorIs(s.svc.HandleTypingFrame(s.ctx, outsider, frame), ErrNotParticipant)
}

func (s *MessagingTestSuite) TestValidation() {
	_, _, err := s.svc.SendMessage(s.ctx, s.alice, SendInput{RecipientID: s.bob.ID, Content: "   "})
	s.ErrorIs(err, ErrEmptyMessage)

	_, _, err = s.svc.SendMessage(s.ctx, s.alice, SendInput{RecipientID: s.alice.ID, Content: "me"})
	s.ErrorIs(err, ErrSelfMessage)

	_, _, err = s.svc.SendMessage(s.ctx, s.alice, SendInput{RecipientID: "ghost", Content: "hi"})
	s.ErrorIs(err, ErrRecipientNotFound)
}
