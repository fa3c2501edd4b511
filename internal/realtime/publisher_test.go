package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/websocket"
)

type pushed struct {
	userID  string
	message *websocket.Message
}

type recordingPusher struct {
	mu   sync.Mutex
	sent []pushed
}

func (r *recordingPusher) SendToUser(userID string, message *websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, pushed{userID: userID, message: message})
}

func conversation() *models.Conversation {
	return &models.Conversation{ID: "conv-1", CreatorID: "alice", RecipientID: "bob"}
}

func TestPublishNotificationUsesFollowRequestType(t *testing.T) {
	pusher := &recordingPusher{}
	p := NewPublisher(nil, pusher)

	p.PublishNotification(&models.Notification{UserID: "bob", Type: models.NotificationFollowRequest})
	p.PublishNotification(&models.Notification{UserID: "bob", Type: models.NotificationLike})

	require.Len(t, pusher.sent, 2)
	assert.Equal(t, "bob", pusher.sent[0].userID)
	assert.Equal(t, websocket.MessageTypeFollowRequest, pusher.sent[0].message.Type)
	assert.Equal(t, websocket.MessageTypeNotification, pusher.sent[1].message.Type)
}

func TestPublishNewMessageTriggersChannelAndPushesToOtherParticipant(t *testing.T) {
	broker := stream.NewMockStreamClient()
	pusher := &recordingPusher{}
	p := NewPublisher(broker, pusher)

	p.PublishNewMessage(context.Background(), conversation(), &models.Message{ID: "m1", SenderID: "alice", Content: "hola"})

	calls := broker.GetCallsForMethod("Trigger")
	require.Len(t, calls, 1)
	assert.Equal(t, "conv-1", calls[0].Args[0])
	assert.Equal(t, stream.EventNewMessage, calls[0].Args[1])
	assert.Equal(t, "alice", calls[0].Args[2])

	require.Len(t, pusher.sent, 1)
	assert.Equal(t, "bob", pusher.sent[0].userID)
	assert.Equal(t, websocket.MessageTypeNewMessage, pusher.sent[0].message.Type)
}

func TestPublishTypingStartAndStop(t *testing.T) {
	pusher := &recordingPusher{}
	p := NewPublisher(stream.NewMockStreamClient(), pusher)
	bob := &models.User{ID: "bob", Username: "bob"}

	p.PublishTyping(context.Background(), conversation(), bob, true)
	p.PublishTyping(context.Background(), conversation(), bob, false)

	require.Len(t, pusher.sent, 2)
	assert.Equal(t, "alice", pusher.sent[0].userID)
	assert.Equal(t, websocket.MessageTypeUserTyping, pusher.sent[0].message.Type)
	assert.Equal(t, websocket.MessageTypeUserStopTyping, pusher.sent[1].message.Type)
}

func TestBrokerFailureIsCountedAndSwallowed(t *testing.T) {
	broker := stream.NewMockStreamClient()
	broker.TriggerFunc = func(string, string, string, map[string]interface{}) error {
		return errors.New("stream down")
	}
	pusher := &recordingPusher{}
	p := NewPublisher(broker, pusher)

	counter := metrics.Get().App.RealtimePublishFailures.WithLabelValues("stream", stream.EventRead)
	before := testutil.ToFloat64(counter)

	p.PublishRead(context.Background(), conversation(), "bob", time.Now())

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	require.Len(t, pusher.sent, 1, "websocket push still happens")
	assert.Equal(t, "alice", pusher.sent[0].userID)
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.PublishNotification(&models.Notification{UserID: "x"})
		p.PublishNewMessage(context.Background(), conversation(), &models.Message{SenderID: "alice"})
	})
}
