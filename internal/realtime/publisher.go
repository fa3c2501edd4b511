// Package realtime fans domain events out to the pub/sub broker and to
// connected websocket clients. Publishing never fails the caller.
package realtime

import (
	"context"
	"time"

	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/websocket"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every publish
const DefaultTimeout = 5 * time.Second

// Pusher delivers a message to a user's open websocket connections
type Pusher interface {
	SendToUser(userID string, message *websocket.Message)
}

// Publisher sends events over Stream and the websocket hub. Either side may
// be nil, which turns that side into a no-op.
type Publisher struct {
	broker  stream.StreamClientInterface
	pusher  Pusher
	timeout time.Duration
}

// NewPublisher creates a Publisher with the default timeout
func NewPublisher(broker stream.StreamClientInterface, pusher Pusher) *Publisher {
	return &Publisher{
		broker:  broker,
		pusher:  pusher,
		timeout: DefaultTimeout,
	}
}

// PublishNotification pushes a freshly written notification to its
// recipient. Follow requests get their own type so clients can badge them.
func (p *Publisher) PublishNotification(n *models.Notification) {
	if p == nil || p.pusher == nil || n == nil {
		return
	}

	msgType := websocket.MessageTypeNotification
	if n.Type == models.NotificationFollowRequest {
		msgType = websocket.MessageTypeFollowRequest
	}
	p.pusher.SendToUser(n.UserID, websocket.NewMessage(msgType, n))
}

// PublishNewMessage announces a sent direct message
func (p *Publisher) PublishNewMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	p.publishConversation(ctx, conv, msg.SenderID,
		stream.EventNewMessage, websocket.MessageTypeNewMessage,
		map[string]interface{}{"messageId": msg.ID, "content": msg.Content},
		websocket.ConversationPayload{
			ConversationID: conv.ID,
			UserID:         msg.SenderID,
			Message:        msg,
		})
}

// PublishRead announces that readerID has read the conversation up to readAt
func (p *Publisher) PublishRead(ctx context.Context, conv *models.Conversation, readerID string, readAt time.Time) {
	p.publishConversation(ctx, conv, readerID,
		stream.EventRead, websocket.MessageTypeMessageRead,
		map[string]interface{}{"readAt": readAt},
		websocket.ConversationPayload{
			ConversationID: conv.ID,
			UserID:         readerID,
			ReadAt:         &readAt,
		})
}

// PublishTyping announces a typing start or stop
func (p *Publisher) PublishTyping(ctx context.Context, conv *models.Conversation, user *models.User, isTyping bool) {
	wsType := websocket.MessageTypeUserStopTyping
	if isTyping {
		wsType = websocket.MessageTypeUserTyping
	}

	p.publishConversation(ctx, conv, user.ID,
		stream.EventTyping, wsType,
		map[string]interface{}{"isTyping": isTyping},
		websocket.TypingPayload{
			ConversationID: conv.ID,
			UserID:         user.ID,
			Username:       user.Username,
		})
}

// publishConversation triggers the event on conversation-<id> and pushes it
// to the participant who did not cause it.
func (p *Publisher) publishConversation(ctx context.Context, conv *models.Conversation, actorID, event, wsType string, data map[string]interface{}, payload interface{}) {
	if p == nil || conv == nil {
		return
	}

	if p.broker != nil {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		err := p.broker.Trigger(publishCtx, conv.ID, event, actorID, data)
		cancel()
		if err != nil {
			metrics.Get().App.RealtimePublishFailures.WithLabelValues("stream", event).Inc()
			logger.WarnWithFields("Realtime publish failed", err,
				logger.WithConversationID(conv.ID),
				zap.String("event", event))
		}
	}

	if p.pusher != nil {
		p.pusher.SendToUser(conv.OtherParticipant(actorID), websocket.NewMessage(wsType, payload))
	}
}
