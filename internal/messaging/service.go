// Package messaging implements one-to-one direct messages. A conversation
// starts as a request and is accepted explicitly or when the recipient
// replies.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/realtime"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/util"
	"github.com/zfogg/traveltweets/internal/websocket"
	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrNotParticipant       = errors.New("you are not part of this conversation")
	ErrNotSender            = errors.New("you can only delete your own messages")
	ErrNotRecipient         = errors.New("only the recipient can accept a message request")
	ErrSelfMessage          = errors.New("you cannot message yourself")
	ErrEmptyMessage         = errors.New("message must have content or an image")
)

// MaxMessageLength is the content limit for a direct message
const MaxMessageLength = 2000

// Inbox filters
const (
	FilterInbox    = "inbox"
	FilterRequests = "requests"
)

const brokerTimeout = 5 * time.Second

var errConversationRace = errors.New("conversation created concurrently")

// Service sends and reads direct messages
type Service struct {
	notifier  *notifications.Service
	publisher *realtime.Publisher
	broker    stream.StreamClientInterface
}

// NewService creates a Service. publisher and broker may be nil.
func NewService(notifier *notifications.Service, publisher *realtime.Publisher, broker stream.StreamClientInterface) *Service {
	return &Service{notifier: notifier, publisher: publisher, broker: broker}
}

// SendInput is a message to send
type SendInput struct {
	RecipientID string
	Content     string
	ImageURL    string
}

// SendMessage delivers a message from sender to in.RecipientID, creating
// the conversation on first contact. A reply from the recipient of a
// pending request accepts the conversation.
func (s *Service) SendMessage(ctx context.Context, sender *models.User, in SendInput) (*models.Message, *models.Conversation, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && in.ImageURL == "" {
		return nil, nil, ErrEmptyMessage
	}
	if sender.ID == in.RecipientID {
		return nil, nil, ErrSelfMessage
	}

	var (
		msg     *models.Message
		conv    *models.Conversation
		created bool
		err     error
	)
	// A second attempt covers two first messages racing on the pair key
	for attempt := 0; attempt < 2; attempt++ {
		msg, conv, created, err = s.send(ctx, sender, in)
		if !errors.Is(err, errConversationRace) {
			break
		}
	}
	if err != nil {
		return nil, nil, err
	}

	if created {
		s.ensureChannel(ctx, conv)
	}
	s.publisher.PublishNewMessage(ctx, conv, msg)
	metrics.Get().App.MessagesSent.WithLabelValues(string(conv.Status)).Inc()
	return msg, conv, nil
}

func (s *Service) send(ctx context.Context, sender *models.User, in SendInput) (*models.Message, *models.Conversation, bool, error) {
	var (
		conv    models.Conversation
		msg     models.Message
		created bool
		batch   *notifications.Batch
	)

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipient models.User
		if err := tx.Select("id").First(&recipient, "id = ?", in.RecipientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}
		batch = s.notifier.Begin(tx)

		err := tx.Where("pair_key = ?", models.PairKey(sender.ID, in.RecipientID)).First(&conv).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			status, err := initialStatus(tx, sender.ID, in.RecipientID)
			if err != nil {
				return err
			}
			conv = models.Conversation{CreatorID: sender.ID, RecipientID: in.RecipientID, Status: status}
			if err := tx.Create(&conv).Error; err != nil {
				if util.IsDuplicateKey(err) {
					return errConversationRace
				}
				return fmt.Errorf("create conversation: %w", err)
			}
			created = true
		case err != nil:
			return err
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{"last_message_at": now}
		if conv.Status == models.ConversationRequest && sender.ID == conv.RecipientID {
			updates["status"] = models.ConversationAccepted
		}
		if err := tx.Model(&conv).Updates(updates).Error; err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		conv.LastMessageAt = now
		if status, ok := updates["status"]; ok {
			conv.Status = status.(models.ConversationStatus)
		}

		msg = models.Message{
			ConversationID: conv.ID,
			SenderID:       sender.ID,
			Content:        in.Content,
			ImageURL:       in.ImageURL,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}

		_, err = batch.Add(models.Notification{
			UserID:         in.RecipientID,
			ActorID:        sender.ID,
			Type:           models.NotificationMessage,
			ConversationID: &conv.ID,
		})
		return err
	})
	if err != nil {
		return nil, nil, false, err
	}

	batch.Flush(ctx)
	return &msg, &conv, created, nil
}

// initialStatus accepts a new conversation up front when the recipient
// already follows the sender.
func initialStatus(tx *gorm.DB, senderID, recipientID string) (models.ConversationStatus, error) {
	var count int64
	err := tx.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ? AND status = ?", recipientID, senderID, models.FollowStatusAccepted).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	if count > 0 {
		return models.ConversationAccepted, nil
	}
	return models.ConversationRequest, nil
}

// ConversationSummary is a conversation as shown in the inbox
type ConversationSummary struct {
	models.Conversation
	OtherUser   *models.User    `json:"otherUser"`
	LastMessage *models.Message `json:"lastMessage,omitempty"`
	UnreadCount int64           `json:"unreadCount"`
}

// ListConversations returns the user's inbox (accepted conversations and
// ones they started) or their pending requests.
func (s *Service) ListConversations(ctx context.Context, userID, filter string, limit, offset int) ([]ConversationSummary, error) {
	db := database.DB.WithContext(ctx)

	query := db.Preload("Creator").Preload("Recipient")
	if filter == FilterRequests {
		query = query.Where("status = ? AND recipient_id = ?", models.ConversationRequest, userID)
	} else {
		query = query.Where("creator_id = ? OR (recipient_id = ? AND status = ?)", userID, userID, models.ConversationAccepted)
	}

	var convs []models.Conversation
	if err := query.Order("last_message_at DESC").Limit(limit).Offset(offset).Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := ConversationSummary{Conversation: conv, OtherUser: conv.Recipient}
		if conv.RecipientID == userID {
			summary.OtherUser = conv.Creator
		}

		var last models.Message
		err := db.Where("conversation_id = ?", conv.ID).Order("created_at DESC").Limit(1).Find(&last).Error
		if err != nil {
			return nil, fmt.Errorf("load last message: %w", err)
		}
		if last.ID != "" {
			summary.LastMessage = &last
		}

		if err := db.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conv.ID, userID).
			Count(&summary.UnreadCount).Error; err != nil {
			return nil, fmt.Errorf("count unread messages: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetConversation loads a conversation the user takes part in
func (s *Service) GetConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	return loadForParticipant(database.DB.WithContext(ctx).Preload("Creator").Preload("Recipient"), conversationID, userID)
}

// GetMessages returns a page of messages, oldest first within the page.
// Paging walks backwards from the newest message.
func (s *Service) GetMessages(ctx context.Context, userID, conversationID string, limit, offset int) ([]models.Message, error) {
	db := database.DB.WithContext(ctx)
	if _, err := loadForParticipant(db, conversationID, userID); err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead marks the other participant's messages read and returns how
// many changed.
func (s *Service) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	db := database.DB.WithContext(ctx)
	conv, err := loadForParticipant(db, conversationID, userID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	result := db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, userID).
		Update("read_at", now)
	if result.Error != nil {
		return 0, fmt.Errorf("mark messages read: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.publisher.PublishRead(ctx, conv, userID, now)
	}
	return result.RowsAffected, nil
}

// Typing publishes a typing start or stop to the other participant
func (s *Service) Typing(ctx context.Context, user *models.User, conversationID string, isTyping bool) error {
	conv, err := loadForParticipant(database.DB.WithContext(ctx), conversationID, user.ID)
	if err != nil {
		return err
	}
	s.publisher.PublishTyping(ctx, conv, user, isTyping)
	return nil
}

// HandleTypingFrame forwards a websocket typing frame. It is registered on
// the hub for MessageTypeTyping.
func (s *Service) HandleTypingFrame(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var frame websocket.TypingFrame
	if err := msg.ParsePayload(&frame); err != nil {
		return err
	}
	if frame.ConversationID == "" {
		return ErrConversationNotFound
	}
	user := &models.User{ID: client.UserID, Username: client.Username}
	return s.Typing(ctx, user, frame.ConversationID, frame.IsTyping)
}

// Accept accepts a message request. Only the recipient may accept;
// accepting an accepted conversation is a no-op.
func (s *Service) Accept(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	db := database.DB.WithContext(ctx)
	conv, err := loadForParticipant(db, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv.Status == models.ConversationAccepted {
		return conv, nil
	}
	if conv.RecipientID != userID {
		return nil, ErrNotRecipient
	}

	if err := db.Model(conv).Update("status", models.ConversationAccepted).Error; err != nil {
		return nil, fmt.Errorf("accept conversation: %w", err)
	}
	conv.Status = models.ConversationAccepted
	return conv, nil
}

// Decline deletes a conversation with its messages and notifications
func (s *Service) Decline(ctx context.Context, userID, conversationID string) error {
	var batch *notifications.Batch
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch = s.notifier.Begin(tx)
		conv, err := loadForParticipant(tx, conversationID, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := batch.RemoveForConversation(conv.ID); err != nil {
			return err
		}
		return tx.Delete(conv).Error
	})
	if err != nil {
		return err
	}
	batch.Flush(ctx)

	if s.broker != nil {
		brokerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), brokerTimeout)
		defer cancel()
		if err := s.broker.DeleteConversationChannel(brokerCtx, conversationID); err != nil {
			metrics.Get().App.RealtimePublishFailures.WithLabelValues("stream", "channel.deleted").Inc()
			logger.WarnWithFields("Failed to delete conversation channel", err, logger.WithConversationID(conversationID))
		}
	}
	return nil
}

// DeleteMessage deletes one of the sender's own messages
func (s *Service) DeleteMessage(ctx context.Context, userID, conversationID, messageID string) error {
	db := database.DB.WithContext(ctx)
	if _, err := loadForParticipant(db, conversationID, userID); err != nil {
		return err
	}

	var msg models.Message
	if err := db.First(&msg, "id = ? AND conversation_id = ?", messageID, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}
	return db.Delete(&msg).Error
}

func (s *Service) ensureChannel(ctx context.Context, conv *models.Conversation) {
	if s.broker == nil {
		return
	}
	brokerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), brokerTimeout)
	defer cancel()

	members := []string{conv.CreatorID, conv.RecipientID}
	if err := s.broker.EnsureConversationChannel(brokerCtx, conv.ID, conv.CreatorID, members); err != nil {
		metrics.Get().App.RealtimePublishFailures.WithLabelValues("stream", "channel.created").Inc()
		logger.WarnWithFields("Failed to create conversation channel", err, logger.WithConversationID(conv.ID))
	}
}

func loadForParticipant(db *gorm.DB, conversationID, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := db.First(&conv, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return &conv, nil
}
