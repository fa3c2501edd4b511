package notifications

import (
	"context"
	"fmt"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"gorm.io/gorm"
)

// Batch writes notifications inside a caller's transaction and delivers
// them once the caller has committed.
//
//	batch := notifier.Begin(tx)
//	batch.Add(...)
//	// commit
//	batch.Flush(ctx)
type Batch struct {
	svc     *Service
	tx      *gorm.DB
	prefs   *models.NotificationPreferencesChecker
	created []string
	touched map[string]struct{}
}

// Begin starts a batch bound to tx
func (s *Service) Begin(tx *gorm.DB) *Batch {
	return &Batch{
		svc:     s,
		tx:      tx,
		prefs:   models.NewNotificationPreferencesChecker(tx),
		touched: make(map[string]struct{}),
	}
}

// Add writes n unless it is a self-notification or the recipient muted
// that type. It reports whether a row was written.
func (b *Batch) Add(n models.Notification) (bool, error) {
	if n.UserID == "" || n.UserID == n.ActorID {
		return false, nil
	}
	if !b.prefs.IsEnabled(n.UserID, n.Type) {
		return false, nil
	}

	if err := b.tx.Create(&n).Error; err != nil {
		return false, fmt.Errorf("create %s notification: %w", n.Type, err)
	}
	b.created = append(b.created, n.ID)
	b.touched[n.UserID] = struct{}{}
	return true, nil
}

// Remove deletes the notification an action wrote, used when the action is
// reversed. tweetID may be nil for follow notifications.
func (b *Batch) Remove(recipientID, actorID string, t models.NotificationType, tweetID *string) error {
	query := b.tx.Where("user_id = ? AND actor_id = ? AND type = ?", recipientID, actorID, t)
	if tweetID != nil {
		query = query.Where("tweet_id = ?", *tweetID)
	}

	result := query.Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("remove %s notification: %w", t, result.Error)
	}
	if result.RowsAffected > 0 {
		b.touched[recipientID] = struct{}{}
	}
	return nil
}

// RemoveForTweet deletes every notification about a tweet that is being
// deleted.
func (b *Batch) RemoveForTweet(tweetID string) error {
	return b.removeWhere("tweet_id", tweetID)
}

// RemoveForConversation deletes the message notifications of a
// conversation that is being declined.
func (b *Batch) RemoveForConversation(conversationID string) error {
	return b.removeWhere("conversation_id", conversationID)
}

func (b *Batch) removeWhere(column, id string) error {
	var recipients []string
	if err := b.tx.Model(&models.Notification{}).Where(column+" = ?", id).
		Distinct().Pluck("user_id", &recipients).Error; err != nil {
		return fmt.Errorf("load notification recipients by %s: %w", column, err)
	}
	if len(recipients) == 0 {
		return nil
	}
	if err := b.tx.Where(column+" = ?", id).Delete(&models.Notification{}).Error; err != nil {
		return fmt.Errorf("remove notifications by %s: %w", column, err)
	}
	for _, recipient := range recipients {
		b.touched[recipient] = struct{}{}
	}
	return nil
}

// Flush pushes the created notifications and drops stale unread counts.
// Call it after the transaction committed; it never fails the caller.
func (b *Batch) Flush(ctx context.Context) {
	recipients := make([]string, 0, len(b.touched))
	for id := range b.touched {
		recipients = append(recipients, id)
	}
	b.svc.invalidate(ctx, recipients...)

	if len(b.created) == 0 || b.svc.publisher == nil {
		return
	}

	var items []models.Notification
	err := database.DB.WithContext(ctx).Preload("Actor").Preload("Tweet").
		Where("id IN ?", b.created).
		Find(&items).Error
	if err != nil {
		logger.WarnWithFields("Failed to load notifications for delivery", err)
		return
	}
	for i := range items {
		b.svc.publisher.PublishNotification(&items[i])
	}
}
