// Package notifications stores in-app notifications and pushes new ones
// to connected clients.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/traveltweets/internal/cache"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned for notifications that are missing or belong to
// someone else.
var ErrNotFound = errors.New("notification not found")

const unreadCountTTL = 5 * time.Minute

// Service reads and writes notifications
type Service struct {
	publisher *realtime.Publisher
	redis     *cache.RedisClient
}

// NewService creates a Service. Both publisher and redis may be nil.
func NewService(publisher *realtime.Publisher, redis *cache.RedisClient) *Service {
	return &Service{publisher: publisher, redis: redis}
}

// PreferencesUpdate holds the fields a user may change; nil means unchanged
type PreferencesUpdate struct {
	LikesEnabled    *bool `json:"likesEnabled"`
	RetweetsEnabled *bool `json:"retweetsEnabled"`
	RepliesEnabled  *bool `json:"repliesEnabled"`
	MentionsEnabled *bool `json:"mentionsEnabled"`
	FollowsEnabled  *bool `json:"followsEnabled"`
	MessagesEnabled *bool `json:"messagesEnabled"`
}

// List returns a page of the user's notifications, newest first, with the
// actor and tweet loaded.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, int64, error) {
	db := database.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	var items []models.Notification
	err := db.Preload("Actor").Preload("Tweet").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

// UnreadCount returns the number of unread notifications, served from Redis
// when available.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	key := cache.UnreadNotificationsKey(userID)
	if s.redis != nil {
		count, err := s.redis.GetInt(ctx, key)
		if err == nil {
			cache.RecordHit(cache.NameUnreadNotifications)
			return count, nil
		}
		if !cache.IsMiss(err) {
			logger.WarnWithFields("Unread count cache read failed", err, logger.WithUserID(userID))
		}
		cache.RecordMiss(cache.NameUnreadNotifications)
	}

	var count int64
	err := database.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.SetEx(ctx, key, count, unreadCountTTL); err != nil {
			logger.WarnWithFields("Unread count cache write failed", err, logger.WithUserID(userID))
		}
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	result := database.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Re-marking an already read notification updates nothing
		if err := s.ownedExists(ctx, userID, id); err != nil {
			return err
		}
	}
	s.invalidate(ctx, userID)
	return nil
}

// MarkAllRead marks every unread notification read and returns how many changed
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result := database.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", result.Error)
	}
	s.invalidate(ctx, userID)
	return result.RowsAffected, nil
}

// Delete removes one of the user's notifications
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	result := database.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx, userID)
	return nil
}

// Preferences returns the user's preferences, creating defaults on first use
func (s *Service) Preferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	return models.NewNotificationPreferencesChecker(database.DB.WithContext(ctx)).GetOrCreate(userID)
}

// UpdatePreferences applies the non-nil fields of update
func (s *Service) UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (*models.NotificationPreferences, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&prefs.LikesEnabled, update.LikesEnabled)
	apply(&prefs.RetweetsEnabled, update.RetweetsEnabled)
	apply(&prefs.RepliesEnabled, update.RepliesEnabled)
	apply(&prefs.MentionsEnabled, update.MentionsEnabled)
	apply(&prefs.FollowsEnabled, update.FollowsEnabled)
	apply(&prefs.MessagesEnabled, update.MessagesEnabled)

	if err := database.DB.WithContext(ctx).Save(prefs).Error; err != nil {
		return nil, fmt.Errorf("save notification preferences: %w", err)
	}
	return prefs, nil
}

func (s *Service) ownedExists(ctx context.Context, userID, id string) error {
	var n models.Notification
	err := database.DB.WithContext(ctx).Select("id").Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// invalidate drops the cached unread count. Failures are logged; the TTL
// bounds how stale the count can get.
func (s *Service) invalidate(ctx context.Context, userIDs ...string) {
	if s.redis == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cache.UnreadNotificationsKey(id))
	}
	if err := s.redis.Del(context.WithoutCancel(ctx), keys...); err != nil {
		logger.Log.Warn("Unread count cache invalidation failed", zap.Strings("users", userIDs), zap.Error(err))
	}
}
