package models

import (
	"errors"

	"gorm.io/gorm"
)

// NotificationPreferencesChecker answers whether a user wants a given
// notification type.
type NotificationPreferencesChecker struct {
	db *gorm.DB
}

// NewNotificationPreferencesChecker creates a new checker with the given database
func NewNotificationPreferencesChecker(db *gorm.DB) *NotificationPreferencesChecker {
	return &NotificationPreferencesChecker{db: db}
}

// DefaultNotificationPreferences has every type enabled.
func DefaultNotificationPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:          userID,
		LikesEnabled:    true,
		RetweetsEnabled: true,
		RepliesEnabled:  true,
		MentionsEnabled: true,
		FollowsEnabled:  true,
		MessagesEnabled: true,
	}
}

// GetOrCreate loads the user's preferences, creating defaults on first use
func (c *NotificationPreferencesChecker) GetOrCreate(userID string) (*NotificationPreferences, error) {
	var prefs NotificationPreferences
	err := c.db.Where("user_id = ?", userID).First(&prefs).Error
	if err == nil {
		return &prefs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	prefs = DefaultNotificationPreferences(userID)
	if err := c.db.Create(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}

// IsEnabled checks if a notification type is enabled for a user.
// Lookup failures allow the notification.
func (c *NotificationPreferencesChecker) IsEnabled(userID string, t NotificationType) bool {
	var prefs NotificationPreferences
	if err := c.db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return true
	}

	switch t {
	case NotificationLike:
		return prefs.LikesEnabled
	case NotificationRetweet:
		return prefs.RetweetsEnabled
	case NotificationReply:
		return prefs.RepliesEnabled
	case NotificationMention:
		return prefs.MentionsEnabled
	case NotificationFollow, NotificationFollowAccepted:
		return prefs.FollowsEnabled
	case NotificationMessage:
		return prefs.MessagesEnabled
	default:
		return true
	}
}
