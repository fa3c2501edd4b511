package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType identifies what a notification is about
type NotificationType string

const (
	NotificationLike           NotificationType = "LIKE"
	NotificationRetweet        NotificationType = "RETWEET"
	NotificationReply          NotificationType = "REPLY"
	NotificationMention        NotificationType = "MENTION"
	NotificationFollow         NotificationType = "FOLLOW"
	NotificationFollowRequest  NotificationType = "FOLLOW_REQUEST"
	NotificationFollowAccepted NotificationType = "FOLLOW_ACCEPTED"
	NotificationMessage        NotificationType = "MESSAGE"
)

// Notification is delivered to UserID because ActorID did something.
type Notification struct {
	ID             string           `gorm:"primaryKey;size:36" json:"id"`
	UserID         string           `gorm:"not null;index:idx_notifications_user_read,priority:1;size:36" json:"userId"`
	ActorID        string           `gorm:"not null;index;size:36" json:"actorId"`
	Actor          *User            `gorm:"foreignKey:ActorID;constraint:OnDelete:CASCADE" json:"actor,omitempty"`
	Type           NotificationType `gorm:"not null;size:32" json:"type"`
	TweetID        *string          `gorm:"index;size:36" json:"tweetId,omitempty"`
	Tweet          *Tweet           `gorm:"foreignKey:TweetID;constraint:OnDelete:CASCADE" json:"tweet,omitempty"`
	ConversationID *string          `gorm:"size:36" json:"conversationId,omitempty"`
	Read           bool             `gorm:"default:false;not null;index:idx_notifications_user_read,priority:2" json:"read"`
	CreatedAt      time.Time        `gorm:"index:idx_notifications_user_read,priority:3" json:"createdAt"`
}

// NotificationPreferences lets a user mute notification types.
// Follow requests are always delivered since they need an answer.
type NotificationPreferences struct {
	ID              string    `gorm:"primaryKey;size:36" json:"-"`
	UserID          string    `gorm:"uniqueIndex;not null;size:36" json:"-"`
	LikesEnabled    bool      `gorm:"not null" json:"likesEnabled"`
	RetweetsEnabled bool      `gorm:"not null" json:"retweetsEnabled"`
	RepliesEnabled  bool      `gorm:"not null" json:"repliesEnabled"`
	MentionsEnabled bool      `gorm:"not null" json:"mentionsEnabled"`
	FollowsEnabled  bool      `gorm:"not null" json:"followsEnabled"`
	MessagesEnabled bool      `gorm:"not null" json:"messagesEnabled"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	return nil
}

func (p *NotificationPreferences) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}
