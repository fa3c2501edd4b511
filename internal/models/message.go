package models

import (
	"time"

	"gorm.io/gorm"
)

// ConversationStatus is the state of a direct message thread
type ConversationStatus string

const (
	// ConversationRequest is a thread the recipient has not answered yet
	ConversationRequest ConversationStatus = "request"
	// ConversationAccepted is a thread both sides take part in
	ConversationAccepted ConversationStatus = "accepted"
)

// Conversation is a one-to-one message thread. PairKey is the two member
// IDs in sorted order so a pair has at most one conversation.
type Conversation struct {
	ID            string             `gorm:"primaryKey;size:36" json:"id"`
	PairKey       string             `gorm:"uniqueIndex;not null;size:80" json:"-"`
	CreatorID     string             `gorm:"not null;index;size:36" json:"creatorId"`
	RecipientID   string             `gorm:"not null;index;size:36" json:"recipientId"`
	Creator       *User              `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE" json:"creator,omitempty"`
	Recipient     *User              `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"recipient,omitempty"`
	Status        ConversationStatus `gorm:"not null;size:16" json:"status"`
	LastMessageAt time.Time          `gorm:"index" json:"lastMessageAt"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

// Message is a single direct message
type Message struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string        `gorm:"not null;index:idx_messages_conversation_created,priority:1;size:36" json:"conversationId"`
	Conversation   *Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID       string        `gorm:"not null;index;size:36" json:"senderId"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	ImageURL       string        `json:"imageUrl,omitempty"`
	ReadAt         *time.Time    `json:"readAt,omitempty"`
	CreatedAt      time.Time     `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
}

// PairKey returns the canonical key for two user IDs
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// HasParticipant reports whether userID is one of the two members
func (c *Conversation) HasParticipant(userID string) bool {
	return c.CreatorID == userID || c.RecipientID == userID
}

// OtherParticipant returns the member that is not userID
func (c *Conversation) OtherParticipant(userID string) string {
	if c.CreatorID == userID {
		return c.RecipientID
	}
	return c.CreatorID
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.CreatorID, c.RecipientID)
	}
	if c.Status == "" {
		c.Status = ConversationRequest
	}
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = time.Now().UTC()
	}
	return nil
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	return nil
}
