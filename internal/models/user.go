package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a traveller account. Native password and social logins share
// the same row.
type User struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"-"`
	Username    string `gorm:"uniqueIndex;not null;size:30" json:"username"`
	DisplayName string `gorm:"not null" json:"displayName"`
	Bio         string `gorm:"type:text" json:"bio"`
	Location    string `json:"location"` // home base, free text
	Website     string `json:"website"`
	AvatarURL   string `json:"avatarUrl"`
	BannerURL   string `json:"bannerUrl"`

	IsPrivate  bool `gorm:"default:false;not null" json:"isPrivate"`
	IsVerified bool `gorm:"default:false;not null" json:"isVerified"`

	// Native auth
	PasswordHash *string `gorm:"type:text" json:"-"`

	// OAuth provider IDs (nullable - users can have native accounts)
	GoogleID  *string `gorm:"uniqueIndex" json:"-"`
	DiscordID *string `gorm:"uniqueIndex" json:"-"`

	// TOTP two-factor
	TwoFactorEnabled bool    `gorm:"default:false;not null" json:"-"`
	TwoFactorSecret  *string `gorm:"type:text" json:"-"`

	// Cached counters, maintained by the social service in the same
	// transaction as the rows they count.
	FollowerCount  int `gorm:"default:0;not null" json:"followerCount"`
	FollowingCount int `gorm:"default:0;not null" json:"followingCount"`
	TweetCount     int `gorm:"default:0;not null" json:"tweetCount"`

	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OAuthProvider links a social login identity to a user
type OAuthProvider struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;index;size:36" json:"userId"`
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	Provider       string `gorm:"not null;uniqueIndex:idx_oauth_provider_identity" json:"provider"` // "google", "discord"
	ProviderUserID string `gorm:"not null;uniqueIndex:idx_oauth_provider_identity" json:"providerUserId"`
	Email          string `gorm:"not null" json:"email"`
	Name           string `json:"name"`
	AvatarURL      string `json:"avatarUrl"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (OAuthProvider) TableName() string {
	return "oauth_providers"
}

// PasswordReset is a single-use reset token
type PasswordReset struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;index;size:36" json:"userId"`
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	Used      bool      `gorm:"default:false;not null" json:"used"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

func (o *OAuthProvider) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = generateUUID()
	}
	return nil
}

func (p *PasswordReset) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func generateUUID() string {
	return uuid.New().String()
}
