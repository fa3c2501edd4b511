package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxTweetLength is the content limit for a tweet.
const MaxTweetLength = 280

// Tweet is a travel post, optionally with one image and a place tag.
type Tweet struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;index:idx_tweets_user_created,priority:1;size:36" json:"userId"`
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`

	Content  string `gorm:"type:text;not null" json:"content"`
	Location string `json:"location"`
	ImageURL string `json:"imageUrl,omitempty"`
	ImageKey string `json:"-"`

	ReplyToID *string `gorm:"index;size:36" json:"replyToId,omitempty"`

	LikeCount     int `gorm:"default:0;not null" json:"likeCount"`
	RetweetCount  int `gorm:"default:0;not null" json:"retweetCount"`
	BookmarkCount int `gorm:"default:0;not null" json:"bookmarkCount"`
	ReplyCount    int `gorm:"default:0;not null" json:"replyCount"`

	EditedAt  *time.Time `json:"editedAt,omitempty"`
	CreatedAt time.Time  `gorm:"index:idx_tweets_user_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Like marks a user liking a tweet. One per (user, tweet).
type Like struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_likes_user_tweet;size:36" json:"userId"`
	TweetID   string    `gorm:"not null;uniqueIndex:idx_likes_user_tweet;index;size:36" json:"tweetId"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Tweet     *Tweet    `gorm:"foreignKey:TweetID;constraint:OnDelete:CASCADE" json:"tweet,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Retweet shares a tweet to the retweeter's followers. One per (user, tweet).
type Retweet struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_retweets_user_tweet;size:36" json:"userId"`
	TweetID   string    `gorm:"not null;uniqueIndex:idx_retweets_user_tweet;index;size:36" json:"tweetId"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Tweet     *Tweet    `gorm:"foreignKey:TweetID;constraint:OnDelete:CASCADE" json:"tweet,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Bookmark is a private save of a tweet. One per (user, tweet).
type Bookmark struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_bookmarks_user_tweet;size:36" json:"userId"`
	TweetID   string    `gorm:"not null;uniqueIndex:idx_bookmarks_user_tweet;index;size:36" json:"tweetId"`
	Tweet     *Tweet    `gorm:"foreignKey:TweetID;constraint:OnDelete:CASCADE" json:"tweet,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t *Tweet) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = generateUUID()
	}
	return nil
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = generateUUID()
	}
	return nil
}

func (r *Retweet) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

func (b *Bookmark) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = generateUUID()
	}
	return nil
}
