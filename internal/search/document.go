package search

import (
	"time"

	"github.com/zfogg/traveltweets/internal/models"
)

// TweetDoc is the indexed form of a tweet
type TweetDoc struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Content      string    `json:"content"`
	Location     string    `json:"location"`
	IsReply      bool      `json:"is_reply"`
	LikeCount    int       `json:"like_count"`
	RetweetCount int       `json:"retweet_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserDoc is the indexed form of a user
type UserDoc struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name"`
	Bio           string    `json:"bio"`
	Location      string    `json:"location"`
	FollowerCount int       `json:"follower_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// TweetToDoc converts a tweet. The author's username comes from tweet.User
// when it is loaded.
func TweetToDoc(tweet *models.Tweet, username string) TweetDoc {
	if username == "" && tweet.User != nil {
		username = tweet.User.Username
	}
	return TweetDoc{
		ID:           tweet.ID,
		UserID:       tweet.UserID,
		Username:     username,
		Content:      tweet.Content,
		Location:     tweet.Location,
		IsReply:      tweet.ReplyToID != nil,
		LikeCount:    tweet.LikeCount,
		RetweetCount: tweet.RetweetCount,
		CreatedAt:    tweet.CreatedAt,
	}
}

// UserToDoc converts a user
func UserToDoc(user *models.User) UserDoc {
	return UserDoc{
		ID:            user.ID,
		Username:      user.Username,
		DisplayName:   user.DisplayName,
		Bio:           user.Bio,
		Location:      user.Location,
		FollowerCount: user.FollowerCount,
		CreatedAt:     user.CreatedAt,
	}
}
