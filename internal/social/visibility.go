package social

import (
	"github.com/zfogg/traveltweets/internal/models"
	"gorm.io/gorm"
)

// VisibleTweets limits a tweets query to what viewerID may read: tweets by
// public authors, the viewer's own, and those of private authors the viewer
// follows. An empty viewerID sees public tweets only.
func VisibleTweets(viewerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN users ON users.id = tweets.user_id").
			Where(`users.is_private = ? OR tweets.user_id = ? OR EXISTS (
				SELECT 1 FROM follows
				WHERE follows.follower_id = ? AND follows.following_id = tweets.user_id AND follows.status = ?)`,
				false, viewerID, viewerID, models.FollowStatusAccepted)
	}
}
