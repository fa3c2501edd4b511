package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/util"
	"gorm.io/gorm"
)

// tweetToggle describes one user-to-tweet association
type tweetToggle struct {
	kind         string
	counter      string
	notification models.NotificationType // empty for private actions
	forbidSelf   error                   // returned when the author acts on their own tweet
	model        func() interface{}
	row          func(userID, tweetID string) interface{}
}

var (
	likeToggle = tweetToggle{
		kind:         "like",
		counter:      "like_count",
		notification: models.NotificationLike,
		model:        func() interface{} { return &models.Like{} },
		row: func(userID, tweetID string) interface{} {
			return &models.Like{UserID: userID, TweetID: tweetID}
		},
	}
	retweetToggle = tweetToggle{
		kind:         "retweet",
		counter:      "retweet_count",
		notification: models.NotificationRetweet,
		forbidSelf:   ErrSelfRetweet,
		model:        func() interface{} { return &models.Retweet{} },
		row: func(userID, tweetID string) interface{} {
			return &models.Retweet{UserID: userID, TweetID: tweetID}
		},
	}
	bookmarkToggle = tweetToggle{
		kind:    "bookmark",
		counter: "bookmark_count",
		model:   func() interface{} { return &models.Bookmark{} },
		row: func(userID, tweetID string) interface{} {
			return &models.Bookmark{UserID: userID, TweetID: tweetID}
		},
	}
)

// ToggleLike likes or unlikes a tweet and returns the new state and count
func (s *Service) ToggleLike(ctx context.Context, userID, tweetID string) (bool, int, error) {
	return s.toggleTweet(ctx, likeToggle, userID, tweetID)
}

// ToggleRetweet retweets or un-retweets a tweet. Authors cannot retweet
// their own tweets.
func (s *Service) ToggleRetweet(ctx context.Context, userID, tweetID string) (bool, int, error) {
	return s.toggleTweet(ctx, retweetToggle, userID, tweetID)
}

// ToggleBookmark saves or unsaves a tweet. Bookmarks notify nobody.
func (s *Service) ToggleBookmark(ctx context.Context, userID, tweetID string) (bool, int, error) {
	return s.toggleTweet(ctx, bookmarkToggle, userID, tweetID)
}

// toggleTweet deletes the association if present, creates it otherwise, and
// keeps the tweet's counter and the author's notification in step.
func (s *Service) toggleTweet(ctx context.Context, t tweetToggle, userID, tweetID string) (bool, int, error) {
	var (
		active bool
		count  int
		batch  *notifications.Batch
	)

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tweet models.Tweet
		if err := tx.Select("id", "user_id").First(&tweet, "id = ?", tweetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTweetNotFound
			}
			return err
		}
		if t.forbidSelf != nil && tweet.UserID == userID {
			return t.forbidSelf
		}
		batch = s.notifier.Begin(tx)

		removed := tx.Where("user_id = ? AND tweet_id = ?", userID, tweetID).Delete(t.model())
		if removed.Error != nil {
			return fmt.Errorf("delete %s: %w", t.kind, removed.Error)
		}

		if removed.RowsAffected > 0 {
			if err := tx.Model(&models.Tweet{}).Where("id = ?", tweetID).
				UpdateColumn(t.counter, util.Decrement(t.counter)).Error; err != nil {
				return err
			}
			if t.notification != "" {
				if err := batch.Remove(tweet.UserID, userID, t.notification, &tweetID); err != nil {
					return err
				}
			}
			active = false
		} else {
			if err := tx.Create(t.row(userID, tweetID)).Error; err != nil {
				if util.IsDuplicateKey(err) {
					return errAlreadyApplied
				}
				return fmt.Errorf("create %s: %w", t.kind, err)
			}
			if err := tx.Model(&models.Tweet{}).Where("id = ?", tweetID).
				UpdateColumn(t.counter, util.Increment(t.counter)).Error; err != nil {
				return err
			}
			if t.notification != "" {
				if _, err := batch.Add(models.Notification{
					UserID:  tweet.UserID,
					ActorID: userID,
					Type:    t.notification,
					TweetID: &tweetID,
				}); err != nil {
					return err
				}
			}
			active = true
		}

		return tx.Model(&models.Tweet{}).Select(t.counter).Where("id = ?", tweetID).Scan(&count).Error
	})

	if errors.Is(err, errAlreadyApplied) {
		// A concurrent request inserted the same row first
		count, err = s.tweetCounter(ctx, t.counter, tweetID)
		if err != nil {
			return false, 0, err
		}
		return true, count, nil
	}
	if err != nil {
		return false, 0, err
	}

	batch.Flush(ctx)
	recordToggle(t.kind, onOff(active))
	return active, count, nil
}

func (s *Service) tweetCounter(ctx context.Context, column, tweetID string) (int, error) {
	var count int
	err := database.DB.WithContext(ctx).Model(&models.Tweet{}).Select(column).Where("id = ?", tweetID).Scan(&count).Error
	return count, err
}

// ViewerState is the viewer's relation to a set of tweets
type ViewerState struct {
	Liked      map[string]bool
	Retweeted  map[string]bool
	Bookmarked map[string]bool
}

// TweetViewerState loads which of tweetIDs the viewer liked, retweeted and
// bookmarked in three queries.
func (s *Service) TweetViewerState(ctx context.Context, viewerID string, tweetIDs []string) (*ViewerState, error) {
	state := &ViewerState{
		Liked:      map[string]bool{},
		Retweeted:  map[string]bool{},
		Bookmarked: map[string]bool{},
	}
	if viewerID == "" || len(tweetIDs) == 0 {
		return state, nil
	}

	db := database.DB.WithContext(ctx)
	load := func(model interface{}, into map[string]bool) error {
		var ids []string
		if err := db.Model(model).Where("user_id = ? AND tweet_id IN ?", viewerID, tweetIDs).Pluck("tweet_id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			into[id] = true
		}
		return nil
	}

	if err := load(&models.Like{}, state.Liked); err != nil {
		return nil, fmt.Errorf("load likes: %w", err)
	}
	if err := load(&models.Retweet{}, state.Retweeted); err != nil {
		return nil, fmt.Errorf("load retweets: %w", err)
	}
	if err := load(&models.Bookmark{}, state.Bookmarked); err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}
	return state, nil
}
