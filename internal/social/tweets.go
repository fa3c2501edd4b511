package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/storage"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/util"
	"gorm.io/gorm"
)

var (
	ErrEmptyTweet   = errors.New("tweet must have content or an image")
	ErrTweetTooLong = fmt.Errorf("tweet must be at most %d characters", models.MaxTweetLength)
)

// TweetInput is a tweet to publish
type TweetInput struct {
	Content   string
	Location  string
	ImageURL  string
	ImageKey  string
	ReplyToID string
}

// TweetUpdate holds the editable fields of a tweet; nil means unchanged
type TweetUpdate struct {
	Content  *string
	Location *string
}

// normalizeContent trims content and checks its length. Text may only be
// empty when an image is attached.
func normalizeContent(content string, hasImage bool) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" && !hasImage {
		return "", ErrEmptyTweet
	}
	if utf8.RuneCountInString(content) > models.MaxTweetLength {
		return "", ErrTweetTooLong
	}
	return content, nil
}

// CreateTweet publishes a tweet. Replies bump the parent's reply count and
// notify its author; @mentions notify the mentioned users.
func (s *Service) CreateTweet(ctx context.Context, author *models.User, in TweetInput) (*models.Tweet, error) {
	content, err := normalizeContent(in.Content, in.ImageURL != "")
	if err != nil {
		return nil, err
	}
	if in.ImageKey != "" && !storage.KeyOwnedBy(in.ImageKey, author.ID) {
		return nil, ErrForbidden
	}

	var parent *models.Tweet
	if in.ReplyToID != "" {
		parent = &models.Tweet{}
		if err := database.DB.WithContext(ctx).Preload("User").First(parent, "id = ?", in.ReplyToID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTweetNotFound
			}
			return nil, fmt.Errorf("load parent tweet: %w", err)
		}
		visible, err := s.CanView(ctx, author.ID, parent.User)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, ErrForbidden
		}
	}

	tweet := &models.Tweet{
		UserID:   author.ID,
		Content:  content,
		Location: strings.TrimSpace(in.Location),
		ImageURL: in.ImageURL,
		ImageKey: in.ImageKey,
	}
	if parent != nil {
		tweet.ReplyToID = &parent.ID
	}

	var batch *notifications.Batch
	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch = s.notifier.Begin(tx)

		if err := tx.Create(tweet).Error; err != nil {
			return fmt.Errorf("create tweet: %w", err)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", author.ID).
			UpdateColumn("tweet_count", util.Increment("tweet_count")).Error; err != nil {
			return fmt.Errorf("bump tweet count: %w", err)
		}

		if parent != nil {
			result := tx.Model(&models.Tweet{}).Where("id = ?", parent.ID).
				UpdateColumn("reply_count", util.Increment("reply_count"))
			if result.Error != nil {
				return fmt.Errorf("bump reply count: %w", result.Error)
			}
			// Parent deleted since it was loaded
			if result.RowsAffected == 0 {
				return ErrTweetNotFound
			}
			if _, err := batch.Add(models.Notification{
				UserID:  parent.UserID,
				ActorID: author.ID,
				Type:    models.NotificationReply,
				TweetID: &tweet.ID,
			}); err != nil {
				return err
			}
		}

		return s.notifyMentions(tx, batch, author.ID, tweet, parent)
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx)

	tweet.User = author
	metrics.Get().App.TweetsCreated.Inc()
	logger.Log.Debug("Tweet created", logger.WithUserID(author.ID), logger.WithTweetID(tweet.ID))

	if tweet.ReplyToID == nil {
		s.syncFeed(ctx, "add_tweet", func(ctx context.Context, feeds stream.StreamClientInterface) error {
			return feeds.AddTweetActivity(ctx, &stream.TweetActivity{
				UserID:    author.ID,
				TweetID:   tweet.ID,
				Content:   tweet.Content,
				Location:  tweet.Location,
				ImageURL:  tweet.ImageURL,
				IsPublic:  !author.IsPrivate,
				CreatedAt: tweet.CreatedAt,
			})
		})
	}
	return tweet, nil
}

// notifyMentions writes a MENTION for every existing @username in the
// tweet. The replied-to author already gets a REPLY.
func (s *Service) notifyMentions(tx *gorm.DB, batch *notifications.Batch, actorID string, tweet, parent *models.Tweet) error {
	usernames := util.ExtractMentions(tweet.Content)
	if len(usernames) == 0 {
		return nil
	}

	var mentioned []models.User
	if err := tx.Select("id").Where("LOWER(username) IN ?", usernames).Find(&mentioned).Error; err != nil {
		return fmt.Errorf("load mentioned users: %w", err)
	}
	for _, user := range mentioned {
		if parent != nil && user.ID == parent.UserID {
			continue
		}
		if _, err := batch.Add(models.Notification{
			UserID:  user.ID,
			ActorID: actorID,
			Type:    models.NotificationMention,
			TweetID: &tweet.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTweet edits the content or location of the user's own tweet
func (s *Service) UpdateTweet(ctx context.Context, userID, tweetID string, update TweetUpdate) (*models.Tweet, error) {
	db := database.DB.WithContext(ctx)

	var tweet models.Tweet
	if err := db.Preload("User").First(&tweet, "id = ?", tweetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTweetNotFound
		}
		return nil, fmt.Errorf("load tweet: %w", err)
	}
	if tweet.UserID != userID {
		return nil, ErrForbidden
	}

	changes := map[string]interface{}{}
	if update.Content != nil {
		content, err := normalizeContent(*update.Content, tweet.ImageURL != "")
		if err != nil {
			return nil, err
		}
		if content != tweet.Content {
			changes["content"] = content
			tweet.Content = content
		}
	}
	if update.Location != nil {
		location := strings.TrimSpace(*update.Location)
		if location != tweet.Location {
			changes["location"] = location
			tweet.Location = location
		}
	}
	if len(changes) == 0 {
		return &tweet, nil
	}

	now := time.Now().UTC()
	changes["edited_at"] = now
	if err := db.Model(&tweet).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update tweet: %w", err)
	}
	tweet.EditedAt = &now
	return &tweet, nil
}

// DeleteTweet deletes the user's own tweet with its likes, retweets,
// bookmarks and notifications. Replies survive with their parent link
// cleared. The deleted tweet is returned so callers can clean up its image
// and search document.
func (s *Service) DeleteTweet(ctx context.Context, userID, tweetID string) (*models.Tweet, error) {
	var (
		tweet models.Tweet
		batch *notifications.Batch
	)

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tweet, "id = ?", tweetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTweetNotFound
			}
			return fmt.Errorf("load tweet: %w", err)
		}
		if tweet.UserID != userID {
			return ErrForbidden
		}

		batch = s.notifier.Begin(tx)
		if err := batch.RemoveForTweet(tweetID); err != nil {
			return err
		}
		for _, model := range []interface{}{&models.Like{}, &models.Retweet{}, &models.Bookmark{}} {
			if err := tx.Where("tweet_id = ?", tweetID).Delete(model).Error; err != nil {
				return fmt.Errorf("delete tweet associations: %w", err)
			}
		}
		if err := tx.Model(&models.Tweet{}).Where("reply_to_id = ?", tweetID).
			UpdateColumn("reply_to_id", nil).Error; err != nil {
			return fmt.Errorf("detach replies: %w", err)
		}
		if tweet.ReplyToID != nil {
			if err := tx.Model(&models.Tweet{}).Where("id = ?", *tweet.ReplyToID).
				UpdateColumn("reply_count", util.Decrement("reply_count")).Error; err != nil {
				return fmt.Errorf("drop reply count: %w", err)
			}
		}
		if err := tx.Delete(&tweet).Error; err != nil {
			return fmt.Errorf("delete tweet: %w", err)
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("tweet_count", util.Decrement("tweet_count")).Error
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx)

	metrics.Get().App.TweetsDeleted.Inc()
	logger.Log.Debug("Tweet deleted", logger.WithUserID(userID), logger.WithTweetID(tweetID))

	if tweet.ReplyToID == nil {
		s.syncFeed(ctx, "remove_tweet", func(ctx context.Context, feeds stream.StreamClientInterface) error {
			return feeds.RemoveTweetActivity(ctx, userID, tweetID)
		})
	}
	return &tweet, nil
}
