package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowState is the follower's relation to the target after a toggle
type FollowState struct {
	IsFollowing   bool `json:"isFollowing"`
	IsPending     bool `json:"isPending"`
	FollowerCount int  `json:"followerCount"`
}

// Relation is how a viewer and another user are connected
type Relation struct {
	IsFollowing bool `json:"isFollowing"`
	IsPending   bool `json:"isPending"`
	FollowsYou  bool `json:"followsYou"`
}

// ToggleFollow follows or unfollows targetID. Following a private account
// creates a pending request; toggling a pending request cancels it.
func (s *Service) ToggleFollow(ctx context.Context, followerID, targetID string) (FollowState, error) {
	if followerID == targetID {
		return FollowState{}, ErrSelfFollow
	}

	var (
		state       FollowState
		wasAccepted bool
		batch       *notifications.Batch
	)

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.User
		if err := tx.Select("id", "is_private").First(&target, "id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		batch = s.notifier.Begin(tx)

		var existing models.Follow
		err := tx.Where("follower_id = ? AND following_id = ?", followerID, targetID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return fmt.Errorf("delete follow: %w", err)
			}
			if existing.IsPending() {
				return batch.Remove(targetID, followerID, models.NotificationFollowRequest, nil)
			}
			wasAccepted = true
			if err := adjustFollowCounts(tx, followerID, targetID, util.Decrement); err != nil {
				return err
			}
			return batch.Remove(targetID, followerID, models.NotificationFollow, nil)

		case errors.Is(err, gorm.ErrRecordNotFound):
			follow := models.Follow{FollowerID: followerID, FollowingID: targetID, Status: models.FollowStatusAccepted}
			if target.IsPrivate {
				follow.Status = models.FollowStatusPending
			} else {
				now := time.Now().UTC()
				follow.AcceptedAt = &now
			}
			if err := tx.Create(&follow).Error; err != nil {
				if util.IsDuplicateKey(err) {
					return errAlreadyApplied
				}
				return fmt.Errorf("create follow: %w", err)
			}

			if follow.IsPending() {
				state.IsPending = true
				_, err := batch.Add(models.Notification{UserID: targetID, ActorID: followerID, Type: models.NotificationFollowRequest})
				return err
			}
			state.IsFollowing = true
			if err := adjustFollowCounts(tx, followerID, targetID, util.Increment); err != nil {
				return err
			}
			_, err := batch.Add(models.Notification{UserID: targetID, ActorID: followerID, Type: models.NotificationFollow})
			return err

		default:
			return err
		}
	})

	if errors.Is(err, errAlreadyApplied) {
		rel, relErr := s.Relation(ctx, followerID, targetID)
		if relErr != nil {
			return FollowState{}, relErr
		}
		state = FollowState{IsFollowing: rel.IsFollowing, IsPending: rel.IsPending}
		err = nil
	} else if err == nil {
		batch.Flush(ctx)
		switch {
		case state.IsFollowing:
			recordToggle("follow", "on")
			s.syncFeed(ctx, "follow", func(ctx context.Context, feeds stream.StreamClientInterface) error {
				return feeds.FollowUser(ctx, followerID, targetID)
			})
		case state.IsPending:
			recordToggle("follow", "pending")
		default:
			recordToggle("follow", "off")
			if wasAccepted {
				s.syncFeed(ctx, "unfollow", func(ctx context.Context, feeds stream.StreamClientInterface) error {
					return feeds.UnfollowUser(ctx, followerID, targetID)
				})
			}
		}
	}
	if err != nil {
		return FollowState{}, err
	}

	state.FollowerCount, err = s.followerCount(ctx, targetID)
	return state, err
}

// AcceptFollowRequest approves a pending request addressed to targetID
func (s *Service) AcceptFollowRequest(ctx context.Context, targetID, followID string) (*models.Follow, error) {
	var (
		follow models.Follow
		batch  *notifications.Batch
	)

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadRequest(tx, targetID, followID, &follow); err != nil {
			return err
		}
		batch = s.notifier.Begin(tx)

		if err := acceptPending(tx, batch, &follow); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch.Flush(ctx)
	metrics.Get().App.FollowRequests.WithLabelValues("accepted").Inc()
	s.syncFeed(ctx, "follow", func(ctx context.Context, feeds stream.StreamClientInterface) error {
		return feeds.FollowUser(ctx, follow.FollowerID, follow.FollowingID)
	})
	return &follow, nil
}

// RejectFollowRequest deletes a pending request addressed to targetID
func (s *Service) RejectFollowRequest(ctx context.Context, targetID, followID string) error {
	var batch *notifications.Batch

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var follow models.Follow
		if err := loadRequest(tx, targetID, followID, &follow); err != nil {
			return err
		}
		batch = s.notifier.Begin(tx)

		result := tx.Where("id = ? AND status = ?", follow.ID, models.FollowStatusPending).Delete(&models.Follow{})
		if result.Error != nil {
			return fmt.Errorf("delete follow request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRequestNotFound
		}
		return batch.Remove(targetID, follow.FollowerID, models.NotificationFollowRequest, nil)
	})
	if err != nil {
		return err
	}

	batch.Flush(ctx)
	metrics.Get().App.FollowRequests.WithLabelValues("rejected").Inc()
	return nil
}

// RemoveFollower makes followerID stop following userID, whether the follow
// was accepted or still pending.
func (s *Service) RemoveFollower(ctx context.Context, userID, followerID string) error {
	var (
		wasAccepted bool
		batch       *notifications.Batch
	)

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var follow models.Follow
		err := tx.Where("follower_id = ? AND following_id = ?", followerID, userID).First(&follow).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFollowNotFound
		}
		if err != nil {
			return err
		}
		batch = s.notifier.Begin(tx)

		if err := tx.Delete(&follow).Error; err != nil {
			return fmt.Errorf("delete follow: %w", err)
		}
		if follow.IsPending() {
			return batch.Remove(userID, followerID, models.NotificationFollowRequest, nil)
		}
		wasAccepted = true
		if err := adjustFollowCounts(tx, followerID, userID, util.Decrement); err != nil {
			return err
		}
		return batch.Remove(userID, followerID, models.NotificationFollow, nil)
	})
	if err != nil {
		return err
	}

	batch.Flush(ctx)
	if wasAccepted {
		s.syncFeed(ctx, "unfollow", func(ctx context.Context, feeds stream.StreamClientInterface) error {
			return feeds.UnfollowUser(ctx, followerID, userID)
		})
	}
	return nil
}

// AcceptAllPending approves every pending request to userID. It runs when a
// private account turns public and returns how many were accepted.
func (s *Service) AcceptAllPending(ctx context.Context, userID string) (int, error) {
	var (
		accepted []models.Follow
		batch    *notifications.Batch
	)

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []models.Follow
		if err := tx.Where("following_id = ? AND status = ?", userID, models.FollowStatusPending).
			Order("created_at ASC").Find(&pending).Error; err != nil {
			return fmt.Errorf("list pending follows: %w", err)
		}
		batch = s.notifier.Begin(tx)

		for i := range pending {
			err := acceptPending(tx, batch, &pending[i])
			if errors.Is(err, ErrRequestNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			accepted = append(accepted, pending[i])
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	batch.Flush(ctx)
	for _, follow := range accepted {
		metrics.Get().App.FollowRequests.WithLabelValues("accepted").Inc()
		s.syncFeed(ctx, "follow", func(ctx context.Context, feeds stream.StreamClientInterface) error {
			return feeds.FollowUser(ctx, follow.FollowerID, follow.FollowingID)
		})
	}
	if len(accepted) > 0 {
		logger.Log.Info("Accepted pending follow requests",
			logger.WithUserID(userID),
			zap.Int("count", len(accepted)))
	}
	return len(accepted), nil
}

// Relation reports how viewerID and otherID follow each other
func (s *Service) Relation(ctx context.Context, viewerID, otherID string) (Relation, error) {
	var rel Relation
	if viewerID == "" || viewerID == otherID {
		return rel, nil
	}

	var follows []models.Follow
	err := database.DB.WithContext(ctx).
		Where("(follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?)",
			viewerID, otherID, otherID, viewerID).
		Find(&follows).Error
	if err != nil {
		return rel, fmt.Errorf("load relation: %w", err)
	}

	for _, f := range follows {
		switch {
		case f.FollowerID == viewerID && f.IsPending():
			rel.IsPending = true
		case f.FollowerID == viewerID:
			rel.IsFollowing = true
		case f.Status == models.FollowStatusAccepted:
			rel.FollowsYou = true
		}
	}
	return rel, nil
}

// IsAcceptedFollower reports whether followerID follows userID with an
// accepted follow.
func (s *Service) IsAcceptedFollower(ctx context.Context, followerID, userID string) (bool, error) {
	var count int64
	err := database.DB.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ? AND status = ?", followerID, userID, models.FollowStatusAccepted).
		Count(&count).Error
	return count > 0, err
}

// CanView reports whether viewerID may see content by author. Public
// authors are visible to everyone, private ones to themselves and
// accepted followers.
func (s *Service) CanView(ctx context.Context, viewerID string, author *models.User) (bool, error) {
	if author == nil || !author.IsPrivate || viewerID == author.ID {
		return true, nil
	}
	if viewerID == "" {
		return false, nil
	}
	return s.IsAcceptedFollower(ctx, viewerID, author.ID)
}

func (s *Service) followerCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := database.DB.WithContext(ctx).Model(&models.User{}).Select("follower_count").Where("id = ?", userID).Scan(&count).Error
	return count, err
}

// loadRequest loads a pending follow and checks it is addressed to targetID
func loadRequest(tx *gorm.DB, targetID, followID string, follow *models.Follow) error {
	if err := tx.First(follow, "id = ?", followID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	if follow.FollowingID != targetID {
		return ErrForbidden
	}
	if !follow.IsPending() {
		return ErrRequestNotFound
	}
	return nil
}

// acceptPending flips a pending follow to accepted, bumps both counters and
// swaps the request notification for an acceptance one.
func acceptPending(tx *gorm.DB, batch *notifications.Batch, follow *models.Follow) error {
	now := time.Now().UTC()
	result := tx.Model(&models.Follow{}).
		Where("id = ? AND status = ?", follow.ID, models.FollowStatusPending).
		Updates(map[string]interface{}{"status": models.FollowStatusAccepted, "accepted_at": now})
	if result.Error != nil {
		return fmt.Errorf("accept follow: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	follow.Status = models.FollowStatusAccepted
	follow.AcceptedAt = &now

	if err := adjustFollowCounts(tx, follow.FollowerID, follow.FollowingID, util.Increment); err != nil {
		return err
	}
	if err := batch.Remove(follow.FollowingID, follow.FollowerID, models.NotificationFollowRequest, nil); err != nil {
		return err
	}
	_, err := batch.Add(models.Notification{
		UserID:  follow.FollowerID,
		ActorID: follow.FollowingID,
		Type:    models.NotificationFollowAccepted,
	})
	return err
}

// adjustFollowCounts applies op to the follower's following_count and the
// target's follower_count.
func adjustFollowCounts(tx *gorm.DB, followerID, targetID string, op func(string) clause.Expr) error {
	if err := tx.Model(&models.User{}).Where("id = ?", targetID).
		UpdateColumn("follower_count", op("follower_count")).Error; err != nil {
		return fmt.Errorf("update follower count: %w", err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", followerID).
		UpdateColumn("following_count", op("following_count")).Error; err != nil {
		return fmt.Errorf("update following count: %w", err)
	}
	return nil
}
