// Package social implements the toggle actions (likes, retweets, bookmarks
// and follows) and the counters and notifications they maintain.
package social

import (
	"context"
	"errors"
	"time"

	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/stream"
	"go.uber.org/zap"
)

var (
	ErrTweetNotFound   = errors.New("tweet not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("follow request not found")
	ErrFollowNotFound  = errors.New("follower not found")
	ErrSelfFollow      = errors.New("you cannot follow yourself")
	ErrSelfRetweet     = errors.New("you cannot retweet your own tweet")
	ErrForbidden       = errors.New("not allowed")
)

// errAlreadyApplied aborts a transaction whose insert lost a race with an
// identical concurrent insert.
var errAlreadyApplied = errors.New("already applied")

const feedTimeout = 5 * time.Second

// Service runs toggle actions against the database
type Service struct {
	notifier *notifications.Service
	feeds    stream.StreamClientInterface
}

// NewService creates a Service. feeds may be nil when Stream is not configured.
func NewService(notifier *notifications.Service, feeds stream.StreamClientInterface) *Service {
	return &Service{notifier: notifier, feeds: feeds}
}

// syncFeed runs a Stream feed update after the database committed. Feed
// failures are logged and counted only.
func (s *Service) syncFeed(ctx context.Context, op string, fn func(context.Context, stream.StreamClientInterface) error) {
	if s.feeds == nil {
		return
	}
	feedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), feedTimeout)
	defer cancel()

	if err := fn(feedCtx, s.feeds); err != nil {
		metrics.Get().App.SideEffectFailures.WithLabelValues("feeds").Inc()
		logger.Log.Warn("Feed sync failed", zap.String("op", op), zap.Error(err))
	}
}

func recordToggle(kind string, state string) {
	metrics.Get().App.Toggles.WithLabelValues(kind, state).Inc()
}

func onOff(active bool) string {
	if active {
		return "on"
	}
	return "off"
}
