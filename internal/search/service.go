// Package search finds tweets and users. Elasticsearch serves queries when
// it is configured; the database answers otherwise and whenever
// Elasticsearch fails.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zfogg/traveltweets/internal/cache"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/social"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Search types
const (
	TypeTweets = "tweets"
	TypeUsers  = "users"
)

var (
	ErrEmptyQuery  = errors.New("search query is required")
	ErrUnknownType = errors.New("type must be tweets or users")
)

const indexTimeout = 5 * time.Second

// Backend is the full-text engine behind Service. *Client implements it.
type Backend interface {
	IndexTweet(ctx context.Context, doc TweetDoc) error
	IndexUser(ctx context.Context, doc UserDoc) error
	DeleteTweet(ctx context.Context, tweetID string) error
	SearchTweets(ctx context.Context, query string, limit, offset int) (*Hits, error)
	SearchUsers(ctx context.Context, query string, limit, offset int) (*Hits, error)
}

// Results is one page of search results
type Results struct {
	Tweets []models.Tweet `json:"tweets,omitempty"`
	Users  []models.User  `json:"users,omitempty"`
	Total  int            `json:"total"`
}

// Service runs searches and keeps the index in step with writes
type Service struct {
	backend Backend
	cache   *resultCache
}

// NewService creates a Service. backend and redis may both be nil.
func NewService(backend Backend, redis *cache.RedisClient) *Service {
	return &Service{backend: backend, cache: newResultCache(redis)}
}

// Enabled reports whether a full-text backend is configured
func (s *Service) Enabled() bool {
	return s != nil && s.backend != nil
}

// Search returns a page of tweets or users matching query. Tweets the
// viewer may not read are left out.
func (s *Service) Search(ctx context.Context, viewerID, kind, query string, limit, offset int) (*Results, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if kind == "" {
		kind = TypeTweets
	}
	if kind != TypeTweets && kind != TypeUsers {
		return nil, ErrUnknownType
	}

	if s.Enabled() {
		hits, err := s.backendSearch(ctx, kind, query, limit, offset)
		if err == nil {
			metrics.Get().App.SearchQueries.WithLabelValues(kind, "elasticsearch").Inc()
			return s.load(ctx, viewerID, kind, hits)
		}
		logger.Log.Warn("Elasticsearch query failed, using database search",
			zap.String("type", kind),
			zap.Error(err),
		)
	}

	metrics.Get().App.SearchQueries.WithLabelValues(kind, "database").Inc()
	if kind == TypeUsers {
		return searchUsersDB(ctx, query, limit, offset)
	}
	return searchTweetsDB(ctx, viewerID, query, limit, offset)
}

func (s *Service) backendSearch(ctx context.Context, kind, query string, limit, offset int) (*Hits, error) {
	key := s.cache.key(kind, strings.ToLower(query), limit, offset)
	if hits, ok := s.cache.get(ctx, key); ok {
		return hits, nil
	}

	var (
		hits *Hits
		err  error
	)
	if kind == TypeUsers {
		hits, err = s.backend.SearchUsers(ctx, query, limit, offset)
	} else {
		hits, err = s.backend.SearchTweets(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, key, hits)
	return hits, nil
}

// load fetches the hit rows in ranking order
func (s *Service) load(ctx context.Context, viewerID, kind string, hits *Hits) (*Results, error) {
	results := &Results{Total: hits.Total}
	if len(hits.IDs) == 0 {
		if kind == TypeUsers {
			results.Users = []models.User{}
		} else {
			results.Tweets = []models.Tweet{}
		}
		return results, nil
	}

	db := database.DB.WithContext(ctx)
	if kind == TypeUsers {
		var users []models.User
		if err := db.Where("id IN ?", hits.IDs).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		results.Users = inOrder(hits.IDs, users, func(u models.User) string { return u.ID })
		return results, nil
	}

	var tweets []models.Tweet
	if err := db.Scopes(social.VisibleTweets(viewerID)).Preload("User").
		Where("tweets.id IN ?", hits.IDs).Find(&tweets).Error; err != nil {
		return nil, fmt.Errorf("load tweets: %w", err)
	}
	results.Tweets = inOrder(hits.IDs, tweets, func(t models.Tweet) string { return t.ID })
	return results, nil
}

// inOrder arranges rows to follow ids, dropping ids with no row
func inOrder[T any](ids []string, rows []T, id func(T) string) []T {
	byID := make(map[string]T, len(rows))
	for _, row := range rows {
		byID[id(row)] = row
	}
	ordered := make([]T, 0, len(rows))
	for _, key := range ids {
		if row, ok := byID[key]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered
}

func searchTweetsDB(ctx context.Context, viewerID, query string, limit, offset int) (*Results, error) {
	pattern := likePattern(query)
	base := func() *gorm.DB {
		return database.DB.WithContext(ctx).Model(&models.Tweet{}).
			Scopes(social.VisibleTweets(viewerID)).
			Where(`(LOWER(tweets.content) LIKE ? ESCAPE '\' OR LOWER(tweets.location) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count tweets: %w", err)
	}

	tweets := []models.Tweet{}
	if err := base().Preload("User").
		Order("tweets.created_at DESC").Limit(limit).Offset(offset).
		Find(&tweets).Error; err != nil {
		return nil, fmt.Errorf("search tweets: %w", err)
	}
	return &Results{Tweets: tweets, Total: int(total)}, nil
}

func searchUsersDB(ctx context.Context, query string, limit, offset int) (*Results, error) {
	pattern := likePattern(query)
	base := func() *gorm.DB {
		return database.DB.WithContext(ctx).Model(&models.User{}).
			Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	users := []models.User{}
	if err := base().Order("follower_count DESC, username").Limit(limit).Offset(offset).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return &Results{Users: users, Total: int(total)}, nil
}

// likePattern lowercases query and escapes LIKE wildcards in it
func likePattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(query))
	return "%" + escaped + "%"
}

// IndexTweet indexes a tweet after it was written. Failures are logged.
func (s *Service) IndexTweet(ctx context.Context, tweet *models.Tweet, username string) {
	s.sideEffect(ctx, "index tweet", zap.String("tweet_id", tweet.ID), func(ctx context.Context) error {
		return s.backend.IndexTweet(ctx, TweetToDoc(tweet, username))
	})
}

// IndexUser indexes a user after a profile change. Failures are logged.
func (s *Service) IndexUser(ctx context.Context, user *models.User) {
	s.sideEffect(ctx, "index user", zap.String("user_id", user.ID), func(ctx context.Context) error {
		if err := s.backend.IndexUser(ctx, UserToDoc(user)); err != nil {
			return err
		}
		return s.cache.invalidate(ctx, TypeUsers)
	})
}

// RemoveTweet deletes a tweet from the index and drops cached tweet pages
func (s *Service) RemoveTweet(ctx context.Context, tweetID string) {
	s.sideEffect(ctx, "remove tweet", zap.String("tweet_id", tweetID), func(ctx context.Context) error {
		if err := s.backend.DeleteTweet(ctx, tweetID); err != nil {
			return err
		}
		return s.cache.invalidate(ctx, TypeTweets)
	})
}

func (s *Service) sideEffect(ctx context.Context, op string, field zap.Field, fn func(context.Context) error) {
	if !s.Enabled() {
		return
	}
	indexCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indexTimeout)
	defer cancel()

	if err := fn(indexCtx); err != nil {
		metrics.Get().App.SideEffectFailures.WithLabelValues("search").Inc()
		logger.Log.Warn("Search index update failed", zap.String("op", op), field, zap.Error(err))
	}
}
