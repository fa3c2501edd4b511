package search

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	reindexBatchSize = 200
	// Counter changes do not touch updated_at, so recent tweets are always
	// re-indexed to pick up likes and retweets.
	recentTweetAge = 72 * time.Hour
)

// ReindexAll writes every tweet and user to the backend. It is used after a
// mapping change and by migrate --reindex.
func ReindexAll(ctx context.Context, backend Backend) (tweets int, users int, err error) {
	db := database.DB.WithContext(ctx)

	var tweetBatch []models.Tweet
	err = db.Preload("User").FindInBatches(&tweetBatch, reindexBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range tweetBatch {
			if err := backend.IndexTweet(ctx, TweetToDoc(&tweetBatch[i], "")); err != nil {
				return err
			}
			tweets++
		}
		return nil
	}).Error
	if err != nil {
		return tweets, users, err
	}

	var userBatch []models.User
	err = db.FindInBatches(&userBatch, reindexBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range userBatch {
			if err := backend.IndexUser(ctx, UserToDoc(&userBatch[i])); err != nil {
				return err
			}
			users++
		}
		return nil
	}).Error
	return tweets, users, err
}

// ReconciliationService periodically re-indexes recent tweets and recently
// changed users so counters and writes missed by a failed index call converge.
type ReconciliationService struct {
	backend   Backend
	interval  time.Duration
	window    time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewReconciliationService creates a reconciliation loop that re-indexes
// rows updated within the last two intervals.
func NewReconciliationService(backend Backend, interval time.Duration) *ReconciliationService {
	return &ReconciliationService{
		backend:  backend,
		interval: interval,
		window:   2 * interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic reconciliation loop
func (rs *ReconciliationService) Start() {
	rs.mu.Lock()
	if rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = true
	rs.mu.Unlock()

	logger.Log.Info("Starting search reconciliation", zap.Duration("interval", rs.interval))

	rs.wg.Add(1)
	go rs.loop()
}

// Stop stops the loop and waits for a running pass to finish
func (rs *ReconciliationService) Stop() {
	rs.mu.Lock()
	if !rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = false
	rs.mu.Unlock()

	close(rs.stopChan)
	rs.wg.Wait()
	logger.Log.Info("Search reconciliation stopped")
}

func (rs *ReconciliationService) loop() {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), rs.interval)
			rs.Reconcile(ctx, time.Now().Add(-rs.window))
			cancel()
		}
	}
}

// Reconcile re-indexes tweets and users updated since the given time, plus
// tweets younger than recentTweetAge, and returns how many documents it wrote.
func (rs *ReconciliationService) Reconcile(ctx context.Context, since time.Time) int {
	start := time.Now()
	db := database.DB.WithContext(ctx)

	var tweets []models.Tweet
	if err := db.Preload("User").Where("updated_at >= ? OR created_at >= ?", since, start.Add(-recentTweetAge)).
		Order("created_at DESC").Limit(500).Find(&tweets).Error; err != nil {
		logger.Log.Warn("Failed to load tweets for reconciliation", zap.Error(err))
		return 0
	}

	var users []models.User
	if err := db.Where("updated_at >= ?", since).
		Order("updated_at DESC").Limit(200).Find(&users).Error; err != nil {
		logger.Log.Warn("Failed to load users for reconciliation", zap.Error(err))
		return 0
	}

	written := 0
	for i := range tweets {
		if err := rs.backend.IndexTweet(ctx, TweetToDoc(&tweets[i], "")); err != nil {
			logger.Log.Warn("Failed to reconcile tweet", logger.WithTweetID(tweets[i].ID), zap.Error(err))
			continue
		}
		written++
	}
	for i := range users {
		if err := rs.backend.IndexUser(ctx, UserToDoc(&users[i])); err != nil {
			logger.Log.Warn("Failed to reconcile user", logger.WithUserID(users[i].ID), zap.Error(err))
			continue
		}
		written++
	}

	logger.Log.Debug("Search reconciliation pass complete",
		zap.Int("tweets", len(tweets)),
		zap.Int("users", len(users)),
		zap.Int("written", written),
		zap.Duration("duration", time.Since(start)),
	)
	return written
}
