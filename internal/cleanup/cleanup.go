// Package cleanup runs the periodic retention job: spent password reset
// tokens and old read notifications are purged on an interval.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"go.uber.org/zap"
)

// Defaults used by the server
const (
	DefaultInterval              = time.Hour
	DefaultNotificationRetention = 90 * 24 * time.Hour

	passTimeout = 2 * time.Minute
)

// Report counts the rows one pass removed
type Report struct {
	PasswordResets int64
	Notifications  int64
}

// Service purges expired rows on an interval
type Service struct {
	interval              time.Duration
	notificationRetention time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewService creates a cleanup service. Read notifications older than
// notificationRetention are deleted; unread ones are kept.
func NewService(interval, notificationRetention time.Duration) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		interval:              interval,
		notificationRetention: notificationRetention,
		ctx:                   ctx,
		cancel:                cancel,
		now:                   time.Now,
	}
}

// Start runs one pass immediately and then one per interval
func (s *Service) Start() {
	logger.Log.Info("Starting cleanup service", zap.Duration("interval", s.interval))
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the loop and waits for an in-flight pass
func (s *Service) Stop() {
	logger.Log.Info("Stopping cleanup service")
	s.cancel()
	s.wg.Wait()
}

func (s *Service) run() {
	defer s.wg.Done()
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) runOnce() {
	// A pass in flight finishes even when Stop is called
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	started := time.Now()
	report, err := s.Purge(ctx)
	if err != nil {
		logger.WarnWithFields("Cleanup pass failed", err)
		return
	}
	if report.PasswordResets == 0 && report.Notifications == 0 {
		logger.Log.Debug("Cleanup pass found nothing to delete")
		return
	}
	logger.Log.Info("Cleanup pass completed",
		zap.Int64("password_resets", report.PasswordResets),
		zap.Int64("notifications", report.Notifications),
		logger.WithDuration(time.Since(started)),
	)
}

// Purge deletes used or expired password resets and read notifications
// past retention.
func (s *Service) Purge(ctx context.Context) (Report, error) {
	var report Report
	now := s.now().UTC()
	db := database.DB.WithContext(ctx)

	result := db.Where("used = ? OR expires_at < ?", true, now).Delete(&models.PasswordReset{})
	if result.Error != nil {
		return report, result.Error
	}
	report.PasswordResets = result.RowsAffected
	metrics.Get().App.RowsPurged.WithLabelValues("password_resets").Add(float64(result.RowsAffected))

	result = db.Where("read = ? AND created_at < ?", true, now.Add(-s.notificationRetention)).Delete(&models.Notification{})
	if result.Error != nil {
		return report, result.Error
	}
	report.Notifications = result.RowsAffected
	metrics.Get().App.RowsPurged.WithLabelValues("notifications").Add(float64(result.RowsAffected))

	return report, nil
}
