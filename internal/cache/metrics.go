package cache

import "github.com/zfogg/traveltweets/internal/metrics"

// Cache names used as the cache_name label
const (
	NameUnreadNotifications = "unread_notifications"
	NameSearch              = "search"
)

// RecordHit counts a cache hit for cacheName
func RecordHit(cacheName string) {
	metrics.Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordMiss counts a cache miss for cacheName
func RecordMiss(cacheName string) {
	metrics.Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
}
