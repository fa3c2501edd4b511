package cache

import "fmt"

// UnreadNotificationsKey caches a user's unread notification count
func UnreadNotificationsKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

// RateLimitKey is the counter key for a limiter scope and client
func RateLimitKey(scope, client string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, client)
}

// SearchKey caches a search result page
func SearchKey(kind, digest string) string {
	return fmt.Sprintf("search:%s:%s", kind, digest)
}
