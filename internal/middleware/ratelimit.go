package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/util"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Scope names the limiter in metrics and Redis keys
	Scope string
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc picks the bucket for a request; defaults to ClientKey
	KeyFunc func(c *gin.Context) string
}

// DefaultRateLimitConfig is the global per-client limit
func DefaultRateLimitConfig(perMinute int) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 300
	}
	return RateLimitConfig{
		Scope:   "global",
		Limit:   perMinute,
		Window:  time.Minute,
		KeyFunc: ClientKey,
	}
}

// AuthRateLimitConfig returns stricter limits for login and registration
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Scope:   "auth",
		Limit:   10,
		Window:  time.Minute,
		KeyFunc: func(c *gin.Context) string { return c.ClientIP() },
	}
}

// UploadRateLimitConfig returns limits for image uploads
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Scope:   "uploads",
		Limit:   20,
		Window:  time.Minute,
		KeyFunc: ClientKey,
	}
}

// CaptionRateLimitConfig limits AI caption generation per user
func CaptionRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Scope:   "captions",
		Limit:   10,
		Window:  time.Minute,
		KeyFunc: ClientKey,
	}
}

// ClientKey is the signed-in user's ID, or the client IP for anonymous requests
func ClientKey(c *gin.Context) string {
	if userID := c.GetString(util.ContextUserIDKey); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// TokenBucket for rate limiting
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow takes a token if one is available. When it is not, it also returns
// how long until the next token.
func (tb *TokenBucket) Allow() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = math.Min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	wait := (1 - tb.tokens) / tb.refillRate
	return false, time.Duration(wait * float64(time.Second))
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter keeps one token bucket per client key in memory
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitConfig
	mu      sync.Mutex
}

func newRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientKey
	}
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
	}
	go rl.cleanupRoutine()
	return rl
}

// NewRateLimiter creates an in-memory rate limiting middleware
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	rl := newRateLimiter(config)

	return func(c *gin.Context) {
		allowed, retryAfter := rl.Allow(rl.config.KeyFunc(c))
		if !allowed {
			rejectRateLimited(c, rl.config, retryAfter)
			return
		}
		c.Next()
	}
}

// Allow checks if key may make another request
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.config.Limit) / rl.config.Window.Seconds()
		bucket = NewTokenBucket(float64(rl.config.Limit), refillRate)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.Allow()
}

// cleanupRoutine drops buckets that have been full for a whole window
func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.config.Window)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-rl.config.Window)
		rl.mu.Lock()
		for key, bucket := range rl.buckets {
			if bucket.idleSince().Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

func rejectRateLimited(c *gin.Context, config RateLimitConfig, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	RecordRateLimitExceeded(config.Scope)
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
	c.Header("X-RateLimit-Remaining", "0")
	util.RespondWithAPIError(c, errors.RateLimited(""))
}
