package search

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zfogg/traveltweets/internal/cache"
	"github.com/zfogg/traveltweets/internal/logger"
	"go.uber.org/zap"
)

const resultTTL = 2 * time.Minute

// resultCache keeps search hit pages in Redis. Hits are ID lists only, so
// they are the same for every viewer; visibility is applied when the IDs
// are loaded.
type resultCache struct {
	redis *cache.RedisClient
	ttl   time.Duration
}

func newResultCache(redis *cache.RedisClient) *resultCache {
	return &resultCache{redis: redis, ttl: resultTTL}
}

func (c *resultCache) key(kind, query string, limit, offset int) string {
	data, _ := json.Marshal(struct {
		Query  string `json:"q"`
		Limit  int    `json:"l"`
		Offset int    `json:"o"`
	}{query, limit, offset})
	sum := md5.Sum(data)
	return cache.SearchKey(kind, hex.EncodeToString(sum[:]))
}

func (c *resultCache) get(ctx context.Context, key string) (*Hits, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, key)
	if err != nil {
		if !cache.IsMiss(err) {
			logger.Log.Debug("Search cache read failed", zap.Error(err))
		}
		cache.RecordMiss(cache.NameSearch)
		return nil, false
	}

	var hits Hits
	if err := json.Unmarshal([]byte(raw), &hits); err != nil {
		cache.RecordMiss(cache.NameSearch)
		return nil, false
	}
	cache.RecordHit(cache.NameSearch)
	return &hits, true
}

func (c *resultCache) set(ctx context.Context, key string, hits *Hits) {
	if c == nil || c.redis == nil || hits == nil {
		return
	}
	data, err := json.Marshal(hits)
	if err != nil {
		return
	}
	if err := c.redis.SetEx(ctx, key, data, c.ttl); err != nil {
		logger.Log.Debug("Search cache write failed", zap.Error(err))
	}
}

// invalidate drops every cached page of kind
func (c *resultCache) invalidate(ctx context.Context, kind string) error {
	if c == nil || c.redis == nil {
		return nil
	}
	rdb := c.redis.Client()
	iter := rdb.Scan(ctx, 0, cache.SearchKey(kind, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}
