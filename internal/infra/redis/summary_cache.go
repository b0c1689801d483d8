package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"delta-backend/internal/usecase"
)

var _ usecase.SummaryCache = (*SummaryCache)(nil)

// SummaryCache keeps generated conversation summaries for reuse; entries
// expire so a growing conversation eventually gets re-summarized.
type SummaryCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewSummaryCache(client RedisClient, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

func (c *SummaryCache) Get(ctx context.Context, conversationID string) (string, bool, error) {
	val, err := c.client.Get(ctx, "conv_summary:"+conversationID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (c *SummaryCache) Set(ctx context.Context, conversationID, summary string) error {
	return c.client.Set(ctx, "conv_summary:"+conversationID, summary, c.ttl)
}
