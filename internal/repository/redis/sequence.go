// Package redis provides the Redis-backed order-number sequencer.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sequenceTTL keeps yesterday's counter around long enough for clock-skewed
// writers, then lets it expire.
const sequenceTTL = 48 * time.Hour

// OrderSequencer hands out a strictly increasing per-day sequence using a
// single atomic INCR per checkout, so concurrent checkouts can never mint the
// same order number.
type OrderSequencer struct {
	client *redis.Client
}

// NewOrderSequencer creates a Redis-backed order sequencer.
func NewOrderSequencer(client *redis.Client) *OrderSequencer {
	return &OrderSequencer{client: client}
}

// Next returns the next sequence value for the given day, starting at 1.
func (s *OrderSequencer) Next(ctx context.Context, day time.Time) (int64, error) {
	key := fmt.Sprintf("orderseq:%s", day.UTC().Format("060102"))

	seq, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment order sequence: %w", err)
	}

	if seq == 1 {
		if err := s.client.Expire(ctx, key, sequenceTTL).Err(); err != nil {
			return 0, fmt.Errorf("expire order sequence key: %w", err)
		}
	}

	return seq, nil
}
