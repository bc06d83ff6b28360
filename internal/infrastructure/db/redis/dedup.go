package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL bounds how long a notification key is remembered.
const DefaultDedupTTL = time.Hour

// DedupChecker remembers handled append notifications in Redis so that a
// redelivered notification does not trigger another refresh.
// Key format: dedup:notification:<subscription>:<contract>:<index>:<tx_hash>
type DedupChecker struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewDedupChecker creates a DedupChecker. A non-positive ttl uses DefaultDedupTTL.
func NewDedupChecker(client redis.Cmdable, ttl time.Duration) *DedupChecker {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &DedupChecker{client: client, ttl: ttl}
}

// MarkNew records the notification with SET NX and reports whether it was
// seen for the first time. The key expires after the configured ttl.
func (d *DedupChecker) MarkNew(ctx context.Context, key string) (bool, error) {
	fresh, err := d.client.SetNX(ctx, d.key(key), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup mark: %w", err)
	}
	return fresh, nil
}

func (d *DedupChecker) key(key string) string {
	return "dedup:notification:" + key
}
