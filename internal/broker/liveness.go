package broker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LivenessCache keeps operator-facing state in Redis: the relational
// store stays authoritative for drone liveness (the drones table), but
// a short-TTL Redis key lets other processes (e.g. a CRUD API "drones
// online" endpoint) answer without a query, and the dispatch loop
// publishes a per-region backpressure gauge so operators can see queue
// depth without polling Postgres. Neither read path falls back to Redis
// for correctness; both are best-effort caches.
type LivenessCache struct {
	client *redis.Client
}

func NewLivenessCache(client *redis.Client) *LivenessCache {
	return &LivenessCache{client: client}
}

// MarkAlive records that droneID checked in, TTL'd to the checkin grace
// period so a stalled drone silently expires from the cache.
func (c *LivenessCache) MarkAlive(ctx context.Context, droneID, region string, ttl time.Duration) {
	if c.client == nil {
		return
	}
	key := fmt.Sprintf("rocktick:drone:alive:%s", droneID)
	if err := c.client.Set(ctx, key, region, ttl).Err(); err != nil {
		// Best-effort: liveness cache misses never affect dispatch
		// correctness, only an operator-facing read path.
		return
	}
}

// PublishDispatchDepth records how many jobs were just dispatched to a
// region, exported as a gauge for backpressure observability.
func (c *LivenessCache) PublishDispatchDepth(ctx context.Context, region string, n int) {
	if c.client == nil {
		return
	}
	key := fmt.Sprintf("rocktick:broker:dispatch_depth:%s", region)
	_ = c.client.Set(ctx, key, strconv.Itoa(n), time.Minute).Err()
}
