package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lesson-scheduler/internal/schedule"
)

// BusyCache keeps per-day busy slots in Redis. Redis failures are logged
// and the underlying provider is used directly.
type BusyCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func NewBusyCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *BusyCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusyCache{Client: client, TTL: ttl, Logger: logger}
}

func busyKey(tutorID string, date time.Time) string {
	return "busy:" + tutorID + ":" + schedule.FormatDate(date)
}

// Provider wraps next with a read-through cache for tutorID. A nil cache
// returns next unchanged.
func (c *BusyCache) Provider(tutorID string, next schedule.BusySlotProvider) schedule.BusySlotProvider {
	if c == nil {
		return next
	}
	return &cachedBusy{cache: c, tutorID: tutorID, next: next}
}

// Invalidate drops the cached days of tutorID.
func (c *BusyCache) Invalidate(ctx context.Context, tutorID string, dates ...time.Time) {
	if c == nil || len(dates) == 0 {
		return
	}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, busyKey(tutorID, d))
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		c.Logger.Warn("busy cache invalidate failed", zap.String("tutor_id", tutorID), zap.Error(err))
	}
}

func (c *BusyCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

type cachedBusy struct {
	cache   *BusyCache
	tutorID string
	next    schedule.BusySlotProvider
}

func (p *cachedBusy) BusySlots(ctx context.Context, date time.Time) ([]schedule.BusySlot, error) {
	key := busyKey(p.tutorID, date)
	log := p.cache.Logger.With(zap.String("key", key))

	raw, err := p.cache.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var slots []schedule.BusySlot
		if err := json.Unmarshal(raw, &slots); err == nil {
			return slots, nil
		}
		log.Warn("busy cache entry unreadable")
	case !errors.Is(err, redis.Nil):
		log.Warn("busy cache read failed", zap.Error(err))
	}

	slots, err := p.next.BusySlots(ctx, date)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(slots); err == nil {
		if err := p.cache.Client.Set(ctx, key, b, p.cache.TTL).Err(); err != nil {
			log.Warn("busy cache write failed", zap.Error(err))
		}
	}
	return slots, nil
}
