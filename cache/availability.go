// Package cache holds the Redis-backed display caches. Cached values are a
// read optimization only; the reservation path always derives capacity from
// the booking ledger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/reservation"
)

const (
	availabilityKeyPrefix = "slot_availability:"
	availabilityTTL       = 30 * time.Second
)

// Availability is a Redis-backed reservation.AvailabilityCache. All
// operations are best-effort: a Redis failure degrades to database reads.
type Availability struct {
	rdb *redis.Client
}

// NewAvailability creates the cache over an existing Redis client.
func NewAvailability(rdb *redis.Client) *Availability {
	return &Availability{rdb: rdb}
}

func availabilityKey(slotID uuid.UUID) string {
	return fmt.Sprintf("%s%s", availabilityKeyPrefix, slotID)
}

// Get returns the cached availability for a slot, if present.
func (c *Availability) Get(ctx context.Context, slotID uuid.UUID) (*reservation.Availability, bool) {
	val, err := c.rdb.Get(ctx, availabilityKey(slotID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WarnLogger.Warnf("Availability cache read failed for slot %s: %v", slotID, err)
		}
		return nil, false
	}

	var av reservation.Availability
	if err := json.Unmarshal([]byte(val), &av); err != nil {
		logger.WarnLogger.Warnf("Availability cache entry for slot %s is corrupt, dropping: %v", slotID, err)
		c.Invalidate(ctx, slotID)
		return nil, false
	}
	return &av, true
}

// Set writes through the latest availability with a short TTL.
func (c *Availability) Set(ctx context.Context, av *reservation.Availability) {
	data, err := json.Marshal(av)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to marshal availability for slot %s: %v", av.SlotID, err)
		return
	}
	if err := c.rdb.Set(ctx, availabilityKey(av.SlotID), data, availabilityTTL).Err(); err != nil {
		logger.WarnLogger.Warnf("Availability cache write failed for slot %s: %v", av.SlotID, err)
	}
}

// Invalidate drops the cached entry for a slot.
func (c *Availability) Invalidate(ctx context.Context, slotID uuid.UUID) {
	if err := c.rdb.Del(ctx, availabilityKey(slotID)).Err(); err != nil {
		logger.WarnLogger.Warnf("Availability cache invalidate failed for slot %s: %v", slotID, err)
	}
}
