package redis

import (
	"context"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VISIT TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// VisitTracker counts session starts per user. INCR is atomic, so the
// counter stays correct across concurrent session starts, and the TTL is
// refreshed on every visit so only abandoned accounts expire.
type VisitTracker struct {
	cache *Cache
}

// NewVisitTracker creates a visit tracker on top of a cache client.
func NewVisitTracker(cache *Cache) *VisitTracker {
	return &VisitTracker{cache: cache}
}

func visitKey(userID shared.UserID) string {
	return PrefixVisits + userID.String()
}

// RecordVisit increments and returns the user's visit count.
func (t *VisitTracker) RecordVisit(ctx context.Context, userID shared.UserID) (int64, error) {
	key := visitKey(userID)

	count, err := t.cache.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	if err := t.cache.client.Expire(ctx, key, TTLVisitCounter).Err(); err != nil {
		return count, err
	}
	return count, nil
}

// VisitCount returns the user's visit count without incrementing. A user
// with no counter has zero visits.
func (t *VisitTracker) VisitCount(ctx context.Context, userID shared.UserID) (int64, error) {
	count, err := t.cache.client.Get(ctx, visitKey(userID)).Int64()
	if err != nil {
		if err == ErrCacheMiss || isNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}
