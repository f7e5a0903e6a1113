package redis

import (
	"context"
	"errors"

	"github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotCache stores signal snapshots under two keys: a short-lived hot
// copy that absorbs trigger bursts within a session, and a long-lived stale
// copy used as a fallback when the aggregation database is down. A stale
// decision still beats no popup decision at all.
type SnapshotCache struct {
	cache *Cache
}

// NewSnapshotCache creates a snapshot cache on top of a cache client.
func NewSnapshotCache(cache *Cache) *SnapshotCache {
	return &SnapshotCache{cache: cache}
}

func snapshotKey(userID shared.UserID) string {
	return PrefixSnapshot + userID.String()
}

func staleKey(userID shared.UserID) string {
	return PrefixStale + userID.String()
}

// Put stores a snapshot under both the hot and the stale key.
func (s *SnapshotCache) Put(ctx context.Context, userID shared.UserID, snapshot engagement.SignalSnapshot) error {
	if err := s.cache.Set(ctx, snapshotKey(userID), snapshot, TTLSnapshotCache); err != nil {
		return err
	}
	return s.cache.Set(ctx, staleKey(userID), snapshot, TTLStaleSnapshot)
}

// Get returns the hot snapshot copy, or ErrCacheMiss.
func (s *SnapshotCache) Get(ctx context.Context, userID shared.UserID) (engagement.SignalSnapshot, error) {
	var snapshot engagement.SignalSnapshot
	if err := s.cache.Get(ctx, snapshotKey(userID), &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// GetStale returns the fallback snapshot copy, or ErrCacheMiss.
func (s *SnapshotCache) GetStale(ctx context.Context, userID shared.UserID) (engagement.SignalSnapshot, error) {
	var snapshot engagement.SignalSnapshot
	if err := s.cache.Get(ctx, staleKey(userID), &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Invalidate drops the hot copy so the next evaluation hits the database.
// The stale copy is kept on purpose.
func (s *SnapshotCache) Invalidate(ctx context.Context, userID shared.UserID) error {
	err := s.cache.Delete(ctx, snapshotKey(userID))
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		return err
	}
	return nil
}
