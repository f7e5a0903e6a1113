// Package service wires infrastructure components into the interfaces the
// domain and application layers consume.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
	"github.com/fleetcheck/engage-hub/internal/infrastructure/persistence/redis"
	"github.com/fleetcheck/engage-hub/pkg/circuitbreaker"
	"github.com/fleetcheck/engage-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE SIGNAL STORE
// Merges database-aggregated business signals with the Redis visit counter,
// caches snapshots, and degrades to a stale copy when the database is down.
// ══════════════════════════════════════════════════════════════════════════════

// Aggregator computes business-data signals, typically from PostgreSQL.
type Aggregator interface {
	Snapshot(ctx context.Context, userID shared.UserID) (engagement.SignalSnapshot, error)
}

// DisplayStore persists display history and feedback.
type DisplayStore interface {
	DisplayRecord(ctx context.Context, userID shared.UserID, ruleID shared.RuleID) (engagement.DisplayRecord, error)
	DisplayRecords(ctx context.Context, userID shared.UserID) (map[shared.RuleID]engagement.DisplayRecord, error)
	RecordShown(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, shownAt time.Time) error
	RecordOutcome(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, outcome engagement.Outcome, payload string) error
	ListFeedback(ctx context.Context, userID shared.UserID, limit int) ([]engagement.Feedback, error)
}

// CompositeSignalStore implements engagement.SignalStore on top of the
// database aggregator, the display repository, and the Redis caches.
type CompositeSignalStore struct {
	aggregator Aggregator
	displays   DisplayStore
	visits     *redis.VisitTracker
	snapshots  *redis.SnapshotCache
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	logger     *slog.Logger
}

// CompositeSignalStoreConfig contains the store's dependencies. Visits and
// Snapshots are optional; without them the store reads the database on
// every evaluation and the visits signal is absent.
type CompositeSignalStoreConfig struct {
	Aggregator Aggregator
	Displays   DisplayStore
	Visits     *redis.VisitTracker
	Snapshots  *redis.SnapshotCache
	Logger     *slog.Logger
}

// NewCompositeSignalStore creates the composite store.
func NewCompositeSignalStore(config CompositeSignalStoreConfig) (*CompositeSignalStore, error) {
	if config.Aggregator == nil || config.Displays == nil {
		return nil, shared.NewDomainError("signal", "NewCompositeSignalStore", shared.ErrConfig,
			"aggregator and display store are required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	store := &CompositeSignalStore{
		aggregator: config.Aggregator,
		displays:   config.Displays,
		visits:     config.Visits,
		snapshots:  config.Snapshots,
		retrier:    retry.SnapshotRetrier(),
		logger:     config.Logger,
	}
	store.breaker = circuitbreaker.AggregatorBreaker(func(name string, from, to circuitbreaker.State) {
		config.Logger.Warn("circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	})
	return store, nil
}

// Snapshot returns the current signals for a user. The hot cache absorbs
// trigger bursts; on a miss the database is read behind the circuit
// breaker, and when that fails the stale copy is served instead.
func (s *CompositeSignalStore) Snapshot(ctx context.Context, userID shared.UserID) (engagement.SignalSnapshot, error) {
	if s.snapshots != nil {
		if cached, err := s.snapshots.Get(ctx, userID); err == nil {
			return cached, nil
		}
	}

	snapshot, err := s.aggregate(ctx, userID)
	if err != nil {
		if stale := s.staleSnapshot(ctx, userID); stale != nil {
			s.logger.Warn("serving stale signal snapshot",
				"user_id", userID, "error", err)
			return stale, nil
		}
		return nil, shared.WrapError("signal", "Snapshot", shared.ErrPersistence,
			"signal snapshot unavailable", err)
	}

	if s.visits != nil {
		count, verr := s.visits.VisitCount(ctx, userID)
		if verr != nil {
			// The visits signal goes absent rather than wrong; rules
			// conditioned on it simply stay ineligible this round.
			s.logger.Warn("visit count unavailable", "user_id", userID, "error", verr)
		} else {
			snapshot[shared.SignalVisits] = float64(count)
		}
	}

	if s.snapshots != nil {
		if cerr := s.snapshots.Put(ctx, userID, snapshot); cerr != nil {
			s.logger.Warn("snapshot cache write failed", "user_id", userID, "error", cerr)
		}
	}

	return snapshot, nil
}

// aggregate reads the database behind the breaker with bounded retries.
// Only reads are retried; display writes never are, because a retried
// RecordShown would double-count a display.
func (s *CompositeSignalStore) aggregate(ctx context.Context, userID shared.UserID) (engagement.SignalSnapshot, error) {
	var snapshot engagement.SignalSnapshot
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			snapshot, err = s.aggregator.Snapshot(ctx, userID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *CompositeSignalStore) staleSnapshot(ctx context.Context, userID shared.UserID) engagement.SignalSnapshot {
	if s.snapshots == nil {
		return nil
	}
	stale, err := s.snapshots.GetStale(ctx, userID)
	if err != nil {
		return nil
	}
	return stale
}

// DisplayRecord returns one rule's display history.
func (s *CompositeSignalStore) DisplayRecord(ctx context.Context, userID shared.UserID, ruleID shared.RuleID) (engagement.DisplayRecord, error) {
	return s.displays.DisplayRecord(ctx, userID, ruleID)
}

// DisplayRecords returns the full display history for a user.
func (s *CompositeSignalStore) DisplayRecords(ctx context.Context, userID shared.UserID) (map[shared.RuleID]engagement.DisplayRecord, error) {
	return s.displays.DisplayRecords(ctx, userID)
}

// RecordShown persists one display and invalidates the hot snapshot so the
// next evaluation sees fresh data-input counts.
func (s *CompositeSignalStore) RecordShown(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, shownAt time.Time) error {
	if err := s.displays.RecordShown(ctx, userID, ruleID, shownAt); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RecordOutcome persists a display resolution.
func (s *CompositeSignalStore) RecordOutcome(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, outcome engagement.Outcome, payload string) error {
	return s.displays.RecordOutcome(ctx, userID, ruleID, outcome, payload)
}

// ListFeedback returns stored submissions for a user.
func (s *CompositeSignalStore) ListFeedback(ctx context.Context, userID shared.UserID, limit int) ([]engagement.Feedback, error) {
	return s.displays.ListFeedback(ctx, userID, limit)
}

// BreakerState exposes the aggregation breaker state for health reporting.
func (s *CompositeSignalStore) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}

func (s *CompositeSignalStore) invalidate(ctx context.Context, userID shared.UserID) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Invalidate(ctx, userID); err != nil {
		s.logger.Debug("snapshot invalidation failed", "user_id", userID, "error", err)
	}
}
