package engagement

import (
	"context"
	"time"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// SignalStore defines the interface for reading behavioral signals and
// maintaining per-user display history. It is implemented by the
// infrastructure layer; the domain layer has no knowledge of the actual
// storage mechanism.
//
// Read failures surface as errors so the caller can decide whether to fall
// back or skip evaluation. Write failures on the recording methods are also
// returned as errors, but callers in the engagement engine log and swallow
// them: losing one display record must never block the user interface.
type SignalStore interface {
	// Snapshot returns the current signal values for a user. Signals the
	// store cannot compute are simply absent from the snapshot.
	Snapshot(ctx context.Context, userID shared.UserID) (SignalSnapshot, error)

	// DisplayRecord returns the display history for one rule. A rule that
	// has never been shown yields the zero-value record, not an error.
	DisplayRecord(ctx context.Context, userID shared.UserID, ruleID shared.RuleID) (DisplayRecord, error)

	// DisplayRecords returns the display history for all rules the user has
	// ever been shown, keyed by rule ID.
	DisplayRecords(ctx context.Context, userID shared.UserID) (map[shared.RuleID]DisplayRecord, error)

	// RecordShown increments the display count for a rule and stamps the
	// display time. The count is monotonic; it is never decremented.
	RecordShown(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, shownAt time.Time) error

	// RecordOutcome stores how the most recent display of a rule was
	// resolved. For OutcomeSubmitted the payload carries the submitted text
	// and is persisted as feedback; for other outcomes it is ignored.
	RecordOutcome(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, outcome Outcome, payload string) error
}

// FeedbackReader lists stored free-text submissions. Split from SignalStore
// because only the reporting endpoints need it.
type FeedbackReader interface {
	// ListFeedback returns submissions for a user, most recent first.
	ListFeedback(ctx context.Context, userID shared.UserID, limit int) ([]Feedback, error)
}

// VisitTracker counts session starts per user. Implemented on Redis for low
// latency; the visit count feeds the "visits" signal.
type VisitTracker interface {
	// RecordVisit increments and returns the user's visit count.
	RecordVisit(ctx context.Context, userID shared.UserID) (int64, error)

	// VisitCount returns the user's visit count without incrementing.
	VisitCount(ctx context.Context, userID shared.UserID) (int64, error)
}
