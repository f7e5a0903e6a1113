// Package engagement contains the domain model for popup engagement:
// behavioral signal snapshots, per-user display history, and the pure
// evaluator that selects which rule, if any, should fire.
package engagement

import (
	"time"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNAL SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// SignalSnapshot is a point-in-time, read-only map of signal values for one
// user. Signals absent from the snapshot are treated as unknown, which makes
// any condition on them unsatisfied.
type SignalSnapshot map[shared.SignalName]float64

// Get returns the value of a signal and whether it is present.
func (s SignalSnapshot) Get(name shared.SignalName) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Satisfies reports whether the snapshot meets the given minimum threshold.
// An absent signal never satisfies a condition.
func (s SignalSnapshot) Satisfies(name shared.SignalName, threshold float64) bool {
	v, ok := s[name]
	if !ok {
		return false
	}
	return v >= threshold
}

// Clone returns an independent copy of the snapshot.
func (s SignalSnapshot) Clone() SignalSnapshot {
	out := make(SignalSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// Outcome records how a displayed popup was resolved.
type Outcome string

const (
	// OutcomeNone means the popup was rendered but not yet resolved.
	OutcomeNone Outcome = "none"

	// OutcomeDismissed means the user closed the popup without acting.
	OutcomeDismissed Outcome = "dismissed"

	// OutcomeClicked means the user followed the call to action.
	OutcomeClicked Outcome = "clicked"

	// OutcomeSubmitted means the user submitted free-text input.
	OutcomeSubmitted Outcome = "submitted"
)

// IsValid checks if the outcome is one of the known values.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeNone, OutcomeDismissed, OutcomeClicked, OutcomeSubmitted:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (o Outcome) String() string {
	return string(o)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPLAY RECORD
// ══════════════════════════════════════════════════════════════════════════════

// DisplayRecord is the per-user, per-rule display history used to enforce
// display caps and cooldowns. The zero value means "never shown", which is
// the correct state for a rule with no history.
type DisplayRecord struct {
	RuleID shared.RuleID `json:"rule_id"`

	// TimesShown counts every render, regardless of how the popup was
	// later resolved. It only ever increases.
	TimesShown int `json:"times_shown"`

	// LastShownAt is the time of the most recent render. Zero when the
	// rule has never been shown.
	LastShownAt time.Time `json:"last_shown_at"`

	// LastOutcome is how the most recent display was resolved.
	LastOutcome Outcome `json:"last_outcome"`
}

// NeverShown reports whether the rule has no display history.
func (d DisplayRecord) NeverShown() bool {
	return d.TimesShown == 0
}

// CapReached reports whether the lifetime display cap has been hit.
// A nil cap means unlimited displays.
func (d DisplayRecord) CapReached(maxDisplays *int) bool {
	if maxDisplays == nil {
		return false
	}
	return d.TimesShown >= *maxDisplays
}

// InCooldown reports whether the rule is still inside its cooldown window
// at the given instant. A record that was never shown is never cooling down.
func (d DisplayRecord) InCooldown(cooldown time.Duration, now time.Time) bool {
	if d.NeverShown() || cooldown <= 0 {
		return false
	}
	return now.Sub(d.LastShownAt) < cooldown
}

// ══════════════════════════════════════════════════════════════════════════════
// FEEDBACK
// ══════════════════════════════════════════════════════════════════════════════

// Feedback is a stored free-text submission collected through a popup input.
type Feedback struct {
	ID          string        `json:"id"`
	UserID      shared.UserID `json:"user_id"`
	RuleID      shared.RuleID `json:"rule_id"`
	Text        string        `json:"text"`
	SubmittedAt time.Time     `json:"submitted_at"`
}
