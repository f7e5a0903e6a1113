package engagement

import (
	"time"

	"github.com/fleetcheck/engage-hub/internal/domain/rule"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// Pure selection logic. No clocks, no I/O: everything the decision needs is
// passed in, so the same inputs always produce the same winner.
// ══════════════════════════════════════════════════════════════════════════════

// Evaluate selects the single rule that should fire for a user, or nil when
// no rule is eligible.
//
// A rule is eligible when every condition threshold is met by the snapshot
// (a signal absent from the snapshot fails its condition), the lifetime
// display cap has not been reached, and the cooldown window since the last
// display has elapsed. Among eligible rules the highest priority wins;
// ties go to the rule declared earlier in the catalog.
func Evaluate(catalog *rule.Catalog, snapshot SignalSnapshot, records map[shared.RuleID]DisplayRecord, now time.Time) *rule.Rule {
	rules := catalog.Rules()

	var winner *rule.Rule
	for i, r := range rules {
		if !conditionsMet(r, snapshot) {
			continue
		}

		rec := records[r.ID]
		if rec.CapReached(r.MaxDisplays) {
			continue
		}
		if rec.InCooldown(r.Cooldown(), now) {
			continue
		}

		// Declaration order breaks priority ties, so strictly-greater
		// comparison keeps the earlier rule.
		if winner == nil || r.Priority > winner.Priority {
			winner = &rules[i]
		}
	}

	return winner
}

// EligibleRules returns every rule that passes the eligibility filters, in
// declaration order. Used by the diagnostics endpoint to explain why a
// particular rule did or did not fire.
func EligibleRules(catalog *rule.Catalog, snapshot SignalSnapshot, records map[shared.RuleID]DisplayRecord, now time.Time) []rule.Rule {
	var eligible []rule.Rule
	for _, r := range catalog.Rules() {
		if !conditionsMet(r, snapshot) {
			continue
		}
		rec := records[r.ID]
		if rec.CapReached(r.MaxDisplays) {
			continue
		}
		if rec.InCooldown(r.Cooldown(), now) {
			continue
		}
		eligible = append(eligible, r)
	}
	return eligible
}

func conditionsMet(r rule.Rule, snapshot SignalSnapshot) bool {
	for name, threshold := range r.Conditions {
		if !snapshot.Satisfies(name, threshold) {
			return false
		}
	}
	return true
}
