// Package rule contains the declarative engagement rule catalog for
// FleetCheck Engage Hub. A rule describes when a promotional or feedback
// popup becomes eligible for display; editing the catalog is the intended
// way to change engagement behavior without touching the evaluator.
package rule

import (
	"time"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
	"github.com/fleetcheck/engage-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULE
// ══════════════════════════════════════════════════════════════════════════════

// Rule is an immutable, catalog-defined popup rule.
//
// A rule is satisfiable only when every threshold in Conditions is met by the
// current signal snapshot; unspecified thresholds are vacuously satisfied.
// MaxDisplays caps lifetime renders per user, CooldownHours enforces a
// minimum gap between renders. The presentation payload is opaque to the
// engine and handed verbatim to the presentation boundary.
type Rule struct {
	// ID uniquely identifies the rule within the catalog.
	ID shared.RuleID `json:"id"`

	// Priority orders eligible rules; higher wins. Ties break by catalog
	// declaration order.
	Priority int `json:"priority"`

	// Conditions maps signal names to minimum thresholds. Empty conditions
	// make the rule trivially eligible (legal, but flagged at load time).
	Conditions map[shared.SignalName]float64 `json:"conditions,omitempty"`

	// MaxDisplays caps how many times the rule may ever be shown to one
	// user. Nil means unlimited.
	MaxDisplays *int `json:"maxDisplays,omitempty"`

	// CooldownHours is the minimum elapsed time after the last display
	// before the rule may fire again. Nil means no cooldown.
	CooldownHours *float64 `json:"cooldownHours,omitempty"`

	// Presentation is the opaque payload rendered by the presentation layer.
	Presentation Presentation `json:"presentation"`

	// Input, when set, declares that the popup collects free-text feedback.
	Input *InputSpec `json:"input,omitempty"`
}

// Presentation holds the display payload. The engine never inspects it.
type Presentation struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	CTALabel string `json:"ctaLabel,omitempty"`
	CTAURL   string `json:"ctaUrl,omitempty"`
}

// InputSpec declares a free-text input on the popup.
type InputSpec struct {
	// Required rejects empty submissions with a validation error.
	Required bool `json:"required"`

	// Placeholder is shown in the empty input field.
	Placeholder string `json:"placeholder,omitempty"`
}

// AcceptsInput reports whether the rule declares a text input.
func (r Rule) AcceptsInput() bool {
	return r.Input != nil
}

// RequiresInput reports whether a non-empty submission is mandatory.
func (r Rule) RequiresInput() bool {
	return r.Input != nil && r.Input.Required
}

// HasCooldown reports whether a cooldown applies.
func (r Rule) HasCooldown() bool {
	return r.CooldownHours != nil
}

// Cooldown returns the cooldown as a duration (zero when none is set).
func (r Rule) Cooldown() time.Duration {
	if r.CooldownHours == nil {
		return 0
	}
	return timeutil.HoursToDuration(*r.CooldownHours)
}

// HasDisplayCap reports whether a lifetime display cap applies.
func (r Rule) HasDisplayCap() bool {
	return r.MaxDisplays != nil
}

// Vacuous reports whether the rule has no conditions and is therefore
// always eligible (subject to cap and cooldown).
func (r Rule) Vacuous() bool {
	return len(r.Conditions) == 0
}

// Validate checks structural validity of a single rule definition.
func (r Rule) Validate() error {
	if !r.ID.IsValid() {
		return shared.WrapError("rule", "Validate", shared.ErrInvalidID, "rule id cannot be empty", nil)
	}
	if r.MaxDisplays != nil && *r.MaxDisplays <= 0 {
		return shared.WrapError("rule", "Validate", shared.ErrValidation, "maxDisplays must be positive", nil)
	}
	if r.CooldownHours != nil && *r.CooldownHours < 0 {
		return shared.WrapError("rule", "Validate", shared.ErrNegativeValue, "cooldownHours cannot be negative", nil)
	}
	for name, threshold := range r.Conditions {
		if name == "" {
			return shared.WrapError("rule", "Validate", shared.ErrEmptyValue, "condition signal name cannot be empty", nil)
		}
		if threshold < 0 {
			return shared.WrapError("rule", "Validate", shared.ErrNegativeValue, "condition threshold cannot be negative", nil)
		}
	}
	return nil
}
