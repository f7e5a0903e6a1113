package rule

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// Ordered, read-only shared configuration with process-wide lifetime fixed at
// startup. Updating rules requires redeploying configuration.
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is the validated, ordered set of engagement rules.
type Catalog struct {
	rules []Rule
	index map[shared.RuleID]int
}

// NewCatalog validates and builds a catalog from an ordered rule list.
// Duplicate IDs are fatal. Rules with empty conditions are legal but
// logged, since they are trivially always eligible.
func NewCatalog(rules []Rule, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	index := make(map[shared.RuleID]int, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.ID, err)
		}
		if _, exists := index[r.ID]; exists {
			return nil, shared.WrapError("rule", "NewCatalog", shared.ErrConfig,
				fmt.Sprintf("duplicate rule id %q", r.ID), nil)
		}
		index[r.ID] = i

		if r.Vacuous() {
			logger.Warn("rule has no conditions and is always eligible",
				"rule_id", r.ID, "priority", r.Priority)
		}
	}

	owned := make([]Rule, len(rules))
	copy(owned, rules)

	return &Catalog{rules: owned, index: index}, nil
}

// Rules returns the rules in declaration order. The returned slice must not
// be mutated by callers; the catalog is shared process-wide.
func (c *Catalog) Rules() []Rule {
	return c.rules
}

// Find returns the rule with the given ID.
func (c *Catalog) Find(id shared.RuleID) (Rule, bool) {
	i, ok := c.index[id]
	if !ok {
		return Rule{}, false
	}
	return c.rules[i], true
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	return len(c.rules)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

// LoadFile reads an ordered rule list from a JSON file and builds a catalog.
func LoadFile(path string, logger *slog.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rule: failed to read catalog file: %w", err)
	}

	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, shared.WrapError("rule", "LoadFile", shared.ErrConfig,
			"catalog file is not valid JSON", err)
	}

	return NewCatalog(rules, logger)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT CATALOG
// The rules shipped with the product. Used when no catalog file is configured.
// ══════════════════════════════════════════════════════════════════════════════

func intPtr(v int) *int           { return &v }
func hoursPtr(v float64) *float64 { return &v }

// DefaultCatalog returns the built-in rule set.
func DefaultCatalog(logger *slog.Logger) (*Catalog, error) {
	rules := []Rule{
		{
			ID:       "nps_after_usage",
			Priority: 100,
			Conditions: map[shared.SignalName]float64{
				shared.SignalVisits:     3,
				shared.SignalDataInputs: 2,
			},
			MaxDisplays:   intPtr(3),
			CooldownHours: hoursPtr(24),
			Presentation: Presentation{
				Title:    "How likely are you to recommend FleetCheck?",
				Body:     "You have been keeping your fleet records up to date. Tell us how we are doing.",
				CTALabel: "Give feedback",
			},
			Input: &InputSpec{
				Required:    true,
				Placeholder: "What should we improve?",
			},
		},
		{
			ID:       "upsell_fleet_growth",
			Priority: 80,
			Conditions: map[shared.SignalName]float64{
				shared.SignalVehicles:         3,
				shared.SignalChecklists:       5,
				shared.SignalMaintenanceCount: 1,
			},
			MaxDisplays:   intPtr(2),
			CooldownHours: hoursPtr(168),
			Presentation: Presentation{
				Title:    "Your fleet is growing",
				Body:     "Unlock unlimited vehicles and advanced inspection reports with FleetCheck Pro.",
				CTALabel: "See plans",
				CTAURL:   "/settings/billing",
			},
		},
		{
			ID:       "onboarding_checklist_nudge",
			Priority: 60,
			Conditions: map[shared.SignalName]float64{
				shared.SignalVehicles: 1,
			},
			MaxDisplays:   intPtr(1),
			CooldownHours: hoursPtr(0),
			Presentation: Presentation{
				Title:    "Run your first inspection",
				Body:     "You added a vehicle. Create an inspection checklist to start tracking its condition.",
				CTALabel: "Create checklist",
				CTAURL:   "/checklists/new",
			},
		},
	}

	return NewCatalog(rules, logger)
}
