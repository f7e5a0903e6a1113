// Package engagement contains the application-layer popup engine: the
// per-session orchestrator that connects trigger events, the signal store,
// and the rule evaluator, and the manager that owns engine lifecycles.
package engagement

import (
	"context"
	"log/slog"
	"strings"
	"time"

	domain "github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/rule"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE STATE
// ══════════════════════════════════════════════════════════════════════════════

// State is the display phase of a session's popup slot.
type State string

const (
	// StateIdle means no popup is showing and triggers are evaluated.
	StateIdle State = "idle"

	// StateArmed means a rule has been selected but not yet exposed.
	// The phase is transient; it becomes visible within the same operation.
	StateArmed State = "armed"

	// StateVisible means a popup is rendered and awaiting user action.
	StateVisible State = "visible"
)

// VisiblePopup is what the presentation boundary renders.
type VisiblePopup struct {
	RuleID       shared.RuleID     `json:"rule_id"`
	Presentation rule.Presentation `json:"presentation"`
	Input        *rule.InputSpec   `json:"input,omitempty"`
	ShownAt      time.Time         `json:"shown_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine is the strict single-slot popup scheduler for one session.
//
// At most one popup is visible at a time. While a popup is visible all
// trigger deliveries are ignored; while an evaluation is fetching signals
// any further trigger is dropped, not queued, so at most one evaluation is
// ever in flight. Display-history writes are logged and swallowed on
// failure: a broken store must never block the user interface.
//
// Engine methods are invoked from the session's trigger bus and from HTTP
// resolution handlers. The trigger bus delivers synchronously, so the
// engine serializes all state access through its own mutex-free design:
// the Manager guarantees one goroutine drives a session at a time.
type Engine struct {
	sessionID shared.SessionID
	userID    shared.UserID
	catalog   *rule.Catalog
	store     domain.SignalStore
	logger    *slog.Logger
	now       func() time.Time

	evalTimeout time.Duration

	state      State
	current    *rule.Rule
	shownAt    time.Time
	evaluating bool
}

// EngineConfig contains dependencies for a session engine.
type EngineConfig struct {
	SessionID shared.SessionID
	UserID    shared.UserID
	Catalog   *rule.Catalog
	Store     domain.SignalStore
	Logger    *slog.Logger

	// EvalTimeout bounds the signal-store reads of one evaluation.
	EvalTimeout time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewEngine creates an idle engine for one authenticated session.
func NewEngine(config EngineConfig) (*Engine, error) {
	if !config.UserID.IsValid() {
		return nil, shared.ErrNoActiveUser
	}
	if config.Catalog == nil || config.Store == nil {
		return nil, shared.NewDomainError("engagement", "NewEngine", shared.ErrConfig,
			"catalog and store are required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}
	if config.EvalTimeout <= 0 {
		config.EvalTimeout = 5 * time.Second
	}

	return &Engine{
		sessionID:   config.SessionID,
		userID:      config.UserID,
		catalog:     config.Catalog,
		store:       config.Store,
		logger:      config.Logger,
		now:         config.Now,
		evalTimeout: config.EvalTimeout,
		state:       StateIdle,
	}, nil
}

// State returns the current display phase.
func (e *Engine) State() State {
	return e.state
}

// Popup returns the currently visible popup, or nil when the slot is idle.
func (e *Engine) Popup() *VisiblePopup {
	if e.state != StateVisible || e.current == nil {
		return nil
	}
	return &VisiblePopup{
		RuleID:       e.current.ID,
		Presentation: e.current.Presentation,
		Input:        e.current.Input,
		ShownAt:      e.shownAt,
	}
}

// HandleTrigger processes one trigger delivery. While a popup is visible
// the event is ignored; while an evaluation is in flight it is dropped.
// Any failure during evaluation is treated as "no eligible rule".
func (e *Engine) HandleTrigger(event shared.TriggerEvent) error {
	if e.state == StateVisible {
		e.logger.Debug("trigger ignored, popup visible",
			"session_id", e.sessionID, "trigger", event.Name)
		return nil
	}
	if e.evaluating {
		e.logger.Debug("trigger dropped, evaluation in flight",
			"session_id", e.sessionID, "trigger", event.Name)
		return nil
	}

	e.evaluating = true
	defer func() { e.evaluating = false }()

	ctx, cancel := context.WithTimeout(context.Background(), e.evalTimeout)
	defer cancel()

	winner := e.evaluate(ctx)
	if winner == nil {
		e.state = StateIdle
		return nil
	}

	now := e.now()
	e.state = StateArmed
	e.current = winner
	e.shownAt = now
	e.state = StateVisible

	// Losing one display record is accepted; blocking the popup is not.
	if err := e.store.RecordShown(ctx, e.userID, winner.ID, now); err != nil {
		e.logger.Error("display record write failed",
			"session_id", e.sessionID, "rule_id", winner.ID, "error", err)
	}

	e.logger.Info("popup shown",
		"session_id", e.sessionID,
		"user_id", e.userID,
		"rule_id", winner.ID,
		"trigger", event.Name)

	return nil
}

// evaluate fetches signals and history and runs the pure evaluator. A panic
// or read failure yields nil, never an error: the popup is a secondary
// feature and must fail safe.
func (e *Engine) evaluate(ctx context.Context) (winner *rule.Rule) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluation panicked",
				"session_id", e.sessionID, "panic", r)
			winner = nil
		}
	}()

	snapshot, err := e.store.Snapshot(ctx, e.userID)
	if err != nil {
		e.logger.Warn("signal snapshot unavailable, skipping evaluation",
			"session_id", e.sessionID, "user_id", e.userID, "error", err)
		return nil
	}

	records, err := e.store.DisplayRecords(ctx, e.userID)
	if err != nil {
		e.logger.Warn("display history unavailable, skipping evaluation",
			"session_id", e.sessionID, "user_id", e.userID, "error", err)
		return nil
	}

	return domain.Evaluate(e.catalog, snapshot, records, e.now())
}

// Dismiss closes the visible popup without action.
func (e *Engine) Dismiss(ctx context.Context) error {
	return e.resolve(ctx, domain.OutcomeDismissed, "")
}

// Click closes the visible popup after the call to action was followed.
// Clicking does not suppress the rule; only the display cap and cooldown do.
func (e *Engine) Click(ctx context.Context) error {
	return e.resolve(ctx, domain.OutcomeClicked, "")
}

// SubmitInput closes the visible popup with a free-text submission. An
// empty submission on a rule requiring input is rejected and the popup
// stays visible.
func (e *Engine) SubmitInput(ctx context.Context, text string) error {
	if e.state != StateVisible || e.current == nil {
		return shared.ErrNoVisiblePopup
	}
	if !e.current.AcceptsInput() {
		return shared.ErrInputNotDeclared
	}
	if e.current.RequiresInput() && strings.TrimSpace(text) == "" {
		return shared.ErrEmptySubmission
	}
	return e.resolve(ctx, domain.OutcomeSubmitted, text)
}

func (e *Engine) resolve(ctx context.Context, outcome domain.Outcome, payload string) error {
	if e.state != StateVisible || e.current == nil {
		return shared.ErrNoVisiblePopup
	}

	resolved := e.current

	// Resolution is instantaneous; the slot collapses back to idle before
	// the outcome write, so a failed write cannot wedge the state machine.
	e.state = StateIdle
	e.current = nil
	e.shownAt = time.Time{}

	if err := e.store.RecordOutcome(ctx, e.userID, resolved.ID, outcome, payload); err != nil {
		e.logger.Error("outcome write failed",
			"session_id", e.sessionID,
			"rule_id", resolved.ID,
			"outcome", outcome,
			"error", err)
	}

	e.logger.Info("popup resolved",
		"session_id", e.sessionID,
		"user_id", e.userID,
		"rule_id", resolved.ID,
		"outcome", outcome)

	return nil
}
