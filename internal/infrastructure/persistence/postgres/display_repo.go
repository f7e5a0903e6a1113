package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPLAY REPOSITORY
// Persists per-user, per-rule popup display history and collected feedback.
// ══════════════════════════════════════════════════════════════════════════════

// DisplayRepository stores display records in PostgreSQL.
type DisplayRepository struct {
	conn *Connection
}

// NewDisplayRepository creates a new display repository.
func NewDisplayRepository(conn *Connection) *DisplayRepository {
	return &DisplayRepository{conn: conn}
}

// RecordShown increments the display counter for a rule atomically. The
// upsert makes the counter monotonic even when two sessions show the same
// rule concurrently.
func (r *DisplayRepository) RecordShown(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, shownAt time.Time) error {
	query := `
		INSERT INTO popup_displays (user_id, rule_id, times_shown, last_shown_at, last_outcome, updated_at)
		VALUES ($1, $2, 1, $3, $4, NOW())
		ON CONFLICT (user_id, rule_id) DO UPDATE SET
			times_shown = popup_displays.times_shown + 1,
			last_shown_at = EXCLUDED.last_shown_at,
			last_outcome = EXCLUDED.last_outcome,
			updated_at = NOW()
	`

	_, err := r.conn.Exec(ctx, query, userID.String(), ruleID.String(), shownAt, engagement.OutcomeNone.String())
	if err != nil {
		return shared.WrapError("signal", "RecordShown", shared.ErrPersistence,
			"failed to record popup display", err)
	}
	return nil
}

// RecordOutcome stores how the last display of a rule was resolved. A
// submitted outcome also stores the feedback text, in the same transaction
// so history and feedback cannot drift apart.
func (r *DisplayRepository) RecordOutcome(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, outcome engagement.Outcome, payload string) error {
	if !outcome.IsValid() {
		return shared.NewDomainError("signal", "RecordOutcome", shared.ErrInvalidInput,
			fmt.Sprintf("unknown outcome %q", outcome))
	}

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		updateQuery := `
			UPDATE popup_displays
			SET last_outcome = $3, updated_at = NOW()
			WHERE user_id = $1 AND rule_id = $2
		`
		if _, err := tx.Exec(ctx, updateQuery, userID.String(), ruleID.String(), outcome.String()); err != nil {
			return err
		}

		if outcome == engagement.OutcomeSubmitted {
			insertQuery := `
				INSERT INTO popup_feedback (id, user_id, rule_id, feedback_text, submitted_at)
				VALUES ($1, $2, $3, $4, NOW())
			`
			if _, err := tx.Exec(ctx, insertQuery, uuid.NewString(), userID.String(), ruleID.String(), payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return shared.WrapError("signal", "RecordOutcome", shared.ErrPersistence,
			"failed to record popup outcome", err)
	}
	return nil
}

// DisplayRecord returns the display history for one rule. A rule never shown
// yields the zero-value record.
func (r *DisplayRepository) DisplayRecord(ctx context.Context, userID shared.UserID, ruleID shared.RuleID) (engagement.DisplayRecord, error) {
	query := `
		SELECT rule_id, times_shown, last_shown_at, last_outcome
		FROM popup_displays
		WHERE user_id = $1 AND rule_id = $2
	`

	rec, err := scanDisplayRecord(r.conn.QueryRow(ctx, query, userID.String(), ruleID.String()))
	if err != nil {
		if IsNoRows(err) {
			return engagement.DisplayRecord{RuleID: ruleID, LastOutcome: engagement.OutcomeNone}, nil
		}
		return engagement.DisplayRecord{}, shared.WrapError("signal", "DisplayRecord", shared.ErrPersistence,
			"failed to load display record", err)
	}
	return rec, nil
}

// DisplayRecords returns display history for every rule the user has seen.
func (r *DisplayRepository) DisplayRecords(ctx context.Context, userID shared.UserID) (map[shared.RuleID]engagement.DisplayRecord, error) {
	query := `
		SELECT rule_id, times_shown, last_shown_at, last_outcome
		FROM popup_displays
		WHERE user_id = $1
	`

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, shared.WrapError("signal", "DisplayRecords", shared.ErrPersistence,
			"failed to query display records", err)
	}
	defer rows.Close()

	records := make(map[shared.RuleID]engagement.DisplayRecord)
	for rows.Next() {
		rec, err := scanDisplayRecord(rows)
		if err != nil {
			return nil, shared.WrapError("signal", "DisplayRecords", shared.ErrPersistence,
				"failed to scan display record", err)
		}
		records[rec.RuleID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("signal", "DisplayRecords", shared.ErrPersistence,
			"failed to iterate display records", err)
	}
	return records, nil
}

// ListFeedback returns feedback submissions for a user, most recent first.
func (r *DisplayRepository) ListFeedback(ctx context.Context, userID shared.UserID, limit int) ([]engagement.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, rule_id, feedback_text, submitted_at
		FROM popup_feedback
		WHERE user_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, userID.String(), limit)
	if err != nil {
		return nil, shared.WrapError("signal", "ListFeedback", shared.ErrPersistence,
			"failed to query feedback", err)
	}
	defer rows.Close()

	var out []engagement.Feedback
	for rows.Next() {
		var fb engagement.Feedback
		var userStr, ruleStr string
		if err := rows.Scan(&fb.ID, &userStr, &ruleStr, &fb.Text, &fb.SubmittedAt); err != nil {
			return nil, shared.WrapError("signal", "ListFeedback", shared.ErrPersistence,
				"failed to scan feedback row", err)
		}
		fb.UserID = shared.UserID(userStr)
		fb.RuleID = shared.RuleID(ruleStr)
		out = append(out, fb)
	}
	return out, rows.Err()
}

// scanDisplayRecord maps one popup_displays row to the domain record.
func scanDisplayRecord(row pgx.Row) (engagement.DisplayRecord, error) {
	var rec engagement.DisplayRecord
	var ruleStr, outcomeStr string
	var lastShown *time.Time

	if err := row.Scan(&ruleStr, &rec.TimesShown, &lastShown, &outcomeStr); err != nil {
		return engagement.DisplayRecord{}, err
	}

	rec.RuleID = shared.RuleID(ruleStr)
	rec.LastOutcome = engagement.Outcome(outcomeStr)
	if lastShown != nil {
		rec.LastShownAt = *lastShown
	}
	return rec, nil
}
