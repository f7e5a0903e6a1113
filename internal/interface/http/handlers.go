package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fleetcheck/engage-hub/internal/domain/shared"
	"github.com/fleetcheck/engage-hub/pkg/logger"
	"github.com/fleetcheck/engage-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE PAYLOADS
// ══════════════════════════════════════════════════════════════════════════════

type startSessionRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type emitTriggerRequest struct {
	Name string `json:"name"`
}

type submitInputRequest struct {
	Text string `json:"text"`
}

type popupResponse struct {
	Visible bool        `json:"visible"`
	Popup   interface{} `json:"popup,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & ROOT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "fleetcheck-engage-hub",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}

	err := s.deps.Manager.StartSession(r.Context(),
		shared.SessionID(req.SessionID), shared.UserID(req.UserID))
	if err != nil {
		s.writeEngagementError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": req.SessionID,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.deps.Manager.EndSession(shared.SessionID(r.PathValue("id")))
	writeJSON(w, http.StatusOK, map[string]bool{"ended": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// TRIGGER & POPUP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleEmitTrigger(w http.ResponseWriter, r *http.Request) {
	sessionID := shared.SessionID(r.PathValue("id"))

	var req emitTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusUnprocessableEntity, "missing_trigger_name", "Trigger name is required")
		return
	}

	// Delivery is synchronous: when Emit returns, the popup slot reflects
	// the trigger, so the client can read back the result immediately.
	s.deps.Manager.Emit(shared.NewTriggerEvent(shared.TriggerName(req.Name), sessionID))

	popup, err := s.deps.Manager.Popup(sessionID)
	if err != nil {
		// A trigger for an ended session is dropped, not an error.
		if errors.Is(err, shared.ErrSessionClosed) {
			writeJSON(w, http.StatusAccepted, popupResponse{Visible: false})
			return
		}
		s.writeEngagementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, popupResponse{Visible: popup != nil, Popup: popup})
}

func (s *Server) handleGetPopup(w http.ResponseWriter, r *http.Request) {
	popup, err := s.deps.Manager.Popup(shared.SessionID(r.PathValue("id")))
	if err != nil {
		s.writeEngagementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, popupResponse{Visible: popup != nil, Popup: popup})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	sessionID := shared.SessionID(r.PathValue("id"))
	if err := s.deps.Manager.Dismiss(r.Context(), sessionID); err != nil {
		s.writeEngagementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": "dismissed"})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sessionID := shared.SessionID(r.PathValue("id"))
	if err := s.deps.Manager.Click(r.Context(), sessionID); err != nil {
		s.writeEngagementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": "clicked"})
}

func (s *Server) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	sessionID := shared.SessionID(r.PathValue("id"))

	var req submitInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}

	if err := s.deps.Manager.SubmitInput(r.Context(), sessionID, req.Text); err != nil {
		s.writeEngagementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": "submitted"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORTING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feedback == nil {
		writeJSONError(w, http.StatusNotFound, "not_available", "Feedback reporting is not configured")
		return
	}

	userID, err := shared.NewUserID(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid_user_id", "User ID must be a UUID")
		return
	}

	limit := getQueryParamInt(r, "limit", 50)
	feedback, err := s.deps.Feedback.ListFeedback(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("feedback listing failed",
			logger.UserID(userID.String()), logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "feedback_unavailable", "Could not load feedback")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feedback": feedback,
		"count":    len(feedback),
	})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Manager.BusStats(shared.SessionID(r.PathValue("id")))
	if err != nil {
		s.writeEngagementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_sessions": s.deps.Manager.ActiveSessions(),
		"uptime":          timeutil.FormatDuration(s.Uptime()),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeEngagementError maps domain errors to HTTP status codes.
func (s *Server) writeEngagementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrSessionClosed):
		writeJSONError(w, http.StatusNotFound, "unknown_session", "Session does not exist or has ended")
	case errors.Is(err, shared.ErrNoVisiblePopup):
		writeJSONError(w, http.StatusConflict, "no_visible_popup", "No popup is currently visible")
	case errors.Is(err, shared.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "A valid authenticated user is required")
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		s.logger.Error("request failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
