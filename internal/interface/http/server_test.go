package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appengagement "github.com/fleetcheck/engage-hub/internal/application/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/engagement"
	"github.com/fleetcheck/engage-hub/internal/domain/rule"
	"github.com/fleetcheck/engage-hub/internal/domain/shared"
)

const testUserID = "6f1e8f7a-1b2c-4d3e-9f0a-1b2c3d4e5f60"

// memoryStore is a minimal in-memory SignalStore for handler tests.
type memoryStore struct {
	snapshot engagement.SignalSnapshot
	records  map[shared.RuleID]engagement.DisplayRecord
	feedback []engagement.Feedback
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		snapshot: engagement.SignalSnapshot{shared.SignalVisits: 5},
		records:  make(map[shared.RuleID]engagement.DisplayRecord),
	}
}

func (m *memoryStore) Snapshot(ctx context.Context, userID shared.UserID) (engagement.SignalSnapshot, error) {
	return m.snapshot, nil
}

func (m *memoryStore) DisplayRecord(ctx context.Context, userID shared.UserID, ruleID shared.RuleID) (engagement.DisplayRecord, error) {
	return m.records[ruleID], nil
}

func (m *memoryStore) DisplayRecords(ctx context.Context, userID shared.UserID) (map[shared.RuleID]engagement.DisplayRecord, error) {
	return m.records, nil
}

func (m *memoryStore) RecordShown(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, shownAt time.Time) error {
	rec := m.records[ruleID]
	rec.RuleID = ruleID
	rec.TimesShown++
	rec.LastShownAt = shownAt
	m.records[ruleID] = rec
	return nil
}

func (m *memoryStore) RecordOutcome(ctx context.Context, userID shared.UserID, ruleID shared.RuleID, outcome engagement.Outcome, payload string) error {
	if outcome == engagement.OutcomeSubmitted {
		m.feedback = append(m.feedback, engagement.Feedback{
			UserID: userID, RuleID: ruleID, Text: payload, SubmittedAt: time.Now(),
		})
	}
	return nil
}

func (m *memoryStore) ListFeedback(ctx context.Context, userID shared.UserID, limit int) ([]engagement.Feedback, error) {
	return m.feedback, nil
}

func newTestServer(t *testing.T) (*Server, *memoryStore) {
	t.Helper()

	catalog, err := rule.NewCatalog([]rule.Rule{
		{
			ID:         "survey",
			Priority:   100,
			Conditions: map[shared.SignalName]float64{shared.SignalVisits: 3},
			Input:      &rule.InputSpec{Required: true},
		},
	}, nil)
	require.NoError(t, err)

	store := newMemoryStore()
	manager, err := appengagement.NewManager(appengagement.ManagerConfig{
		Catalog: catalog,
		Store:   store,
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	srv := NewServer(cfg, Dependencies{
		Manager:  manager,
		Feedback: store,
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func startSession(t *testing.T, srv *Server) {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions",
		startSessionRequest{SessionID: "sess-1", UserID: testUserID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestServer_SessionAndPopupFlow(t *testing.T) {
	srv, store := newTestServer(t)

	startSession(t, srv)

	// The session-started trigger already made the popup visible.
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/sess-1/popup", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data popupResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Visible)

	// Submitting text resolves it and records feedback.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/popup/submit",
		submitInputRequest{Text: "more fuel charts please"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.feedback, 1)
	assert.Equal(t, "more fuel charts please", store.feedback[0].Text)

	// Slot is empty again.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/sess-1/popup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Visible)
}

func TestServer_EmptyRequiredSubmissionIs422(t *testing.T) {
	srv, _ := newTestServer(t)
	startSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/popup/submit",
		submitInputRequest{Text: "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Popup must still be visible after the rejected submission.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/sessions/sess-1/popup", nil)
	var resp struct {
		Data popupResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Visible)
}

func TestServer_DismissWithoutPopupIs409(t *testing.T) {
	srv, _ := newTestServer(t)
	startSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/popup/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/popup/dismiss", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_UnknownSessionIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/ghost/popup", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_TriggerForEndedSessionIsDropped(t *testing.T) {
	srv, store := newTestServer(t)
	startSession(t, srv)

	rec := doJSON(t, srv, http.MethodDelete, "/api/v1/sessions/sess-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	shownBefore := len(store.records)
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/triggers",
		emitTriggerRequest{Name: "page-viewed"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, store.records, shownBefore)
}

func TestServer_EmitTriggerReturnsSlotState(t *testing.T) {
	srv, _ := newTestServer(t)
	startSession(t, srv)

	// Resolve the session-start popup, then re-trigger it.
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/popup/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/triggers",
		emitTriggerRequest{Name: "page-viewed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data popupResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Visible)
}

func TestServer_TriggerNameRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	startSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/sess-1/triggers",
		emitTriggerRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_InvalidUserIDOnStart(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/sessions",
		startSessionRequest{SessionID: "sess-1", UserID: "not-a-uuid"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_FeedbackEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	store.feedback = []engagement.Feedback{
		{UserID: shared.UserID(testUserID), RuleID: "survey", Text: "nice"},
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/users/"+testUserID+"/feedback", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nice")

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/users/nope/feedback", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

type staticAuth struct{}

func (staticAuth) Authenticate(ctx context.Context, key string) (shared.Role, error) {
	if key == "good" {
		return shared.RoleManager, nil
	}
	return "", shared.ErrUnauthorized
}

func TestServer_APIKeyAuthentication(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.deps.Auth = staticAuth{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("X-API-Key", "good")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open for load balancers.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
