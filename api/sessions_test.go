package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bmad-method/orchestrator/config"
	"github.com/bmad-method/orchestrator/domain"
	"github.com/bmad-method/orchestrator/facilitator"
	"github.com/bmad-method/orchestrator/policy"
	"github.com/bmad-method/orchestrator/service"
	"github.com/bmad-method/orchestrator/tests/helpers"
)

func newTestHandler(t *testing.T) *Handler {
	return newTestHandlerWithBackend(t, "http://127.0.0.1:1")
}

func newTestHandlerWithBackend(t *testing.T, facilitatorURL string) *Handler {
	cfg := &config.Config{
		StreamTimeout:     time.Second,
		SyncInterval:      time.Hour,
		MaxStreamFailures: 2,
	}
	st := helpers.NewTestSQLiteStore(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	fc := facilitator.NewClient(facilitatorURL, "", time.Second)
	svc := service.New(st, fc, nil, cfg, engine)
	return NewHandler(svc, nil)
}

func createTestSession(t *testing.T, h *Handler, pathway string) string {
	t.Helper()
	e := echo.New()
	body := `{"pathway":"` + pathway + `","user_id":"u1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var sess domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	return sess.SessionID
}

func TestCreateSessionValidation(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(`{"pathway":"bogus"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)
	sessionID := createTestSession(t, h, "new-idea")

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.GetSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var sess domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if sess.CurrentPhase != "ideation" {
		t.Fatalf("current phase = %s, want ideation", sess.CurrentPhase)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess_missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("sess_missing")

	if err := h.GetSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdvanceAndTimeStatus(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)
	sessionID := createTestSession(t, h, "new-idea")

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/advance",
		bytes.NewBufferString(`{"user_input":"ideas captured"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.Advance(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var sess domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if sess.CurrentPhase != "market-exploration" {
		t.Fatalf("current phase = %s, want market-exploration", sess.CurrentPhase)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionID+"/time", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.GetTimeStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPauseConflict(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)
	sessionID := createTestSession(t, h, "strategic-optimization")

	pause := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/pause", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("session_id")
		c.SetParamValues(sessionID)
		if err := h.Pause(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		return rec
	}

	if rec := pause(); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Advancing a paused session conflicts.
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/advance",
		bytes.NewBufferString(`{"user_input":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)
	if err := h.Advance(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestBackupEndpoints(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)
	sessionID := createTestSession(t, h, "business-model")

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/backups",
		bytes.NewBufferString(`{"tag":"checkpoint"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.CreateBackup(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionID+"/backups", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.ListBackups(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Snapshots []struct {
			Tag string `json:"tag"`
		} `json:"snapshots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Snapshots) != 1 || resp.Snapshots[0].Tag != "checkpoint" {
		t.Fatalf("unexpected snapshots: %+v", resp.Snapshots)
	}
}

func TestListPathways(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/pathways", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListPathways(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Pathways []struct {
			Pathway      string `json:"pathway"`
			TotalMinutes int    `json:"total_minutes"`
		} `json:"pathways"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Pathways) != 3 {
		t.Fatalf("expected 3 pathways, got %d", len(resp.Pathways))
	}
}

func TestCalculatePriorityRanking(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	body := `{"items":[
		{"name":"cheap win","effort":2,"impact":8},
		{"name":"slog","effort":9,"impact":3}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/priority", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CalculatePriority(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Results []struct {
			Name     string  `json:"name"`
			Score    float64 `json:"score"`
			Category string  `json:"category"`
			Quadrant string  `json:"quadrant"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Name != "cheap win" {
		t.Fatalf("expected cheap win ranked first, got %s", resp.Results[0].Name)
	}
	if resp.Results[0].Category != "Critical" || resp.Results[0].Quadrant != "Quick Wins" {
		t.Fatalf("unexpected scoring: %+v", resp.Results[0])
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Health(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
