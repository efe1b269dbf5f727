package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/config"
	"github.com/linanwx/crawd/coordinator"
	"github.com/linanwx/crawd/gateway"
)

type stubTrigger struct{}

func (stubTrigger) Trigger(ctx context.Context, message, idempotencyKey, sessionKey string) (gateway.AgentReply, error) {
	return gateway.AgentReply{"LIVESTREAM_REPLIED"}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	clk := clock.New()
	coord := coordinator.New(clk, config.CoordinatorConfig{
		BatchWindowMs: 1000,
		AckTimeoutMs:  20, // fail-open fast so /crawd/talk and /mock/turn don't block the test
	}, stubTrigger{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := coord.Start(ctx); err != nil {
		t.Fatalf("coordinator start failed: %v", err)
	}
	return New(coord)
}

func TestHandleTalkRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", "/crawd/talk", strings.NewReader(`{"message":""}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleTalkOK(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", "/crawd/talk", strings.NewReader(`{"message":"hello stream"}`))
	w := httptest.NewRecorder()

	start := time.Now()
	srv.ServeHTTP(w, req)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected ack-timeout fail-open to resolve quickly, took %s", elapsed)
	}
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !resp["ok"] {
		t.Fatal("expected ok=true")
	}
}

func TestHandleChatStatus(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/chat/status", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp coordinator.ChatStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(resp.Connected) != 0 {
		t.Fatalf("expected no connected adapters, got %+v", resp.Connected)
	}
}

func TestHandleCoordinatorStatus(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/coordinator/status", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp coordinator.Status
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if resp.State != coordinator.StateSleep {
		t.Fatalf("expected sleep initially, got %s", resp.State)
	}
	if !resp.Enabled {
		t.Fatal("expected enabled=true")
	}
}

func TestHandleCoordinatorConfigMerges(t *testing.T) {
	srv := newTestServer(t)
	body := `{"vibePrompt":"a new prompt","autonomyMode":"none"}`
	req := httptest.NewRequest("POST", "/coordinator/config", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK     bool                     `json:"ok"`
		Config config.CoordinatorConfig `json:"config"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !resp.OK {
		t.Fatal("expected ok=true")
	}
	if resp.Config.VibePrompt != "a new prompt" {
		t.Fatalf("expected merged vibe prompt, got %q", resp.Config.VibePrompt)
	}
}

func TestHandleCoordinatorConfigRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", "/coordinator/config", strings.NewReader(`not json`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandlePlanReturnsNullWithoutAnActivePlan(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("GET", "/plan", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if resp["plan"] != nil {
		t.Fatalf("expected null plan, got %+v", resp["plan"])
	}
}

func TestHandleMockChatRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", "/mock/chat", strings.NewReader(`{"username":""}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleMockChatOK(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", "/mock/chat", strings.NewReader(`{"username":"alice","message":"hi"}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleMockTurnOK(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest("POST", "/mock/turn", strings.NewReader(`{"username":"bob","message":"hi bot","response":"hello bob"}`))
	w := httptest.NewRecorder()

	start := time.Now()
	srv.ServeHTTP(w, req)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected ack-timeout fail-open to resolve quickly, took %s", elapsed)
	}
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
