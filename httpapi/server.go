// Package httpapi implements the control-plane HTTP surface (§6): a
// small set of JSON endpoints for manual overrides, status polling,
// and the mock fixtures used to exercise the system without a live
// chat source or agent gateway.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/linanwx/crawd/coordinator"
	"github.com/linanwx/crawd/logger"
	"github.com/linanwx/crawd/speech"
)

// Server hosts the /crawd, /chat, /coordinator, /plan, and /mock
// endpoints over a *coordinator.Coordinator.
type Server struct {
	coord *coordinator.Coordinator
	mux   *http.ServeMux
}

// New builds a Server and registers every route.
func New(coord *coordinator.Coordinator) *Server {
	s := &Server{coord: coord, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /crawd/talk", s.handleTalk)
	s.mux.HandleFunc("GET /chat/status", s.handleChatStatus)
	s.mux.HandleFunc("GET /coordinator/status", s.handleCoordinatorStatus)
	s.mux.HandleFunc("POST /coordinator/config", s.handleCoordinatorConfig)
	s.mux.HandleFunc("GET /plan", s.handlePlan)
	s.mux.HandleFunc("POST /mock/chat", s.handleMockChat)
	s.mux.HandleFunc("POST /mock/turn", s.handleMockTurn)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("httpapi: failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

type talkRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleTalk(w http.ResponseWriter, r *http.Request) {
	var req talkRequest
	if err := decodeBody(r, &req); err != nil || req.Message == "" {
		writeError(w, "invalidRequest")
		return
	}
	s.coord.Gate.Talk(req.Message)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleChatStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.ChatStatus())
}

func (s *Server) handleCoordinatorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleCoordinatorConfig(w http.ResponseWriter, r *http.Request) {
	var partial configPartial
	if err := decodeBody(r, &partial); err != nil {
		writeError(w, "invalidRequest")
		return
	}
	cfg := s.coord.UpdateConfig(partial.toConfig())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "config": cfg})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	plan := s.coord.Engine.GetPlan()
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

type mockChatRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

func (s *Server) handleMockChat(w http.ResponseWriter, r *http.Request) {
	var req mockChatRequest
	if err := decodeBody(r, &req); err != nil || req.Username == "" || req.Message == "" {
		writeError(w, "invalidRequest")
		return
	}
	s.coord.InjectMockChat(req.Username, req.Message)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type mockTurnRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Response string `json:"response"`
}

func (s *Server) handleMockTurn(w http.ResponseWriter, r *http.Request) {
	var req mockTurnRequest
	if err := decodeBody(r, &req); err != nil || req.Response == "" {
		writeError(w, "invalidRequest")
		return
	}
	s.coord.Gate.Reply(req.Response, speech.Turn{Username: req.Username, Message: req.Message})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
