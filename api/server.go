// Package api exposes the conversation over plain HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	convrag "github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/memory"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/metrics"
)

const (
	readTimeout = 30 * time.Second
	// writeTimeout covers a full turn: routing, retrieval, rerank and generation.
	writeTimeout = 2 * time.Minute
	maxBodyBytes = 1 << 20
)

type ChatRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id,omitempty"`
	ShowDetails bool   `json:"show_details,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server routes HTTP requests to a Conversation.
type Server struct {
	conv       convrag.Conversation
	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time
}

func NewServer(conv convrag.Conversation, addr string) *Server {
	s := &Server{conv: conv, router: mux.NewRouter(), startTime: time.Now()}

	s.router.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/memory/summary", s.handleSummary).Methods(http.MethodGet)
	s.router.HandleFunc("/memory/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/memory/clear", s.handleClear).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving until Shutdown. It returns http.ErrServerClosed after
// a graceful shutdown.
func (s *Server) Start() error {
	logger.Infof("api: listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Infof("api: shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.Warnf("api: decode chat request failed, err: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	result := s.conv.SubmitTurnWithDetails(r.Context(), sessionID(req.SessionID), req.Message, req.ShowDetails)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r.URL.Query().Get("session_id"))
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"summary":    s.conv.GetSummary(id),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r.URL.Query().Get("session_id"))
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"stats":      s.conv.GetStats(id),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r.URL.Query().Get("session_id"))
	s.conv.Clear(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"cleared":    true,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        convrag.Version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

func sessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return memory.DefaultSessionID
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("api: encode response failed, err: %v", err)
	}
}
