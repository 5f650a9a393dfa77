// File: internal/infra/api/ops.go
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain/ports/repository"
)

// SweepRunner triggers one recovery pass on demand.
type SweepRunner interface {
	Sweep(ctx context.Context) (int, error)
}

// OpsServer is the operator surface: metrics, queue introspection and a
// manual sweep trigger. Everything except /metrics and /ops/login sits
// behind JWT auth.
type OpsServer struct {
	streamLog repository.StreamLog
	sweeper   SweepRunner
	auth      *AuthManager
	log       *zerolog.Logger
}

func NewOpsServer(streamLog repository.StreamLog, sweeper SweepRunner, auth *AuthManager, log *zerolog.Logger) *OpsServer {
	return &OpsServer{streamLog: streamLog, sweeper: sweeper, auth: auth, log: log}
}

func (s *OpsServer) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/ops/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/ops/queue", s.handleQueueStats)
		r.Post("/ops/sweep", s.handleSweep)
	})
	return r
}

func (s *OpsServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !s.auth.VerifySecret(req.Secret) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint()
	if err != nil {
		s.log.Error().Err(err).Msg("token mint failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type conversationStats struct {
	ConversationID string `json:"conversation_id"`
	Pending        int64  `json:"pending"`
}

func (s *OpsServer) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convs, err := s.streamLog.ActiveConversations(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("queue stats failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	stats := make([]conversationStats, 0, len(convs))
	for _, conv := range convs {
		pending, err := s.streamLog.PendingCount(ctx, conv)
		if err != nil {
			s.log.Warn().Err(err).Str("conv_id", conv).Msg("pending count failed")
			continue
		}
		stats = append(stats, conversationStats{ConversationID: conv, Pending: pending})
	}
	writeJSON(w, http.StatusOK, struct {
		Active        int                 `json:"active_conversations"`
		Conversations []conversationStats `json:"conversations"`
	}{Active: len(convs), Conversations: stats})
}

func (s *OpsServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	recovered, err := s.sweeper.Sweep(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("manual sweep failed")
		http.Error(w, "Sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recovered": recovered})
}
