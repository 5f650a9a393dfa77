// File: internal/infra/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/usecase"
)

// Server exposes the chat API: enqueue on one side, poll on the other.
type Server struct {
	enqueueUC   usecase.EnqueueUseCase
	commandUC   usecase.CommandUseCase
	statusUC    usecase.StatusUseCase
	maxBodySize int64
	log         *zerolog.Logger
}

func NewServer(
	enqueueUC usecase.EnqueueUseCase,
	commandUC usecase.CommandUseCase,
	statusUC usecase.StatusUseCase,
	maxBodySize int64,
	log *zerolog.Logger,
) *Server {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &Server{
		enqueueUC:   enqueueUC,
		commandUC:   commandUC,
		statusUC:    statusUC,
		maxBodySize: maxBodySize,
		log:         log,
	}
}

// Router builds the public API router.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Post("/enqueue", s.handleEnqueue)
		r.Get("/job/{jobID}", s.handleStatus)
		r.Get("/job/{jobID}/wait", s.handleWait)
	})
	return r
}

type enqueueRequest struct {
	ConversationID   string `json:"conversation_id"`
	Text             string `json:"text"`
	ConversationType string `json:"conversation_type,omitempty"`
	SenderJID        string `json:"sender_jid,omitempty"`
	SenderName       string `json:"sender_name,omitempty"`
	HasImage         bool   `json:"has_image,omitempty"`
	ImageMimetype    string `json:"image_mimetype,omitempty"`
	DocumentName     string `json:"document_name,omitempty"`
}

type enqueueResponse struct {
	JobID    string `json:"job_id,omitempty"`
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
	PollURL  string `json:"poll_url,omitempty"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Commands are answered synchronously and never become jobs.
	if usecase.IsCommand(req.Text) {
		res, err := s.commandUC.Execute(r.Context(), req.ConversationID, req.Text)
		if err != nil {
			s.log.Error().Err(err).Msg("command execution failed")
			http.Error(w, "Command failed", http.StatusInternalServerError)
			return
		}
		if res.Handled {
			writeJSON(w, http.StatusOK, enqueueResponse{
				Status:   string(model.JobStatusComplete),
				Response: res.Reply,
			})
			return
		}
	}

	job, err := s.enqueueUC.Submit(r.Context(), req.ConversationID, model.Payload{
		Text:             req.Text,
		ConversationType: req.ConversationType,
		SenderJID:        req.SenderJID,
		SenderName:       req.SenderName,
		HasImage:         req.HasImage,
		ImageMimetype:    req.ImageMimetype,
		DocumentName:     req.DocumentName,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "conversation_id and text are required", http.StatusBadRequest)
		case errors.Is(err, domain.ErrRateLimited):
			http.Error(w, "Too many requests for this conversation", http.StatusTooManyRequests)
		case errors.Is(err, domain.ErrEnqueueFailed):
			http.Error(w, "Enqueue failed, retry later", http.StatusServiceUnavailable)
		default:
			s.log.Error().Err(err).Msg("enqueue failed")
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, enqueueResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		PollURL: "/api/v1/chat/job/" + job.ID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.statusUC.GetStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Msg("status lookup failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleWait long-polls until the job turns terminal or the server-side wait
// bound elapses, in which case the current non-terminal view is returned and
// the client polls again.
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	view, err := s.statusUC.Await(r.Context(), chi.URLParam(r, "jobID"))
	switch {
	case err == nil, errors.Is(err, domain.ErrPollTimeout):
		// A wait-bound expiry is not an error for the client; it gets the
		// last view and polls again.
		writeJSON(w, http.StatusOK, view)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away mid-wait.
	default:
		s.log.Error().Err(err).Msg("wait failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
