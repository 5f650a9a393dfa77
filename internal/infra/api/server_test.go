// File: internal/infra/api/server_test.go
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/infra/api"
	"whatsapp-ai-bridge/internal/usecase"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// ---------------- usecase stubs ----------------

type stubEnqueue struct {
	job     *model.Job
	err     error
	lastCID string
}

func (s *stubEnqueue) Submit(ctx context.Context, conversationID string, payload model.Payload) (*model.Job, error) {
	s.lastCID = conversationID
	if s.err != nil {
		return nil, s.err
	}
	if s.job != nil {
		return s.job, nil
	}
	return model.NewJob(conversationID, payload), nil
}

type stubCommand struct {
	res usecase.CommandResult
	err error
}

func (s *stubCommand) Execute(ctx context.Context, conversationID, text string) (usecase.CommandResult, error) {
	return s.res, s.err
}

type stubStatus struct {
	view *usecase.StatusView
	err  error
}

func (s *stubStatus) GetStatus(ctx context.Context, jobID string) (*usecase.StatusView, error) {
	return s.view, s.err
}

func (s *stubStatus) Await(ctx context.Context, jobID string) (*usecase.StatusView, error) {
	return s.view, s.err
}

func newTestServer(enq *stubEnqueue, cmd *stubCommand, st *stubStatus) http.Handler {
	if enq == nil {
		enq = &stubEnqueue{}
	}
	if cmd == nil {
		cmd = &stubCommand{}
	}
	if st == nil {
		st = &stubStatus{}
	}
	return api.NewServer(enq, cmd, st, 1<<20, newLogger()).Router()
}

// ---------------- tests ----------------

func TestEnqueue_Accepted(t *testing.T) {
	t.Parallel()
	enq := &stubEnqueue{}
	r := newTestServer(enq, nil, nil)

	body := `{"conversation_id":"conv-1","text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/enqueue", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("want 202, got %d, body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		PollURL string `json:"poll_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" || resp.Status != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.PollURL != "/api/v1/chat/job/"+resp.JobID {
		t.Fatalf("poll url %q", resp.PollURL)
	}
	if enq.lastCID != "conv-1" {
		t.Fatalf("conversation id %q", enq.lastCID)
	}
}

func TestEnqueue_ErrorMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid argument", domain.ErrInvalidArgument, http.StatusBadRequest},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"enqueue failed", domain.ErrEnqueueFailed, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestServer(&stubEnqueue{err: tc.err}, nil, nil)
			body := `{"conversation_id":"conv-1","text":"hello"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/enqueue", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.code {
				t.Fatalf("want %d, got %d", tc.code, rec.Code)
			}
		})
	}
}

func TestEnqueue_MalformedBody(t *testing.T) {
	t.Parallel()
	r := newTestServer(nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/enqueue", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestEnqueue_CommandFastPath(t *testing.T) {
	t.Parallel()
	enq := &stubEnqueue{}
	cmd := &stubCommand{res: usecase.CommandResult{Handled: true, Reply: "settings listed"}}
	r := newTestServer(enq, cmd, nil)

	body := `{"conversation_id":"conv-1","text":"/settings"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/enqueue", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var resp struct {
		JobID    string `json:"job_id"`
		Status   string `json:"status"`
		Response string `json:"response"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID != "" {
		t.Fatal("fast path must not create a job")
	}
	if resp.Status != "complete" || resp.Response != "settings listed" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if enq.lastCID != "" {
		t.Fatal("enqueue must not run for a handled command")
	}
}

func TestStatus_FoundAndNotFound(t *testing.T) {
	t.Parallel()
	view := &usecase.StatusView{JobID: "j1", Status: model.JobStatusProcessing, Response: "partial text"}
	r := newTestServer(nil, nil, &stubStatus{view: view})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/job/j1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var got usecase.StatusView
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != model.JobStatusProcessing || got.Response != "partial text" {
		t.Fatalf("unexpected view %+v", got)
	}

	r = newTestServer(nil, nil, &stubStatus{err: domain.ErrNotFound})
	req = httptest.NewRequest(http.MethodGet, "/api/v1/chat/job/unknown", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func TestWait_TimeoutStillReturnsView(t *testing.T) {
	t.Parallel()
	view := &usecase.StatusView{JobID: "j1", Status: model.JobStatusPending}
	r := newTestServer(nil, nil, &stubStatus{view: view, err: domain.ErrPollTimeout})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/job/j1/wait", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var got usecase.StatusView
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != model.JobStatusPending {
		t.Fatalf("unexpected view %+v", got)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	r := newTestServer(nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}
