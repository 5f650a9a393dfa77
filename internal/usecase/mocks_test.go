// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain"
	"whatsapp-ai-bridge/internal/domain/model"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memLedger is a small in-memory JobLedger used by unit tests. It enforces
// the same monotonic status walk as the Redis implementation.
type memLedger struct {
	mu        sync.RWMutex
	store     map[string]*model.Job
	createErr error // used by tests to simulate write failures
	deleteErr error
}

func newMemLedger() *memLedger {
	return &memLedger{store: make(map[string]*model.Job)}
}

func (m *memLedger) Create(ctx context.Context, job *model.Job) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memLedger) Get(ctx context.Context, jobID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.store[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	cp.Chunks = append([]model.ResponseChunk(nil), j.Chunks...)
	return &cp, nil
}

func (m *memLedger) transition(jobID string, next model.JobStatus, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status == next {
		return nil
	}
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrStatusConflict, j.Status, next)
	}
	j.Status = next
	j.ErrorDetail = detail
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memLedger) MarkProcessing(ctx context.Context, jobID string) error {
	return m.transition(jobID, model.JobStatusProcessing, "")
}

func (m *memLedger) AppendChunk(ctx context.Context, jobID string, chunk model.ResponseChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != model.JobStatusProcessing {
		return fmt.Errorf("%w: chunks only while processing", domain.ErrStatusConflict)
	}
	j.Chunks = append(j.Chunks, chunk)
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memLedger) ClearChunks(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.Chunks = nil
	return nil
}

func (m *memLedger) Complete(ctx context.Context, jobID string) error {
	return m.transition(jobID, model.JobStatusComplete, "")
}

func (m *memLedger) Fail(ctx context.Context, jobID, detail string) error {
	return m.transition(jobID, model.JobStatusError, detail)
}

func (m *memLedger) Delete(ctx context.Context, jobID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, jobID)
	return nil
}

// memStreamLog records appended entries in order and lets tests fail the
// append to exercise enqueue rollback.
type memStreamLog struct {
	mu        sync.Mutex
	entries   map[string][]*model.StreamEntry // conversationID -> entries
	seq       int
	appendErr error
}

func newMemStreamLog() *memStreamLog {
	return &memStreamLog{entries: make(map[string][]*model.StreamEntry)}
}

func (m *memStreamLog) Append(ctx context.Context, conversationID, jobID string) (string, error) {
	if m.appendErr != nil {
		return "", m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e := &model.StreamEntry{
		ID:             fmt.Sprintf("%d-0", m.seq),
		ConversationID: conversationID,
		JobID:          jobID,
	}
	m.entries[conversationID] = append(m.entries[conversationID], e)
	return e.ID, nil
}

func (m *memStreamLog) ActiveConversations(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, es := range m.entries {
		if len(es) > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStreamLog) ClaimNext(ctx context.Context, conversationID, consumer string) (*model.StreamEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	es := m.entries[conversationID]
	if len(es) == 0 {
		return nil, domain.ErrNoEntry
	}
	cp := *es[0]
	return &cp, nil
}

func (m *memStreamLog) Ack(ctx context.Context, conversationID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	es := m.entries[conversationID]
	for i, e := range es {
		if e.ID == entryID {
			m.entries[conversationID] = append(es[:i], es[i+1:]...)
			return nil
		}
	}
	return domain.ErrNoEntry
}

func (m *memStreamLog) StaleClaims(ctx context.Context, conversationID string, minIdle time.Duration) ([]model.PendingClaim, error) {
	return nil, nil
}

func (m *memStreamLog) Reclaim(ctx context.Context, conversationID, entryID, consumer string, minIdle time.Duration) (*model.StreamEntry, error) {
	return nil, domain.ErrNoEntry
}

func (m *memStreamLog) PendingCount(ctx context.Context, conversationID string) (int64, error) {
	return 0, nil
}

type memPrefs struct {
	mu     sync.Mutex
	store  map[string]*model.Preferences
	getErr error
}

func newMemPrefs() *memPrefs {
	return &memPrefs{store: make(map[string]*model.Preferences)}
}

func (m *memPrefs) Get(ctx context.Context, conversationID string) (*model.Preferences, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.store[conversationID]; ok {
		cp := *p
		return &cp, nil
	}
	return model.DefaultPreferences(), nil
}

func (m *memPrefs) Set(ctx context.Context, conversationID string, prefs *model.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *prefs
	m.store[conversationID] = &cp
	return nil
}

type memLimiter struct {
	allow bool
	err   error
	calls int
}

func (m *memLimiter) AllowEnqueue(ctx context.Context, conversationID string, limit int, window time.Duration) (bool, error) {
	m.calls++
	return m.allow, m.err
}
