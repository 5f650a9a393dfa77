// File: internal/infra/worker/mocks_test.go
package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain/model"
	"whatsapp-ai-bridge/internal/domain/ports/adapter"
	redisinfra "whatsapp-ai-bridge/internal/infra/redis"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// testRedis wires the real Redis repositories against an embedded server so
// worker tests exercise the same claim semantics as production.
type testRedis struct {
	client *redisinfra.Client
	ledger *redisinfra.JobLedger
	stream *redisinfra.StreamLog
	locker *redisinfra.Locker
}

func newTestRedis(t *testing.T, claimTimeout time.Duration) *testRedis {
	t.Helper()
	srv := miniredis.RunT(t)
	client, err := redisinfra.NewClientFromAddr(context.Background(), srv.Addr())
	if err != nil {
		t.Fatalf("connect to embedded redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return &testRedis{
		client: client,
		ledger: redisinfra.NewJobLedger(client, time.Hour),
		stream: redisinfra.NewStreamLog(client, "chat-workers", claimTimeout),
		locker: redisinfra.NewLocker(client),
	}
}

// enqueue seeds a pending job the way the enqueue usecase would.
func (tr *testRedis) enqueue(t *testing.T, conversationID, text string) *model.Job {
	t.Helper()
	ctx := context.Background()
	job := model.NewJob(conversationID, model.Payload{Text: text})
	if err := tr.ledger.Create(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := tr.stream.Append(ctx, conversationID, job.ID); err != nil {
		t.Fatalf("append entry: %v", err)
	}
	return job
}

// memHistory is an in-memory HistoryRepository.
type memHistory struct {
	mu   sync.Mutex
	msgs map[string][]model.HistoryMessage
}

func newMemHistory() *memHistory {
	return &memHistory{msgs: make(map[string][]model.HistoryMessage)}
}

func (m *memHistory) SaveMessage(ctx context.Context, msg *model.HistoryMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.CreatedAt = time.Now()
	m.msgs[msg.ConversationID] = append(m.msgs[msg.ConversationID], *msg)
	return nil
}

func (m *memHistory) Recent(ctx context.Context, conversationID string, limit int) ([]model.HistoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.msgs[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]model.HistoryMessage(nil), all...), nil
}

func (m *memHistory) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

func (m *memHistory) byRole(conversationID, role string) []model.HistoryMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.HistoryMessage
	for _, msg := range m.msgs[conversationID] {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

// scriptAI maps the last user message of a prompt to a scripted reply or
// error, and records prompts in the order they arrive.
type scriptAI struct {
	mu      sync.Mutex
	reply   map[string]string // last user message -> reply, split into deltas
	fail    map[string]error  // last user message -> forced error
	calls   int
	prompts []string
}

func (s *scriptAI) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (s *scriptAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model}, nil
}
func (s *scriptAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}

func (s *scriptAI) GenerateStream(ctx context.Context, model string, messages []adapter.Message, onDelta func(string) error) (adapter.Usage, error) {
	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	s.mu.Lock()
	s.calls++
	s.prompts = append(s.prompts, last)
	callErr := s.fail[last]
	reply := s.reply[last]
	s.mu.Unlock()

	if callErr != nil {
		return adapter.Usage{}, callErr
	}
	n := 0
	for _, d := range splitDeltas(reply) {
		if err := onDelta(d); err != nil {
			return adapter.Usage{}, err
		}
		n++
	}
	return adapter.Usage{PromptTokens: 1, CompletionTokens: n, TotalTokens: 1 + n}, nil
}

func splitDeltas(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// recNotifier records deliveries.
type recNotifier struct {
	mu    sync.Mutex
	sent  []string
	convs []string
}

func (r *recNotifier) Notify(ctx context.Context, conversationID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs = append(r.convs, conversationID)
	r.sent = append(r.sent, text)
	return nil
}
