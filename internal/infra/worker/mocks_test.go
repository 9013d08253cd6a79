package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/domain/model"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/adapter"
	"github.com/ameeramer/personal-coacher/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// failingTxManager rejects every transaction.
type failingTxManager struct{}

func (failingTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return errors.New("tx commit failed")
}

// memJobRepo mirrors the conditional-update semantics of the real store.
type memJobRepo struct {
	mu    sync.Mutex
	store map[string]*model.Job
}

var _ repository.JobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.Job)}
}

func (m *memJobRepo) put(j *model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.store[j.ID] = &cp
}

func (m *memJobRepo) get(id string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.put(job)
	return nil
}

func (m *memJobRepo) RecordDispatch(ctx context.Context, id, queueMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.store[id]; ok {
		j.QueueMessageID = queueMessageID
	}
	return nil
}

func (m *memJobRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok || j.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) Claim(ctx context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != model.JobStatusPending {
		return nil, domain.ErrJobNotClaimable
	}
	j.Status = model.JobStatusProcessing
	j.UpdatedAt = time.Now()
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) Finalize(ctx context.Context, id string, status model.JobStatus, result, lastError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if j.Status != model.JobStatusProcessing {
		return false, domain.ErrJobNotClaimable
	}
	j.Status = status
	j.Result = result
	j.LastError = lastError
	j.UpdatedAt = time.Now()
	return !j.Seen, nil
}

func (m *memJobRepo) MarkSeen(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok || j.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	j.Seen = true
	return nil
}

func (m *memJobRepo) ClearSeen(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.store[id]; ok && j.Status == model.JobStatusProcessing {
		j.Seen = false
	}
	return nil
}

func (m *memJobRepo) ClaimUnnotified(ctx context.Context, limit int) ([]*model.Job, error) {
	return nil, nil
}

func (m *memJobRepo) FailStuck(ctx context.Context, maxAge time.Duration, cause string) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cut := time.Now().Add(-maxAge)
	var out []*model.Job
	for _, j := range m.store {
		if j.Status == model.JobStatusProcessing && j.UpdatedAt.Before(cut) {
			j.Status = model.JobStatusFailed
			j.LastError = cause
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memConvRepo holds conversations keyed by id.
type memConvRepo struct {
	mu    sync.Mutex
	store map[string]*model.Conversation
}

var _ repository.ConversationRepository = (*memConvRepo)(nil)

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{store: make(map[string]*model.Conversation)}
}

func (m *memConvRepo) Save(ctx context.Context, tx repository.Tx, c *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Messages = append([]model.Message(nil), c.Messages...)
	m.store[c.ID] = &cp
	return nil
}

func (m *memConvRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok || c.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConvRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	cp.Messages = append([]model.Message(nil), c.Messages...)
	return &cp, nil
}

func (m *memConvRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[msg.ConversationID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range c.Messages {
		if c.Messages[i].ID == msg.ID {
			c.Messages[i] = *msg
			return nil
		}
	}
	c.Messages = append(c.Messages, *msg)
	return nil
}

func (m *memConvRepo) FillMessage(ctx context.Context, tx repository.Tx, id, content string, status model.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.store {
		for i := range c.Messages {
			if c.Messages[i].ID == id && c.Messages[i].Status == model.MessagePending {
				c.Messages[i].Content = content
				c.Messages[i].Status = status
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

// memToolRepo holds daily tools keyed by id.
type memToolRepo struct {
	mu    sync.Mutex
	store map[string]*model.DailyTool
}

var _ repository.ToolRepository = (*memToolRepo)(nil)

func newMemToolRepo() *memToolRepo {
	return &memToolRepo{store: make(map[string]*model.DailyTool)}
}

func (m *memToolRepo) Save(ctx context.Context, tx repository.Tx, t *model.DailyTool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *memToolRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.DailyTool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memToolRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.DailyTool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memToolRepo) Fill(ctx context.Context, tx repository.Tx, id, content string, status model.ToolStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok || t.Status != model.ToolPending {
		return domain.ErrNotFound
	}
	t.Content = content
	t.Status = status
	return nil
}

// mockAI counts invocations and returns a canned or configured reply.
type mockAI struct {
	mu    sync.Mutex
	Calls int

	ChatFunc func(ctx context.Context, model string, msgs []adapter.Message) (string, error)
}

var _ adapter.AIServiceAdapter = (*mockAI)(nil)

func (m *mockAI) ListModels(ctx context.Context) ([]string, error) { return []string{"mock"}, nil }

func (m *mockAI) CountTokens(ctx context.Context, model string, msgs []adapter.Message) (int, error) {
	return 0, nil
}

func (m *mockAI) Chat(ctx context.Context, model string, msgs []adapter.Message) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, model, msgs)
	}
	return "canned reply", nil
}

// stubPresence reports a fixed client state.
type stubPresence struct {
	alive bool
	err   error
}

func (s stubPresence) Alive(ctx context.Context, ownerID string) (bool, error) {
	return s.alive, s.err
}
