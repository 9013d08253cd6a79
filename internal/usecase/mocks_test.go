// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
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

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// mockTxManager runs the callback directly; unit tests need the call shape,
// not real transaction semantics.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// ---- Mock JobRepository ----

type MockJobRepo struct {
	mu    sync.Mutex
	store map[string]*model.Job

	SaveFunc            func(ctx context.Context, tx repository.Tx, job *model.Job) error
	ClaimFunc           func(ctx context.Context, id string) (*model.Job, error)
	FinalizeFunc        func(ctx context.Context, id string, status model.JobStatus, result, lastError string) (bool, error)
	ClaimUnnotifiedFunc func(ctx context.Context, limit int) ([]*model.Job, error)
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{store: make(map[string]*model.Job)}
}

func (m *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.store[job.ID]; ok && prev.Status != model.JobStatusPending {
		// The upsert's update clause only applies while the row is pending.
		return nil
	}
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *MockJobRepo) RecordDispatch(ctx context.Context, id, queueMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.store[id]; ok {
		j.QueueMessageID = queueMessageID
	}
	return nil
}

func (m *MockJobRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok || j.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MockJobRepo) Claim(ctx context.Context, id string) (*model.Job, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, id)
	}
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

func (m *MockJobRepo) Finalize(ctx context.Context, id string, status model.JobStatus, result, lastError string) (bool, error) {
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(ctx, id, status, result, lastError)
	}
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

func (m *MockJobRepo) MarkSeen(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok || j.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	j.Seen = true
	return nil
}

func (m *MockJobRepo) ClearSeen(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.store[id]; ok && j.Status == model.JobStatusProcessing {
		j.Seen = false
	}
	return nil
}

func (m *MockJobRepo) ClaimUnnotified(ctx context.Context, limit int) ([]*model.Job, error) {
	if m.ClaimUnnotifiedFunc != nil {
		return m.ClaimUnnotifiedFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	now := time.Now()
	for _, j := range m.store {
		if len(out) >= limit {
			break
		}
		if j.Status.Terminal() && !j.Seen && j.NotifiedAt == nil {
			t := now
			j.NotifiedAt = &t
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockJobRepo) FailStuck(ctx context.Context, maxAge time.Duration, cause string) ([]*model.Job, error) {
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

// Get returns a copy of the stored job for assertions.
func (m *MockJobRepo) Get(id string) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// Put seeds a job directly.
func (m *MockJobRepo) Put(j *model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *j
	m.store[j.ID] = &cp
}

// ---- Mock ConversationRepository ----

type MockConversationRepo struct {
	mu    sync.Mutex
	store map[string]*model.Conversation
}

var _ repository.ConversationRepository = (*MockConversationRepo)(nil)

func NewMockConversationRepo() *MockConversationRepo {
	return &MockConversationRepo{store: make(map[string]*model.Conversation)}
}

func (m *MockConversationRepo) Save(ctx context.Context, tx repository.Tx, c *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Messages = append([]model.Message(nil), c.Messages...)
	m.store[c.ID] = &cp
	return nil
}

func (m *MockConversationRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok || c.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *c
	cp.Messages = append([]model.Message(nil), c.Messages...)
	return &cp, nil
}

func (m *MockConversationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
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

func (m *MockConversationRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.Message) error {
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

func (m *MockConversationRepo) FillMessage(ctx context.Context, tx repository.Tx, id, content string, status model.MessageStatus) error {
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

// ---- Mock ToolRepository ----

type MockToolRepo struct {
	mu    sync.Mutex
	store map[string]*model.DailyTool
}

var _ repository.ToolRepository = (*MockToolRepo)(nil)

func NewMockToolRepo() *MockToolRepo {
	return &MockToolRepo{store: make(map[string]*model.DailyTool)}
}

func (m *MockToolRepo) Save(ctx context.Context, tx repository.Tx, t *model.DailyTool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *MockToolRepo) FindOwned(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.DailyTool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockToolRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.DailyTool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockToolRepo) Fill(ctx context.Context, tx repository.Tx, id, content string, status model.ToolStatus) error {
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

// ---- Mock PushSubscriptionRepository ----

type MockPushSubRepo struct {
	mu    sync.Mutex
	store map[string]*model.PushSubscription

	ListByOwnerFunc func(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.PushSubscription, error)
	DeleteFunc      func(ctx context.Context, tx repository.Tx, id string) (bool, error)

	Deleted []string
}

var _ repository.PushSubscriptionRepository = (*MockPushSubRepo)(nil)

func NewMockPushSubRepo() *MockPushSubRepo {
	return &MockPushSubRepo{store: make(map[string]*model.PushSubscription)}
}

func (m *MockPushSubRepo) Save(ctx context.Context, tx repository.Tx, s *model.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, prev := range m.store {
		if prev.OwnerID == s.OwnerID && prev.Endpoint == s.Endpoint {
			s.ID = prev.ID
			return nil
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockPushSubRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.PushSubscription, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, tx, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PushSubscription
	for _, s := range m.store {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPushSubRepo) Delete(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.store[id]
	delete(m.store, id)
	m.Deleted = append(m.Deleted, id)
	return ok, nil
}

// ---- Mock JobQueue ----

type MockQueue struct {
	mu         sync.Mutex
	Dispatched []string

	DispatchFunc func(ctx context.Context, jobID string) (string, error)
}

var _ adapter.JobQueue = (*MockQueue)(nil)

func (m *MockQueue) Dispatch(ctx context.Context, jobID string) (string, error) {
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dispatched = append(m.Dispatched, jobID)
	return "task-" + jobID, nil
}

// ---- Mock PushDispatcher ----

type MockPush struct {
	mu   sync.Mutex
	Sent []adapter.PushPayload

	SendFunc func(ctx context.Context, sub *model.PushSubscription, payload adapter.PushPayload) error
	Key      string
}

var _ adapter.PushDispatcher = (*MockPush)(nil)

func (m *MockPush) Send(ctx context.Context, sub *model.PushSubscription, payload adapter.PushPayload) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, sub, payload); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, payload)
	return nil
}

func (m *MockPush) PublicKey() string { return m.Key }
