// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v4"

	"delta-backend/internal/domain"
	"delta-backend/internal/domain/model"
	"delta-backend/internal/domain/ports/adapter"
	"delta-backend/internal/domain/ports/repository"
)

// ---- provider fake ----

// fakeProvider replays scripted replies in order and records every request.
type fakeProvider struct {
	mu       sync.Mutex
	replies  []*adapter.Reply
	err      error
	requests []adapter.GenerateRequest
	streams  [][]string
}

func (f *fakeProvider) Generate(ctx context.Context, req adapter.GenerateRequest) (*adapter.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return &adapter.Reply{Text: "ok"}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req adapter.GenerateRequest) (<-chan adapter.StreamChunk, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var frags []string
	if len(f.streams) > 0 {
		frags = f.streams[0]
		f.streams = f.streams[1:]
	}
	f.mu.Unlock()

	out := make(chan adapter.StreamChunk)
	go func() {
		defer close(out)
		for _, frag := range frags {
			out <- adapter.StreamChunk{Text: frag}
		}
	}()
	return out, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeProvider) lastRequest() adapter.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// ---- repositories ----

type memConvRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Conversation
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{store: make(map[string]*model.Conversation)}
}

func (m *memConvRepo) Save(ctx context.Context, tx repository.Tx, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conv
	m.store[conv.ID] = &cp
	return nil
}

func (m *memConvRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConvRepo) FindAllByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Conversation
	for _, c := range m.store {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memConvRepo) UpdateSummary(ctx context.Context, tx repository.Tx, id, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Summary = summary
	return nil
}

type memMsgRepo struct {
	mu      sync.RWMutex
	store   map[string][]*model.Message // by conversation ID
	saveErr error
}

func newMemMsgRepo() *memMsgRepo {
	return &memMsgRepo{store: make(map[string][]*model.Message)}
}

func (m *memMsgRepo) Save(ctx context.Context, tx repository.Tx, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *msg
	m.store[msg.ConversationID] = append(m.store[msg.ConversationID], &cp)
	return nil
}

func (m *memMsgRepo) MaxIndex(ctx context.Context, tx repository.Tx, conversationID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := 0
	for _, msg := range m.store[conversationID] {
		if msg.Index > max {
			max = msg.Index
		}
	}
	return max, nil
}

func (m *memMsgRepo) ListRecent(ctx context.Context, tx repository.Tx, conversationID string, n int) ([]*model.Message, error) {
	all, _ := m.ListAll(ctx, tx, conversationID)
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (m *memMsgRepo) ListAll(ctx context.Context, tx repository.Tx, conversationID string) ([]*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Message, 0, len(m.store[conversationID]))
	for _, msg := range m.store[conversationID] {
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

type memJobRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.Job)}
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) FindByStatus(ctx context.Context, tx repository.Tx, statuses ...model.JobStatus) ([]*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Job
	for _, j := range m.store {
		for _, s := range statuses {
			if j.Status == s {
				cp := *j
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (m *memJobRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return domain.ErrJobNotCancelable
	}
	j.Status = status
	return nil
}

func (m *memJobRepo) AppendLog(ctx context.Context, tx repository.Tx, id, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Logs += line + "\n"
	return nil
}

func (m *memJobRepo) SetResult(ctx context.Context, tx repository.Tx, id string, result map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Result = result
	return nil
}

func (m *memJobRepo) MarkStalled(ctx context.Context, note string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.store {
		if j.Status == model.JobStatusPending || j.Status == model.JobStatusRunning {
			j.Status = model.JobStatusStalled
			j.Logs += note + "\n"
			n++
		}
	}
	return n, nil
}

// ---- transaction manager ----

// memTxMgr passes a marker through so repositories see a non-nil tx; the
// in-memory repos have no real transactionality.
type memTxMgr struct{}

func (m *memTxMgr) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// ---- summary cache ----

type memSummaryCache struct {
	mu    sync.Mutex
	store map[string]string
	gets  int
	sets  int
}

func newMemSummaryCache() *memSummaryCache {
	return &memSummaryCache{store: make(map[string]string)}
}

func (m *memSummaryCache) Get(ctx context.Context, conversationID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.store[conversationID]
	return v, ok, nil
}

func (m *memSummaryCache) Set(ctx context.Context, conversationID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.store[conversationID] = summary
	return nil
}

// ---- scheduler / runner ----

// syncScheduler runs every task inline so tests observe completed jobs.
type syncScheduler struct{}

func (s *syncScheduler) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

type fakeRunner struct {
	result map[string]string
	err    error
	// lines to write through the job log before finishing
	logLines []string
}

func (r *fakeRunner) Run(ctx context.Context, req RunnerRequest) (map[string]string, error) {
	for _, line := range r.logLines {
		if err := req.Log(line); err != nil {
			return nil, err
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return map[string]string{
		"model":  req.Model,
		"domain": req.Domain,
	}, nil
}
