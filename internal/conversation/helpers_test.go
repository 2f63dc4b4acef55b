package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

type stubLLMClient struct {
	response  LLMResponse
	err       error
	lastReq   LLMRequest
	requests  []LLMRequest
	responses []LLMResponse
	errs      []error
	calls     int
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	s.requests = append(s.requests, req)

	if s.calls < len(s.errs) && s.errs[s.calls] != nil {
		err := s.errs[s.calls]
		s.calls++
		return LLMResponse{}, err
	}
	if len(s.responses) > 0 {
		if s.calls >= len(s.responses) {
			s.calls++
			return LLMResponse{}, errors.New("no scripted response")
		}
		resp := s.responses[s.calls]
		s.calls++
		return resp, nil
	}
	s.calls++
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return s.response, nil
}

// memoryContextRepo is an in-memory ContextRepository.
type memoryContextRepo struct {
	mu        sync.Mutex
	rows      map[string]*Context
	logs      []LogEntry
	upserts   int
	loads     int
	loadErr   error
	upsertErr error
	logErr    error
}

func newMemoryContextRepo() *memoryContextRepo {
	return &memoryContextRepo{rows: map[string]*Context{}}
}

func (m *memoryContextRepo) Load(ctx context.Context, customerID string) (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c, ok := m.rows[customerID]
	if !ok {
		return nil, ErrContextNotFound
	}
	return c.clone(), nil
}

func (m *memoryContextRepo) Upsert(ctx context.Context, c *Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.rows[c.CustomerID] = c.clone()
	return nil
}

func (m *memoryContextRepo) InsertLog(ctx context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return m.logErr
	}
	m.logs = append(m.logs, entry)
	return nil
}

type fixedClock struct{ t time.Time }

func (f *fixedClock) now() time.Time { return f.t }

func (f *fixedClock) advance(d time.Duration) { f.t = f.t.Add(d) }
