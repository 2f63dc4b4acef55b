package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/pharmacy-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-ai-platform/pkg/logging"
)

const (
	defaultHistoryLimit = 10
	defaultContextTTL   = time.Hour
)

// ContextStoreConfig bounds history length and cache staleness.
type ContextStoreConfig struct {
	HistoryLimit int
	TTL          time.Duration
}

// ContextStore is the cache-aside store for per-customer dialogue state.
// Reads try the cache, then Postgres, then fall back to an empty context.
type ContextStore struct {
	cache        ContextCache
	repo         ContextRepository
	historyLimit int
	ttl          time.Duration
	metrics      *metrics.ConversationMetrics
	logger       *logging.Logger
	now          func() time.Time
}

// NewContextStore wires a cache and repository. metrics may be nil.
func NewContextStore(cache ContextCache, repo ContextRepository, cfg ContextStoreConfig, m *metrics.ConversationMetrics, logger *logging.Logger) *ContextStore {
	if cache == nil {
		cache = NewMemoryContextCache()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultContextTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ContextStore{
		cache:        cache,
		repo:         repo,
		historyLimit: cfg.HistoryLimit,
		ttl:          cfg.TTL,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// GetContext never fails: storage errors are logged and an empty context returned.
func (s *ContextStore) GetContext(ctx context.Context, customerID string) *Context {
	cached, ok, err := s.cache.Get(ctx, customerID)
	if err != nil {
		s.logger.Warn("context cache read failed", "customer_id", customerID, "error", err)
	}
	if ok {
		return cached
	}

	loaded, err := s.repo.Load(ctx, customerID)
	switch {
	case errors.Is(err, ErrContextNotFound):
		return emptyContext(customerID)
	case err != nil:
		s.logger.Error("context load failed, using empty context", "customer_id", customerID, "error", err)
		return emptyContext(customerID)
	}
	if err := s.cache.Set(ctx, loaded); err != nil {
		s.logger.Warn("context cache write failed", "customer_id", customerID, "error", err)
	}
	return loaded
}

// AppendTurn records the user message and reply, keeps only the newest
// historyLimit turns, refreshes the cache and upserts the row. The returned
// error is the persistence failure, if any; the cache is updated regardless.
func (s *ContextStore) AppendTurn(ctx context.Context, customerID, userMessage, reply, intent string) (*Context, error) {
	c := s.GetContext(ctx, customerID)
	now := s.now().UTC()
	c.Turns = append(c.Turns,
		Turn{Role: ChatRoleUser, Content: userMessage, Timestamp: now},
		Turn{Role: ChatRoleAssistant, Content: reply, Timestamp: now},
	)
	c.Turns = trimTurns(c.Turns, s.historyLimit)
	c.LastIntent = intent
	c.LastUpdated = now

	if err := s.cache.Set(ctx, c); err != nil {
		s.logger.Warn("context cache write failed", "customer_id", customerID, "error", err)
	}
	if err := s.repo.Upsert(ctx, c); err != nil {
		return c, err
	}
	return c, nil
}

// LogTurn appends the analytics row for an answered turn.
func (s *ContextStore) LogTurn(ctx context.Context, customerID, userMessage, reply, intent, channel string) error {
	return s.repo.InsertLog(ctx, LogEntry{
		CustomerID: customerID,
		Message:    userMessage,
		Response:   reply,
		Intent:     intent,
		Channel:    channel,
		CreatedAt:  s.now().UTC(),
	})
}

// Invalidate drops the cached copy; the next read reloads from Postgres.
func (s *ContextStore) Invalidate(ctx context.Context, customerID string) error {
	return s.cache.Delete(ctx, customerID)
}

// Sweep evicts cache entries untouched for longer than the TTL. Persisted rows stay.
func (s *ContextStore) Sweep(ctx context.Context) (int, error) {
	removed, err := s.cache.Sweep(ctx, s.now().Add(-s.ttl))
	s.metrics.ObserveEvictions(removed)
	return removed, err
}

// trimTurns drops the oldest turns beyond limit, keeping chronological order.
func trimTurns(turns []Turn, limit int) []Turn {
	if len(turns) <= limit {
		return turns
	}
	return append([]Turn(nil), turns[len(turns)-limit:]...)
}
