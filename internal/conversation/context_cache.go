package conversation

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// ContextCache is the fast tier in front of the persisted conversation context.
type ContextCache interface {
	Get(ctx context.Context, customerID string) (*Context, bool, error)
	Set(ctx context.Context, c *Context) error
	Delete(ctx context.Context, customerID string) error
	// Sweep removes entries last updated before cutoff and returns how many went.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryContextCache keeps contexts in process, ordered by LastUpdated so a
// sweep only walks the stale tail instead of the whole map.
type MemoryContextCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // newest LastUpdated first
}

// NewMemoryContextCache returns an empty cache.
func NewMemoryContextCache() *MemoryContextCache {
	return &MemoryContextCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (m *MemoryContextCache) Get(_ context.Context, customerID string) (*Context, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[customerID]
	if !ok {
		return nil, false, nil
	}
	return el.Value.(*Context).clone(), true, nil
}

func (m *MemoryContextCache) Set(_ context.Context, c *Context) error {
	if c == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[c.CustomerID]; ok {
		m.order.Remove(el)
	}
	m.entries[c.CustomerID] = m.insertOrdered(c.clone())
	return nil
}

// insertOrdered keeps the list sorted by LastUpdated, newest first. Fresh
// writes land at the front; contexts reloaded from storage may sit further back.
func (m *MemoryContextCache) insertOrdered(c *Context) *list.Element {
	for el := m.order.Front(); el != nil; el = el.Next() {
		if !c.LastUpdated.Before(el.Value.(*Context).LastUpdated) {
			return m.order.InsertBefore(c, el)
		}
	}
	return m.order.PushBack(c)
}

func (m *MemoryContextCache) Delete(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[customerID]; ok {
		m.order.Remove(el)
		delete(m.entries, customerID)
	}
	return nil
}

func (m *MemoryContextCache) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for el := m.order.Back(); el != nil; {
		c := el.Value.(*Context)
		if !c.LastUpdated.Before(cutoff) {
			break
		}
		prev := el.Prev()
		m.order.Remove(el)
		delete(m.entries, c.CustomerID)
		removed++
		el = prev
	}
	return removed, nil
}

// Len reports the number of cached contexts.
func (m *MemoryContextCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
