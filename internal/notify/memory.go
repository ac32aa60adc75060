package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Memory struct {
	mu    sync.Mutex
	items map[string]Notification
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{items: map[string]Notification{}}
}

func (m *Memory) Create(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[n.ID] = *n
	return nil
}

func (m *Memory) List(_ context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.items {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) MarkRead(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	m.items[id] = n
	return nil
}

func (m *Memory) MarkAllRead(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, n := range m.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			m.items[id] = n
			count++
		}
	}
	return count, nil
}

func (m *Memory) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *Memory) PurgeRead(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, n := range m.items {
		if n.Read && n.CreatedAt.Before(cutoff) {
			delete(m.items, id)
			count++
		}
	}
	return count, nil
}
