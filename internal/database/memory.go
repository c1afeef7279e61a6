package database

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/TemirB/ecommerce-orders/internal/domain"
)

// Memory is an in-process order store. It keeps clones so callers never share
// state with the stored entities.
type Memory struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
	seq    map[uuid.UUID]uint64
	next   uint64
}

func NewMemory() *Memory {
	return &Memory{
		orders: make(map[uuid.UUID]*domain.Order),
		seq:    make(map[uuid.UUID]uint64),
	}
}

func (m *Memory) Add(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.orders[o.ID()] = o.Clone()
	m.seq[o.ID()] = m.next
	return nil
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

// GetByUserID returns newest first; equal timestamps fall back to the latest insert.
func (m *Memory) GetByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, o := range m.orders {
		if o.UserID() == userID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].CreatedAt(), out[j].CreatedAt()
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return m.seq[out[i].ID()] > m.seq[out[j].ID()]
	})
	return out, nil
}

func (m *Memory) Update(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID()]; !ok {
		return domain.ErrNotFound
	}
	m.orders[o.ID()] = o.Clone()
	return nil
}

func (m *Memory) RecentUserIDs(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]uint64)
	for id, o := range m.orders {
		if s := m.seq[id]; s > latest[o.UserID()] {
			latest[o.UserID()] = s
		}
	}
	ids := make([]string, 0, len(latest))
	for u := range latest {
		ids = append(ids, u)
	}
	sort.Slice(ids, func(i, j int) bool { return latest[ids[i]] > latest[ids[j]] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
