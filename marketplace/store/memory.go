// Package store provides RequestStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cashswap/exchange-engine/marketplace"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	requests map[marketplace.RequestID]marketplace.Request
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[marketplace.RequestID]marketplace.Request),
		now:      time.Now,
	}
}

// Insert adds a new request. The ID must not already exist.
func (m *Memory) Insert(_ context.Context, req marketplace.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[req.ID]; exists {
		return marketplace.ErrConflict
	}
	m.requests[req.ID] = req
	return nil
}

func (m *Memory) Get(_ context.Context, id marketplace.RequestID) (*marketplace.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, marketplace.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (m *Memory) ListByType(_ context.Context, reqType marketplace.RequestType, statuses ...marketplace.RequestStatus) ([]marketplace.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []marketplace.Request
	for _, req := range m.requests {
		if req.Type != reqType {
			continue
		}
		if len(statuses) > 0 && !statusIn(req.Status, statuses) {
			continue
		}
		result = append(result, *cloneRequest(req))
	}
	sortByCreatedAt(result)
	return result, nil
}

func (m *Memory) ListByUser(_ context.Context, userID marketplace.UserID) ([]marketplace.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []marketplace.Request
	for _, req := range m.requests {
		if req.UserID == userID {
			result = append(result, *cloneRequest(req))
		}
	}
	sortByCreatedAt(result)
	return result, nil
}

// CompareAndUpdateStatus performs the conditional update under the
// store lock, making the check-and-set atomic.
func (m *Memory) CompareAndUpdateStatus(_ context.Context, id marketplace.RequestID, expected, next marketplace.RequestStatus, matchedWith *marketplace.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return marketplace.ErrNotFound
	}
	if req.Status != expected {
		return marketplace.ErrConflict
	}

	req.Status = next
	if matchedWith != nil {
		ref := *matchedWith
		req.MatchedWith = &ref
	} else {
		req.MatchedWith = nil
	}
	req.UpdatedAt = m.now()
	m.requests[id] = req
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneRequest(req marketplace.Request) *marketplace.Request {
	out := req
	if req.MatchedWith != nil {
		ref := *req.MatchedWith
		out.MatchedWith = &ref
	}
	return &out
}

func statusIn(s marketplace.RequestStatus, statuses []marketplace.RequestStatus) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func sortByCreatedAt(reqs []marketplace.Request) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}
