package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-discounts/internal/domain/checkout"
)

const defaultReceiptCapacity = 1024

var _ checkout.ReceiptStore = (*ReceiptStore)(nil)

// ReceiptStore keeps the most recent receipts in memory. When full, the oldest
// receipt is evicted.
type ReceiptStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	byID     map[string]*checkout.Receipt
}

// NewReceiptStore returns a ReceiptStore holding up to capacity receipts.
// Non-positive capacity selects a default.
func NewReceiptStore(capacity int) *ReceiptStore {
	if capacity <= 0 {
		capacity = defaultReceiptCapacity
	}
	return &ReceiptStore{
		capacity: capacity,
		byID:     make(map[string]*checkout.Receipt, capacity),
	}
}

// Save stores r, evicting the oldest receipt when at capacity.
func (s *ReceiptStore) Save(_ context.Context, r *checkout.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; !ok {
		if len(s.order) == s.capacity {
			delete(s.byID, s.order[0])
			s.order = s.order[1:]
		}
		s.order = append(s.order, r.ID)
	}
	s.byID[r.ID] = r
	return nil
}

// Get returns the receipt with the given ID.
func (s *ReceiptStore) Get(_ context.Context, id string) (*checkout.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, checkout.ErrReceiptNotFound
	}
	return r, nil
}

// Len returns the number of stored receipts.
func (s *ReceiptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
