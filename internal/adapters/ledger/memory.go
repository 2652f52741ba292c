package ledger

import (
	"context"
	"sync"

	"github.com/allmeidain/adcombo-postback-notifier/internal/domain"
)

// MemoryRepository holds the ledger in process memory. Used by tests and when
// no durable backend is wanted.
type MemoryRepository struct {
	mu      sync.Mutex
	records []domain.HoldRecord
	LoadErr error
	SaveErr error
	saves   int
}

func NewMemoryRepository(records ...domain.HoldRecord) *MemoryRepository {
	return &MemoryRepository{records: append([]domain.HoldRecord(nil), records...)}
}

func (r *MemoryRepository) Load(_ context.Context) ([]domain.HoldRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	return append([]domain.HoldRecord{}, r.records...), nil
}

func (r *MemoryRepository) Save(_ context.Context, records []domain.HoldRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.records = append([]domain.HoldRecord(nil), records...)
	r.saves++
	return nil
}

func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
