package messages

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/saraha/internal/server/models"
)

type MemoryRepository struct {
	mu   sync.RWMutex
	rows []models.Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows = append(r.rows, *m)
	return nil
}

func (r *MemoryRepository) ListConversation(_ context.Context, a, b, before string, limit int) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Message, 0)
	for _, m := range r.rows {
		pair := (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
		if pair && (before == "" || m.ID < before) {
			result = append(result, m)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) DeleteForAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.rows[:0]
	for _, m := range r.rows {
		if m.SenderID != accountID && m.ReceiverID != accountID {
			kept = append(kept, m)
		}
	}
	r.rows = kept
	return nil
}
