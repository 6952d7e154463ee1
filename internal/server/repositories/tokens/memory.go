package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/server/models"
)

type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]models.TokenRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]models.TokenRecord)}
}

func (r *MemoryRepository) Track(_ context.Context, rec models.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[rec.Token]; !ok {
		r.rows[rec.Token] = rec
	}
	return nil
}

func (r *MemoryRepository) IsTracked(_ context.Context, token string, kind models.TokenKind) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rows[token]
	return ok && rec.Kind == kind, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, token string, kind models.TokenKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.rows[token]; ok && rec.Kind == kind {
		delete(r.rows, token)
	}
	return nil
}

func (r *MemoryRepository) RevokeAllForAccount(_ context.Context, accountID string, kind models.TokenKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token, rec := range r.rows {
		if rec.AccountID == accountID && rec.Kind == kind {
			delete(r.rows, token)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Consume(_ context.Context, token string, kind models.TokenKind) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.rows[token]
	if !ok || rec.Kind != kind {
		return "", common.ErrorNotFound
	}
	delete(r.rows, token)
	return rec.AccountID, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token, rec := range r.rows {
		if rec.ExpiresAt.Before(now) {
			delete(r.rows, token)
			n++
		}
	}
	return n, nil
}
