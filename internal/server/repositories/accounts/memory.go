package accounts

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/server/models"
)

// MemoryRepository keeps accounts in a map. The lock argument is ignored:
// callers serialise read-modify-write through dbx.LockingTransactor.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]models.Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]models.Account)}
}

func (r *MemoryRepository) Create(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[a.ID]; ok || r.clashes(a) {
		return common.NewError(common.ErrorConflict, "User already exists")
	}
	r.rows[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string, _ bool) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) FindByIdentity(_ context.Context, email, phone string, _ bool) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.Account
	for _, a := range r.rows {
		if (email != "" && a.Email == email) || (phone != "" && a.Phone == phone) {
			if found == nil || a.CreatedAt.Before(found.CreatedAt) {
				a := a
				found = &a
			}
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	return found, nil
}

func (r *MemoryRepository) Update(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[a.ID]; !ok {
		return common.ErrorNotFound
	}
	if r.clashes(a) {
		return common.NewError(common.ErrorConflict, "User already exists")
	}
	r.rows[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}

// clashes reports whether another account already holds a's email or phone.
func (r *MemoryRepository) clashes(a *models.Account) bool {
	for id, other := range r.rows {
		if id == a.ID {
			continue
		}
		if (a.Email != "" && other.Email == a.Email) || (a.Phone != "" && other.Phone == a.Phone) {
			return true
		}
	}
	return false
}
