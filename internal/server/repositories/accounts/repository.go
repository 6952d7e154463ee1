// Package accounts declares the account directory: accounts addressed by id
// or by their email/phone identity.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/saraha/internal/server/models"
)

// Repository persists accounts. Lookups return common.ErrorNotFound when no
// row matches; writes that would duplicate an email or phone return
// common.ErrorConflict.
type Repository interface {
	Create(ctx context.Context, account *models.Account) error

	// GetByID loads one account. With lock set, the row stays locked until
	// the surrounding transaction ends.
	GetByID(ctx context.Context, id string, lock bool) (*models.Account, error)

	// FindByIdentity matches the non-empty email OR the non-empty phone.
	// Both empty never matches.
	FindByIdentity(ctx context.Context, email, phone string, lock bool) (*models.Account, error)

	// Update overwrites every mutable column of the stored row.
	Update(ctx context.Context, account *models.Account) error

	Delete(ctx context.Context, id string) error
}
