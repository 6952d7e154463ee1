// Package messages stores direct messages between two accounts.
package messages

import (
	"context"

	"github.com/dmitrijs2005/saraha/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Message) error

	// ListConversation returns messages exchanged between a and b, newest
	// first. A non-empty before restricts the page to ids lower than it.
	ListConversation(ctx context.Context, a, b, before string, limit int) ([]models.Message, error)

	// DeleteForAccount removes every message sent or received by accountID.
	DeleteForAccount(ctx context.Context, accountID string) error
}
