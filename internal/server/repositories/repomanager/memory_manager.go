package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/messages"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/tokens"
)

// MemoryRepositoryManager hands out the same in-memory repositories whatever
// DBTX it is given. Pair it with dbx.LockingTransactor.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
	tokens   *tokens.MemoryRepository
	messages *messages.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		accounts: accounts.NewMemoryRepository(),
		tokens:   tokens.NewMemoryRepository(),
		messages: messages.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository {
	return m.accounts
}

func (m *MemoryRepositoryManager) Tokens(dbx.DBTX) tokens.Repository {
	return m.tokens
}

func (m *MemoryRepositoryManager) Messages(dbx.DBTX) messages.Repository {
	return m.messages
}
