package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/messages"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/tokens"
)

// RepositoryManager vends repositories bound to a DBTX, which is either the
// pool or the transaction handed out by a dbx.Transactor.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Tokens(db dbx.DBTX) tokens.Repository
	Messages(db dbx.DBTX) messages.Repository
}
