package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Track(ctx context.Context, rec models.TokenRecord) error {
	query := `
		INSERT INTO tokens (token, kind, account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, rec.Token, string(rec.Kind), rec.AccountID, rec.CreatedAt, rec.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IsTracked(ctx context.Context, token string, kind models.TokenKind) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM tokens WHERE token = $1 AND kind = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, token, string(kind)).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, token string, kind models.TokenKind) error {
	query := `DELETE FROM tokens WHERE token = $1 AND kind = $2`
	if _, err := r.db.ExecContext(ctx, query, token, string(kind)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForAccount(ctx context.Context, accountID string, kind models.TokenKind) (int64, error) {
	query := `DELETE FROM tokens WHERE account_id = $1 AND kind = $2`
	res, err := r.db.ExecContext(ctx, query, accountID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) Consume(ctx context.Context, token string, kind models.TokenKind) (string, error) {
	query := `DELETE FROM tokens WHERE token = $1 AND kind = $2 RETURNING account_id`

	var accountID string
	if err := r.db.QueryRowContext(ctx, query, token, string(kind)).Scan(&accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return accountID, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
