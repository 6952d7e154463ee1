package accounts

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

const columns = `id, first_name, last_name, email, phone, password_hash, dob, profile_picture,
		is_verified, auth_provider, otp_code, otp_expires_at, otp_failed_attempts, otp_banned_until,
		credentials_updated_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query := `INSERT INTO accounts (` + columns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.FirstName, a.LastName, nullString(a.Email), nullString(a.Phone), nullString(a.PasswordHash),
		nullTime(a.DOB), a.ProfilePicture, a.IsVerified, string(a.AuthProvider),
		nullString(a.OTP.Code), nullTime(a.OTP.ExpiresAt), a.OTP.FailedAttempts, nullTime(a.OTP.BannedUntil),
		nullTime(a.CredentialsUpdatedAt), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.NewError(common.ErrorConflict, "User already exists")
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string, lock bool) (*models.Account, error) {
	query := `SELECT ` + columns + ` FROM accounts WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scan(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindByIdentity(ctx context.Context, email, phone string, lock bool) (*models.Account, error) {
	if email == "" && phone == "" {
		return nil, common.ErrorNotFound
	}

	query := `SELECT ` + columns + ` FROM accounts
		 WHERE ($1 <> '' AND email = $1) OR ($2 <> '' AND phone = $2)
		 ORDER BY created_at
		 LIMIT 1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scan(r.db.QueryRowContext(ctx, query, email, phone))
}

func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	query := `UPDATE accounts SET
		 first_name = $2, last_name = $3, email = $4, phone = $5, password_hash = $6, dob = $7,
		 profile_picture = $8, is_verified = $9, auth_provider = $10, otp_code = $11,
		 otp_expires_at = $12, otp_failed_attempts = $13, otp_banned_until = $14,
		 credentials_updated_at = $15, updated_at = $16
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.FirstName, a.LastName, nullString(a.Email), nullString(a.Phone), nullString(a.PasswordHash),
		nullTime(a.DOB), a.ProfilePicture, a.IsVerified, string(a.AuthProvider),
		nullString(a.OTP.Code), nullTime(a.OTP.ExpiresAt), a.OTP.FailedAttempts, nullTime(a.OTP.BannedUntil),
		nullTime(a.CredentialsUpdatedAt), a.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.NewError(common.ErrorConflict, "User already exists")
		}
		return fmt.Errorf("db error: %w", err)
	}
	return mustAffect(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return mustAffect(res)
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scan(row *sql.Row) (*models.Account, error) {
	var (
		a                            models.Account
		email, phone, hash, code     sql.NullString
		provider                     string
		dob, otpExp, banned, credsAt sql.NullTime
	)

	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &email, &phone, &hash, &dob, &a.ProfilePicture,
		&a.IsVerified, &provider, &code, &otpExp, &a.OTP.FailedAttempts, &banned,
		&credsAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.Email = email.String
	a.Phone = phone.String
	a.PasswordHash = hash.String
	a.AuthProvider = models.AuthProvider(provider)
	a.OTP.Code = code.String
	a.DOB = timePtr(dob)
	a.OTP.ExpiresAt = timePtr(otpExp)
	a.OTP.BannedUntil = timePtr(banned)
	a.CredentialsUpdatedAt = timePtr(credsAt)

	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
