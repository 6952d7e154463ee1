// Package tokens is the revocation registry. Refresh records form the
// allowlist of live refresh tokens; access records form the denylist of
// logged-out access tokens. Records past expires_at are swept.
package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/saraha/internal/server/models"
)

type Repository interface {
	// Track inserts rec. Tracking the same token twice is not an error.
	Track(ctx context.Context, rec models.TokenRecord) error

	IsTracked(ctx context.Context, token string, kind models.TokenKind) (bool, error)

	// Revoke deletes the record if present.
	Revoke(ctx context.Context, token string, kind models.TokenKind) error

	RevokeAllForAccount(ctx context.Context, accountID string, kind models.TokenKind) (int64, error)

	// Consume deletes the record and returns its account id in one step, so
	// two concurrent rotations of the same refresh token cannot both win.
	// A missing record yields common.ErrorNotFound.
	Consume(ctx context.Context, token string, kind models.TokenKind) (string, error)

	// DeleteExpired removes records with expires_at before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
