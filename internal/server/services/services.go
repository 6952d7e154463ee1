// Package services contains server-side business logic: the identity and
// credential lifecycle (AuthService), account self-management (UserService)
// and direct messaging (MessageService).
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/cryptox"
	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/logging"
	"github.com/dmitrijs2005/saraha/internal/server/auth"
	"github.com/dmitrijs2005/saraha/internal/server/events"
	"github.com/dmitrijs2005/saraha/internal/server/identity"
	"github.com/dmitrijs2005/saraha/internal/server/mailer"
	"github.com/dmitrijs2005/saraha/internal/server/models"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/saraha/internal/server/storage"
)

// Deps carries the collaborators shared by the services. DB is used for
// reads outside a transaction and may be nil for the in-memory backend.
type Deps struct {
	DB       dbx.DBTX
	Tx       dbx.Transactor
	Repos    repomanager.RepositoryManager
	Issuer   *auth.Issuer
	Hasher   cryptox.Hasher
	Mailer   mailer.Mailer
	Verifier identity.Verifier
	Store    storage.Store
	Events   events.Publisher
	Log      logging.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logging.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return d
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is the result of a successful login.
type Session struct {
	Account *models.Account
	TokenPair
}

// denylistAccess records token as revoked until it can no longer be
// presented: the later of now+ttl and its own signed expiry.
func denylistAccess(ctx context.Context, repo tokens.Repository, issuer *auth.Issuer, token, accountID string, now time.Time, ttl time.Duration) error {
	expires := now.Add(ttl)
	claims, err := issuer.Parse(token, auth.KindAccess)
	if (err == nil || errors.Is(err, common.ErrTokenExpired)) && claims.ExpiresAt != nil {
		if exp := claims.ExpiresAt.Time; exp.After(expires) {
			expires = exp
		}
	}

	return repo.Track(ctx, models.TokenRecord{
		Token:     token,
		Kind:      models.TokenAccess,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: expires,
	})
}

func badRequest(msg string) error {
	return common.NewError(common.ErrorBadRequest, msg)
}

func notFound(err error, msg string) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.NewError(common.ErrorNotFound, msg)
	}
	return err
}
