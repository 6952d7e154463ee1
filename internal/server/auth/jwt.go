// Package auth issues and verifies the HS256 tokens handed to clients.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/saraha/internal/common"
)

// Kind separates the token families so one can never stand in for another.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "reset"
)

// Claims are the registered claims plus the account the token is bound to.
// Every token gets a random jti, so two tokens minted in the same second for
// the same account still differ.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId"`
	Kind      Kind   `json:"typ"`
}

type Issuer struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret []byte, opts ...Option) *Issuer {
	i := &Issuer{secret: secret, now: time.Now}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Issue signs a token of the given kind for accountID valid for lifetime.
// The returned claims carry the exact expiry written into the token.
func (i *Issuer) Issue(accountID string, kind Kind, lifetime time.Duration) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
		AccountID: accountID,
		Kind:      kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, expiry and kind. An otherwise valid token past
// its expiry yields common.ErrTokenExpired; every other failure yields
// common.ErrInvalidToken.
func (i *Issuer) Parse(token string, kind Kind) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired) && claims.Kind == kind:
		return claims, common.ErrTokenExpired
	default:
		return nil, common.ErrInvalidToken
	}

	if claims.Kind != kind || claims.AccountID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
