// Package identity verifies identity tokens issued by external providers.
package identity

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/dmitrijs2005/saraha/internal/common"
)

// Profile is what the provider vouches for.
type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Profile, error)
}

// validateFunc matches idtoken.Validate.
type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier checks Google ID tokens against the configured client id.
type GoogleVerifier struct {
	clientID string
	validate validateFunc
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

// Verify returns common.ErrorUnauthorized for any token Google does not
// accept or that carries no email.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*Profile, error) {
	if v.clientID == "" {
		return nil, common.NewError(common.ErrorUnauthorized, "Google login is not configured")
	}

	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.NewError(common.ErrorUnauthorized, "Invalid Google token"), err)
	}

	claim := func(name string) string {
		s, _ := payload.Claims[name].(string)
		return strings.TrimSpace(s)
	}
	verified, _ := payload.Claims["email_verified"].(bool)

	p := &Profile{
		Subject:       payload.Subject,
		Email:         strings.ToLower(claim("email")),
		EmailVerified: verified,
		FirstName:     claim("given_name"),
		LastName:      claim("family_name"),
	}
	if p.Email == "" {
		return nil, common.NewError(common.ErrorUnauthorized, "Google account has no email")
	}
	if p.FirstName == "" && p.LastName == "" {
		p.FirstName, p.LastName = splitName(claim("name"))
	}
	return p, nil
}

func splitName(full string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(full), " ")
	return first, strings.TrimSpace(last)
}
