// Package models defines server-side data models persisted in the database.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/saraha/internal/common"
)

type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

// OTPState is the single outstanding one-time-code challenge of an account.
// A zero Code means no challenge is outstanding.
type OTPState struct {
	Code           string
	ExpiresAt      *time.Time
	FailedAttempts int
	BannedUntil    *time.Time
}

// Account is a registered identity. At least one of Email and Phone is set;
// PasswordHash is empty only for accounts created through Google.
type Account struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	PasswordHash   string
	DOB            *time.Time
	ProfilePicture string
	IsVerified     bool
	AuthProvider   AuthProvider
	OTP            OTPState

	CredentialsUpdatedAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Validate checks the cross-field rules against the full record, so partial
// updates cannot slip past them.
func (a *Account) Validate() error {
	if a.Email == "" && a.Phone == "" {
		return common.NewError(common.ErrorBadRequest, "Either email or phone is required")
	}
	if a.PasswordHash == "" && a.AuthProvider != ProviderGoogle {
		return common.NewError(common.ErrorBadRequest, "Password is required")
	}
	switch a.AuthProvider {
	case ProviderLocal, ProviderGoogle:
	default:
		return common.NewError(common.ErrorBadRequest, "Unknown auth provider")
	}
	return nil
}

// Normalize lowercases and trims the identity fields the way they are stored.
func (a *Account) Normalize() {
	a.FirstName = strings.ToLower(strings.TrimSpace(a.FirstName))
	a.LastName = strings.ToLower(strings.TrimSpace(a.LastName))
	a.Email = NormalizeEmail(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// ClearOTP drops the outstanding challenge and its counters.
func (a *Account) ClearOTP() {
	a.OTP = OTPState{}
}
