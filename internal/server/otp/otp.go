// Package otp generates one-time codes and enforces the attempt/lockout
// policy on an account's single OTP slot.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/server/models"
)

const (
	minCode = 100000
	maxCode = 999999
)

type Challenge struct {
	Code      string
	ExpiresAt time.Time
}

// Generate returns a uniformly random code in [100000, 999999] that expires
// ttl after now.
func Generate(ttl time.Duration, now time.Time) (Challenge, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		return Challenge{}, fmt.Errorf("otp: %w", err)
	}
	return Challenge{
		Code:      strconv.FormatInt(n.Int64()+minCode, 10),
		ExpiresAt: now.Add(ttl),
	}, nil
}

type Policy struct {
	MaxAttempts int
	BanDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BanDuration: 5 * time.Minute}
}

// Issue writes a fresh challenge into state. The whole tuple is replaced, so
// a stale ban or attempt counter never survives a new code.
func (p Policy) Issue(state *models.OTPState, ttl time.Duration, now time.Time) (Challenge, error) {
	c, err := Generate(ttl, now)
	if err != nil {
		return Challenge{}, err
	}
	expires := c.ExpiresAt
	*state = models.OTPState{Code: c.Code, ExpiresAt: &expires}
	return c, nil
}

// CheckBan fails with a rate-limit error while state is banned.
func (p Policy) CheckBan(state *models.OTPState, now time.Time) error {
	if state.BannedUntil == nil || !now.Before(*state.BannedUntil) {
		return nil
	}
	return banned(state.BannedUntil.Sub(now))
}

// Verify checks code against state and updates the counters in place. The
// caller persists state whatever the outcome, so a failed attempt is still
// counted. Order: ban, then expiry, then value.
func (p Policy) Verify(state *models.OTPState, code string, now time.Time) error {
	if err := p.CheckBan(state, now); err != nil {
		return err
	}

	if state.Code == "" || state.ExpiresAt == nil || !now.Before(*state.ExpiresAt) {
		return common.NewError(common.ErrorUnauthorized, "OTP expired")
	}

	if subtle.ConstantTimeCompare([]byte(state.Code), []byte(code)) != 1 {
		state.FailedAttempts++
		if state.FailedAttempts >= p.MaxAttempts {
			until := now.Add(p.BanDuration)
			state.BannedUntil = &until
			return banned(p.BanDuration)
		}
		left := p.MaxAttempts - state.FailedAttempts
		return common.NewError(common.ErrorUnauthorized, fmt.Sprintf("Invalid OTP, %d attempts left", left))
	}

	*state = models.OTPState{}
	return nil
}

func banned(remaining time.Duration) error {
	secs := int(math.Ceil(remaining.Seconds()))
	return common.RateLimited(
		fmt.Sprintf("Too many failed attempts. Try again in %d seconds", secs),
		time.Duration(secs)*time.Second,
	)
}
