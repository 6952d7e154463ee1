package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/server/auth"
	"github.com/dmitrijs2005/saraha/internal/server/config"
	"github.com/dmitrijs2005/saraha/internal/server/mailer"
	"github.com/dmitrijs2005/saraha/internal/server/models"
	"github.com/dmitrijs2005/saraha/internal/server/otp"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/tokens"
)

// RegisterInput is what a client submits to create a local account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
	DOB       *time.Time
}

// AuthService implements the identity and credential lifecycle:
// registration, OTP verification, login, Google sign-in, password reset,
// logout and refresh-token rotation.
type AuthService struct {
	Deps
	policy otp.Policy

	accessTTL     time.Duration
	refreshTTL    time.Duration
	resetTTL      time.Duration
	revocationTTL time.Duration

	registrationOTPTTL time.Duration
	resendOTPTTL       time.Duration
	resetOTPTTL        time.Duration

	verifyTimeout time.Duration
}

func NewAuthService(d Deps, cfg *config.Config) *AuthService {
	return &AuthService{
		Deps:               d.withDefaults(),
		policy:             otp.Policy{MaxAttempts: cfg.OTPMaxAttempts, BanDuration: cfg.OTPBanDuration},
		accessTTL:          cfg.AccessTokenTTL,
		refreshTTL:         cfg.RefreshTokenTTL,
		resetTTL:           cfg.ResetTokenTTL,
		revocationTTL:      cfg.RevocationTTL,
		registrationOTPTTL: cfg.RegistrationOTPTTL,
		resendOTPTTL:       cfg.ResendOTPTTL,
		resetOTPTTL:        cfg.ResetOTPTTL,
		verifyTimeout:      cfg.VerifyTimeout,
	}
}

// Register creates an unverified local account and mails it a verification
// code when an email is present. Mail failures are logged only.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	acc := &models.Account{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		DOB:          in.DOB,
		AuthProvider: models.ProviderLocal,
	}
	acc.Normalize()

	if acc.Email == "" && acc.Phone == "" {
		return nil, common.NewError(common.ErrorBadRequest, "Either email or phone is required")
	}
	if in.Password == "" {
		return nil, common.NewError(common.ErrorBadRequest, "Password is required")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	acc.PasswordHash = hash

	var challenge otp.Challenge
	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Accounts(tx)

		_, err := repo.FindByIdentity(ctx, acc.Email, acc.Phone, false)
		switch {
		case err == nil:
			return common.NewError(common.ErrorConflict, "User already exists")
		case !errors.Is(err, common.ErrorNotFound):
			return fmt.Errorf("error searching account: %w", err)
		}

		now := s.Now()
		acc.CreatedAt, acc.UpdatedAt = now, now
		challenge, err = s.policy.Issue(&acc.OTP, s.registrationOTPTTL, now)
		if err != nil {
			return err
		}
		if err := acc.Validate(); err != nil {
			return err
		}
		return repo.Create(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info(ctx, "account registered", "account_id", acc.ID)
	if acc.Email != "" {
		s.sendMail(ctx, acc.Email, mailer.VerificationMail(challenge.Code, minutes(s.registrationOTPTTL)))
	}
	return acc, nil
}

// Login resolves the account by email or phone and checks the password.
func (s *AuthService) Login(ctx context.Context, email, phone, password string) (*Session, error) {
	acc, err := s.Repos.Accounts(s.DB).FindByIdentity(ctx, models.NormalizeEmail(email), strings.TrimSpace(phone), false)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	if !s.Hasher.Verify(password, acc.PasswordHash) {
		return nil, common.NewError(common.ErrorUnauthorized, "Invalid credentials")
	}

	pair, err := s.issuePair(ctx, s.Repos.Tokens(s.DB), acc.ID)
	if err != nil {
		return nil, err
	}
	s.Log.Info(ctx, "login", "account_id", acc.ID)
	return &Session{Account: acc, TokenPair: *pair}, nil
}

// VerifyOTP checks the account's outstanding code. Failed attempts are
// persisted even though an error is returned.
func (s *AuthService) VerifyOTP(ctx context.Context, email, phone, code string) error {
	var verifyErr error
	err := s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Accounts(tx)

		acc, err := repo.FindByIdentity(ctx, models.NormalizeEmail(email), strings.TrimSpace(phone), true)
		if err != nil {
			return notFound(err, "User not found")
		}

		now := s.Now()
		verifyErr = s.policy.Verify(&acc.OTP, code, now)
		if verifyErr == nil {
			acc.IsVerified = true
		}
		acc.UpdatedAt = now
		return repo.Update(ctx, acc)
	})
	if err != nil {
		return err
	}
	return verifyErr
}

// ResendOTP replaces the outstanding code unless the account is banned.
func (s *AuthService) ResendOTP(ctx context.Context, email, phone string) error {
	acc, challenge, err := s.reissueOTP(ctx, email, phone, s.resendOTPTTL)
	if err != nil {
		return err
	}
	if acc.Email != "" {
		s.sendMail(ctx, acc.Email, mailer.ResendMail(challenge.Code, minutes(s.resendOTPTTL)))
	}
	return nil
}

// RequestPasswordReset mails a reset code and returns the short-lived reset
// token that must accompany it. The token is not tracked.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email, phone string) (string, error) {
	acc, challenge, err := s.reissueOTP(ctx, email, phone, s.resetOTPTTL)
	if err != nil {
		return "", err
	}
	if acc.Email != "" {
		s.sendMail(ctx, acc.Email, mailer.PasswordResetMail(challenge.Code, minutes(s.resetOTPTTL)))
	}

	token, _, err := s.Issuer.Issue(acc.ID, auth.KindReset, s.resetTTL)
	if err != nil {
		return "", fmt.Errorf("error issuing reset token: %w", err)
	}
	return token, nil
}

func (s *AuthService) reissueOTP(ctx context.Context, email, phone string, ttl time.Duration) (*models.Account, otp.Challenge, error) {
	var (
		acc       *models.Account
		challenge otp.Challenge
	)
	err := s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Accounts(tx)

		var err error
		acc, err = repo.FindByIdentity(ctx, models.NormalizeEmail(email), strings.TrimSpace(phone), true)
		if err != nil {
			return notFound(err, "User not found")
		}

		now := s.Now()
		if err := s.policy.CheckBan(&acc.OTP, now); err != nil {
			return err
		}
		challenge, err = s.policy.Issue(&acc.OTP, ttl, now)
		if err != nil {
			return err
		}
		acc.UpdatedAt = now
		return repo.Update(ctx, acc)
	})
	return acc, challenge, err
}

// ResetPassword sets a new password once both the reset token and the
// mailed code check out, then revokes every refresh token of the account.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, code, newPassword string) error {
	claims, err := s.Issuer.Parse(resetToken, auth.KindReset)
	if err != nil {
		return common.NewError(common.ErrInvalidToken, "Invalid or expired reset token")
	}
	if newPassword == "" {
		return common.NewError(common.ErrorBadRequest, "Password is required")
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	var verifyErr error
	var revoked int64
	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Accounts(tx)

		acc, err := repo.GetByID(ctx, claims.AccountID, true)
		if err != nil {
			return notFound(err, "User not found")
		}

		now := s.Now()
		verifyErr = s.policy.Verify(&acc.OTP, code, now)
		if verifyErr == nil {
			acc.PasswordHash = hash
			acc.ClearOTP()
			acc.CredentialsUpdatedAt = &now
		}
		acc.UpdatedAt = now
		if err := repo.Update(ctx, acc); err != nil {
			return err
		}
		if verifyErr != nil {
			return nil
		}

		revoked, err = s.Repos.Tokens(tx).RevokeAllForAccount(ctx, acc.ID, models.TokenRefresh)
		return err
	})
	if err != nil {
		return err
	}

	if verifyErr != nil {
		if errors.Is(verifyErr, common.ErrorRateLimited) {
			return verifyErr
		}
		return common.NewError(common.ErrorBadRequest, "Invalid or expired OTP")
	}
	s.Log.Info(ctx, "password reset", "account_id", claims.AccountID, "revoked_refresh_tokens", revoked)
	return nil
}

// GoogleLogin signs in with a Google ID token, creating a verified account
// for unknown emails.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	vctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	profile, err := s.Verifier.Verify(vctx, idToken)
	if err != nil {
		s.Log.Warn(ctx, "google token rejected", "error", err)
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, err
		}
		return nil, common.NewError(common.ErrorUnauthorized, "Invalid Google token")
	}
	if !profile.EmailVerified {
		s.Log.Warn(ctx, "google email not verified", "email", profile.Email)
		return nil, common.NewError(common.ErrorUnauthorized, "Google email is not verified")
	}

	var session *Session
	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Accounts(tx)
		now := s.Now()

		acc, err := repo.FindByIdentity(ctx, profile.Email, "", true)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			acc = &models.Account{
				ID:           uuid.NewString(),
				FirstName:    profile.FirstName,
				LastName:     profile.LastName,
				Email:        profile.Email,
				IsVerified:   true,
				AuthProvider: models.ProviderGoogle,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			acc.Normalize()
			if err := acc.Validate(); err != nil {
				return err
			}
			if err := repo.Create(ctx, acc); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("error searching account: %w", err)
		default:
			if !acc.IsVerified {
				acc.IsVerified = true
				acc.UpdatedAt = now
				if err := repo.Update(ctx, acc); err != nil {
					return err
				}
			}
		}

		pair, err := s.issuePair(ctx, s.Repos.Tokens(tx), acc.ID)
		if err != nil {
			return err
		}
		session = &Session{Account: acc, TokenPair: *pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Logout denylists accessToken. A refresh token, when given, is revoked too.
func (s *AuthService) Logout(ctx context.Context, accountID, accessToken, refreshToken string) error {
	repo := s.Repos.Tokens(s.DB)
	if err := denylistAccess(ctx, repo, s.Issuer, accessToken, accountID, s.Now(), s.revocationTTL); err != nil {
		return fmt.Errorf("error revoking access token: %w", err)
	}
	if refreshToken != "" {
		if err := repo.Revoke(ctx, refreshToken, models.TokenRefresh); err != nil {
			return fmt.Errorf("error revoking refresh token: %w", err)
		}
	}
	s.Log.Info(ctx, "logout", "account_id", accountID)
	return nil
}

// Refresh rotates refreshToken: the presented token is consumed and a new
// pair is issued. A token that was already rotated or revoked is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.Issuer.Parse(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, common.NewError(common.ErrInvalidToken, "Invalid refresh token")
	}

	var pair *TokenPair
	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Tokens(tx)

		accountID, err := repo.Consume(ctx, refreshToken, models.TokenRefresh)
		if errors.Is(err, common.ErrorNotFound) || (err == nil && accountID != claims.AccountID) {
			return common.NewError(common.ErrInvalidToken, "Refresh token revoked")
		}
		if err != nil {
			return fmt.Errorf("error consuming refresh token: %w", err)
		}

		if _, err := s.Repos.Accounts(tx).GetByID(ctx, accountID, false); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewError(common.ErrorUnauthorized, "User not found")
			}
			return err
		}

		pair, err = s.issuePair(ctx, repo, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate resolves a bearer access token to its account. Expired tokens
// yield common.ErrTokenExpired so the caller can fall back to a refresh.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.Account, error) {
	if accessToken == "" {
		return nil, common.NewError(common.ErrorUnauthorized, "Authorization token is required")
	}

	claims, err := s.Issuer.Parse(accessToken, auth.KindAccess)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, err
		}
		return nil, common.NewError(common.ErrInvalidToken, "Invalid token")
	}

	revoked, err := s.Repos.Tokens(s.DB).IsTracked(ctx, accessToken, models.TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("error checking denylist: %w", err)
	}
	if revoked {
		return nil, common.NewError(common.ErrorUnauthorized, "Token is blacklisted")
	}

	acc, err := s.Repos.Accounts(s.DB).GetByID(ctx, claims.AccountID, false)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return acc, nil
}

// --- helpers below ---

func (s *AuthService) issuePair(ctx context.Context, repo tokens.Repository, accountID string) (*TokenPair, error) {
	access, _, err := s.Issuer.Issue(accountID, auth.KindAccess, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}
	refresh, claims, err := s.Issuer.Issue(accountID, auth.KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("error issuing refresh token: %w", err)
	}

	err = repo.Track(ctx, models.TokenRecord{
		Token:     refresh,
		Kind:      models.TokenRefresh,
		AccountID: accountID,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	})
	if err != nil {
		return nil, fmt.Errorf("error tracking refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) sendMail(ctx context.Context, to string, m mailer.Mail) {
	if s.Mailer == nil {
		return
	}
	if err := s.Mailer.Send(ctx, to, m.Subject, m.HTML); err != nil {
		s.Log.Warn(ctx, "mail not sent", "subject", m.Subject, "error", err)
	}
}

func minutes(d time.Duration) int {
	return int(d.Round(time.Minute) / time.Minute)
}

// SetPassword replaces the password of the account found by email or phone
// without any OTP round trip and revokes its refresh tokens. It backs the
// operator tool, not the HTTP API.
func (s *AuthService) SetPassword(ctx context.Context, email, phone, newPassword string) error {
	email = models.NormalizeEmail(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return badRequest("Either email or phone is required")
	}
	if newPassword == "" {
		return badRequest("Password is required")
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	var accountID string
	var revoked int64
	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Accounts(tx)
		acc, err := repo.FindByIdentity(ctx, email, phone, true)
		if err != nil {
			return notFound(err, "User not found")
		}

		now := s.Now()
		acc.PasswordHash = hash
		acc.CredentialsUpdatedAt = &now
		acc.UpdatedAt = now
		if err := repo.Update(ctx, acc); err != nil {
			return err
		}
		accountID = acc.ID

		revoked, err = s.Repos.Tokens(tx).RevokeAllForAccount(ctx, acc.ID, models.TokenRefresh)
		return err
	})
	if err != nil {
		return err
	}

	s.Log.Info(ctx, "password set by operator", "account_id", accountID, "revoked_refresh_tokens", revoked)
	return nil
}
