package httpserver

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/server/services"
)

type registerRequest struct {
	FirstName string `json:"firstName" validate:"omitempty,min=2,max=100"`
	LastName  string `json:"lastName" validate:"omitempty,min=2,max=100"`
	Email     string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone     string `json:"phone" validate:"required_without=Email,omitempty,min=10,max=15"`
	Password  string `json:"password" validate:"required,min=6"`
	DOB       string `json:"dob"`
}

type identityRequest struct {
	Email string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone string `json:"phone" validate:"required_without=Email,omitempty,min=10,max=15"`
}

type loginRequest struct {
	identityRequest
	Password string `json:"password" validate:"required"`
}

type verifyOTPRequest struct {
	identityRequest
	OTP string `json:"otp" validate:"required,len=6,numeric"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type resetPasswordRequest struct {
	ResetToken  string `json:"resetToken" validate:"required"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}

	dob, err := parseDOB(req.DOB, time.Now())
	if err != nil {
		return err
	}

	_, err = s.auth.Register(r.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		DOB:       dob,
	})
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusCreated, "User registered successfully", nil)
	return nil
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Phone, req.Password)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "Login successful", sessionView{
		User:         newAccountView(session.Account, ""),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
	return nil
}

func (s *HTTPServer) verifyOTP(w http.ResponseWriter, r *http.Request) error {
	var req verifyOTPRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	if err := s.auth.VerifyOTP(r.Context(), req.Email, req.Phone, req.OTP); err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "OTP verified successfully", nil)
	return nil
}

func (s *HTTPServer) resendOTP(w http.ResponseWriter, r *http.Request) error {
	var req identityRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	if err := s.auth.ResendOTP(r.Context(), req.Email, req.Phone); err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "OTP resent successfully", nil)
	return nil
}

func (s *HTTPServer) googleLogin(w http.ResponseWriter, r *http.Request) error {
	var req googleLoginRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}

	session, err := s.auth.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "Google login successful", sessionView{
		User:         newAccountView(session.Account, ""),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
	return nil
}

func (s *HTTPServer) requestPasswordReset(w http.ResponseWriter, r *http.Request) error {
	var req identityRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}

	token, err := s.auth.RequestPasswordReset(r.Context(), req.Email, req.Phone)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "OTP sent to email", map[string]string{"resetToken": token})
	return nil
}

func (s *HTTPServer) resetPassword(w http.ResponseWriter, r *http.Request) error {
	var req resetPasswordRequest
	if err := s.decode(w, r, &req); err != nil {
		return err
	}
	if err := s.auth.ResetPassword(r.Context(), req.ResetToken, req.OTP, req.NewPassword); err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "Password reset successfully", nil)
	return nil
}

func (s *HTTPServer) refresh(w http.ResponseWriter, r *http.Request) error {
	token := refreshTokenFrom(r)
	if token == "" {
		return common.NewError(common.ErrorUnauthorized, "No refresh token provided")
	}

	pair, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "Tokens refreshed successfully", pair)
	return nil
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if err := s.auth.Logout(ctx, accountIDFrom(ctx), accessTokenFromContext(ctx), refreshTokenFrom(r)); err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
	return nil
}

// parseDOB accepts a date ("2006-01-02") or an RFC 3339 timestamp in the past.
func parseDOB(s string, now time.Time) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, badRequest("dob must be a date (YYYY-MM-DD)")
		}
	}
	if !t.Before(now) {
		return nil, badRequest("dob must be in the past")
	}
	return &t, nil
}
