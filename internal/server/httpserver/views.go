package httpserver

import (
	"time"

	"github.com/dmitrijs2005/saraha/internal/server/models"
)

// accountView is the public shape of an account. It never carries the
// password hash or OTP state.
type accountView struct {
	ID             string     `json:"id"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	DOB            *time.Time `json:"dob,omitempty"`
	ProfilePicture string     `json:"profilePicture,omitempty"`
	IsVerified     bool       `json:"isVerified"`
	AuthProvider   string     `json:"authProvider"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func newAccountView(a *models.Account, pictureURL string) accountView {
	return accountView{
		ID:             a.ID,
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		Email:          a.Email,
		Phone:          a.Phone,
		DOB:            a.DOB,
		ProfilePicture: pictureURL,
		IsVerified:     a.IsVerified,
		AuthProvider:   string(a.AuthProvider),
		CreatedAt:      a.CreatedAt,
	}
}

type sessionView struct {
	User         accountView `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type messagePage struct {
	Messages   []models.Message `json:"messages"`
	NextCursor string           `json:"nextCursor,omitempty"`
}
