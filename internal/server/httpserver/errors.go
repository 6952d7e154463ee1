package httpserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/saraha/internal/common"
)

var errRouteNotFound = common.NewError(common.ErrorNotFound, "Route not found")

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts h to net/http, sending any error it returns to handleError.
func (s *HTTPServer) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.handleError(w, r, err)
		}
	}
}

// handleError is the only place where errors become responses. An expired
// access token is not a failure here: it is answered by refreshTokens.
func (s *HTTPServer) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrTokenExpired) {
		s.refreshTokens(w, r)
		return
	}

	status := statusFor(err)
	msg := common.Message(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "Internal server error"
	}

	var de *common.Error
	if errors.As(err, &de) && de.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(de.RetryAfter.Seconds()))))
	}
	writeError(w, status, msg)
}

// refreshTokens rotates the refresh token sent alongside an expired access
// token and answers with the new pair. The client repeats its request.
func (s *HTTPServer) refreshTokens(w http.ResponseWriter, r *http.Request) {
	refreshToken := refreshTokenFrom(r)
	if refreshToken == "" {
		writeError(w, http.StatusUnauthorized, "No refresh token provided")
		return
	}

	pair, err := s.auth.Refresh(r.Context(), refreshToken)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Tokens refreshed successfully", pair)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrorBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func refreshTokenFrom(r *http.Request) string {
	for _, name := range common.RefreshTokenHeaderNames {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}
