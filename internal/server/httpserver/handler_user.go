package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/saraha/internal/server/imagex"
)

const maxPictureBytes = 5 << 20

func (s *HTTPServer) profile(w http.ResponseWriter, r *http.Request) error {
	size, err := imagex.ParseSize(r.URL.Query().Get("size"))
	if err != nil {
		return err
	}

	acc, url, err := s.users.Profile(r.Context(), accountIDFrom(r.Context()), size)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "Profile retrieved successfully", newAccountView(acc, url))
	return nil
}

func (s *HTTPServer) uploadProfilePicture(w http.ResponseWriter, r *http.Request) error {
	size, err := imagex.ParseSize(r.URL.Query().Get("size"))
	if err != nil {
		return err
	}

	data, err := readFormFile(w, r, "profilePicture", maxPictureBytes)
	if err != nil {
		return err
	}

	url, err := s.users.UploadProfilePicture(r.Context(), accountIDFrom(r.Context()), data, size)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "Profile picture uploaded successfully", map[string]string{"profilePicture": url})
	return nil
}

func (s *HTTPServer) deleteUser(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	if err := s.users.DeleteAccount(ctx, accountIDFrom(ctx), accessTokenFromContext(ctx)); err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "User deleted successfully", nil)
	return nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("File too large")
		}
		return badRequest("Invalid multipart form")
	}
	return nil
}

func readFormFile(w http.ResponseWriter, r *http.Request, field string, limit int64) ([]byte, error) {
	if err := parseMultipart(w, r, limit); err != nil {
		return nil, err
	}
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, badRequest("No file uploaded")
	}
	defer f.Close()
	return io.ReadAll(f)
}
