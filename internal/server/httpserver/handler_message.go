package httpserver

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/saraha/internal/server/services"
)

const maxMessageBytes = 20 << 20

type sendMessageRequest struct {
	Content string `json:"content" validate:"max=5000"`
}

func (s *HTTPServer) sendMessage(w http.ResponseWriter, r *http.Request) error {
	in := services.SendInput{
		SenderID:   accountIDFrom(r.Context()),
		ReceiverID: chi.URLParam(r, "receiver"),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := parseMultipart(w, r, maxMessageBytes); err != nil {
			return err
		}
		req := sendMessageRequest{Content: r.FormValue("content")}
		if err := s.check(&req); err != nil {
			return err
		}
		in.Content = req.Content

		attachments, err := readAttachments(r)
		if err != nil {
			return err
		}
		in.Attachments = attachments
	} else {
		var req sendMessageRequest
		if err := s.decode(w, r, &req); err != nil {
			return err
		}
		in.Content = req.Content
	}

	msg, err := s.messages.Send(r.Context(), in)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusCreated, "Message sent successfully", msg)
	return nil
}

func readAttachments(r *http.Request) ([][]byte, error) {
	var out [][]byte
	for _, field := range []string{"attachments", "attachments[]"} {
		for _, fh := range r.MultipartForm.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, badRequest("Invalid attachment")
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, data)
		}
	}
	return out, nil
}

func (s *HTTPServer) listMessages(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return badRequest("limit must be a positive number")
		}
		limit = n
	}

	msgs, err := s.messages.List(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "peer"), q.Get("before"), limit)
	if err != nil {
		return err
	}

	page := messagePage{Messages: msgs}
	if n := len(msgs); n > 0 && n == pageSize(limit) {
		page.NextCursor = msgs[n-1].ID
	}
	writeSuccess(w, http.StatusOK, "Messages retrieved successfully", page)
	return nil
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return services.DefaultPageSize
	case limit > services.MaxPageSize:
		return services.MaxPageSize
	}
	return limit
}
