package httpserver

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadProfilePicture(t *testing.T) {
	ts := newTestServer(t)
	s := ts.signup(t, "a@x.com")

	res := ts.multipart(t, "/user/upload-profile-picture?size=thumb", s.AccessToken, nil,
		multipartFile{"profilePicture", pngImage(t, 400, 300)})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "Profile picture uploaded successfully", res.env.Message)

	var out struct {
		ProfilePicture string `json:"profilePicture"`
	}
	res.data(t, &out)
	require.True(t, strings.HasPrefix(out.ProfilePicture, "http://example.test/uploads/users/"), out.ProfilePicture)
	assert.True(t, strings.HasSuffix(out.ProfilePicture, "/thumb"))

	// the local store is served back under /uploads
	path := strings.TrimPrefix(out.ProfilePicture, "http://example.test")
	res = ts.serve(t, newJSONRequest(t, http.MethodGet, path, nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "image/png", res.Header().Get("Content-Type"))

	res = ts.do(t, http.MethodGet, "/user/profile?size=large", nil, "Authorization", "Bearer "+s.AccessToken)
	require.Equal(t, http.StatusOK, res.Code)
	var view map[string]any
	res.data(t, &view)
	assert.Contains(t, view["profilePicture"], "/large")

	res = ts.do(t, http.MethodGet, "/user/profile?size=huge", nil, "Authorization", "Bearer "+s.AccessToken)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = ts.do(t, http.MethodGet, "/uploads/users/", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestUploadProfilePicture_Rejects(t *testing.T) {
	ts := newTestServer(t)
	s := ts.signup(t, "a@x.com")

	res := ts.multipart(t, "/user/upload-profile-picture", s.AccessToken, map[string]string{"note": "x"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "No file uploaded", res.env.Error)

	res = ts.multipart(t, "/user/upload-profile-picture", s.AccessToken, nil,
		multipartFile{"profilePicture", []byte("%PDF-1.4 not an image")})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = ts.do(t, http.MethodPost, "/user/upload-profile-picture", map[string]string{}, "Authorization", "Bearer "+s.AccessToken)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid multipart form", res.env.Error)
}

func TestDeleteUser(t *testing.T) {
	ts := newTestServer(t)
	s := ts.signup(t, "a@x.com")
	bearer := "Bearer " + s.AccessToken

	res := ts.do(t, http.MethodDelete, "/user/delete-user", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "User deleted successfully", res.env.Message)

	res = ts.do(t, http.MethodGet, "/user/profile", nil, "Authorization", bearer)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = ts.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusNotFound, res.Code)
}

type messageView struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	Content     string `json:"content"`
	Attachments []struct {
		URL string `json:"url"`
	} `json:"attachments"`
}

func TestSendAndListMessages(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice@x.com")
	bob := ts.signup(t, "bob@x.com")
	aliceAuth := "Bearer " + alice.AccessToken

	for _, text := range []string{"one", "two", "three"} {
		res := ts.do(t, http.MethodPost, "/message/"+bob.User.ID, map[string]string{"content": text}, "Authorization", aliceAuth)
		require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
		assert.Equal(t, "Message sent successfully", res.env.Message)
	}

	res := ts.multipart(t, "/message/"+bob.User.ID, alice.AccessToken, map[string]string{"content": "look"},
		multipartFile{"attachments", pngImage(t, 8, 8)},
		multipartFile{"attachments[]", pngImage(t, 4, 4)})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var sent messageView
	res.data(t, &sent)
	assert.Len(t, sent.Attachments, 2)

	res = ts.do(t, http.MethodGet, "/message/"+alice.User.ID+"?limit=2", nil, "Authorization", "Bearer "+bob.AccessToken)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "Messages retrieved successfully", res.env.Message)

	var page struct {
		Messages   []messageView `json:"messages"`
		NextCursor string        `json:"nextCursor"`
	}
	res.data(t, &page)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "look", page.Messages[0].Content)
	assert.Equal(t, "three", page.Messages[1].Content)
	require.Equal(t, page.Messages[1].ID, page.NextCursor)

	res = ts.do(t, http.MethodGet, "/message/"+alice.User.ID+"?limit=2&before="+page.NextCursor, nil, "Authorization", "Bearer "+bob.AccessToken)
	require.Equal(t, http.StatusOK, res.Code)
	page.NextCursor = ""
	page.Messages = nil
	res.data(t, &page)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "two", page.Messages[0].Content)
	assert.Equal(t, "one", page.Messages[1].Content)
}

func TestSendMessage_Failures(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice@x.com")
	auth := "Bearer " + alice.AccessToken

	for _, receiver := range []string{"abc", "01ARZ3NDEKTSV4RRFFQ69G5FAV", "5b0e8a52-6d0c-4f7a-9a2e-0c1d2e3f4a5b"} {
		res := ts.do(t, http.MethodPost, "/message/"+receiver, map[string]string{"content": "hi"}, "Authorization", auth)
		assert.Equal(t, http.StatusNotFound, res.Code, receiver)
		assert.Equal(t, "Receiver not found", res.env.Error, receiver)
	}

	res := ts.do(t, http.MethodGet, "/message/abc", nil, "Authorization", auth)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "User not found", res.env.Error)

	res = ts.do(t, http.MethodPost, "/message/"+alice.User.ID, map[string]string{"content": "   "}, "Authorization", auth)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Message content or attachments are required", res.env.Error)

	res = ts.do(t, http.MethodPost, "/message/"+alice.User.ID, map[string]string{"content": strings.Repeat("a", 5001)}, "Authorization", auth)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "content must be at most 5000 characters", res.env.Error)

	res = ts.do(t, http.MethodGet, "/message/"+alice.User.ID+"?before=nope", nil, "Authorization", auth)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Invalid cursor", res.env.Error)

	res = ts.do(t, http.MethodGet, "/message/"+alice.User.ID+"?limit=abc", nil, "Authorization", auth)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = ts.do(t, http.MethodGet, "/message/"+alice.User.ID, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
