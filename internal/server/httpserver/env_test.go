package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saraha/internal/cryptox"
	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/logging"
	"github.com/dmitrijs2005/saraha/internal/server/auth"
	"github.com/dmitrijs2005/saraha/internal/server/config"
	"github.com/dmitrijs2005/saraha/internal/server/events"
	"github.com/dmitrijs2005/saraha/internal/server/identity"
	"github.com/dmitrijs2005/saraha/internal/server/ratelimit"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/saraha/internal/server/services"
	"github.com/dmitrijs2005/saraha/internal/server/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureMailer struct {
	mu   sync.Mutex
	html []string
}

func (m *captureMailer) Send(_ context.Context, _, _, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.html = append(m.html, html)
	return nil
}

var codeRe = regexp.MustCompile(`<strong>(\d{6})</strong>`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.html, "no mail sent")
	match := codeRe.FindStringSubmatch(m.html[len(m.html)-1])
	require.Len(t, match, 2)
	return match[1]
}

type noVerifier struct{}

func (noVerifier) Verify(context.Context, string) (*identity.Profile, error) {
	return &identity.Profile{Email: "g@x.com", EmailVerified: true, FirstName: "Grace", LastName: "Hopper"}, nil
}

type testServer struct {
	clock   *fakeClock
	mail    *captureMailer
	uploads string
	handler http.Handler
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	ts := &testServer{
		clock:   &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		mail:    &captureMailer{},
		uploads: t.TempDir(),
	}

	store, err := storage.NewLocalStore(ts.uploads, "http://example.test")
	require.NoError(t, err)

	d := services.Deps{
		Tx:       dbx.NewLockingTransactor(),
		Repos:    repomanager.NewMemoryRepositoryManager(),
		Issuer:   auth.NewIssuer([]byte("test-secret"), auth.WithClock(ts.clock.Now)),
		Hasher:   cryptox.NewBcryptHasher(4),
		Mailer:   ts.mail,
		Verifier: noVerifier{},
		Store:    store,
		Events:   events.Nop{},
		Log:      logging.Nop{},
		Now:      ts.clock.Now,
	}

	opts = append([]Option{WithUploads(ts.uploads)}, opts...)
	s := NewHTTPServer(":0", logging.Nop{},
		services.NewAuthService(d, cfg),
		services.NewUserService(d, cfg),
		services.NewMessageService(d),
		opts...,
	)
	ts.handler = s.Handler()
	return ts
}

func withLimit(n int) Option {
	return WithRateLimiter(ratelimit.NewLocalLimiter(n, time.Minute))
}

// envelope covers both the success and the error shape.
type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type response struct {
	*httptest.ResponseRecorder
	env envelope
}

func (r response) data(t *testing.T, v any) {
	t.Helper()
	require.NotEmpty(t, r.env.Data, "response has no data")
	require.NoError(t, json.Unmarshal(r.env.Data, v))
}

func (ts *testServer) serve(t *testing.T, req *http.Request) response {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	res := response{ResponseRecorder: rec}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res.env))
	}
	return res
}

// do sends body as JSON. headers alternate name and value.
func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := newJSONRequest(t, method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return ts.serve(t, req)
}

type multipartFile struct {
	field string
	data  []byte
}

func (ts *testServer) multipart(t *testing.T, path, token string, fields map[string]string, files ...multipartFile) response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for i, f := range files {
		fw, err := mw.CreateFormFile(f.field, "file"+string(rune('a'+i))+".png")
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return ts.serve(t, req)
}

type session struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// signup registers a verified email account and logs it in.
func (ts *testServer) signup(t *testing.T, email string) session {
	t.Helper()
	res := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = ts.do(t, http.MethodPost, "/auth/verify-otp", map[string]string{"email": email, "otp": ts.mail.lastCode(t)})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = ts.do(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var s session
	res.data(t, &s)
	return s
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 120, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newJSONRequest(t *testing.T, method, path string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}
