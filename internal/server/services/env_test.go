package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saraha/internal/cryptox"
	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/server/auth"
	"github.com/dmitrijs2005/saraha/internal/server/config"
	"github.com/dmitrijs2005/saraha/internal/server/events"
	"github.com/dmitrijs2005/saraha/internal/server/identity"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/repomanager"
)

// --- fakes ---

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

type sentMail struct {
	to, subject, html string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *captureMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, html})
	return m.err
}

var codeRe = regexp.MustCompile(`<strong>(\d{6})</strong>`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	match := codeRe.FindStringSubmatch(m.sent[len(m.sent)-1].html)
	require.Len(t, match, 2)
	return match[1]
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Put(_ context.Context, key, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) URL(_ context.Context, key string) (string, error) {
	return "mem://" + key, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeVerifier struct {
	profile *identity.Profile
	err     error
}

func (v *fakeVerifier) Verify(context.Context, string) (*identity.Profile, error) {
	return v.profile, v.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.MessageSent
	err    error
}

func (p *recordingPublisher) PublishMessageSent(_ context.Context, ev events.MessageSent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// --- environment ---

type testEnv struct {
	cfg      *config.Config
	clock    *fakeClock
	mail     *captureMailer
	store    *memStore
	verifier *fakeVerifier
	events   *recordingPublisher
	repos    *repomanager.MemoryRepositoryManager

	auth     *AuthService
	users    *UserService
	messages *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	e := &testEnv{
		cfg:      cfg,
		clock:    &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		mail:     &captureMailer{},
		store:    newMemStore(),
		verifier: &fakeVerifier{},
		events:   &recordingPublisher{},
		repos:    repomanager.NewMemoryRepositoryManager(),
	}

	d := Deps{
		Tx:       dbx.NewLockingTransactor(),
		Repos:    e.repos,
		Issuer:   auth.NewIssuer([]byte("test-secret"), auth.WithClock(e.clock.Now)),
		Hasher:   cryptox.NewBcryptHasher(4),
		Mailer:   e.mail,
		Verifier: e.verifier,
		Store:    e.store,
		Events:   e.events,
		Now:      e.clock.Now,
	}
	e.auth = NewAuthService(d, cfg)
	e.users = NewUserService(d, cfg)
	e.messages = NewMessageService(d)
	return e
}

func (e *testEnv) register(t *testing.T, email, phone, password string) string {
	t.Helper()
	acc, err := e.auth.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Lovelace", Email: email, Phone: phone, Password: password,
	})
	require.NoError(t, err)
	return acc.ID
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var errBoom = errors.New("boom")
