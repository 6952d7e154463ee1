package mailer

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/saraha/internal/logging"
)

// fakeSMTP speaks just enough SMTP for one plain-text session.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt string
	data string
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeSMTP{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
	reply("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSpace(line)
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-localhost")
			reply("250 8BITMIME")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			f.mu.Lock()
			f.from = cmd
			f.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			f.mu.Lock()
			f.rcpt = cmd
			f.mu.Unlock()
			reply("250 OK")
		case upper == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			f.mu.Lock()
			f.data = b.String()
			f.mu.Unlock()
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestSMTPMailer_Send(t *testing.T) {
	srv := startFakeSMTP(t)

	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: srv.port(), From: "Saraha <no-reply@saraha.local>"})
	mail := VerificationMail("123456", 5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Send(ctx, "a@x.com", mail.Subject, mail.HTML))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Contains(t, srv.from, "<no-reply@saraha.local>")
	assert.Contains(t, srv.rcpt, "<a@x.com>")
	assert.Contains(t, srv.data, "Subject: Verification Email\r\n")
	assert.Contains(t, srv.data, "Content-Type: text/html")
	assert.Contains(t, srv.data, "<strong>123456</strong>")
}

func TestSMTPMailer_BadRecipient(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "no-reply@saraha.local"})
	err := m.Send(context.Background(), "not an address", "s", "b")
	require.Error(t, err)
}

func TestBuildMessage_StripsHeaderInjection(t *testing.T) {
	msg := string(buildMessage("a@b.c", "c@d.e", "hi\r\nBcc: evil@x.com", "<p>x</p>"))
	assert.NotContains(t, msg, "\r\nBcc:")
}

func TestTemplates(t *testing.T) {
	assert.Equal(t, "Resend Verification Email", ResendMail("1", 2).Subject)
	assert.Contains(t, ResendMail("654321", 2).HTML, "expires in 2 minutes")
	assert.Equal(t, "Password Reset", PasswordResetMail("1", 5).Subject)
}

type stubMailer struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool
}

func (s *stubMailer) Send(ctx context.Context, to, subject, html string) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func TestBreakerMailer_OpensAfterFailures(t *testing.T) {
	next := &stubMailer{err: errors.New("smtp down")}
	m := NewBreakerMailer(next, time.Second, logging.Nop{})

	for i := 0; i < 3; i++ {
		require.Error(t, m.Send(context.Background(), "a@x.com", "s", "b"))
	}

	err := m.Send(context.Background(), "a@x.com", "s", "b")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestBreakerMailer_Timeout(t *testing.T) {
	next := &stubMailer{block: true}
	m := NewBreakerMailer(next, 20*time.Millisecond, logging.Nop{})

	err := m.Send(context.Background(), "a@x.com", "s", "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogMailer(t *testing.T) {
	require.NoError(t, NewLogMailer(logging.Nop{}).Send(context.Background(), "a@x.com", "s", "b"))
}
