// Package mailer delivers transactional email: verification codes and
// password-reset codes.
package mailer

import (
	"context"

	"github.com/dmitrijs2005/saraha/internal/logging"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// LogMailer writes mail to the log instead of sending it. It is used when
// no SMTP host is configured.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log.With("module", "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, html string) error {
	m.log.Info(ctx, "mail not sent, smtp disabled", "to", to, "subject", subject, "body", html)
	return nil
}
