package mailer

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dmitrijs2005/saraha/internal/logging"
)

// BreakerMailer bounds every send with a timeout and stops calling the
// wrapped mailer for a while after consecutive failures.
type BreakerMailer struct {
	next    Mailer
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewBreakerMailer(next Mailer, timeout time.Duration, log logging.Logger) *BreakerMailer {
	st := gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerMailer{next: next, cb: gobreaker.NewCircuitBreaker(st), timeout: timeout}
}

func (m *BreakerMailer) Send(ctx context.Context, to, subject, html string) error {
	_, err := m.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return nil, m.next.Send(ctx, to, subject, html)
	})
	return err
}
