package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default simulated round-trip latencies per provider.
const (
	stripeLatency = 1500 * time.Millisecond
	paypalLatency = 2 * time.Second
	mockLatency   = time.Second
)

// simulated is the common shape of all simulated processors: shared card
// validation, a latency wait, then a provider-specific decision function.
type simulated struct {
	provider Provider
	latency  time.Duration
	decide   func(req Request) Response
	now      func() time.Time
}

// Option adjusts a simulated processor.
type Option func(*simulated)

// WithLatency overrides the simulated network round-trip time. Tests use
// zero to skip the wait.
func WithLatency(d time.Duration) Option {
	return func(s *simulated) { s.latency = d }
}

// WithClock overrides the clock used for card expiry validation.
func WithClock(now func() time.Time) Option {
	return func(s *simulated) { s.now = now }
}

// Provider returns the backend identifier.
func (p *simulated) Provider() Provider {
	return p.provider
}

// Process validates the card, simulates the network round trip, and
// returns the provider's decision. Invalid cards skip the latency wait.
// The only error return is context cancellation during the wait.
func (p *simulated) Process(ctx context.Context, req Request) (Response, error) {
	if !ValidCard(req.Card, p.now()) {
		return Response{
			ErrorCode:    CodeInvalidCard,
			ErrorMessage: "invalid card details",
		}, nil
	}

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-timer.C:
		}
	}

	return p.decide(req), nil
}

// NewStripe returns the primary provider. It declines based on the card
// number suffix: 0002 declined, 0003 insufficient funds, 0004 network
// error; any other valid card succeeds.
func NewStripe(opts ...Option) Processor {
	return newSimulated(ProviderStripe, stripeLatency, opts, func(req Request) Response {
		switch suffix(req.Card.Number) {
		case "0002":
			return declined(CodeCardDeclined, "your card was declined")
		case "0003":
			return declined(CodeInsufficientFunds, "insufficient funds")
		case "0004":
			return declined(CodeNetworkError, "network error occurred, please try again")
		}
		return approved()
	})
}

// NewPayPal returns the alternate provider. It declines based on the CVV:
// 001 expired card, 002 service unavailable, 003 authentication failure.
func NewPayPal(opts ...Option) Processor {
	return newSimulated(ProviderPayPal, paypalLatency, opts, func(req Request) Response {
		switch req.Card.CVV {
		case "001":
			return declined(CodeCardExpired, "your card has expired")
		case "002":
			return declined(CodeServiceUnavailable, "paypal service is currently unavailable")
		case "003":
			return declined(CodeAuthFailed, "card authentication failed")
		}
		return approved()
	})
}

// NewMock returns the test provider: every valid card succeeds.
func NewMock(opts ...Option) Processor {
	return newSimulated(ProviderMock, mockLatency, opts,
		func(Request) Response { return approved() })
}

func newSimulated(p Provider, latency time.Duration, opts []Option, decide func(Request) Response) *simulated {
	s := &simulated{provider: p, latency: latency, now: time.Now, decide: decide}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func approved() Response {
	return Response{
		Success:       true,
		TransactionID: "txn_" + uuid.New().String(),
	}
}

func declined(code, message string) Response {
	return Response{ErrorCode: code, ErrorMessage: message}
}

func suffix(cardNumber string) string {
	n := strings.ReplaceAll(cardNumber, " ", "")
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}
