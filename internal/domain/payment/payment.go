// Package payment provides a uniform charge contract over interchangeable
// payment providers. Providers here simulate real networks: each applies
// the shared card validation, waits a provider-specific latency, and then
// decides the outcome from a fixed decline matrix.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Provider identifies a payment backend.
type Provider string

// Supported providers.
const (
	ProviderStripe Provider = "stripe"
	ProviderPayPal Provider = "paypal"
	ProviderMock   Provider = "mock"
)

// Error codes carried on failed Responses.
const (
	CodeInvalidCard         = "INVALID_CARD"
	CodeCardDeclined        = "CARD_DECLINED"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeNetworkError        = "NETWORK_ERROR"
	CodeCardExpired         = "CARD_EXPIRED"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeAuthFailed          = "AUTH_FAILED"
	CodeUnsupportedProvider = "UNSUPPORTED_PROVIDER"
)

// CardDetails holds the raw credit card form fields.
type CardDetails struct {
	Number         string
	ExpiryMonth    string
	ExpiryYear     string
	CVV            string
	CardholderName string
}

// Request describes a single charge attempt. Requests are transient value
// objects and are never persisted.
type Request struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	Card          CardDetails
	CustomerEmail string
	Description   string
}

// Response is the outcome of a charge attempt: either a transaction ID on
// success, or an error code plus human-readable message.
type Response struct {
	Success       bool
	TransactionID string
	ErrorCode     string
	ErrorMessage  string
}

// Processor is a single payment backend. Each attempt is stateless; the
// gateway never retries on behalf of the caller.
type Processor interface {
	Process(ctx context.Context, req Request) (Response, error)
	Provider() Provider
}

// ProviderError wraps a declined Response so callers can branch on the
// provider-supplied code with errors.As.
type ProviderError struct {
	Provider Provider
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment via %s failed: %s (%s)", e.Provider, e.Message, e.Code)
}
