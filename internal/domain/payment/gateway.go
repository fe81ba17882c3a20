package payment

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Gateway dispatches charge requests to a registered processor by provider
// ID. The processor set is built once at startup and injected; there is
// no package-level registry.
type Gateway struct {
	processors      map[Provider]Processor
	defaultProvider Provider
}

// NewGateway builds a gateway from the given processors. defaultProvider
// is used when a request does not name one; it must be among processors.
func NewGateway(defaultProvider Provider, processors ...Processor) *Gateway {
	m := make(map[Provider]Processor, len(processors))
	for _, p := range processors {
		m[p.Provider()] = p
	}
	return &Gateway{processors: m, defaultProvider: defaultProvider}
}

// Providers returns the registered provider IDs.
func (g *Gateway) Providers() []Provider {
	out := make([]Provider, 0, len(g.processors))
	for p := range g.processors {
		out = append(out, p)
	}
	return out
}

// Process runs a single charge attempt against the named provider (or the
// default when provider is empty) and writes one audit log entry per
// attempt. The gateway never retries: resubmitting, with the same or a
// different provider, is a caller decision.
func (g *Gateway) Process(ctx context.Context, req Request, provider Provider) (Response, error) {
	if provider == "" {
		provider = g.defaultProvider
	}

	processor, ok := g.processors[provider]
	if !ok {
		return Response{
			ErrorCode:    CodeUnsupportedProvider,
			ErrorMessage: "payment provider " + string(provider) + " is not supported",
		}, nil
	}

	resp, err := processor.Process(ctx, req)
	if err != nil {
		return Response{}, err
	}

	// Audit trail. Logging never blocks or alters the payment result.
	lg := zctx.From(ctx)
	fields := []zap.Field{
		zap.String("provider", string(provider)),
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.String()),
		zap.Bool("success", resp.Success),
	}
	if resp.Success {
		lg.Info("payment processed", append(fields, zap.String("transaction_id", resp.TransactionID))...)
	} else {
		lg.Info("payment declined", append(fields, zap.String("error_code", resp.ErrorCode))...)
	}

	return resp, nil
}
