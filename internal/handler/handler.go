// Package handler implements the HTTP API surface: checkout, order
// lifecycle, and catalog reads.
package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/quickbite/orderflow/internal/domain/catalog"
	"github.com/quickbite/orderflow/internal/domain/order"
)

// Handler serves the JSON API.
type Handler struct {
	orders  *order.Service
	catalog catalog.Repository
	metrics *Metrics
}

// NewHandler creates a Handler. metrics may be nil in tests.
func NewHandler(orders *order.Service, cat catalog.Repository, metrics *Metrics) *Handler {
	return &Handler{orders: orders, catalog: cat, metrics: metrics}
}

// Routes registers all API routes on mux under the /api prefix.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders/from-cart", h.checkout)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/active", h.activeOrders)
	mux.HandleFunc("GET /api/orders/statistics", h.orderStatistics)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /api/orders/{id}", h.updateOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.deleteOrder)

	mux.HandleFunc("GET /api/restaurants", h.listRestaurants)
	mux.HandleFunc("GET /api/restaurants/{id}", h.getRestaurant)
	mux.HandleFunc("GET /api/restaurants/{id}/menu", h.getMenu)
}

// Metrics holds the handler's OpenTelemetry counters.
type Metrics struct {
	ordersCreated     metric.Int64Counter
	statusTransitions metric.Int64Counter
}

// NewMetrics registers the handler counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ordersCreated, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders created via checkout"))
	if err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	statusTransitions, err := meter.Int64Counter("orders.status_transitions",
		metric.WithDescription("Order status transitions applied"))
	if err != nil {
		return nil, errors.Wrap(err, "orders.status_transitions counter")
	}
	return &Metrics{
		ordersCreated:     ordersCreated,
		statusTransitions: statusTransitions,
	}, nil
}

func (m *Metrics) orderCreated(r *http.Request, restaurantID string) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("restaurant_id", restaurantID)))
}

func (m *Metrics) transition(r *http.Request, to order.Status) {
	if m == nil {
		return
	}
	m.statusTransitions.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("to", string(to))))
}
