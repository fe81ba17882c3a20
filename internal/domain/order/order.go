// Package order implements the order aggregate, its fulfillment state
// machine, and the checkout orchestration that turns a priced cart plus a
// successful charge into a durable order.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

// Fulfillment states in progression order. Delivered and cancelled are
// terminal.
const (
	StatusPlaced         Status = "order_placed"
	StatusConfirmed      Status = "order_confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready_for_pickup"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// transitions is the exhaustive set of legal moves. Any (from, to) pair not
// listed here, including self-transitions, is rejected. Cancellation is
// reachable from every non-terminal state except out_for_delivery: once a
// courier is dispatched, the only way forward is delivered.
var transitions = map[Status][]Status{
	StatusPlaced:         {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// Statuses returns every valid status in progression order.
func Statuses() []Status {
	return []Status{
		StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled,
	}
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	for _, known := range Statuses() {
		if Status(s) == known {
			return known, nil
		}
	}
	return "", errors.Errorf("invalid order status %q", s)
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no transitions are legal out of s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Line is an order line item. UnitPrice is a snapshot of the catalog price
// at checkout time; lines never change after order creation, so historical
// orders are immune to later catalog price changes.
type Line struct {
	MenuItemID string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Order is the durable aggregate produced by a successful checkout.
// Monetary fields are immutable once captured; only the status and the
// delivery-time fields change afterwards.
type Order struct {
	ID                    string
	RestaurantID          string
	CustomerName          string
	CustomerEmail         string
	CustomerPhone         string
	DeliveryAddress       string
	Status                Status
	Subtotal              decimal.Decimal
	Tax                   decimal.Decimal
	DeliveryFee           decimal.Decimal
	Total                 decimal.Decimal
	PaymentMethod         string
	PaymentTransactionID  string
	EstimatedDeliveryTime *time.Time
	ActualDeliveryTime    *time.Time
	SpecialInstructions   string
	IdempotencyKey        string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Lines                 []Line
}

// Sentinel errors shared by the service and its repositories.
var (
	// ErrNotFound is returned when an order ID does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrStatusConflict is returned by Repository.UpdateStatus when the
	// compare-and-set precondition fails: the order exists but its status
	// changed between read and write.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// Repository defines persistence for orders. Create must write the order
// header and its lines atomically. UpdateStatus must be a compare-and-set
// on the current status so concurrent conflicting transitions cannot both
// succeed.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetWithLines(ctx context.Context, id string) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomerEmail(ctx context.Context, email string) ([]Order, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, estimated, actual *time.Time) (*Order, error)
	UpdateEstimatedDeliveryTime(ctx context.Context, id string, estimated time.Time) (*Order, error)
	Delete(ctx context.Context, id string) error
}
