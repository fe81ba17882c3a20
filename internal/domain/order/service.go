package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quickbite/orderflow/internal/domain/cart"
	"github.com/quickbite/orderflow/internal/domain/catalog"
	"github.com/quickbite/orderflow/internal/domain/payment"
	"github.com/quickbite/orderflow/internal/domain/pricing"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyCart          = errors.New("cart is empty or invalid")
	ErrQuoteMismatch      = errors.New("client quote does not match recomputed total")
	ErrRestaurantMismatch = errors.New("cart restaurant does not match its items")
)

// MenuItemUnavailableError indicates a cart line references a menu item
// that does not exist in the catalog.
type MenuItemUnavailableError struct {
	MenuItemID string
}

func (e *MenuItemUnavailableError) Error() string {
	return fmt.Sprintf("menu item %s is not available", e.MenuItemID)
}

// InvalidQuantityError indicates a cart line has a non-positive quantity.
type InvalidQuantityError struct {
	MenuItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for menu item %s", e.MenuItemID)
}

// InvalidTransitionError indicates a status move outside the transition
// table. The persisted order is untouched.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// CannotCancelError indicates the order has passed the cancellation window.
type CannotCancelError struct {
	Status Status
}

func (e *CannotCancelError) Error() string {
	return fmt.Sprintf("cannot cancel order with status %s", e.Status)
}

// CartInput is the wire-level cart snapshot: menu item references plus
// quantities. BuildCart resolves it against the catalog into a cart
// aggregate with live prices.
type CartInput struct {
	RestaurantID string
	Items        []ItemInput
}

// ItemInput is one selected menu item.
type ItemInput struct {
	MenuItemID string
	Quantity   int
}

// CustomerInfo holds the contact fields captured at checkout.
type CustomerInfo struct {
	Name                string
	Email               string
	Phone               string
	DeliveryAddress     string
	SpecialInstructions string
}

// PaymentInfo selects the provider and carries the card form.
type PaymentInfo struct {
	Method   string
	Provider payment.Provider
	Card     payment.CardDetails
}

// CheckoutRequest drives a single checkout attempt.
type CheckoutRequest struct {
	Customer CustomerInfo
	Payment  PaymentInfo

	// ClientQuote, when set, is the breakdown the UI displayed. Checkout
	// always recomputes totals from catalog prices and fails if the two
	// disagree, so a stale client can never be charged a different amount.
	ClientQuote *pricing.Breakdown

	// IdempotencyKey, when set, makes resubmission safe: a duplicate key
	// replays the previously created order instead of charging again.
	IdempotencyKey string
}

// CheckoutResult is the outcome of a successful checkout.
type CheckoutResult struct {
	Order *Order
	// Replayed is true when the idempotency key matched an existing order
	// and no new charge was attempted.
	Replayed bool
}

// Service orchestrates checkout and drives the order state machine.
type Service struct {
	catalog   catalog.Repository
	orders    Repository
	payments  *payment.Gateway
	estimator Estimator
	now       func() time.Time

	// seenKeys is a negative-lookup filter in front of the idempotency
	// query: definitely-new keys skip the round trip. False positives
	// fall through to the lookup; a cold filter after restart is covered
	// by the unique index on the key column.
	mu       sync.Mutex
	seenKeys *bloom.BloomFilter
}

// NewService creates an order Service with the required dependencies.
func NewService(cat catalog.Repository, orders Repository, payments *payment.Gateway) *Service {
	return &Service{
		catalog:   cat,
		orders:    orders,
		payments:  payments,
		estimator: NewEstimator(),
		now:       time.Now,
		seenKeys:  bloom.NewWithEstimates(1_000_000, 0.01),
	}
}

// SetEstimator replaces the delivery-time estimator. Intended for wiring
// and tests; not safe to call after the service is serving requests.
func (s *Service) SetEstimator(e Estimator) {
	s.estimator = e
}

// BuildCart resolves a wire-level cart snapshot into a cart aggregate,
// validating quantities, menu item existence, and the single-restaurant
// invariant along the way.
func (s *Service) BuildCart(ctx context.Context, in CartInput) (*cart.Cart, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(in.Items))
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{MenuItemID: item.MenuItemID}
		}
		ids[i] = item.MenuItemID
	}

	fetched, err := s.catalog.GetMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get menu items")
	}
	byID := make(map[string]catalog.MenuItem, len(fetched))
	for _, m := range fetched {
		byID[m.ID] = m
	}

	c := cart.New()
	for _, item := range in.Items {
		m, ok := byID[item.MenuItemID]
		if !ok {
			return nil, &MenuItemUnavailableError{MenuItemID: item.MenuItemID}
		}
		if err := c.Add(m); err != nil {
			return nil, err
		}
		c.UpdateQuantity(m.ID, item.Quantity)
	}

	if in.RestaurantID != "" && c.RestaurantID() != in.RestaurantID {
		return nil, ErrRestaurantMismatch
	}
	return c, nil
}

// Checkout prices the cart, charges the payment gateway, and persists the
// order. The charge is awaited fully before any order state is written;
// creation never begins speculatively. On success the source cart is
// cleared as a side effect visible to the caller.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart, req CheckoutRequest) (*CheckoutResult, error) {
	if existing, ok, err := s.replayForKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if ok {
		return &CheckoutResult{Order: existing, Replayed: true}, nil
	}

	if c == nil || c.IsEmpty() || c.RestaurantID() == "" {
		return nil, ErrEmptyCart
	}

	quote := pricing.Quote(c.Lines())
	total := quote.Total.Round(2)
	if req.ClientQuote != nil && !req.ClientQuote.Total.Round(2).Equal(total) {
		return nil, ErrQuoteMismatch
	}

	id := uuid.New().String()
	resp, err := s.payments.Process(ctx, payment.Request{
		OrderID:       id,
		Amount:        total,
		Currency:      "USD",
		Card:          req.Payment.Card,
		CustomerEmail: req.Customer.Email,
		Description:   "order " + id,
	}, req.Payment.Provider)
	if err != nil {
		return nil, errors.Wrap(err, "process payment")
	}
	if !resp.Success {
		return nil, &payment.ProviderError{
			Provider: req.Payment.Provider,
			Code:     resp.ErrorCode,
			Message:  resp.ErrorMessage,
		}
	}

	method := req.Payment.Method
	if method == "" {
		method = string(req.Payment.Provider)
	}

	now := s.now()
	eta := s.estimator.Initial(now)
	o := &Order{
		ID:                    id,
		RestaurantID:          c.RestaurantID(),
		CustomerName:          req.Customer.Name,
		CustomerEmail:         req.Customer.Email,
		CustomerPhone:         req.Customer.Phone,
		DeliveryAddress:       req.Customer.DeliveryAddress,
		Status:                StatusPlaced,
		Subtotal:              quote.Subtotal.Round(2),
		Tax:                   quote.Tax.Round(2),
		DeliveryFee:           quote.DeliveryFee.Round(2),
		Total:                 total,
		PaymentMethod:         method,
		PaymentTransactionID:  resp.TransactionID,
		EstimatedDeliveryTime: &eta,
		SpecialInstructions:   req.Customer.SpecialInstructions,
		IdempotencyKey:        req.IdempotencyKey,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	for _, l := range c.Lines() {
		qty := decimal.NewFromInt(int64(l.Quantity))
		o.Lines = append(o.Lines, Line{
			MenuItemID: l.Item.ID,
			Quantity:   l.Quantity,
			UnitPrice:  l.Item.Price,
			TotalPrice: l.Item.Price.Mul(qty),
		})
	}

	if err := s.orders.Create(ctx, o); err != nil {
		// The restart-cold filter case: the unique key index rejected a
		// duplicate the bloom filter had not seen yet.
		if req.IdempotencyKey != "" {
			if existing, lookupErr := s.orders.GetByIdempotencyKey(ctx, req.IdempotencyKey); lookupErr == nil {
				s.rememberKey(req.IdempotencyKey)
				return &CheckoutResult{Order: existing, Replayed: true}, nil
			}
		}
		// Payment already captured but the order did not persist. Surface
		// the failure to the caller and leave a reconciliation trail.
		zctx.From(ctx).Error("order persistence failed after successful charge",
			zap.String("order_id", id),
			zap.String("transaction_id", resp.TransactionID),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "create order")
	}

	s.rememberKey(req.IdempotencyKey)
	c.Clear()
	return &CheckoutResult{Order: o}, nil
}

func (s *Service) replayForKey(ctx context.Context, key string) (*Order, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	maybeSeen := s.seenKeys.TestString(key)
	s.mu.Unlock()
	if !maybeSeen {
		return nil, false, nil
	}

	existing, err := s.orders.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		// Bloom false positive.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "lookup idempotency key")
	}
	return existing, true, nil
}

func (s *Service) rememberKey(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.seenKeys.AddString(key)
	s.mu.Unlock()
}

// Transition moves an order to target if the transition table allows it.
// The write is a compare-and-set on the status read here, so two
// concurrent conflicting transitions cannot both succeed; the loser gets
// an InvalidTransitionError and the record is unchanged.
func (s *Service) Transition(ctx context.Context, id string, target Status) (*Order, error) {
	current, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(target) {
		return nil, &InvalidTransitionError{From: current.Status, To: target}
	}

	now := s.now()
	var estimated, actual *time.Time
	if target == StatusDelivered {
		actual = &now
	} else if eta, ok := s.estimator.ForStatus(now, target); ok {
		estimated = &eta
	}

	updated, err := s.orders.UpdateStatus(ctx, id, current.Status, target, estimated, actual)
	if errors.Is(err, ErrStatusConflict) {
		fresh, readErr := s.orders.GetByID(ctx, id)
		if readErr != nil {
			return nil, readErr
		}
		return nil, &InvalidTransitionError{From: fresh.Status, To: target}
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel is a convenience wrapper over Transition to cancelled. Orders
// that are delivered, already cancelled, or out for delivery are past the
// cancellation window.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	current, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case StatusDelivered, StatusCancelled, StatusOutForDelivery:
		return nil, &CannotCancelError{Status: current.Status}
	}
	return s.Transition(ctx, id, StatusCancelled)
}

// UpdateEstimatedDeliveryTime is a direct dispatcher override of the
// delivery estimate.
func (s *Service) UpdateEstimatedDeliveryTime(ctx context.Context, id string, estimated time.Time) (*Order, error) {
	return s.orders.UpdateEstimatedDeliveryTime(ctx, id, estimated)
}

// Delete removes an order permanently. Administrative purge only.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.orders.Delete(ctx, id)
}

// GetByID returns an order header.
func (s *Service) GetByID(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// GetWithLines returns an order with its line items populated.
func (s *Service) GetWithLines(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetWithLines(ctx, id)
}

// List returns all orders, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// ListByCustomerEmail returns a customer's order history.
func (s *Service) ListByCustomerEmail(ctx context.Context, email string) ([]Order, error) {
	return s.orders.ListByCustomerEmail(ctx, email)
}

// ListByRestaurant returns a restaurant's orders.
func (s *Service) ListByRestaurant(ctx context.Context, restaurantID string) ([]Order, error) {
	return s.orders.ListByRestaurant(ctx, restaurantID)
}

// ListByStatus returns all orders currently in the given status.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	return s.orders.ListByStatus(ctx, status)
}

// ActiveByRestaurant returns a restaurant's non-terminal orders, the set a
// kitchen dashboard works from.
func (s *Service) ActiveByRestaurant(ctx context.Context, restaurantID string) ([]Order, error) {
	all, err := s.orders.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	active := make([]Order, 0, len(all))
	for _, o := range all {
		if !o.Status.Terminal() {
			active = append(active, o)
		}
	}
	return active, nil
}

// Statistics aggregates order counts and revenue, optionally scoped to one
// restaurant. Revenue excludes cancelled orders; the average guards
// against division by zero when every order is cancelled.
type Statistics struct {
	TotalOrders       int
	OrdersByStatus    map[Status]int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
}

// Statistics computes aggregate reporting figures.
func (s *Service) Statistics(ctx context.Context, restaurantID string) (*Statistics, error) {
	var (
		all []Order
		err error
	)
	if restaurantID != "" {
		all, err = s.orders.ListByRestaurant(ctx, restaurantID)
	} else {
		all, err = s.orders.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalOrders:       len(all),
		OrdersByStatus:    make(map[Status]int, len(Statuses())),
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	for _, status := range Statuses() {
		stats.OrdersByStatus[status] = 0
	}
	for _, o := range all {
		stats.OrdersByStatus[o.Status]++
		if o.Status != StatusCancelled {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
		}
	}

	nonCancelled := stats.TotalOrders - stats.OrdersByStatus[StatusCancelled]
	if nonCancelled > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.DivRound(decimal.NewFromInt(int64(nonCancelled)), 2)
	}
	return stats, nil
}
