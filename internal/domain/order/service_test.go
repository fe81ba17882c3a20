package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/orderflow/internal/domain/cart"
	"github.com/quickbite/orderflow/internal/domain/catalog"
	"github.com/quickbite/orderflow/internal/domain/payment"
	"github.com/quickbite/orderflow/internal/domain/pricing"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

type mockCatalog struct {
	items map[string]catalog.MenuItem
}

func (m *mockCatalog) GetRestaurant(_ context.Context, id string) (*catalog.Restaurant, error) {
	return &catalog.Restaurant{ID: id, Name: "Testaurant"}, nil
}

func (m *mockCatalog) ListRestaurants(_ context.Context) ([]catalog.Restaurant, error) {
	return nil, nil
}

func (m *mockCatalog) GetMenuItem(_ context.Context, id string) (*catalog.MenuItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, catalog.ErrMenuItemNotFound
	}
	return &item, nil
}

func (m *mockCatalog) GetMenuItemsByIDs(_ context.Context, ids []string) ([]catalog.MenuItem, error) {
	var out []catalog.MenuItem
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockCatalog) ListMenu(_ context.Context, restaurantID string) ([]catalog.MenuItem, error) {
	var out []catalog.MenuItem
	for _, item := range m.items {
		if item.RestaurantID == restaurantID {
			out = append(out, item)
		}
	}
	return out, nil
}

type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*Order
	createErr error
	// casFailures makes the next n UpdateStatus calls fail the CAS check.
	casFailures int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*Order)}
}

func clone(o *Order) *Order {
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp
}

func (m *memOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if o.IdempotencyKey != "" {
		for _, existing := range m.orders {
			if existing.IdempotencyKey == o.IdempotencyKey {
				return errors.New("duplicate idempotency key")
			}
		}
	}
	m.orders[o.ID] = clone(o)
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(o), nil
}

func (m *memOrderRepo) GetWithLines(ctx context.Context, id string) (*Order, error) {
	return m.GetByID(ctx, id)
}

func (m *memOrderRepo) GetByIdempotencyKey(_ context.Context, key string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey == key {
			return clone(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrderRepo) List(_ context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *clone(o))
	}
	return out, nil
}

func (m *memOrderRepo) ListByCustomerEmail(ctx context.Context, email string) ([]Order, error) {
	all, _ := m.List(ctx)
	var out []Order
	for _, o := range all {
		if o.CustomerEmail == email {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) ListByRestaurant(ctx context.Context, restaurantID string) ([]Order, error) {
	all, _ := m.List(ctx)
	var out []Order
	for _, o := range all {
		if o.RestaurantID == restaurantID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	all, _ := m.List(ctx)
	var out []Order
	for _, o := range all {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrderRepo) UpdateStatus(_ context.Context, id string, from, to Status, estimated, actual *time.Time) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.casFailures > 0 {
		m.casFailures--
		return nil, ErrStatusConflict
	}
	if o.Status != from {
		return nil, ErrStatusConflict
	}
	o.Status = to
	if estimated != nil {
		o.EstimatedDeliveryTime = estimated
	}
	if actual != nil {
		o.ActualDeliveryTime = actual
	}
	o.UpdatedAt = time.Now()
	return clone(o), nil
}

func (m *memOrderRepo) UpdateEstimatedDeliveryTime(_ context.Context, id string, estimated time.Time) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.EstimatedDeliveryTime = &estimated
	o.UpdatedAt = time.Now()
	return clone(o), nil
}

func (m *memOrderRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

// countingProcessor records how many charges actually ran.
type countingProcessor struct {
	mu      sync.Mutex
	charges int
}

func (c *countingProcessor) Provider() payment.Provider { return payment.ProviderMock }

func (c *countingProcessor) Process(_ context.Context, _ payment.Request) (payment.Response, error) {
	c.mu.Lock()
	c.charges++
	c.mu.Unlock()
	return payment.Response{Success: true, TransactionID: "txn_test"}, nil
}

// --- Helpers ---

func testCatalog() *mockCatalog {
	return &mockCatalog{items: map[string]catalog.MenuItem{
		"m1": {ID: "m1", RestaurantID: "r1", Name: "Margherita", Price: decimal.RequireFromString("16.99")},
		"m2": {ID: "m2", RestaurantID: "r1", Name: "Garlic Bread", Price: decimal.RequireFromString("4.50")},
		"m3": {ID: "m3", RestaurantID: "r2", Name: "Pad Thai", Price: decimal.RequireFromString("12.00")},
	}}
}

func testService(repo Repository) *Service {
	gw := payment.NewGateway(payment.ProviderStripe,
		payment.NewStripe(payment.WithLatency(0)),
		payment.NewPayPal(payment.WithLatency(0)),
		payment.NewMock(payment.WithLatency(0)),
	)
	svc := NewService(testCatalog(), repo, gw)
	svc.SetEstimator(&RandomEstimator{intn: func(int) int { return 0 }})
	svc.now = func() time.Time { return testNow }
	return svc
}

func validCard() payment.CardDetails {
	return payment.CardDetails{
		Number:         "4532 1234 5678 9012",
		ExpiryMonth:    "12",
		ExpiryYear:     "30",
		CVV:            "123",
		CardholderName: "Jamie Doe",
	}
}

func checkoutReq() CheckoutRequest {
	return CheckoutRequest{
		Customer: CustomerInfo{
			Name:            "Jamie Doe",
			Email:           "jamie@example.com",
			Phone:           "555-0101",
			DeliveryAddress: "1 Main St",
		},
		Payment: PaymentInfo{
			Method:   "credit_card",
			Provider: payment.ProviderStripe,
			Card:     validCard(),
		},
	}
}

func buildTestCart(t *testing.T, svc *Service, items ...ItemInput) *cart.Cart {
	t.Helper()
	c, err := svc.BuildCart(context.Background(), CartInput{RestaurantID: "r1", Items: items})
	require.NoError(t, err)
	return c
}

// --- BuildCart ---

func TestBuildCart_Empty(t *testing.T) {
	svc := testService(newMemOrderRepo())
	_, err := svc.BuildCart(context.Background(), CartInput{RestaurantID: "r1"})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestBuildCart_InvalidQuantity(t *testing.T) {
	svc := testService(newMemOrderRepo())
	_, err := svc.BuildCart(context.Background(), CartInput{
		RestaurantID: "r1",
		Items:        []ItemInput{{MenuItemID: "m1", Quantity: 0}},
	})
	var iq *InvalidQuantityError
	require.ErrorAs(t, err, &iq)
	assert.Equal(t, "m1", iq.MenuItemID)
}

func TestBuildCart_UnknownItem(t *testing.T) {
	svc := testService(newMemOrderRepo())
	_, err := svc.BuildCart(context.Background(), CartInput{
		RestaurantID: "r1",
		Items:        []ItemInput{{MenuItemID: "nope", Quantity: 1}},
	})
	var missing *MenuItemUnavailableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nope", missing.MenuItemID)
}

func TestBuildCart_CrossRestaurant(t *testing.T) {
	svc := testService(newMemOrderRepo())
	_, err := svc.BuildCart(context.Background(), CartInput{
		RestaurantID: "r1",
		Items: []ItemInput{
			{MenuItemID: "m1", Quantity: 1},
			{MenuItemID: "m3", Quantity: 1},
		},
	})
	var conflict *cart.RestaurantConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestBuildCart_RestaurantMismatch(t *testing.T) {
	svc := testService(newMemOrderRepo())
	_, err := svc.BuildCart(context.Background(), CartInput{
		RestaurantID: "r2",
		Items:        []ItemInput{{MenuItemID: "m1", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrRestaurantMismatch)
}

// --- Checkout ---

func TestCheckout_Success(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)
	c := buildTestCart(t, svc, ItemInput{MenuItemID: "m1", Quantity: 1})

	result, err := svc.Checkout(context.Background(), c, checkoutReq())
	require.NoError(t, err)
	require.False(t, result.Replayed)

	o := result.Order
	assert.Equal(t, StatusPlaced, o.Status)
	assert.Equal(t, "r1", o.RestaurantID)
	assert.Equal(t, "16.99", o.Subtotal.String())
	assert.Equal(t, "1.51", o.Tax.String())
	assert.Equal(t, "2.99", o.DeliveryFee.String())
	assert.Equal(t, "21.49", o.Total.String())
	assert.NotEmpty(t, o.PaymentTransactionID)
	assert.Equal(t, "credit_card", o.PaymentMethod)

	require.NotNil(t, o.EstimatedDeliveryTime)
	assert.Equal(t, testNow.Add(30*time.Minute), *o.EstimatedDeliveryTime)
	assert.Nil(t, o.ActualDeliveryTime)

	require.Len(t, o.Lines, 1)
	assert.Equal(t, "m1", o.Lines[0].MenuItemID)
	assert.Equal(t, "16.99", o.Lines[0].UnitPrice.String())
	assert.True(t, o.Lines[0].TotalPrice.Equal(o.Lines[0].UnitPrice))

	// The source cart is cleared on success.
	assert.True(t, c.IsEmpty())

	// And the order is durable.
	persisted, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaced, persisted.Status)
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc := testService(newMemOrderRepo())
	_, err := svc.Checkout(context.Background(), cart.New(), checkoutReq())
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_Declined_NoOrderCreated(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)
	c := buildTestCart(t, svc, ItemInput{MenuItemID: "m1", Quantity: 1})

	req := checkoutReq()
	req.Payment.Card.Number = "4000000000000002"

	_, err := svc.Checkout(context.Background(), c, req)

	var provErr *payment.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, payment.CodeCardDeclined, provErr.Code)

	all, _ := repo.List(context.Background())
	assert.Empty(t, all)
	// Cart survives a failed attempt so the user can retry.
	assert.False(t, c.IsEmpty())
}

func TestCheckout_QuoteMismatch(t *testing.T) {
	svc := testService(newMemOrderRepo())
	c := buildTestCart(t, svc, ItemInput{MenuItemID: "m1", Quantity: 1})

	req := checkoutReq()
	req.ClientQuote = &pricing.Breakdown{Total: decimal.RequireFromString("19.99")}

	_, err := svc.Checkout(context.Background(), c, req)
	require.ErrorIs(t, err, ErrQuoteMismatch)
}

func TestCheckout_MatchingClientQuote(t *testing.T) {
	svc := testService(newMemOrderRepo())
	c := buildTestCart(t, svc, ItemInput{MenuItemID: "m1", Quantity: 1})

	req := checkoutReq()
	req.ClientQuote = &pricing.Breakdown{Total: decimal.RequireFromString("21.49")}

	_, err := svc.Checkout(context.Background(), c, req)
	require.NoError(t, err)
}

func TestCheckout_PersistFailureSurfaced(t *testing.T) {
	repo := newMemOrderRepo()
	repo.createErr = errors.New("db down")
	svc := testService(repo)
	c := buildTestCart(t, svc, ItemInput{MenuItemID: "m1", Quantity: 1})

	_, err := svc.Checkout(context.Background(), c, checkoutReq())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	// Cart is not cleared when the order did not persist.
	assert.False(t, c.IsEmpty())
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	repo := newMemOrderRepo()
	counting := &countingProcessor{}
	svc := NewService(testCatalog(), repo, payment.NewGateway(payment.ProviderMock, counting))
	svc.SetEstimator(&RandomEstimator{intn: func(int) int { return 0 }})
	svc.now = func() time.Time { return testNow }

	req := checkoutReq()
	req.Payment.Provider = payment.ProviderMock
	req.IdempotencyKey = "cart-42-attempt-1"

	first, err := svc.Checkout(context.Background(), buildTestCart(t, svc, ItemInput{MenuItemID: "m1", Quantity: 1}), req)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := svc.Checkout(context.Background(), buildTestCart(t, svc, ItemInput{MenuItemID: "m1", Quantity: 1}), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	assert.Equal(t, 1, counting.charges)
	all, _ := repo.List(context.Background())
	assert.Len(t, all, 1)
}

// --- Transitions ---

func placeOrder(t *testing.T, svc *Service, repo *memOrderRepo) *Order {
	t.Helper()
	c := buildTestCart(t, svc, ItemInput{MenuItemID: "m1", Quantity: 1})
	result, err := svc.Checkout(context.Background(), c, checkoutReq())
	require.NoError(t, err)
	return result.Order
}

func TestTransition_HappyPath(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)
	o := placeOrder(t, svc, repo)

	steps := []struct {
		to       Status
		etaAfter time.Duration // 0 means the estimate is not recomputed
	}{
		{StatusConfirmed, 25 * time.Minute},
		{StatusPreparing, 20 * time.Minute},
		{StatusReady, 10 * time.Minute},
		{StatusOutForDelivery, 5 * time.Minute},
		{StatusDelivered, 0},
	}

	for _, step := range steps {
		updated, err := svc.Transition(context.Background(), o.ID, step.to)
		require.NoError(t, err, "to %s", step.to)
		assert.Equal(t, step.to, updated.Status)
		if step.etaAfter > 0 {
			require.NotNil(t, updated.EstimatedDeliveryTime)
			assert.Equal(t, testNow.Add(step.etaAfter), *updated.EstimatedDeliveryTime)
			assert.Nil(t, updated.ActualDeliveryTime)
		}
	}

	final, err := svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, final.ActualDeliveryTime)
	assert.Equal(t, testNow, *final.ActualDeliveryTime)
	// Delivered keeps the last estimate untouched.
	require.NotNil(t, final.EstimatedDeliveryTime)
	assert.Equal(t, testNow.Add(5*time.Minute), *final.EstimatedDeliveryTime)
}

func TestTransition_SkippingStateRejected(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)
	o := placeOrder(t, svc, repo)

	_, err := svc.Transition(context.Background(), o.ID, StatusPreparing)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusPlaced, invalid.From)
	assert.Equal(t, StatusPreparing, invalid.To)

	// No partial write: the persisted status is unchanged.
	persisted, _ := repo.GetByID(context.Background(), o.ID)
	assert.Equal(t, StatusPlaced, persisted.Status)
}

func TestTransition_NotFound(t *testing.T) {
	svc := testService(newMemOrderRepo())
	_, err := svc.Transition(context.Background(), "missing", StatusConfirmed)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransition_ConcurrentConflict(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)
	o := placeOrder(t, svc, repo)

	// Simulate another writer winning the race on the first CAS attempt.
	repo.casFailures = 1

	_, err := svc.Transition(context.Background(), o.ID, StatusConfirmed)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

// --- Cancel ---

func TestCancel_Windows(t *testing.T) {
	cancellable := []Status{StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady}
	blocked := []Status{StatusOutForDelivery, StatusDelivered, StatusCancelled}

	advanceTo := map[Status][]Status{
		StatusPlaced:         {},
		StatusConfirmed:      {StatusConfirmed},
		StatusPreparing:      {StatusConfirmed, StatusPreparing},
		StatusReady:          {StatusConfirmed, StatusPreparing, StatusReady},
		StatusOutForDelivery: {StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery},
		StatusDelivered:      {StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered},
		StatusCancelled:      {StatusCancelled},
	}

	for _, target := range cancellable {
		t.Run("allows_"+string(target), func(t *testing.T) {
			repo := newMemOrderRepo()
			svc := testService(repo)
			o := placeOrder(t, svc, repo)
			for _, step := range advanceTo[target] {
				_, err := svc.Transition(context.Background(), o.ID, step)
				require.NoError(t, err)
			}

			cancelled, err := svc.Cancel(context.Background(), o.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, cancelled.Status)
		})
	}

	for _, target := range blocked {
		t.Run("blocks_"+string(target), func(t *testing.T) {
			repo := newMemOrderRepo()
			svc := testService(repo)
			o := placeOrder(t, svc, repo)
			for _, step := range advanceTo[target] {
				_, err := svc.Transition(context.Background(), o.ID, step)
				require.NoError(t, err)
			}

			_, err := svc.Cancel(context.Background(), o.ID)
			var cc *CannotCancelError
			require.ErrorAs(t, err, &cc)
			assert.Equal(t, target, cc.Status)
		})
	}
}

// --- Dispatcher override, queries, statistics ---

func TestUpdateEstimatedDeliveryTime(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)
	o := placeOrder(t, svc, repo)

	manual := testNow.Add(90 * time.Minute)
	updated, err := svc.UpdateEstimatedDeliveryTime(context.Background(), o.ID, manual)
	require.NoError(t, err)
	require.NotNil(t, updated.EstimatedDeliveryTime)
	assert.Equal(t, manual, *updated.EstimatedDeliveryTime)

	_, err = svc.UpdateEstimatedDeliveryTime(context.Background(), "missing", manual)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestActiveByRestaurant(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)

	a := placeOrder(t, svc, repo)
	b := placeOrder(t, svc, repo)
	_, err := svc.Cancel(context.Background(), b.ID)
	require.NoError(t, err)

	active, err := svc.ActiveByRestaurant(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
}

func TestStatistics(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)

	placeOrder(t, svc, repo)       // 21.49
	placeOrder(t, svc, repo)       // 21.49
	c := placeOrder(t, svc, repo)  // cancelled, excluded from revenue
	_, err := svc.Cancel(context.Background(), c.ID)
	require.NoError(t, err)

	stats, err := svc.Statistics(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 2, stats.OrdersByStatus[StatusPlaced])
	assert.Equal(t, 1, stats.OrdersByStatus[StatusCancelled])
	assert.Equal(t, 0, stats.OrdersByStatus[StatusDelivered])
	assert.Equal(t, "42.98", stats.TotalRevenue.String())
	assert.Equal(t, "21.49", stats.AverageOrderValue.String())
}

func TestStatistics_AllCancelled(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)

	o := placeOrder(t, svc, repo)
	_, err := svc.Cancel(context.Background(), o.ID)
	require.NoError(t, err)

	stats, err := svc.Statistics(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, stats.TotalRevenue.IsZero())
	assert.True(t, stats.AverageOrderValue.IsZero())
}

func TestStatistics_Empty(t *testing.T) {
	svc := testService(newMemOrderRepo())

	stats, err := svc.Statistics(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalOrders)
	assert.True(t, stats.AverageOrderValue.IsZero())
}

func TestDelete(t *testing.T) {
	repo := newMemOrderRepo()
	svc := testService(repo)
	o := placeOrder(t, svc, repo)

	require.NoError(t, svc.Delete(context.Background(), o.ID))
	_, err := svc.GetByID(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, svc.Delete(context.Background(), o.ID), ErrNotFound)
}
