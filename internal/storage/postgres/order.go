package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickbite/orderflow/internal/domain/order"
)

const (
	orderColumns = `id, restaurant_id, customer_name, customer_email, customer_phone,
		delivery_address, status, subtotal, tax, delivery_fee, total,
		payment_method, payment_transaction_id, estimated_delivery_time,
		actual_delivery_time, special_instructions, idempotency_key,
		created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, menu_item_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByIdempotencyKeySQL = `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`

	getOrderItemsSQL = `SELECT menu_item_id, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	listOrdersByEmailSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_email = $1 ORDER BY created_at DESC`

	listOrdersByRestaurantSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE restaurant_id = $1 ORDER BY created_at DESC`

	listOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status = $1 ORDER BY created_at DESC`

	// The status predicate makes the update a compare-and-set: a concurrent
	// transition that already moved the order leaves zero rows here.
	updateOrderStatusSQL = `UPDATE orders SET
			status = $3,
			estimated_delivery_time = COALESCE($4, estimated_delivery_time),
			actual_delivery_time = COALESCE($5, actual_delivery_time),
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns

	updateOrderEstimateSQL = `UPDATE orders SET
			estimated_delivery_time = $2,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header and its line items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.RestaurantID, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.DeliveryAddress, o.Status, o.Subtotal, o.Tax, o.DeliveryFee, o.Total,
		o.PaymentMethod, o.PaymentTransactionID, o.EstimatedDeliveryTime,
		o.ActualDeliveryTime, o.SpecialInstructions, nullIfEmpty(o.IdempotencyKey),
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, line := range o.Lines {
		batch.Queue(createOrderItemSQL, o.ID, line.MenuItemID, line.Quantity, line.UnitPrice, line.TotalPrice)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating order items for %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order header without its line items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderSQL, id)
}

// GetWithLines returns an order with its line items populated.
func (r *OrderRepository) GetWithLines(ctx context.Context, id string) (*order.Order, error) {
	o, err := r.getOne(ctx, getOrderSQL, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order items for %q: %w", id, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting order items for %q: %w", id, err)
	}
	return o, nil
}

// GetByIdempotencyKey returns the order previously created under the key.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIdempotencyKeySQL, key)
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL)
}

// ListByCustomerEmail returns a customer's order history, newest first.
func (r *OrderRepository) ListByCustomerEmail(ctx context.Context, email string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByEmailSQL, email)
}

// ListByRestaurant returns a restaurant's orders, newest first.
func (r *OrderRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByRestaurantSQL, restaurantID)
}

// ListByStatus returns all orders currently in the given status.
func (r *OrderRepository) ListByStatus(ctx context.Context, status order.Status) ([]order.Order, error) {
	return r.list(ctx, listOrdersByStatusSQL, status)
}

// UpdateStatus moves an order from one status to another with a
// compare-and-set on the expected current status. A zero-row update is
// disambiguated with a follow-up read: missing order vs lost race.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, estimated, actual *time.Time) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateOrderStatusSQL, id, from, to, estimated, actual)
	if err != nil {
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, readErr := r.getOne(ctx, getOrderSQL, id); readErr != nil {
				return nil, readErr
			}
			return nil, order.ErrStatusConflict
		}
		return nil, fmt.Errorf("updating order %q status: %w", id, err)
	}
	return &o, nil
}

// UpdateEstimatedDeliveryTime overwrites the delivery estimate directly.
func (r *OrderRepository) UpdateEstimatedDeliveryTime(ctx context.Context, id string, estimated time.Time) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateOrderEstimateSQL, id, estimated)
	if err != nil {
		return nil, fmt.Errorf("updating order %q estimate: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating order %q estimate: %w", id, err)
	}
	return &o, nil
}

// Delete removes an order. Line items cascade.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o   order.Order
		key *string
	)
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.DeliveryAddress, &o.Status, &o.Subtotal, &o.Tax, &o.DeliveryFee, &o.Total,
		&o.PaymentMethod, &o.PaymentTransactionID, &o.EstimatedDeliveryTime,
		&o.ActualDeliveryTime, &o.SpecialInstructions, &key,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if key != nil {
		o.IdempotencyKey = *key
	}
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var line order.Line
	err := row.Scan(&line.MenuItemID, &line.Quantity, &line.UnitPrice, &line.TotalPrice)
	return line, err
}

// nullIfEmpty maps an absent idempotency key to NULL so the partial unique
// index only constrains real keys.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
