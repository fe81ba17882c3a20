package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickbite/orderflow/internal/domain/catalog"
)

const (
	restaurantColumns = `id, name, cuisine, rating, delivery_time, image, description`

	listRestaurantsSQL = `SELECT ` + restaurantColumns + ` FROM restaurants ORDER BY id`

	getRestaurantSQL = `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`

	upsertRestaurantSQL = `INSERT INTO restaurants (` + restaurantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			cuisine = EXCLUDED.cuisine,
			rating = EXCLUDED.rating,
			delivery_time = EXCLUDED.delivery_time,
			image = EXCLUDED.image,
			description = EXCLUDED.description`

	menuItemColumns = `id, restaurant_id, name, description, price, image, category`

	getMenuItemSQL = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`

	getMenuItemsByIDsSQL = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = ANY($1)`

	listMenuSQL = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE restaurant_id = $1 ORDER BY category, id`

	upsertMenuItemSQL = `INSERT INTO menu_items (` + menuItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			restaurant_id = EXCLUDED.restaurant_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			image = EXCLUDED.image,
			category = EXCLUDED.category`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetRestaurant returns a single restaurant by its identifier.
func (r *CatalogRepository) GetRestaurant(ctx context.Context, id string) (*catalog.Restaurant, error) {
	rows, err := r.pool.Query(ctx, getRestaurantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}

	rest, err := pgx.CollectExactlyOneRow(rows, scanRestaurant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}
	return &rest, nil
}

// ListRestaurants returns every restaurant ordered by ID.
func (r *CatalogRepository) ListRestaurants(ctx context.Context) ([]catalog.Restaurant, error) {
	rows, err := r.pool.Query(ctx, listRestaurantsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	return pgx.CollectRows(rows, scanRestaurant)
}

// GetMenuItem returns a single menu item by its identifier.
func (r *CatalogRepository) GetMenuItem(ctx context.Context, id string) (*catalog.MenuItem, error) {
	rows, err := r.pool.Query(ctx, getMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &item, nil
}

// GetMenuItemsByIDs returns menu items matching any of the given IDs.
func (r *CatalogRepository) GetMenuItemsByIDs(ctx context.Context, ids []string) ([]catalog.MenuItem, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// ListMenu returns a restaurant's full menu grouped by category.
func (r *CatalogRepository) ListMenu(ctx context.Context, restaurantID string) ([]catalog.MenuItem, error) {
	rows, err := r.pool.Query(ctx, listMenuSQL, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("listing menu for restaurant %q: %w", restaurantID, err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// UpsertRestaurant inserts or updates a restaurant. Used by the seed tool.
func (r *CatalogRepository) UpsertRestaurant(ctx context.Context, rest catalog.Restaurant) error {
	_, err := r.pool.Exec(ctx, upsertRestaurantSQL,
		rest.ID, rest.Name, rest.Cuisine, rest.Rating,
		rest.DeliveryTime, rest.Image, rest.Description,
	)
	if err != nil {
		return fmt.Errorf("upserting restaurant %q: %w", rest.ID, err)
	}
	return nil
}

// UpsertMenuItem inserts or updates a menu item. Used by the seed tool.
func (r *CatalogRepository) UpsertMenuItem(ctx context.Context, item catalog.MenuItem) error {
	_, err := r.pool.Exec(ctx, upsertMenuItemSQL,
		item.ID, item.RestaurantID, item.Name, item.Description,
		item.Price, item.Image, item.Category,
	)
	if err != nil {
		return fmt.Errorf("upserting menu item %q: %w", item.ID, err)
	}
	return nil
}

func scanRestaurant(row pgx.CollectableRow) (catalog.Restaurant, error) {
	var rest catalog.Restaurant
	err := row.Scan(
		&rest.ID, &rest.Name, &rest.Cuisine, &rest.Rating,
		&rest.DeliveryTime, &rest.Image, &rest.Description,
	)
	return rest, err
}

func scanMenuItem(row pgx.CollectableRow) (catalog.MenuItem, error) {
	var item catalog.MenuItem
	err := row.Scan(
		&item.ID, &item.RestaurantID, &item.Name, &item.Description,
		&item.Price, &item.Image, &item.Category,
	)
	return item, err
}
