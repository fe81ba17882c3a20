package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups.
var (
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
)

// Restaurant represents a restaurant listed on the storefront.
type Restaurant struct {
	ID           string
	Name         string
	Cuisine      string
	Rating       float64
	DeliveryTime string
	Image        string
	Description  string
}

// MenuItem is an immutable catalog entry. Carts and orders reference menu
// items by ID; order lines snapshot the price at checkout time.
type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	Description  string
	Price        decimal.Decimal
	Image        string
	Category     string
}

// Repository defines read operations over the restaurant catalog.
type Repository interface {
	GetRestaurant(ctx context.Context, id string) (*Restaurant, error)
	ListRestaurants(ctx context.Context) ([]Restaurant, error)
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)
	GetMenuItemsByIDs(ctx context.Context, ids []string) ([]MenuItem, error)
	ListMenu(ctx context.Context, restaurantID string) ([]MenuItem, error)
}
