//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListRestaurants(t *testing.T) {
	resp := doGet(t, "/api/restaurants")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	restaurants := decodeJSON[[]restaurantResponse](t, resp)
	if len(restaurants) != 3 {
		t.Fatalf("expected 3 restaurants, got %d", len(restaurants))
	}
}

func TestGetRestaurant(t *testing.T) {
	resp := doGet(t, "/api/restaurants/pizza-palace")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	r := decodeJSON[restaurantResponse](t, resp)
	if r.Name != "Pizza Palace" {
		t.Fatalf("expected Pizza Palace, got %q", r.Name)
	}
}

func TestGetRestaurant_NotFound(t *testing.T) {
	resp := doGet(t, "/api/restaurants/nope")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetMenu(t *testing.T) {
	resp := doGet(t, "/api/restaurants/pizza-palace/menu")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	items := decodeJSON[[]menuItemResponse](t, resp)
	if len(items) != 3 {
		t.Fatalf("expected 3 menu items, got %d", len(items))
	}
	for _, item := range items {
		if item.RestaurantID != "pizza-palace" {
			t.Fatalf("unexpected restaurant %q on item %q", item.RestaurantID, item.ID)
		}
		if item.Price <= 0 {
			t.Fatalf("item %q has non-positive price %f", item.ID, item.Price)
		}
	}
}
