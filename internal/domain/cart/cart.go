// Package cart implements the client-session shopping cart aggregate.
//
// A cart holds items from at most one restaurant. Adding an item from a
// different restaurant is rejected with a RestaurantConflictError so the
// caller can ask the user whether to start over; Replace is the confirm
// path that clears the cart and starts fresh with the new item.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quickbite/orderflow/internal/domain/catalog"
)

// RestaurantConflictError is returned by Add when the cart already holds
// items from a different restaurant. It is a signal, not a mutation: the
// cart is left untouched.
type RestaurantConflictError struct {
	InCart    string
	Attempted string
}

func (e *RestaurantConflictError) Error() string {
	return fmt.Sprintf("cart holds items from restaurant %s, cannot add from %s", e.InCart, e.Attempted)
}

// Line is a single cart entry: a menu item reference plus a quantity >= 1.
type Line struct {
	Item     catalog.MenuItem
	Quantity int
}

// Cart is a mutable, single-owner collection of lines. The zero value is
// not usable; construct with New. Cart is not safe for concurrent use:
// it models one client session.
type Cart struct {
	restaurantID string
	lines        []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// RestaurantID returns the restaurant the cart belongs to, or "" when empty.
func (c *Cart) RestaurantID() string {
	return c.restaurantID
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Add puts one unit of item into the cart. If a line for the item already
// exists its quantity is incremented. If the cart is non-empty and belongs
// to a different restaurant, Add returns a RestaurantConflictError and
// leaves the cart unchanged.
func (c *Cart) Add(item catalog.MenuItem) error {
	if c.restaurantID != "" && c.restaurantID != item.RestaurantID {
		return &RestaurantConflictError{
			InCart:    c.restaurantID,
			Attempted: item.RestaurantID,
		}
	}

	c.restaurantID = item.RestaurantID
	for i := range c.lines {
		if c.lines[i].Item.ID == item.ID {
			c.lines[i].Quantity++
			return nil
		}
	}
	c.lines = append(c.lines, Line{Item: item, Quantity: 1})
	return nil
}

// Replace clears the cart and starts a fresh one holding a single unit of
// item. It is the confirm path after a RestaurantConflictError.
func (c *Cart) Replace(item catalog.MenuItem) {
	c.Clear()
	c.restaurantID = item.RestaurantID
	c.lines = []Line{{Item: item, Quantity: 1}}
}

// UpdateQuantity sets the quantity of the line for menuItemID. A quantity
// of zero or less removes the line. Unknown IDs are a no-op.
func (c *Cart) UpdateQuantity(menuItemID string, quantity int) {
	if quantity <= 0 {
		c.Remove(menuItemID)
		return
	}
	for i := range c.lines {
		if c.lines[i].Item.ID == menuItemID {
			c.lines[i].Quantity = quantity
			return
		}
	}
}

// Remove deletes the line for menuItemID. When the last line goes, the
// restaurant binding is cleared so any restaurant may be added next.
func (c *Cart) Remove(menuItemID string) {
	for i := range c.lines {
		if c.lines[i].Item.ID == menuItemID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			break
		}
	}
	if len(c.lines) == 0 {
		c.restaurantID = ""
	}
}

// Clear resets the cart to its empty state.
func (c *Cart) Clear() {
	c.restaurantID = ""
	c.lines = nil
}

// Total returns the sum of price*quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// ItemCount returns the sum of quantities over all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}
