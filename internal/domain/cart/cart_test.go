package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/orderflow/internal/domain/catalog"
)

func item(id, restaurantID, price string) catalog.MenuItem {
	return catalog.MenuItem{
		ID:           id,
		RestaurantID: restaurantID,
		Name:         "item " + id,
		Price:        decimal.RequireFromString(price),
		Category:     "mains",
	}
}

func TestAdd_NewAndIncrement(t *testing.T) {
	c := New()

	require.NoError(t, c.Add(item("m1", "r1", "9.99")))
	require.NoError(t, c.Add(item("m1", "r1", "9.99")))
	require.NoError(t, c.Add(item("m2", "r1", "4.50")))

	assert.Equal(t, "r1", c.RestaurantID())
	require.Len(t, c.Lines(), 2)
	assert.Equal(t, 2, c.Lines()[0].Quantity)
	assert.Equal(t, 3, c.ItemCount())
}

func TestAdd_RestaurantConflict(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(item("m1", "r1", "9.99")))

	err := c.Add(item("m9", "r2", "5.00"))

	var conflict *RestaurantConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "r1", conflict.InCart)
	assert.Equal(t, "r2", conflict.Attempted)

	// Cart must be untouched by the rejected add.
	assert.Equal(t, "r1", c.RestaurantID())
	assert.Equal(t, 1, c.ItemCount())
}

// The single-restaurant invariant holds for any sequence of adds: a mix of
// items from two restaurants never produces a mixed cart.
func TestAdd_InvariantUnderInterleaving(t *testing.T) {
	c := New()
	items := []catalog.MenuItem{
		item("a1", "r1", "1.00"),
		item("b1", "r2", "2.00"),
		item("a2", "r1", "3.00"),
		item("b2", "r2", "4.00"),
	}
	for _, it := range items {
		_ = c.Add(it)
		for _, l := range c.Lines() {
			assert.Equal(t, c.RestaurantID(), l.Item.RestaurantID)
		}
	}
}

func TestReplace(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(item("m1", "r1", "9.99")))

	c.Replace(item("m9", "r2", "5.00"))

	assert.Equal(t, "r2", c.RestaurantID())
	require.Len(t, c.Lines(), 1)
	assert.Equal(t, "m9", c.Lines()[0].Item.ID)
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestUpdateQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(item("m1", "r1", "9.99")))

	c.UpdateQuantity("m1", 5)
	assert.Equal(t, 5, c.ItemCount())

	// Zero or negative removes the line.
	c.UpdateQuantity("m1", 0)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "", c.RestaurantID())
}

func TestRemove_ClearsRestaurantWhenEmpty(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(item("m1", "r1", "9.99")))
	require.NoError(t, c.Add(item("m2", "r1", "4.50")))

	c.Remove("m1")
	assert.Equal(t, "r1", c.RestaurantID())

	c.Remove("m2")
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "", c.RestaurantID())

	// Cart is reusable with a different restaurant afterwards.
	require.NoError(t, c.Add(item("x1", "r2", "3.00")))
	assert.Equal(t, "r2", c.RestaurantID())
}

func TestTotalAndClear(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(item("m1", "r1", "9.99")))
	require.NoError(t, c.Add(item("m2", "r1", "4.50")))
	c.UpdateQuantity("m1", 2)

	assert.True(t, decimal.RequireFromString("24.48").Equal(c.Total()))

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, decimal.Zero.Equal(c.Total()))
	assert.Equal(t, 0, c.ItemCount())
}
