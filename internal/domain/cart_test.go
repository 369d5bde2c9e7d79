package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func item(id string, price int64, qty int) LineItem {
	return LineItem{ID: id, Name: "Item " + id, UnitPrice: price, Currency: "USD", Quantity: qty}
}

// ============================================================================
// AddItem Tests
// ============================================================================

func TestAddItem_NewProductAppends(t *testing.T) {
	c := Cart{item("a", 1000, 2), item("b", 500, 1)}

	out := AddItem(c, item("c", 250, 0), 1)

	require.Len(t, out, 3)
	assert.Equal(t, "c", out[2].ID)
	assert.Equal(t, 1, out[2].Quantity)
	assert.Equal(t, TotalItems(c)+1, TotalItems(out))
}

func TestAddItem_ExistingProductMergesQuantity(t *testing.T) {
	c := Cart{item("a", 1000, 2), item("b", 500, 1)}

	out := AddItem(c, LineItem{ID: "a"}, 3)

	require.Len(t, out, 2)
	assert.Equal(t, 5, out[0].Quantity)
	assert.Equal(t, int64(1000), out[0].UnitPrice)
}

func TestAddItem_QuantityBelowOneCountsAsOne(t *testing.T) {
	out := AddItem(Cart{}, item("a", 100, 0), 0)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Quantity)

	out = AddItem(out, item("a", 100, 0), -4)
	assert.Equal(t, 2, out[0].Quantity)
}

func TestAddItem_DoesNotModifyInput(t *testing.T) {
	c := Cart{item("a", 1000, 2)}

	_ = AddItem(c, LineItem{ID: "a"}, 1)
	_ = AddItem(c, item("b", 10, 0), 1)

	require.Len(t, c, 1)
	assert.Equal(t, 2, c[0].Quantity)
}

func TestAddItem_MaxStockIsNotClamped(t *testing.T) {
	p := item("a", 1000, 0)
	p.MaxStock = intPtr(1)

	c := AddItem(Cart{}, p, 1)
	c = AddItem(c, p, 1)

	require.Len(t, c, 1)
	assert.Equal(t, 2, c[0].Quantity)
	assert.True(t, c[0].ExceedsStock())
}

func TestAddItem_NilCart(t *testing.T) {
	out := AddItem(nil, item("a", 100, 0), 1)
	require.Len(t, out, 1)
}

// ============================================================================
// SetQuantity / RemoveItem Tests
// ============================================================================

func TestSetQuantity_ReplacesQuantity(t *testing.T) {
	c := Cart{item("a", 1000, 2), item("b", 500, 1)}

	out := SetQuantity(c, "b", 7)

	assert.Equal(t, 7, out[1].Quantity)
	assert.Equal(t, 1, c[1].Quantity)
}

func TestSetQuantity_ZeroOrLessEqualsRemove(t *testing.T) {
	carts := []Cart{
		{},
		{item("a", 1000, 2)},
		{item("a", 1000, 2), item("b", 500, 1), item("c", 50, 4)},
	}
	for _, c := range carts {
		for _, id := range []string{"a", "b", "missing"} {
			assert.Equal(t, RemoveItem(c, id), SetQuantity(c, id, 0))
			assert.Equal(t, RemoveItem(c, id), SetQuantity(c, id, -1))
		}
	}
}

func TestSetQuantity_UnknownIDIsNoop(t *testing.T) {
	c := Cart{item("a", 1000, 2)}
	assert.Equal(t, c, SetQuantity(c, "zzz", 3))
}

func TestRemoveItem_KeepsOrder(t *testing.T) {
	c := Cart{item("a", 1, 1), item("b", 1, 1), item("c", 1, 1)}

	out := RemoveItem(c, "b")

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
	assert.Len(t, c, 3)
}

func TestRemoveItem_AbsentIsNoop(t *testing.T) {
	c := Cart{item("a", 1, 1)}
	assert.Equal(t, c, RemoveItem(c, "b"))
}

func TestClear(t *testing.T) {
	out := Clear(Cart{item("a", 1, 1)})
	assert.Empty(t, out)
	assert.NotNil(t, out)
}

// ============================================================================
// Totals Tests
// ============================================================================

func TestTotals_Scenario(t *testing.T) {
	c := Cart{item("a", 10, 2)}
	assert.Equal(t, int64(20), TotalPrice(c))
	assert.Equal(t, 2, TotalItems(c))
}

func TestTotalPrice_InvariantUnderReordering(t *testing.T) {
	c := Cart{item("a", 1999, 2), item("b", 500, 3), item("c", 2500, 1)}
	reversed := Cart{c[2], c[1], c[0]}
	rotated := Cart{c[1], c[2], c[0]}

	assert.Equal(t, int64(7998), TotalPrice(c))
	assert.Equal(t, TotalPrice(c), TotalPrice(reversed))
	assert.Equal(t, TotalPrice(c), TotalPrice(rotated))
}

func TestTotals_EmptyCart(t *testing.T) {
	assert.Equal(t, int64(0), TotalPrice(nil))
	assert.Equal(t, 0, TotalItems(Cart{}))
	assert.Equal(t, "", Currency(nil))
}

func TestFind(t *testing.T) {
	c := Cart{item("a", 1, 1), item("b", 2, 3)}

	got, ok := c.Find("b")
	require.True(t, ok)
	assert.Equal(t, 3, got.Quantity)

	_, ok = c.Find("x")
	assert.False(t, ok)
}

func TestExceedsStock(t *testing.T) {
	li := item("a", 1, 3)
	assert.False(t, li.ExceedsStock())

	li.MaxStock = intPtr(3)
	assert.False(t, li.ExceedsStock())

	li.MaxStock = intPtr(2)
	assert.True(t, li.ExceedsStock())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cart    Cart
		wantErr bool
	}{
		{"empty", Cart{}, false},
		{"well formed", Cart{item("a", 10, 1), item("b", 5, 3)}, false},
		{"duplicate id", Cart{item("a", 10, 1), item("a", 10, 2)}, true},
		{"zero quantity", Cart{item("a", 10, 0)}, true},
		{"negative quantity", Cart{item("a", 10, -2)}, true},
		{"missing id", Cart{item("", 10, 1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cart.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCart)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
