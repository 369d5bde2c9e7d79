package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidCart is returned by Cart.Validate.
var ErrInvalidCart = errors.New("invalid cart")

// LineItem is one product entry in the cart. Prices are in cents.
type LineItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Currency  string `json:"currency"`
	ImageRef  string `json:"image_ref,omitempty"`
	Quantity  int    `json:"quantity"`
	MaxStock  *int   `json:"max_stock,omitempty"`
}

// Subtotal returns unit price times quantity.
func (i LineItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// ExceedsStock reports whether the quantity is above the known stock cap.
// The cap is informational; mutations never clamp against it.
func (i LineItem) ExceedsStock() bool {
	return i.MaxStock != nil && i.Quantity > *i.MaxStock
}

// Cart is the ordered list of line items of one session. At most one line
// exists per product id and insertion order is kept for display.
//
// The functions below never modify their input cart.
type Cart []LineItem

// Find returns the line with the given product id.
func (c Cart) Find(id string) (LineItem, bool) {
	if i := c.index(id); i >= 0 {
		return c[i], true
	}
	return LineItem{}, false
}

func (c Cart) index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate reports lines a mutation could never have produced: an empty or
// repeated product id, or a quantity below 1.
func (c Cart) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, line := range c {
		if line.ID == "" {
			return fmt.Errorf("%w: line without product id", ErrInvalidCart)
		}
		if _, dup := seen[line.ID]; dup {
			return fmt.Errorf("%w: duplicate product %q", ErrInvalidCart, line.ID)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: product %q has quantity %d", ErrInvalidCart, line.ID, line.Quantity)
		}
		seen[line.ID] = struct{}{}
	}
	return nil
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c), len(c)+1)
	copy(out, c)
	return out
}

// AddItem merges qty into the line with item's id, or appends item as a new
// line with that quantity. A qty below 1 counts as 1.
func AddItem(c Cart, item LineItem, qty int) Cart {
	if qty < 1 {
		qty = 1
	}
	out := c.clone()
	if i := out.index(item.ID); i >= 0 {
		out[i].Quantity += qty
		if item.MaxStock != nil {
			out[i].MaxStock = item.MaxStock
		}
		return out
	}
	item.Quantity = qty
	return append(out, item)
}

// SetQuantity replaces the quantity of the line with the given id. A qty of
// zero or less removes the line. Unknown ids leave the cart unchanged.
func SetQuantity(c Cart, id string, qty int) Cart {
	if qty <= 0 {
		return RemoveItem(c, id)
	}
	out := c.clone()
	if i := out.index(id); i >= 0 {
		out[i].Quantity = qty
	}
	return out
}

// RemoveItem drops the line with the given id.
func RemoveItem(c Cart, id string) Cart {
	out := make(Cart, 0, len(c))
	for _, item := range c {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

// Clear returns an empty cart.
func Clear(Cart) Cart {
	return Cart{}
}

// TotalPrice sums unit price times quantity over all lines. Lines are
// assumed to share one currency.
func TotalPrice(c Cart) int64 {
	var total int64
	for _, item := range c {
		total += item.Subtotal()
	}
	return total
}

// TotalItems sums the quantities of all lines.
func TotalItems(c Cart) int {
	var count int
	for _, item := range c {
		count += item.Quantity
	}
	return count
}

// Currency returns the currency of the first line, or "" for an empty cart.
func Currency(c Cart) string {
	if len(c) == 0 {
		return ""
	}
	return c[0].Currency
}
