package domain

// Product is a catalog entry as served by the external catalog service.
// It is read-only here.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Price         int64    `json:"price"`
	Discount      int      `json:"discount"` // percent
	Currency      string   `json:"currency"`
	StockQuantity int      `json:"stock_quantity"`
	Available     bool     `json:"available"`
	Rating        float64  `json:"rating"`
	Images        []string `json:"images,omitempty"`
}

// FinalPrice returns the price in cents after the percentage discount.
func (p Product) FinalPrice() int64 {
	switch {
	case p.Discount <= 0:
		return p.Price
	case p.Discount >= 100:
		return 0
	}
	return p.Price - p.Price*int64(p.Discount)/100
}

// Purchasable reports whether the product can be added to a cart.
func (p Product) Purchasable() bool {
	return p.Available && p.StockQuantity > 0
}

// Pagination describes one page of a product listing.
type Pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Total int `json:"total"`
}

// LineItemFromProduct builds a single-quantity line from a catalog product,
// pricing it at the discounted price and capping it at the current stock.
func LineItemFromProduct(p Product) LineItem {
	stock := p.StockQuantity
	item := LineItem{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.FinalPrice(),
		Currency:  p.Currency,
		Quantity:  1,
		MaxStock:  &stock,
	}
	if len(p.Images) > 0 {
		item.ImageRef = p.Images[0]
	}
	return item
}
