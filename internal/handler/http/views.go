package http

import (
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/domain"
)

// --- Response views ---

type lineView struct {
	domain.LineItem
	Subtotal     int64 `json:"subtotal"`
	ExceedsStock bool  `json:"exceeds_stock"`
}

type cartView struct {
	Items      []lineView `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice int64      `json:"total_price"`
	Currency   string     `json:"currency,omitempty"`
	// Persisted is only set on mutation responses.
	Persisted *bool `json:"persisted,omitempty"`
}

func newCartView(c domain.Cart) cartView {
	items := make([]lineView, len(c))
	for i, li := range c {
		items[i] = lineView{LineItem: li, Subtotal: li.Subtotal(), ExceedsStock: li.ExceedsStock()}
	}
	return cartView{
		Items:      items,
		TotalItems: domain.TotalItems(c),
		TotalPrice: domain.TotalPrice(c),
		Currency:   domain.Currency(c),
	}
}

type summaryView struct {
	TotalItems int    `json:"total_items"`
	TotalPrice int64  `json:"total_price"`
	Currency   string `json:"currency,omitempty"`
}

func newSummaryView(c domain.Cart) summaryView {
	return summaryView{
		TotalItems: domain.TotalItems(c),
		TotalPrice: domain.TotalPrice(c),
		Currency:   domain.Currency(c),
	}
}

type productView struct {
	domain.Product
	FinalPrice  int64 `json:"final_price"`
	Purchasable bool  `json:"purchasable"`
}

func newProductView(p domain.Product) productView {
	return productView{Product: p, FinalPrice: p.FinalPrice(), Purchasable: p.Purchasable()}
}

type catalogView struct {
	State      catalog.State     `json:"state"`
	Query      catalog.Query     `json:"query"`
	Products   []productView     `json:"products"`
	Pagination domain.Pagination `json:"pagination"`
	Error      string            `json:"error,omitempty"`
}

func newCatalogView(s catalog.Snapshot) catalogView {
	products := make([]productView, len(s.Products))
	for i, p := range s.Products {
		products[i] = newProductView(p)
	}
	return catalogView{
		State:      s.State,
		Query:      s.Query,
		Products:   products,
		Pagination: s.Pagination,
		Error:      s.Error,
	}
}

type checkoutView struct {
	Step      int                 `json:"step"`
	StepName  string              `json:"step_name"`
	Cart      cartView            `json:"cart"`
	Customer  domain.CustomerInfo `json:"customer"`
	Payment   domain.PaymentInfo  `json:"payment"`
	Placing   bool                `json:"placing"`
	OrderID   string              `json:"order_id,omitempty"`
	LastError string              `json:"last_error,omitempty"`
}

func newCheckoutView(co domain.Checkout) checkoutView {
	return checkoutView{
		Step:      int(co.Step),
		StepName:  co.Step.String(),
		Cart:      newCartView(co.Cart),
		Customer:  co.Customer,
		Payment:   co.Payment.Masked(),
		Placing:   co.Placing,
		OrderID:   co.OrderID,
		LastError: co.LastError,
	}
}

type exitView struct {
	Exited   bool   `json:"exited"`
	Redirect string `json:"redirect"`
}

type cardNumberInput struct {
	CardNumber string `json:"card_number" validate:"required,max=64"`
}

type cardNumberView struct {
	DisplayNumber string `json:"display_number"`
	Digits        int    `json:"digits"`
}

func newCardNumberView(raw string) cardNumberView {
	display := domain.FormatCardNumber(raw)
	return cardNumberView{
		DisplayNumber: display,
		Digits:        len(domain.DigitsOnly(display)),
	}
}
