package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	pkgvalidator "github.com/utafrali/storefront/pkg/validator"
)

// Step is a position in the checkout flow.
type Step int

const (
	StepCustomer     Step = 1
	StepPayment      Step = 2
	StepConfirmation Step = 3
)

func (s Step) String() string {
	switch s {
	case StepCustomer:
		return "customer"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// PaymentMethod selects how an order is paid.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

// Checkout flow errors.
var (
	ErrEmptyCart        = errors.New("checkout cart is empty")
	ErrWrongStep        = errors.New("action not allowed at the current checkout step")
	ErrCheckoutComplete = errors.New("checkout is already complete")
	ErrOrderInFlight    = errors.New("order placement already in progress")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func init() {
	err := pkgvalidator.Register("simple_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}, "must be a valid email address")
	if err != nil {
		panic(err)
	}
}

// FieldError names the first form field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Message
}

// CustomerInfo is the step 1 form.
type CustomerInfo struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,simple_email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
}

// Validate trims all fields and checks them in form order.
func (c *CustomerInfo) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	return firstFieldError(pkgvalidator.Validate(c))
}

// PaymentInfo is the step 2 form. Card fields are only required for the
// card method.
type PaymentInfo struct {
	Method     PaymentMethod `json:"method" validate:"required,oneof=cash_on_delivery card"`
	CardNumber string        `json:"card_number,omitempty" validate:"required_if=Method card"`
	CardHolder string        `json:"card_holder,omitempty" validate:"required_if=Method card"`
	Expiry     string        `json:"expiry,omitempty" validate:"required_if=Method card"`
	CVV        string        `json:"cvv,omitempty" validate:"required_if=Method card"`
}

// Validate checks required fields, then the card number length on its
// digit-only form.
func (p *PaymentInfo) Validate() error {
	p.CardHolder = strings.TrimSpace(p.CardHolder)
	p.Expiry = strings.TrimSpace(p.Expiry)
	p.CVV = strings.TrimSpace(p.CVV)
	if err := firstFieldError(pkgvalidator.Validate(p)); err != nil {
		return err
	}
	if p.Method != PaymentCard {
		return nil
	}
	if n := len(DigitsOnly(p.CardNumber)); n < minCardDigits || n > maxCardDigits {
		return &FieldError{Field: "card_number", Message: "must be 13 to 19 digits"}
	}
	return nil
}

// Masked returns a copy safe to echo back to clients: the card number
// reduced to its last four digits and no CVV.
func (p PaymentInfo) Masked() PaymentInfo {
	out := PaymentInfo{Method: p.Method, CardHolder: p.CardHolder, Expiry: p.Expiry}
	if digits := DigitsOnly(p.CardNumber); len(digits) >= 4 {
		out.CardNumber = "**** " + digits[len(digits)-4:]
	}
	return out
}

func firstFieldError(err error) error {
	if err == nil {
		return nil
	}
	var ve *pkgvalidator.ValidationError
	if errors.As(err, &ve) {
		field, msg := ve.First()
		return &FieldError{Field: field, Message: msg}
	}
	return err
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCardNumber groups the digits of s in fours for display, keeping at
// most 19 digits.
func FormatCardNumber(s string) string {
	digits := DigitsOnly(s)
	if len(digits) > maxCardDigits {
		digits = digits[:maxCardDigits]
	}
	var b strings.Builder
	for i := 0; i < len(digits); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := min(i+4, len(digits))
		b.WriteString(digits[i:end])
	}
	return b.String()
}

// Checkout is one session's pass through the three-step flow. Form state
// lives only here and is dropped with the checkout.
type Checkout struct {
	SessionID string       `json:"session_id"`
	Step      Step         `json:"step"`
	Cart      Cart         `json:"cart"`
	Customer  CustomerInfo `json:"customer"`
	Payment   PaymentInfo  `json:"payment"`
	Placing   bool         `json:"placing"`
	OrderID   string       `json:"order_id,omitempty"`
	LastError string       `json:"last_error,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// NewCheckout opens a checkout on a cart snapshot. An empty snapshot is
// rejected with ErrEmptyCart.
func NewCheckout(sessionID string, snapshot Cart, now time.Time) (*Checkout, error) {
	if len(snapshot) == 0 {
		return nil, ErrEmptyCart
	}
	return &Checkout{
		SessionID: sessionID,
		Step:      StepCustomer,
		Cart:      snapshot,
		StartedAt: now,
	}, nil
}

// Total returns the snapshot total in cents.
func (c *Checkout) Total() int64 {
	return TotalPrice(c.Cart)
}

func (c *Checkout) guard(step Step) error {
	if c.Step == StepConfirmation {
		return ErrCheckoutComplete
	}
	if c.Placing {
		return ErrOrderInFlight
	}
	if c.Step != step {
		return ErrWrongStep
	}
	return nil
}

// SubmitCustomer validates step 1 and advances to payment. On a validation
// failure the step is unchanged and a *FieldError is returned.
func (c *Checkout) SubmitCustomer(info CustomerInfo) error {
	if err := c.guard(StepCustomer); err != nil {
		return err
	}
	if err := info.Validate(); err != nil {
		c.LastError = err.Error()
		return err
	}
	c.Customer = info
	c.LastError = ""
	c.Step = StepPayment
	return nil
}

// SubmitPayment validates step 2 and marks the order as being placed. The
// caller must follow with CompleteOrder or FailOrder.
func (c *Checkout) SubmitPayment(info PaymentInfo) error {
	if err := c.guard(StepPayment); err != nil {
		return err
	}
	if err := info.Validate(); err != nil {
		c.LastError = err.Error()
		return err
	}
	c.Payment = info
	c.LastError = ""
	c.Placing = true
	return nil
}

// CompleteOrder records the placed order and moves to the terminal step.
func (c *Checkout) CompleteOrder(orderID string) {
	c.Placing = false
	c.OrderID = orderID
	c.LastError = ""
	c.Step = StepConfirmation
}

// FailOrder leaves the checkout on payment with a retriable message.
func (c *Checkout) FailOrder(message string) {
	c.Placing = false
	c.LastError = message
}

// Back moves from payment to customer info. On customer info it reports
// exit, meaning the caller should drop the checkout.
func (c *Checkout) Back() (exit bool, err error) {
	if c.Step == StepConfirmation {
		return false, ErrCheckoutComplete
	}
	if c.Placing {
		return false, ErrOrderInFlight
	}
	if c.Step == StepPayment {
		c.Step = StepCustomer
		c.LastError = ""
		return false, nil
	}
	return true, nil
}
