package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// PaymentStatus represents the payment status of an order
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMethod identifies how an order is paid
type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodRedirect PaymentMethod = "redirect"
	PaymentMethodCash     PaymentMethod = "cash"
)

// Order represents a committed purchase
type Order struct {
	ID            int           `json:"id" db:"id"`
	OrderNumber   string        `json:"order_number" db:"order_number"`
	EventID       int           `json:"event_id" db:"event_id"`
	CustomerName  string        `json:"customer_name" db:"customer_name"`
	CustomerEmail string        `json:"customer_email" db:"customer_email"`
	Subtotal      int           `json:"subtotal" db:"subtotal"`         // in cents
	FeeAmount     int           `json:"fee_amount" db:"fee_amount"`     // in cents
	TotalAmount   int           `json:"total_amount" db:"total_amount"` // in cents
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentRef    string        `json:"payment_ref" db:"payment_ref"`
	// IdempotencyKey makes order creation safe to retry after a timeout.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`
	// VerificationCodeHash holds the argon2 hash of the short code a cash
	// buyer presents at the box office. Never serialized.
	VerificationCodeHash string `json:"-" db:"verification_code_hash"`
	// NeedsReconciliation is set when ticket issuance failed after a
	// successful charge; such orders require manual review.
	NeedsReconciliation bool      `json:"needs_reconciliation" db:"needs_reconciliation"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`

	Items []*OrderItem `json:"items,omitempty"`
}

// OrderItem represents one purchased unit within an order, with the price
// captured at the time of sale.
type OrderItem struct {
	ID           int    `json:"id" db:"id"`
	OrderID      int    `json:"order_id" db:"order_id"`
	UnitID       int    `json:"unit_id" db:"unit_id"`
	TicketTypeID int    `json:"ticket_type_id" db:"ticket_type_id"`
	UnitPrice    int    `json:"unit_price" db:"unit_price"` // in cents
	HolderName   string `json:"holder_name" db:"holder_name"`
}

var (
	// Order number format: ORD-YYYYMMDD-XXXXXX (e.g., ORD-20240101-123456)
	orderNumberRegex = regexp.MustCompile(`^ORD-\d{8}-\d{6}$`)
	// Email validation regex for orders
	orderEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Validate validates the order data
func (o *Order) Validate() error {
	if err := o.validateOrderNumber(); err != nil {
		return err
	}

	if err := o.validateAmounts(); err != nil {
		return err
	}

	if err := validatePaymentStatus(o.PaymentStatus); err != nil {
		return err
	}

	if err := validatePaymentMethod(o.PaymentMethod); err != nil {
		return err
	}

	return validateOrderCustomer(o.CustomerEmail, o.CustomerName)
}

// validateOrderNumber validates the order number
func (o *Order) validateOrderNumber() error {
	if o.OrderNumber == "" {
		return errors.New("order number is required")
	}

	if !orderNumberRegex.MatchString(o.OrderNumber) {
		return errors.New("order number format is invalid")
	}

	return nil
}

// validateAmounts validates the order amounts and their relationship
func (o *Order) validateAmounts() error {
	if o.Subtotal < 0 || o.FeeAmount < 0 {
		return errors.New("order amounts cannot be negative")
	}

	if o.TotalAmount != o.Subtotal+o.FeeAmount {
		return errors.New("total amount must equal subtotal plus fees")
	}

	// Maximum order amount of $100,000 (10,000,000 cents)
	if o.TotalAmount > 10000000 {
		return errors.New("total amount cannot exceed $100,000")
	}

	return nil
}

// validatePaymentStatus validates a payment status value
func validatePaymentStatus(status PaymentStatus) error {
	switch status {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return nil
	default:
		return errors.New("invalid payment status")
	}
}

// validatePaymentMethod validates a payment method value
func validatePaymentMethod(method PaymentMethod) error {
	switch method {
	case PaymentMethodCard, PaymentMethodRedirect, PaymentMethodCash:
		return nil
	default:
		return errors.New("invalid payment method")
	}
}

// validateOrderCustomer validates order customer information
func validateOrderCustomer(email, name string) error {
	if email == "" {
		return errors.New("customer email is required")
	}

	if name == "" {
		return errors.New("customer name is required")
	}

	if len(email) > 255 {
		return errors.New("customer email must be less than 255 characters")
	}

	if len(name) > 255 {
		return errors.New("customer name must be less than 255 characters")
	}

	if !orderEmailRegex.MatchString(email) {
		return errors.New("customer email format is invalid")
	}

	if strings.TrimSpace(name) == "" {
		return errors.New("customer name cannot be only whitespace")
	}

	return nil
}

// GenerateOrderNumber generates a unique order number
func GenerateOrderNumber() string {
	now := time.Now()
	dateStr := now.Format("20060102")

	// Generate a 6-digit random number using crypto/rand for better uniqueness
	max := big.NewInt(1000000)
	randomNum, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fallback to timestamp-based generation if crypto/rand fails
		timestamp := now.UnixNano()
		randomPart := timestamp % 1000000
		return fmt.Sprintf("ORD-%s-%06d", dateStr, randomPart)
	}

	return fmt.Sprintf("ORD-%s-%06d", dateStr, randomNum.Int64())
}

// IsPending returns true if the order is awaiting payment confirmation
func (o *Order) IsPending() bool {
	return o.PaymentStatus == PaymentPending
}

// IsPaid returns true if the order has been paid
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

// CanBeRefunded returns true if the order can be refunded
func (o *Order) CanBeRefunded() bool {
	return o.PaymentStatus == PaymentPaid
}

// CanBeCancelled returns true if the order can still be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.PaymentStatus == PaymentPending
}

// IsExpired returns true if a pending order has outlived its verification
// window. Only meaningful for deferred cash orders.
func (o *Order) IsExpired(window time.Duration, now time.Time) bool {
	if o.PaymentStatus != PaymentPending {
		return false
	}
	return now.Sub(o.CreatedAt) > window
}

// TotalAmountInCurrency returns the total amount in the main currency as a float
func (o *Order) TotalAmountInCurrency() float64 {
	return float64(o.TotalAmount) / 100.0
}

// ServiceFee computes the fee in cents for a subtotal at the given percent,
// rounded to the nearest cent.
func ServiceFee(subtotal int, feePercent float64) int {
	return int(float64(subtotal)*feePercent/100.0 + 0.5)
}
