package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a shipping or billing destination captured at checkout.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// LineItem is a single cart position with the unit price frozen at capture time.
type LineItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	VariantID      uuid.UUID `json:"variant_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// Totals holds the computed pricing breakdown for a snapshot, in cents.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// CartSnapshot is an immutable capture of cart contents, pricing and addresses
// taken when a payment intent is created. Later cart mutations never touch it.
type CartSnapshot struct {
	CartID          uuid.UUID  `json:"cart_id"`
	Items           []LineItem `json:"items"`
	Totals          Totals     `json:"totals"`
	ShippingAddress Address    `json:"shipping_address"`
	BillingAddress  Address    `json:"billing_address"`
	CouponCode      string     `json:"coupon_code,omitempty"`
	CapturedAt      time.Time  `json:"captured_at"`
}

// Cart is the live, mutable cart owned by the user's session until it is
// cleared during materialization.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}
