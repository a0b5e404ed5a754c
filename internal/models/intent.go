package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	MethodGateway PaymentMethod = "gateway"
	MethodCOD     PaymentMethod = "cod"
	MethodWallet  PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodGateway, MethodCOD, MethodWallet:
		return true
	}
	return false
}

type IntentStatus string

const (
	IntentCreated   IntentStatus = "created"
	IntentVerifying IntentStatus = "verifying"
	IntentConfirmed IntentStatus = "confirmed"
	IntentFailed    IntentStatus = "failed"
	IntentExpired   IntentStatus = "expired"
)

// IsOpen reports whether the intent can still move forward.
func (s IntentStatus) IsOpen() bool {
	return s == IntentCreated || s == IntentVerifying
}

// GatewayState is the gateway adapter's sub-state. The provider order
// reference is issued at intent creation; payment reference and signature
// arrive with the redirect back from the provider.
type GatewayState struct {
	ProviderOrderRef   string `json:"provider_order_ref"`
	ProviderPaymentRef string `json:"provider_payment_ref,omitempty"`
	Signature          string `json:"signature,omitempty"`
	Verified           bool   `json:"verified"`
}

// WalletState is the wallet adapter's nested verification state. Exactly one
// OTP challenge may be live at a time; a new RequestVerification replaces it.
type WalletState struct {
	MobileNumber  string    `json:"mobile_number,omitempty"`
	ChallengeID   uuid.UUID `json:"challenge_id,omitempty"`
	OTPHash       string    `json:"otp_hash,omitempty"`
	OTPExpiresAt  time.Time `json:"otp_expires_at,omitempty"`
	Attempts      int       `json:"attempts"`
	Verified      bool      `json:"verified"`
	BalanceCents  int64     `json:"balance_cents"`
	BalanceKnown  bool      `json:"balance_known"`
	TransactionID string    `json:"transaction_id,omitempty"`
}

// HasLiveChallenge reports whether an OTP challenge is currently usable.
func (w *WalletState) HasLiveChallenge(now time.Time) bool {
	return w.ChallengeID != uuid.Nil && now.Before(w.OTPExpiresAt)
}

// CODState is the cash-on-delivery sub-state.
type CODState struct {
	Confirmed bool `json:"confirmed"`
}

// PaymentIntent is a payment attempt bound to a frozen cart snapshot. It is
// persisted independently of any order and is never hard-deleted.
type PaymentIntent struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Method    PaymentMethod `json:"method"`
	Status    IntentStatus  `json:"status"`
	Snapshot  CartSnapshot  `json:"snapshot"`
	Gateway   *GatewayState `json:"gateway,omitempty"`
	Wallet    *WalletState  `json:"wallet,omitempty"`
	COD       *CODState     `json:"cod,omitempty"`
	OrderID   uuid.UUID     `json:"materialized_order_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// AmountCents is the amount the chosen payment method must collect.
func (i *PaymentIntent) AmountCents() int64 {
	return i.Snapshot.Totals.TotalCents
}

// Materialized reports whether an order has already been produced.
func (i *PaymentIntent) Materialized() bool {
	return i.OrderID != uuid.Nil
}

// ExpiredAt reports whether the intent has outlived ttl at the given time
// without reaching a terminal status.
func (i *PaymentIntent) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return i.Status.IsOpen() && now.Sub(i.CreatedAt) > ttl
}
