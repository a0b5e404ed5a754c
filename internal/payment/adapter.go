// Package payment implements the method-specific verification protocols that
// decide whether a payment intent may become an order.
package payment

import (
	"context"
	"errors"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

var (
	// ErrSignatureInvalid means the gateway callback signature did not match.
	// Terminal for the intent.
	ErrSignatureInvalid = errors.New("gateway signature invalid")
	// ErrAlreadyFinalized means the intent left the open states before this
	// verification arrived.
	ErrAlreadyFinalized = errors.New("intent already finalized")
	// ErrConfirmationRequired means COD evidence lacked the explicit flag.
	ErrConfirmationRequired = errors.New("explicit confirmation required")
	// ErrEvidenceMissing means the evidence does not fit the intent's method.
	ErrEvidenceMissing = errors.New("payment evidence missing for method")

	// ErrNotVerified means a wallet debit was attempted before OTP and
	// balance verification completed.
	ErrNotVerified = errors.New("wallet not verified")
	// ErrInsufficientBalance is non-terminal: the caller may top up and
	// restart verification.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrOTPMismatch means a wrong code under the attempt cap; the same
	// challenge may be retried.
	ErrOTPMismatch = errors.New("otp code mismatch")
	// ErrChallengeExpired means no live challenge accepts codes; a fresh
	// RequestVerification is required.
	ErrChallengeExpired = errors.New("otp challenge expired")
)

// Evidence carries the method-specific proof a caller presents at Confirm.
type Evidence struct {
	Gateway *GatewayEvidence `json:"gateway,omitempty"`
	COD     *CODEvidence     `json:"cod,omitempty"`
}

type GatewayEvidence struct {
	ProviderOrderRef   string `json:"provider_order_ref"`
	ProviderPaymentRef string `json:"provider_payment_ref"`
	Signature          string `json:"signature"`
}

type CODEvidence struct {
	Confirmed bool `json:"confirmed"`
}

// Adapter is the verification strategy for one payment method. Verify mutates
// the intent's sub-state in memory; the orchestrator persists the outcome.
type Adapter interface {
	Method() models.PaymentMethod
	Verify(ctx context.Context, intent *models.PaymentIntent, evidence Evidence) error
	Amount(intent *models.PaymentIntent) int64
}
