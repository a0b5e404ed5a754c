package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/swiftcartapp/swiftcart/internal/crypto"
	"github.com/swiftcartapp/swiftcart/internal/models"
)

// GatewayAdapter verifies redirect callbacks from the online payment provider
// by recomputing the HMAC signature over the provider references.
type GatewayAdapter struct {
	signer *crypto.Signer
}

func NewGatewayAdapter(signer *crypto.Signer) *GatewayAdapter {
	return &GatewayAdapter{signer: signer}
}

func (a *GatewayAdapter) Method() models.PaymentMethod {
	return models.MethodGateway
}

// NewProviderOrderRef issues the order reference handed to the provider at
// intent creation.
func (a *GatewayAdapter) NewProviderOrderRef() string {
	return "gwo_" + uuid.NewString()
}

func (a *GatewayAdapter) Verify(_ context.Context, intent *models.PaymentIntent, evidence Evidence) error {
	if evidence.Gateway == nil {
		return ErrEvidenceMissing
	}
	if intent.Gateway == nil {
		return fmt.Errorf("intent has no gateway state")
	}

	ev := evidence.Gateway
	if ev.ProviderOrderRef != intent.Gateway.ProviderOrderRef {
		return ErrSignatureInvalid
	}
	if !a.signer.Verify(ev.ProviderOrderRef, ev.ProviderPaymentRef, ev.Signature) {
		return ErrSignatureInvalid
	}

	intent.Gateway.ProviderPaymentRef = ev.ProviderPaymentRef
	intent.Gateway.Signature = ev.Signature
	intent.Gateway.Verified = true
	return nil
}

func (a *GatewayAdapter) Amount(intent *models.PaymentIntent) int64 {
	return intent.AmountCents()
}
