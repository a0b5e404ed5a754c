package payment

import (
	"context"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

// CODAdapter confirms cash-on-delivery intents. There is no external round
// trip; the only requirement is the owner's explicit confirmation while the
// intent is still open.
type CODAdapter struct{}

func NewCODAdapter() *CODAdapter {
	return &CODAdapter{}
}

func (a *CODAdapter) Method() models.PaymentMethod {
	return models.MethodCOD
}

func (a *CODAdapter) Verify(_ context.Context, intent *models.PaymentIntent, evidence Evidence) error {
	if evidence.COD == nil {
		return ErrEvidenceMissing
	}
	if !evidence.COD.Confirmed {
		return ErrConfirmationRequired
	}
	if !intent.Status.IsOpen() {
		return ErrAlreadyFinalized
	}

	if intent.COD == nil {
		intent.COD = &models.CODState{}
	}
	intent.COD.Confirmed = true
	return nil
}

func (a *CODAdapter) Amount(intent *models.PaymentIntent) int64 {
	return intent.AmountCents()
}
