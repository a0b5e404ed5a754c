package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/swiftcartapp/swiftcart/internal/crypto"
	"github.com/swiftcartapp/swiftcart/internal/models"
)

func newGatewayIntent(orderRef string) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		Method:  models.MethodGateway,
		Status:  models.IntentCreated,
		Gateway: &models.GatewayState{ProviderOrderRef: orderRef},
		Snapshot: models.CartSnapshot{
			Totals: models.Totals{TotalCents: 60_460},
		},
	}
}

func TestGatewayVerify(t *testing.T) {
	t.Parallel()

	signer, err := crypto.NewSigner("gateway-shared-secret")
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	adapter := NewGatewayAdapter(signer)

	orderRef := adapter.NewProviderOrderRef()
	validSignature := signer.Sign(orderRef, "pay_001")

	tests := []struct {
		name     string
		evidence Evidence
		wantErr  error
	}{
		{
			name: "valid signature confirms",
			evidence: Evidence{Gateway: &GatewayEvidence{
				ProviderOrderRef:   orderRef,
				ProviderPaymentRef: "pay_001",
				Signature:          validSignature,
			}},
		},
		{
			name: "tampered payment ref rejected",
			evidence: Evidence{Gateway: &GatewayEvidence{
				ProviderOrderRef:   orderRef,
				ProviderPaymentRef: "pay_002",
				Signature:          validSignature,
			}},
			wantErr: ErrSignatureInvalid,
		},
		{
			name: "foreign order ref rejected",
			evidence: Evidence{Gateway: &GatewayEvidence{
				ProviderOrderRef:   "gwo_other",
				ProviderPaymentRef: "pay_001",
				Signature:          validSignature,
			}},
			wantErr: ErrSignatureInvalid,
		},
		{
			name:     "missing evidence",
			evidence: Evidence{},
			wantErr:  ErrEvidenceMissing,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			intent := newGatewayIntent(orderRef)

			err := adapter.Verify(context.Background(), intent, tc.evidence)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tc.wantErr)
				}
				if intent.Gateway.Verified {
					t.Fatal("intent marked verified despite rejected signature")
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if !intent.Gateway.Verified {
				t.Fatal("intent not marked verified")
			}
			if intent.Gateway.ProviderPaymentRef != "pay_001" {
				t.Fatalf("ProviderPaymentRef = %q, want %q", intent.Gateway.ProviderPaymentRef, "pay_001")
			}
		})
	}
}
