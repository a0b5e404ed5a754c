package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

func TestCODVerify(t *testing.T) {
	t.Parallel()

	adapter := NewCODAdapter()

	tests := []struct {
		name     string
		status   models.IntentStatus
		evidence Evidence
		wantErr  error
	}{
		{
			name:     "explicit confirmation succeeds",
			status:   models.IntentCreated,
			evidence: Evidence{COD: &CODEvidence{Confirmed: true}},
		},
		{
			name:     "missing confirmation flag",
			status:   models.IntentCreated,
			evidence: Evidence{COD: &CODEvidence{Confirmed: false}},
			wantErr:  ErrConfirmationRequired,
		},
		{
			name:     "missing evidence",
			status:   models.IntentCreated,
			evidence: Evidence{},
			wantErr:  ErrEvidenceMissing,
		},
		{
			name:     "already failed intent",
			status:   models.IntentFailed,
			evidence: Evidence{COD: &CODEvidence{Confirmed: true}},
			wantErr:  ErrAlreadyFinalized,
		},
		{
			name:     "already confirmed intent",
			status:   models.IntentConfirmed,
			evidence: Evidence{COD: &CODEvidence{Confirmed: true}},
			wantErr:  ErrAlreadyFinalized,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			intent := &models.PaymentIntent{
				ID:     uuid.New(),
				Method: models.MethodCOD,
				Status: tc.status,
				COD:    &models.CODState{},
			}

			err := adapter.Verify(context.Background(), intent, tc.evidence)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if !intent.COD.Confirmed {
				t.Fatal("COD state not confirmed")
			}
		})
	}
}
