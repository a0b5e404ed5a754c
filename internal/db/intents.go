package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

type IntentStore struct {
	db DBTX
}

func NewIntentStore(db DBTX) *IntentStore {
	return &IntentStore{db: db}
}

const intentColumns = `id, user_id, method, status, snapshot, gateway, wallet, cod, order_id, created_at, updated_at`

func (s *IntentStore) Create(ctx context.Context, intent *models.PaymentIntent) error {
	snapshot, err := json.Marshal(intent.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	gateway, wallet, cod, err := encodeSubStates(intent)
	if err != nil {
		return err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO payment_intents (id, user_id, method, status, snapshot, gateway, wallet, cod)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		intent.ID, intent.UserID, string(intent.Method), string(intent.Status),
		snapshot, gateway, wallet, cod,
	)
	if err := row.Scan(&intent.CreatedAt, &intent.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert payment intent: %w", err)
	}
	return nil
}

func (s *IntentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	row := s.db.QueryRow(ctx, `SELECT `+intentColumns+` FROM payment_intents WHERE id = $1`, id)
	return scanIntent(row)
}

// GetByProviderOrderRef resolves a gateway callback to its intent.
func (s *IntentStore) GetByProviderOrderRef(ctx context.Context, orderRef string) (*models.PaymentIntent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents
		WHERE gateway->>'provider_order_ref' = $1`, orderRef)
	return scanIntent(row)
}

// SetStatus transitions the intent from any of the given statuses to the new
// one. It reports whether this call won the transition.
func (s *IntentStore) SetStatus(ctx context.Context, id uuid.UUID, from []models.IntentStatus, to models.IntentStatus) (bool, error) {
	states := make([]string, 0, len(from))
	for _, status := range from {
		states = append(states, string(status))
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE payment_intents
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`,
		id, string(to), states,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update intent status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateGateway stores the gateway sub-state.
func (s *IntentStore) UpdateGateway(ctx context.Context, id uuid.UUID, state *models.GatewayState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode gateway state: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE payment_intents SET gateway = $2, updated_at = now() WHERE id = $1`,
		id, encoded,
	)
	if err != nil {
		return fmt.Errorf("failed to update gateway state: %w", err)
	}
	return nil
}

// UpdateWallet stores the wallet sub-state and moves the intent to status.
func (s *IntentStore) UpdateWallet(ctx context.Context, id uuid.UUID, state *models.WalletState, status models.IntentStatus) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode wallet state: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE payment_intents SET wallet = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, encoded, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet state: %w", err)
	}
	return nil
}

// UpdateCOD stores the cash-on-delivery sub-state.
func (s *IntentStore) UpdateCOD(ctx context.Context, id uuid.UUID, state *models.CODState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode cod state: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		UPDATE payment_intents SET cod = $2, updated_at = now() WHERE id = $1`,
		id, encoded,
	)
	if err != nil {
		return fmt.Errorf("failed to update cod state: %w", err)
	}
	return nil
}

func encodeSubStates(intent *models.PaymentIntent) (gateway, wallet, cod []byte, err error) {
	if intent.Gateway != nil {
		if gateway, err = json.Marshal(intent.Gateway); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode gateway state: %w", err)
		}
	}
	if intent.Wallet != nil {
		if wallet, err = json.Marshal(intent.Wallet); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode wallet state: %w", err)
		}
	}
	if intent.COD != nil {
		if cod, err = json.Marshal(intent.COD); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode cod state: %w", err)
		}
	}
	return gateway, wallet, cod, nil
}

func scanIntent(row pgx.Row) (*models.PaymentIntent, error) {
	var (
		intent    models.PaymentIntent
		method    string
		status    string
		snapshot  []byte
		gateway   []byte
		wallet    []byte
		cod       []byte
		orderID   *uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&intent.ID, &intent.UserID, &method, &status, &snapshot,
		&gateway, &wallet, &cod, &orderID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	intent.Method = models.PaymentMethod(method)
	intent.Status = models.IntentStatus(status)
	intent.CreatedAt = createdAt
	intent.UpdatedAt = updatedAt
	if orderID != nil {
		intent.OrderID = *orderID
	}

	if err := json.Unmarshal(snapshot, &intent.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if len(gateway) > 0 {
		intent.Gateway = &models.GatewayState{}
		if err := json.Unmarshal(gateway, intent.Gateway); err != nil {
			return nil, fmt.Errorf("failed to decode gateway state: %w", err)
		}
	}
	if len(wallet) > 0 {
		intent.Wallet = &models.WalletState{}
		if err := json.Unmarshal(wallet, intent.Wallet); err != nil {
			return nil, fmt.Errorf("failed to decode wallet state: %w", err)
		}
	}
	if len(cod) > 0 {
		intent.COD = &models.CODState{}
		if err := json.Unmarshal(cod, intent.COD); err != nil {
			return nil, fmt.Errorf("failed to decode cod state: %w", err)
		}
	}

	return &intent, nil
}
