package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

// AddressStore persists the user's last-used addresses for reuse on the next
// checkout. A convenience surface, not part of the payment invariants.
type AddressStore struct {
	db DBTX
}

func NewAddressStore(db DBTX) *AddressStore {
	return &AddressStore{db: db}
}

func (s *AddressStore) Save(ctx context.Context, userID uuid.UUID, shipping, billing models.Address) error {
	shippingJSON, err := json.Marshal(shipping)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(billing)
	if err != nil {
		return fmt.Errorf("failed to encode billing address: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO user_addresses (user_id, shipping, billing)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET shipping = EXCLUDED.shipping, billing = EXCLUDED.billing, updated_at = now()`,
		userID, shippingJSON, billingJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save addresses: %w", err)
	}
	return nil
}
