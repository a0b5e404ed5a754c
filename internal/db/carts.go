package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

type CartStore struct {
	db DBTX
}

func NewCartStore(db DBTX) *CartStore {
	return &CartStore{db: db}
}

func (s *CartStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var (
		cart  models.Cart
		items []byte
	)
	row := s.db.QueryRow(ctx, `SELECT id, user_id, items, updated_at FROM carts WHERE id = $1`, id)
	if err := row.Scan(&cart.ID, &cart.UserID, &items, &cart.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &cart.Items); err != nil {
		return nil, fmt.Errorf("failed to decode cart items: %w", err)
	}
	return &cart, nil
}

// Clear empties the cart contents, leaving the cart row in place.
func (s *CartStore) Clear(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE carts SET items = '[]', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
