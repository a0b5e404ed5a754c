package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type StockStore struct {
	db DBTX
}

func NewStockStore(db DBTX) *StockStore {
	return &StockStore{db: db}
}

// Variant is the catalog view the checkout engine needs: current price and
// availability for a sellable variant.
type Variant struct {
	ProductID  uuid.UUID
	VariantID  uuid.UUID
	Name       string
	PriceCents int64
	Available  int
}

func (s *StockStore) GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*Variant, error) {
	variant := Variant{ProductID: productID, VariantID: variantID}
	row := s.db.QueryRow(ctx, `
		SELECT name, price_cents, available
		FROM product_variants
		WHERE product_id = $1 AND variant_id = $2`,
		productID, variantID,
	)
	if err := row.Scan(&variant.Name, &variant.PriceCents, &variant.Available); err != nil {
		return nil, err
	}
	return &variant, nil
}

// CheckStock reports whether qty units are currently available. Best-effort:
// the answer can go stale immediately, the decrement is the authority.
func (s *StockStore) CheckStock(ctx context.Context, productID, variantID uuid.UUID, qty int) (bool, error) {
	variant, err := s.GetVariant(ctx, productID, variantID)
	if err != nil {
		return false, err
	}
	return variant.Available >= qty, nil
}

// Decrement atomically takes qty units if available. It reports whether the
// decrement happened; false means insufficient stock.
func (s *StockStore) Decrement(ctx context.Context, productID, variantID uuid.UUID, qty int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE product_variants
		SET available = available - $3
		WHERE product_id = $1 AND variant_id = $2 AND available >= $3`,
		productID, variantID, qty,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
