package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

// CheckoutTx is the unit of work materialization runs in. Every method
// operates on the same database transaction; an error from the callback rolls
// the whole unit back.
type CheckoutTx interface {
	IntentForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	OrderByIntentID(ctx context.Context, intentID uuid.UUID) (*models.Order, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	StockAvailable(ctx context.Context, productID, variantID uuid.UUID) (int, error)
	DecrementStock(ctx context.Context, productID, variantID uuid.UUID, qty int) (bool, error)
	SaveAddresses(ctx context.Context, userID uuid.UUID, shipping, billing models.Address) error
	ClearCart(ctx context.Context, cartID uuid.UUID) error
	ClaimMaterialization(ctx context.Context, intentID, orderID uuid.UUID) (bool, error)
}

// TxRunner runs a checkout unit of work.
type TxRunner interface {
	RunCheckoutTx(ctx context.Context, fn func(tx CheckoutTx) error) error
}

type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) RunCheckoutTx(ctx context.Context, fn func(tx CheckoutTx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&checkoutTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type checkoutTx struct {
	tx pgx.Tx
}

func (c *checkoutTx) IntentForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	row := c.tx.QueryRow(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents
		WHERE id = $1
		FOR UPDATE`, id)
	return scanIntent(row)
}

func (c *checkoutTx) OrderByIntentID(ctx context.Context, intentID uuid.UUID) (*models.Order, error) {
	return NewOrderStore(c.tx).GetByIntentID(ctx, intentID)
}

func (c *checkoutTx) InsertOrder(ctx context.Context, order *models.Order) error {
	return NewOrderStore(c.tx).Insert(ctx, order)
}

func (c *checkoutTx) StockAvailable(ctx context.Context, productID, variantID uuid.UUID) (int, error) {
	variant, err := NewStockStore(c.tx).GetVariant(ctx, productID, variantID)
	if err != nil {
		return 0, err
	}
	return variant.Available, nil
}

func (c *checkoutTx) DecrementStock(ctx context.Context, productID, variantID uuid.UUID, qty int) (bool, error) {
	return NewStockStore(c.tx).Decrement(ctx, productID, variantID, qty)
}

func (c *checkoutTx) SaveAddresses(ctx context.Context, userID uuid.UUID, shipping, billing models.Address) error {
	return NewAddressStore(c.tx).Save(ctx, userID, shipping, billing)
}

func (c *checkoutTx) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	return NewCartStore(c.tx).Clear(ctx, cartID)
}

// ClaimMaterialization links the order to the intent. The conditional update
// plus the unique constraint on order_id make this the single-writer gate.
func (c *checkoutTx) ClaimMaterialization(ctx context.Context, intentID, orderID uuid.UUID) (bool, error) {
	tag, err := c.tx.Exec(ctx, `
		UPDATE payment_intents
		SET order_id = $2, updated_at = now()
		WHERE id = $1 AND order_id IS NULL`,
		intentID, orderID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim materialization: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
