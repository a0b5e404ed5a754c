package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/swiftcartapp/swiftcart/internal/models"
)

type OrderStore struct {
	db DBTX
}

func NewOrderStore(db DBTX) *OrderStore {
	return &OrderStore{db: db}
}

const orderColumns = `id, intent_id, user_id, items, subtotal_cents, tax_cents, shipping_cents,
	discount_cents, total_cents, shipping_address, billing_address, status, payment_status, created_at`

func (s *OrderStore) Insert(ctx context.Context, order *models.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}
	billing, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode billing address: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO orders (id, intent_id, user_id, items, subtotal_cents, tax_cents,
			shipping_cents, discount_cents, total_cents, shipping_address, billing_address,
			status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		order.ID, order.IntentID, order.UserID, items,
		order.Totals.SubtotalCents, order.Totals.TaxCents, order.Totals.ShippingCents,
		order.Totals.DiscountCents, order.Totals.TotalCents,
		shipping, billing, string(order.Status), string(order.PaymentStatus),
	)
	if err := row.Scan(&order.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *OrderStore) GetByIntentID(ctx context.Context, intentID uuid.UUID) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE intent_id = $1`, intentID)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order    models.Order
		items    []byte
		shipping []byte
		billing  []byte
		status   string
		payment  string
	)

	err := row.Scan(&order.ID, &order.IntentID, &order.UserID, &items,
		&order.Totals.SubtotalCents, &order.Totals.TaxCents, &order.Totals.ShippingCents,
		&order.Totals.DiscountCents, &order.Totals.TotalCents,
		&shipping, &billing, &status, &payment, &order.CreatedAt)
	if err != nil {
		return nil, err
	}

	order.Status = models.OrderStatus(status)
	order.PaymentStatus = models.PaymentStatus(payment)
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if err := json.Unmarshal(billing, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode billing address: %w", err)
	}

	return &order, nil
}
