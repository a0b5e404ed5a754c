package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/swiftcartapp/swiftcart/internal/db"
	"github.com/swiftcartapp/swiftcart/internal/models"
)

type stockKey struct {
	productID uuid.UUID
	variantID uuid.UUID
}

type fakeCheckoutTx struct {
	intent         *models.PaymentIntent
	order          *models.Order
	stock          map[stockKey]int
	denyDecrement  map[stockKey]bool
	denyClaimOnce  bool
	cartCleared    bool
	addressesSaved bool
}

func (f *fakeCheckoutTx) IntentForUpdate(_ context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	if f.intent == nil || f.intent.ID != id {
		return nil, pgx.ErrNoRows
	}
	return f.intent, nil
}

func (f *fakeCheckoutTx) OrderByIntentID(_ context.Context, intentID uuid.UUID) (*models.Order, error) {
	if f.order == nil || f.order.IntentID != intentID {
		return nil, pgx.ErrNoRows
	}
	return f.order, nil
}

func (f *fakeCheckoutTx) InsertOrder(_ context.Context, order *models.Order) error {
	f.order = order
	return nil
}

func (f *fakeCheckoutTx) StockAvailable(_ context.Context, productID, variantID uuid.UUID) (int, error) {
	available, ok := f.stock[stockKey{productID, variantID}]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return available, nil
}

func (f *fakeCheckoutTx) DecrementStock(_ context.Context, productID, variantID uuid.UUID, qty int) (bool, error) {
	key := stockKey{productID, variantID}
	if f.denyDecrement[key] {
		return false, nil
	}
	if f.stock[key] < qty {
		return false, nil
	}
	f.stock[key] -= qty
	return true, nil
}

func (f *fakeCheckoutTx) SaveAddresses(_ context.Context, _ uuid.UUID, _, _ models.Address) error {
	f.addressesSaved = true
	return nil
}

func (f *fakeCheckoutTx) ClearCart(_ context.Context, _ uuid.UUID) error {
	f.cartCleared = true
	return nil
}

func (f *fakeCheckoutTx) ClaimMaterialization(_ context.Context, _, orderID uuid.UUID) (bool, error) {
	if f.denyClaimOnce {
		f.denyClaimOnce = false
		return false, nil
	}
	if f.intent.OrderID != uuid.Nil {
		return false, nil
	}
	f.intent.OrderID = orderID
	return true, nil
}

// fakeTxRunner applies fn to the shared fake transaction, rolling mutable
// state back when fn fails, the way a real transaction would.
type fakeTxRunner struct {
	tx            *fakeCheckoutTx
	runs          int
	afterRollback func()
}

func (r *fakeTxRunner) RunCheckoutTx(_ context.Context, fn func(tx db.CheckoutTx) error) error {
	r.runs++

	stock := make(map[stockKey]int, len(r.tx.stock))
	for k, v := range r.tx.stock {
		stock[k] = v
	}
	order := r.tx.order
	cleared := r.tx.cartCleared
	saved := r.tx.addressesSaved
	orderID := r.tx.intent.OrderID

	if err := fn(r.tx); err != nil {
		r.tx.stock = stock
		r.tx.order = order
		r.tx.cartCleared = cleared
		r.tx.addressesSaved = saved
		r.tx.intent.OrderID = orderID
		if r.afterRollback != nil {
			r.afterRollback()
			r.afterRollback = nil
		}
		return err
	}
	return nil
}

var (
	testProductID = uuid.New()
	testVariantID = uuid.New()
	testSocksID   = uuid.New()
	testSocksVar  = uuid.New()
)

func confirmedIntent(method models.PaymentMethod) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Method: method,
		Status: models.IntentConfirmed,
		Snapshot: models.CartSnapshot{
			CartID: uuid.New(),
			Items: []models.LineItem{
				{ProductID: testProductID, VariantID: testVariantID, Name: "Trail Runner", Quantity: 2, UnitPriceCents: 24_900},
				{ProductID: testSocksID, VariantID: testSocksVar, Name: "Wool Socks", Quantity: 1, UnitPriceCents: 3_200},
			},
			Totals: models.Totals{SubtotalCents: 53_000, TaxCents: 2_650, ShippingCents: 4_810, TotalCents: 60_460},
			ShippingAddress: models.Address{
				Name: "A. Customer", Line1: "1 Main St", City: "Dhaka", Country: "BD", Email: "customer@example.com",
			},
		},
	}
}

func fullStock() map[stockKey]int {
	return map[stockKey]int{
		{testProductID, testVariantID}: 5,
		{testSocksID, testSocksVar}:    3,
	}
}

func newMaterializer(runner *fakeTxRunner) *Materializer {
	return NewMaterializer(runner, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMaterializeCreatesOrder(t *testing.T) {
	t.Parallel()

	intent := confirmedIntent(models.MethodCOD)
	tx := &fakeCheckoutTx{intent: intent, stock: fullStock()}
	runner := &fakeTxRunner{tx: tx}

	order, err := newMaterializer(runner).Materialize(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	if order.IntentID != intent.ID {
		t.Fatalf("order.IntentID = %s, want %s", order.IntentID, intent.ID)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("order.Status = %s, want %s", order.Status, models.OrderPending)
	}
	if order.PaymentStatus != models.PaymentPending {
		t.Fatalf("order.PaymentStatus = %s, want %s for cod", order.PaymentStatus, models.PaymentPending)
	}
	if order.Totals.TotalCents != 60_460 {
		t.Fatalf("order.Totals.TotalCents = %d, want %d", order.Totals.TotalCents, 60_460)
	}
	if got := tx.stock[stockKey{testProductID, testVariantID}]; got != 3 {
		t.Fatalf("remaining stock = %d, want 3", got)
	}
	if got := tx.stock[stockKey{testSocksID, testSocksVar}]; got != 2 {
		t.Fatalf("remaining socks stock = %d, want 2", got)
	}
	if !tx.cartCleared {
		t.Fatal("cart not cleared")
	}
	if !tx.addressesSaved {
		t.Fatal("addresses not saved")
	}
	if intent.OrderID != order.ID {
		t.Fatalf("intent.OrderID = %s, want %s", intent.OrderID, order.ID)
	}
}

func TestMaterializePaymentStatusByMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method models.PaymentMethod
		want   models.PaymentStatus
	}{
		{models.MethodGateway, models.PaymentPaid},
		{models.MethodWallet, models.PaymentPaid},
		{models.MethodCOD, models.PaymentPending},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.method), func(t *testing.T) {
			t.Parallel()
			intent := confirmedIntent(tc.method)
			runner := &fakeTxRunner{tx: &fakeCheckoutTx{intent: intent, stock: fullStock()}}

			order, err := newMaterializer(runner).Materialize(context.Background(), intent.ID)
			if err != nil {
				t.Fatalf("Materialize() error = %v", err)
			}
			if order.PaymentStatus != tc.want {
				t.Fatalf("PaymentStatus = %s, want %s", order.PaymentStatus, tc.want)
			}
		})
	}
}

func TestMaterializeReplayReturnsExistingOrder(t *testing.T) {
	t.Parallel()

	intent := confirmedIntent(models.MethodGateway)
	existing := &models.Order{ID: uuid.New(), IntentID: intent.ID, UserID: intent.UserID}
	intent.OrderID = existing.ID
	tx := &fakeCheckoutTx{intent: intent, order: existing, stock: fullStock()}
	runner := &fakeTxRunner{tx: tx}

	order, err := newMaterializer(runner).Materialize(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if order != existing {
		t.Fatal("replay did not return the existing order")
	}
	if got := tx.stock[stockKey{testProductID, testVariantID}]; got != 5 {
		t.Fatalf("stock decremented on replay: %d, want 5", got)
	}
}

func TestMaterializeRequiresConfirmedIntent(t *testing.T) {
	t.Parallel()

	for _, status := range []models.IntentStatus{models.IntentCreated, models.IntentVerifying, models.IntentFailed, models.IntentExpired} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()
			intent := confirmedIntent(models.MethodCOD)
			intent.Status = status
			runner := &fakeTxRunner{tx: &fakeCheckoutTx{intent: intent, stock: fullStock()}}

			if _, err := newMaterializer(runner).Materialize(context.Background(), intent.ID); !errors.Is(err, ErrIntentNotConfirmed) {
				t.Fatalf("Materialize() error = %v, want ErrIntentNotConfirmed", err)
			}
		})
	}
}

func TestMaterializeStockChangedRollsBack(t *testing.T) {
	t.Parallel()

	intent := confirmedIntent(models.MethodCOD)
	stock := fullStock()
	stock[stockKey{testSocksID, testSocksVar}] = 0
	tx := &fakeCheckoutTx{intent: intent, stock: stock}
	runner := &fakeTxRunner{tx: tx}

	_, err := newMaterializer(runner).Materialize(context.Background(), intent.ID)
	if !errors.Is(err, ErrStockChanged) {
		t.Fatalf("Materialize() error = %v, want ErrStockChanged", err)
	}
	if tx.order != nil {
		t.Fatal("order inserted despite stock shortfall")
	}
	if tx.cartCleared {
		t.Fatal("cart cleared despite rollback")
	}
	if intent.OrderID != uuid.Nil {
		t.Fatal("intent linked to an order despite rollback")
	}
	// The intent itself stays confirmed; only the unit of work is undone.
	if intent.Status != models.IntentConfirmed {
		t.Fatalf("intent.Status = %s, want confirmed", intent.Status)
	}
}

func TestMaterializeDecrementRaceRollsBackPartialWork(t *testing.T) {
	t.Parallel()

	intent := confirmedIntent(models.MethodCOD)
	tx := &fakeCheckoutTx{
		intent:        intent,
		stock:         fullStock(),
		denyDecrement: map[stockKey]bool{{testSocksID, testSocksVar}: true},
	}
	runner := &fakeTxRunner{tx: tx}

	_, err := newMaterializer(runner).Materialize(context.Background(), intent.ID)
	if !errors.Is(err, ErrStockChanged) {
		t.Fatalf("Materialize() error = %v, want ErrStockChanged", err)
	}
	// The first item's decrement must not stick.
	if got := tx.stock[stockKey{testProductID, testVariantID}]; got != 5 {
		t.Fatalf("stock = %d after rollback, want 5", got)
	}
}

func TestMaterializeLostClaimReturnsWinnersOrder(t *testing.T) {
	t.Parallel()

	intent := confirmedIntent(models.MethodGateway)
	winner := &models.Order{ID: uuid.New(), IntentID: intent.ID, UserID: intent.UserID}
	tx := &fakeCheckoutTx{intent: intent, stock: fullStock(), denyClaimOnce: true}
	runner := &fakeTxRunner{tx: tx}
	runner.afterRollback = func() {
		// The competing writer's commit lands during our rollback.
		intent.OrderID = winner.ID
		tx.order = winner
	}

	order, err := newMaterializer(runner).Materialize(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if order != winner {
		t.Fatal("lost claim did not resolve to the winner's order")
	}
	if runner.runs != 2 {
		t.Fatalf("runs = %d, want 2", runner.runs)
	}
}

func TestMaterializeUnknownIntent(t *testing.T) {
	t.Parallel()

	intent := confirmedIntent(models.MethodCOD)
	runner := &fakeTxRunner{tx: &fakeCheckoutTx{intent: intent, stock: fullStock()}}

	if _, err := newMaterializer(runner).Materialize(context.Background(), uuid.New()); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("Materialize() error = %v, want ErrIntentNotFound", err)
	}
}
