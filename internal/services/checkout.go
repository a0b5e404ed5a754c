package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/swiftcartapp/swiftcart/internal/cache"
	"github.com/swiftcartapp/swiftcart/internal/db"
	"github.com/swiftcartapp/swiftcart/internal/email"
	"github.com/swiftcartapp/swiftcart/internal/logging"
	"github.com/swiftcartapp/swiftcart/internal/models"
	"github.com/swiftcartapp/swiftcart/internal/observability"
	"github.com/swiftcartapp/swiftcart/internal/payment"
)

// otpRequestInterval is the minimum gap between OTP dispatches per intent.
const otpRequestInterval = 30 * time.Second

var openStatuses = []models.IntentStatus{models.IntentCreated, models.IntentVerifying}

type intentStore interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	GetByProviderOrderRef(ctx context.Context, orderRef string) (*models.PaymentIntent, error)
	SetStatus(ctx context.Context, id uuid.UUID, from []models.IntentStatus, to models.IntentStatus) (bool, error)
	UpdateGateway(ctx context.Context, id uuid.UUID, state *models.GatewayState) error
	UpdateWallet(ctx context.Context, id uuid.UUID, state *models.WalletState, status models.IntentStatus) error
	UpdateCOD(ctx context.Context, id uuid.UUID, state *models.CODState) error
}

type cartStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
}

type variantSource interface {
	GetVariant(ctx context.Context, productID, variantID uuid.UUID) (*db.Variant, error)
}

type orderSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIntentID(ctx context.Context, intentID uuid.UUID) (*models.Order, error)
}

type totalsComputer interface {
	ComputeTotals(ctx context.Context, items []models.LineItem, couponCode string) (models.Totals, error)
}

type orderMaterializer interface {
	Materialize(ctx context.Context, intentID uuid.UUID) (*models.Order, error)
}

type walletVerifier interface {
	RequestVerification(ctx context.Context, intent *models.PaymentIntent, mobileNumber string) (uuid.UUID, error)
	ConfirmOTP(ctx context.Context, intent *models.PaymentIntent, challengeID uuid.UUID, code string) (*payment.BalancePreview, error)
}

type orderRefIssuer interface {
	NewProviderOrderRef() string
}

// CheckoutService owns the payment-first checkout flow: freeze the cart into
// an intent, drive the chosen payment adapter to a confirmation, then hand the
// confirmed intent to the materializer.
type CheckoutService struct {
	intents      intentStore
	carts        cartStore
	variants     variantSource
	orders       orderSource
	pricer       totalsComputer
	adapters     map[models.PaymentMethod]payment.Adapter
	wallet       walletVerifier
	materializer orderMaterializer
	emailSender  email.Provider
	cache        cache.Provider
	refs         orderRefIssuer
	intentTTL    time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

func NewCheckoutService(
	intents intentStore,
	carts cartStore,
	variants variantSource,
	orders orderSource,
	pricer totalsComputer,
	adapters []payment.Adapter,
	wallet walletVerifier,
	materializer orderMaterializer,
	emailSender email.Provider,
	cacheProvider cache.Provider,
	refs orderRefIssuer,
	intentTTL time.Duration,
	logger *slog.Logger,
) *CheckoutService {
	byMethod := make(map[models.PaymentMethod]payment.Adapter, len(adapters))
	for _, adapter := range adapters {
		byMethod[adapter.Method()] = adapter
	}
	return &CheckoutService{
		intents:      intents,
		carts:        carts,
		variants:     variants,
		orders:       orders,
		pricer:       pricer,
		adapters:     byMethod,
		wallet:       wallet,
		materializer: materializer,
		emailSender:  emailSender,
		cache:        cacheProvider,
		refs:         refs,
		intentTTL:    intentTTL,
		logger:       logger,
		now:          time.Now,
	}
}

type CreateIntentInput struct {
	CartID          uuid.UUID
	Method          models.PaymentMethod
	ShippingAddress models.Address
	BillingAddress  models.Address
	CouponCode      string
}

// CreateIntent freezes the cart into an immutable snapshot and opens a payment
// intent for it. Prices are re-read from the catalog at this moment and never
// change afterwards, no matter what happens to the live cart.
func (s *CheckoutService) CreateIntent(ctx context.Context, userID uuid.UUID, input CreateIntentInput) (*models.PaymentIntent, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.create_intent",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("CreateIntent"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := logging.FromContext(ctx, s.logger)
	meter := observability.MeterFromContext(ctx)

	if !input.Method.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, input.Method)
	}

	cart, err := s.carts.GetByID(ctx, input.CartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.UserID != userID {
		return nil, ErrCartNotFound
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]models.LineItem, len(cart.Items))
	for i, item := range cart.Items {
		variant, err := s.variants.GetVariant(ctx, item.ProductID, item.VariantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: variant no longer available", ErrInsufficientStock)
			}
			return nil, fmt.Errorf("failed to load variant: %w", err)
		}
		if variant.Available < item.Quantity {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, variant.Name)
		}
		items[i] = models.LineItem{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           variant.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: variant.PriceCents,
		}
	}

	totals, err := s.pricer.ComputeTotals(ctx, items, input.CouponCode)
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		ID:     uuid.New(),
		UserID: userID,
		Method: input.Method,
		Status: models.IntentCreated,
		Snapshot: models.CartSnapshot{
			CartID:          cart.ID,
			Items:           items,
			Totals:          totals,
			ShippingAddress: input.ShippingAddress,
			BillingAddress:  input.BillingAddress,
			CouponCode:      input.CouponCode,
			CapturedAt:      s.now(),
		},
	}
	switch input.Method {
	case models.MethodGateway:
		intent.Gateway = &models.GatewayState{ProviderOrderRef: s.refs.NewProviderOrderRef()}
	case models.MethodWallet:
		intent.Wallet = &models.WalletState{}
	case models.MethodCOD:
		intent.COD = &models.CODState{}
	}

	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to create intent: %w", err)
	}

	logger.Info("payment intent created",
		"intent_id", intent.ID, "method", intent.Method, "total_cents", totals.TotalCents)
	meter.Count("checkout.intent.created", 1, sentry.WithAttributes(
		attribute.String("method", string(input.Method)),
	))
	return intent, nil
}

// GetIntent returns the caller's intent, expiring it first if its TTL ran out.
func (s *CheckoutService) GetIntent(ctx context.Context, userID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	return s.loadOwnedIntent(ctx, userID, intentID)
}

// GetOrder returns the caller's order.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// WalletRequestOTP binds a mobile number to the intent and dispatches a fresh
// OTP. Repeat calls within the throttle window are rejected; outside it they
// rotate the challenge.
func (s *CheckoutService) WalletRequestOTP(ctx context.Context, userID, intentID uuid.UUID, mobileNumber string) (uuid.UUID, error) {
	logger := logging.FromContext(ctx, s.logger)
	meter := observability.MeterFromContext(ctx)

	intent, err := s.loadOwnedIntent(ctx, userID, intentID)
	if err != nil {
		return uuid.Nil, err
	}
	if intent.Method != models.MethodWallet {
		return uuid.Nil, fmt.Errorf("%w: intent method is %s", ErrUnsupportedMethod, intent.Method)
	}
	if err := s.requireOpen(intent); err != nil {
		return uuid.Nil, err
	}

	throttleKey := cache.OTPThrottleKey(intent.ID.String())
	if _, err := s.cache.Get(ctx, throttleKey); err == nil {
		return uuid.Nil, ErrOTPThrottled
	} else if !errors.Is(err, cache.ErrNotFound) {
		// A cache outage must not block checkout.
		logger.Warn("otp throttle lookup failed", "intent_id", intent.ID, "error", err)
	}

	challengeID, err := s.wallet.RequestVerification(ctx, intent, mobileNumber)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.intents.UpdateWallet(ctx, intent.ID, intent.Wallet, models.IntentVerifying); err != nil {
		return uuid.Nil, fmt.Errorf("failed to persist wallet state: %w", err)
	}

	if err := s.cache.Set(ctx, throttleKey, "1", otpRequestInterval); err != nil {
		logger.Warn("failed to set otp throttle", "intent_id", intent.ID, "error", err)
	}
	meter.Count("checkout.wallet.otp_sent", 1)
	return challengeID, nil
}

// WalletConfirmOTP checks the code and previews the wallet balance. The
// updated wallet state is persisted even when the code is wrong, so attempt
// counters and consumed challenges survive the request.
func (s *CheckoutService) WalletConfirmOTP(ctx context.Context, userID, intentID, challengeID uuid.UUID, code string) (*payment.BalancePreview, error) {
	intent, err := s.loadOwnedIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Method != models.MethodWallet {
		return nil, fmt.Errorf("%w: intent method is %s", ErrUnsupportedMethod, intent.Method)
	}
	if err := s.requireOpen(intent); err != nil {
		return nil, err
	}

	preview, confirmErr := s.wallet.ConfirmOTP(ctx, intent, challengeID, code)
	if intent.Wallet != nil {
		if err := s.intents.UpdateWallet(ctx, intent.ID, intent.Wallet, models.IntentVerifying); err != nil {
			return nil, fmt.Errorf("failed to persist wallet state: %w", err)
		}
	}
	return preview, confirmErr
}

// Confirm drives the intent's adapter to a verdict and, on success,
// materializes the order. Confirming an already-confirmed intent replays the
// existing order.
func (s *CheckoutService) Confirm(ctx context.Context, userID, intentID uuid.UUID, evidence payment.Evidence) (*models.Order, error) {
	intent, err := s.loadOwnedIntent(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, intent, evidence)
}

// HandleGatewayCallback confirms an intent from a provider callback, resolved
// by the provider order reference rather than by an authenticated owner.
func (s *CheckoutService) HandleGatewayCallback(ctx context.Context, orderRef string, evidence payment.Evidence) (*models.Order, error) {
	intent, err := s.intents.GetByProviderOrderRef(ctx, orderRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to resolve callback: %w", err)
	}
	intent, err = s.expireIfStale(ctx, intent)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, intent, evidence)
}

func (s *CheckoutService) confirm(ctx context.Context, intent *models.PaymentIntent, evidence payment.Evidence) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.confirm",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("Confirm"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := logging.FromContext(ctx, s.logger)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("method", string(intent.Method)))

	switch intent.Status {
	case models.IntentConfirmed:
		// Idempotent replay: re-drive materialization if it never finished.
		return s.materializer.Materialize(ctx, intent.ID)
	case models.IntentFailed:
		return nil, ErrIntentFinalized
	case models.IntentExpired:
		return nil, ErrIntentExpired
	}

	adapter, ok := s.adapters[intent.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, intent.Method)
	}

	verifyErr := adapter.Verify(ctx, intent, evidence)
	// Adapter sub-state is persisted on both outcomes; a wallet debit that
	// succeeded must never be lost to a later failure.
	if err := s.persistSubState(ctx, intent); err != nil {
		return nil, err
	}
	if verifyErr != nil {
		if errors.Is(verifyErr, payment.ErrSignatureInvalid) {
			// Forged or corrupted evidence is terminal for the attempt.
			if _, err := s.intents.SetStatus(ctx, intent.ID, openStatuses, models.IntentFailed); err != nil {
				logger.Error("failed to mark intent failed", "intent_id", intent.ID, "error", err)
			}
			meter.Count("checkout.confirm.failed", 1, sentry.WithAttributes(
				attribute.String("reason", "signature_invalid"),
			))
		}
		return nil, verifyErr
	}

	won, err := s.intents.SetStatus(ctx, intent.ID, openStatuses, models.IntentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm intent: %w", err)
	}
	if !won {
		fresh, err := s.intents.GetByID(ctx, intent.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload intent: %w", err)
		}
		if fresh.Status != models.IntentConfirmed {
			return nil, ErrIntentFinalized
		}
	}
	logger.Info("payment intent confirmed", "intent_id", intent.ID, "method", intent.Method)
	meter.Count("checkout.intent.confirmed", 1)

	order, err := s.materializer.Materialize(ctx, intent.ID)
	if err != nil {
		// The intent stays confirmed; materialization can be retried.
		return nil, err
	}

	s.sendConfirmation(ctx, order)
	return order, nil
}

func (s *CheckoutService) persistSubState(ctx context.Context, intent *models.PaymentIntent) error {
	switch intent.Method {
	case models.MethodGateway:
		if intent.Gateway == nil {
			return nil
		}
		if err := s.intents.UpdateGateway(ctx, intent.ID, intent.Gateway); err != nil {
			return fmt.Errorf("failed to persist gateway state: %w", err)
		}
	case models.MethodWallet:
		if intent.Wallet == nil {
			return nil
		}
		if err := s.intents.UpdateWallet(ctx, intent.ID, intent.Wallet, intent.Status); err != nil {
			return fmt.Errorf("failed to persist wallet state: %w", err)
		}
	case models.MethodCOD:
		if intent.COD == nil {
			return nil
		}
		if err := s.intents.UpdateCOD(ctx, intent.ID, intent.COD); err != nil {
			return fmt.Errorf("failed to persist cod state: %w", err)
		}
	}
	return nil
}

func (s *CheckoutService) sendConfirmation(ctx context.Context, order *models.Order) {
	to := order.ShippingAddress.Email
	if to == "" {
		return
	}
	if err := s.emailSender.SendEmail(ctx, email.OrderConfirmation(to, order)); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to send order confirmation",
			"order_id", order.ID, "error", err)
	}
}

func (s *CheckoutService) loadOwnedIntent(ctx context.Context, userID, intentID uuid.UUID) (*models.PaymentIntent, error) {
	intent, err := s.intents.GetByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to load intent: %w", err)
	}
	if intent.UserID != userID {
		// Not revealed to non-owners.
		return nil, ErrIntentNotFound
	}
	return s.expireIfStale(ctx, intent)
}

// expireIfStale applies lazy expiry: an open intent past its TTL is moved to
// expired the first time anyone touches it.
func (s *CheckoutService) expireIfStale(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	if !intent.ExpiredAt(s.now(), s.intentTTL) {
		return intent, nil
	}

	won, err := s.intents.SetStatus(ctx, intent.ID, openStatuses, models.IntentExpired)
	if err != nil {
		return nil, fmt.Errorf("failed to expire intent: %w", err)
	}
	if won {
		intent.Status = models.IntentExpired
		logging.FromContext(ctx, s.logger).Info("payment intent expired", "intent_id", intent.ID)
		return intent, nil
	}

	// Someone else finalized it first; use whatever they made of it.
	fresh, err := s.intents.GetByID(ctx, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload intent: %w", err)
	}
	return fresh, nil
}

func (s *CheckoutService) requireOpen(intent *models.PaymentIntent) error {
	if intent.Status.IsOpen() {
		return nil
	}
	if intent.Status == models.IntentExpired {
		return ErrIntentExpired
	}
	return ErrIntentFinalized
}
