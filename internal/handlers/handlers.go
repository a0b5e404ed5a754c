package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftcartapp/swiftcart/internal/cache"
	"github.com/swiftcartapp/swiftcart/internal/config"
	"github.com/swiftcartapp/swiftcart/internal/logging"
	"github.com/swiftcartapp/swiftcart/internal/models"
	"github.com/swiftcartapp/swiftcart/internal/payment"
	"github.com/swiftcartapp/swiftcart/internal/services"
)

const maxBodyBytes = 1 << 20 // 1 MB

// CheckoutService is the checkout surface the HTTP layer drives.
type CheckoutService interface {
	CreateIntent(ctx context.Context, userID uuid.UUID, input services.CreateIntentInput) (*models.PaymentIntent, error)
	GetIntent(ctx context.Context, userID, intentID uuid.UUID) (*models.PaymentIntent, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	WalletRequestOTP(ctx context.Context, userID, intentID uuid.UUID, mobileNumber string) (uuid.UUID, error)
	WalletConfirmOTP(ctx context.Context, userID, intentID, challengeID uuid.UUID, code string) (*payment.BalancePreview, error)
	Confirm(ctx context.Context, userID, intentID uuid.UUID, evidence payment.Evidence) (*models.Order, error)
	HandleGatewayCallback(ctx context.Context, orderRef string, evidence payment.Evidence) (*models.Order, error)
}

// Handlers provides HTTP request handlers for the checkout API.
type Handlers struct {
	config        *config.Config
	db            *pgxpool.Pool
	checkout      CheckoutService
	cacheProvider cache.Provider
	logger        *slog.Logger
}

type Dependencies struct {
	Config        *config.Config
	DB            *pgxpool.Pool
	Checkout      CheckoutService
	CacheProvider cache.Provider
	Logger        *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.Checkout == nil {
		return nil, fmt.Errorf("handlers dependencies: checkout is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}

	return &Handlers{
		config:        deps.Config,
		db:            deps.DB,
		checkout:      deps.Checkout,
		cacheProvider: deps.CacheProvider,
		logger:        logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logger.Error("database health check failed", "error", err)
			http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx, slog.Default()).Error("failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
