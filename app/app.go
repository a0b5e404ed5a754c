package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftcartapp/swiftcart/internal/cache"
	"github.com/swiftcartapp/swiftcart/internal/config"
	"github.com/swiftcartapp/swiftcart/internal/crypto"
	"github.com/swiftcartapp/swiftcart/internal/db"
	"github.com/swiftcartapp/swiftcart/internal/email"
	"github.com/swiftcartapp/swiftcart/internal/handlers"
	"github.com/swiftcartapp/swiftcart/internal/notify"
	"github.com/swiftcartapp/swiftcart/internal/payment"
	"github.com/swiftcartapp/swiftcart/internal/pricing"
	"github.com/swiftcartapp/swiftcart/internal/services"
	"github.com/swiftcartapp/swiftcart/internal/wallet"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	signer, err := crypto.NewSigner(cfg.GatewaySecret)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize gateway signer: %w", err)
	}

	notifier, err := notify.NewProvider(notify.Config{
		Provider: cfg.SMSProvider,
		BaseURL:  cfg.SMSBaseURL,
		APIKey:   cfg.SMSAPIKey,
		Timeout:  cfg.SMSTimeout,
	}, logger.With("component", "sms"))
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize sms provider: %w", err)
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.EmailAPIKey,
		From:     cfg.EmailFrom,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}

	rules, err := pricing.LoadRules(cfg.PricingRulesPath)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to load pricing rules: %w", err)
	}

	intentStore := db.NewIntentStore(database)
	orderStore := db.NewOrderStore(database)
	cartStore := db.NewCartStore(database)
	stockStore := db.NewStockStore(database)
	couponStore := db.NewCouponStore(database)

	pricer := pricing.NewService(rules, couponStore, logger.With("component", "pricing"))
	ledger := wallet.NewClient(cfg.LedgerBaseURL, cfg.LedgerAPIKey, cfg.LedgerTimeout)

	gatewayAdapter := payment.NewGatewayAdapter(signer)
	walletAdapter := payment.NewWalletAdapter(ledger, notifier, cfg.OTPTTL, cfg.OTPAttempts, logger.With("component", "wallet"))
	codAdapter := payment.NewCODAdapter()

	materializer := services.NewMaterializer(db.NewTxManager(database), logger.With("component", "materializer"))
	checkoutService := services.NewCheckoutService(
		intentStore,
		cartStore,
		stockStore,
		orderStore,
		pricer,
		[]payment.Adapter{gatewayAdapter, walletAdapter, codAdapter},
		walletAdapter,
		materializer,
		emailProvider,
		cacheProvider,
		gatewayAdapter,
		cfg.IntentTTL,
		logger.With("component", "checkout_service"),
	)

	h, err := handlers.New(handlers.Dependencies{
		Config:        cfg,
		DB:            database,
		Checkout:      checkoutService,
		CacheProvider: cacheProvider,
		Logger:        logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text", "":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
