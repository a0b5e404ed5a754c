package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/swiftcartapp/swiftcart/internal/config"
	"github.com/swiftcartapp/swiftcart/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet).Name("health")
	r.HandleFunc("/webhooks/gateway", h.GatewayCallback).Methods(http.MethodPost).Name("webhooks.gateway")

	// Authenticated checkout API.
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RequireAuth)
	api.HandleFunc("/checkout/intents", h.CreateIntent).Methods(http.MethodPost).Name("checkout.intents.create")
	api.HandleFunc("/checkout/intents/{intent_id}", h.GetIntent).Methods(http.MethodGet).Name("checkout.intents.get")
	api.HandleFunc("/checkout/intents/{intent_id}/wallet/otp", h.WalletRequestOTP).Methods(http.MethodPost).Name("checkout.wallet.otp")
	api.HandleFunc("/checkout/intents/{intent_id}/wallet/verify", h.WalletConfirmOTP).Methods(http.MethodPost).Name("checkout.wallet.verify")
	api.HandleFunc("/checkout/intents/{intent_id}/confirm", h.ConfirmIntent).Methods(http.MethodPost).Name("checkout.intents.confirm")
	api.HandleFunc("/orders/{order_id}", h.GetOrder).Methods(http.MethodGet).Name("orders.get")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
