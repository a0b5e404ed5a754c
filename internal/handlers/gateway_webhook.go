package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/swiftcartapp/swiftcart/internal/cache"
	"github.com/swiftcartapp/swiftcart/internal/payment"
)

// callbackIdempotencyTTL is how long callback delivery IDs are kept for
// deduplication.
const callbackIdempotencyTTL = 24 * time.Hour

type gatewayCallbackRequest struct {
	DeliveryID         string `json:"delivery_id"`
	ProviderOrderRef   string `json:"provider_order_ref"`
	ProviderPaymentRef string `json:"provider_payment_ref"`
	Signature          string `json:"signature"`
}

// GatewayCallback handles the provider's server-to-server payment
// notification. Deliveries are retried by the provider, so processing is
// deduplicated by delivery id before the signature is even looked at.
func (h *Handlers) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	var req gatewayCallbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Error("failed to read gateway callback payload", "error", err)
		h.writeBadRequest(ctx, w, "invalid callback payload")
		return
	}
	if strings.TrimSpace(req.DeliveryID) == "" || strings.TrimSpace(req.ProviderOrderRef) == "" {
		h.writeBadRequest(ctx, w, "delivery_id and provider_order_ref are required")
		return
	}

	cacheKey := cache.CallbackKey("gateway", req.DeliveryID)
	if _, err := h.cacheProvider.Get(ctx, cacheKey); err == nil {
		logger.Info("callback already processed", "delivery_id", req.DeliveryID)
		w.WriteHeader(http.StatusOK)
		return
	}

	_, processErr := h.checkout.HandleGatewayCallback(ctx, req.ProviderOrderRef, payment.Evidence{
		Gateway: &payment.GatewayEvidence{
			ProviderOrderRef:   req.ProviderOrderRef,
			ProviderPaymentRef: req.ProviderPaymentRef,
			Signature:          req.Signature,
		},
	})
	if processErr != nil {
		logger.Error("failed to process gateway callback", "error", processErr, "delivery_id", req.DeliveryID)
		h.writeDomainError(ctx, w, processErr)
		return
	}

	if err := h.cacheProvider.Set(ctx, cacheKey, "processed", callbackIdempotencyTTL); err != nil {
		logger.Error("failed to mark callback as processed in cache", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
