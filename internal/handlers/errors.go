package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/swiftcartapp/swiftcart/internal/logging"
	"github.com/swiftcartapp/swiftcart/internal/payment"
	"github.com/swiftcartapp/swiftcart/internal/pricing"
	"github.com/swiftcartapp/swiftcart/internal/services"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeDomainError translates service and payment errors into API responses.
// Unrecognized errors become an opaque 500; the detail stays in the logs.
func (h *Handlers) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	message := "internal server error"

	switch {
	case errors.Is(err, services.ErrCartNotFound):
		status, code, message = http.StatusNotFound, "cart_not_found", err.Error()
	case errors.Is(err, services.ErrIntentNotFound):
		status, code, message = http.StatusNotFound, "intent_not_found", err.Error()
	case errors.Is(err, services.ErrOrderNotFound):
		status, code, message = http.StatusNotFound, "order_not_found", err.Error()
	case errors.Is(err, services.ErrEmptyCart):
		status, code, message = http.StatusUnprocessableEntity, "empty_cart", err.Error()
	case errors.Is(err, services.ErrUnsupportedMethod):
		status, code, message = http.StatusUnprocessableEntity, "unsupported_method", err.Error()
	case errors.Is(err, services.ErrInsufficientStock):
		status, code, message = http.StatusConflict, "insufficient_stock", err.Error()
	case errors.Is(err, services.ErrStockChanged):
		status, code, message = http.StatusConflict, "stock_changed", err.Error()
	case errors.Is(err, services.ErrIntentExpired):
		status, code, message = http.StatusGone, "intent_expired", err.Error()
	case errors.Is(err, services.ErrIntentFinalized), errors.Is(err, payment.ErrAlreadyFinalized):
		status, code, message = http.StatusConflict, "intent_finalized", err.Error()
	case errors.Is(err, services.ErrOTPThrottled):
		status, code, message = http.StatusTooManyRequests, "otp_throttled", err.Error()
	case errors.Is(err, pricing.ErrInvalidCoupon):
		status, code, message = http.StatusUnprocessableEntity, "invalid_coupon", err.Error()
	case errors.Is(err, payment.ErrSignatureInvalid):
		status, code, message = http.StatusBadRequest, "signature_invalid", err.Error()
	case errors.Is(err, payment.ErrEvidenceMissing), errors.Is(err, payment.ErrConfirmationRequired):
		status, code, message = http.StatusBadRequest, "invalid_evidence", err.Error()
	case errors.Is(err, payment.ErrOTPMismatch):
		status, code, message = http.StatusBadRequest, "otp_mismatch", err.Error()
	case errors.Is(err, payment.ErrChallengeExpired):
		status, code, message = http.StatusGone, "challenge_expired", err.Error()
	case errors.Is(err, payment.ErrInsufficientBalance):
		status, code, message = http.StatusPaymentRequired, "insufficient_balance", err.Error()
	case errors.Is(err, payment.ErrNotVerified):
		status, code, message = http.StatusConflict, "not_verified", err.Error()
	}

	if status == http.StatusInternalServerError {
		logging.FromContext(ctx, h.logger).Error("request failed", "error", err)
	}
	writeJSON(ctx, w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func (h *Handlers) writeBadRequest(ctx context.Context, w http.ResponseWriter, message string) {
	writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: errorBody{Code: "bad_request", Message: message}})
}
