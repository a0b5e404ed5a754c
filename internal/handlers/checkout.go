package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/swiftcartapp/swiftcart/internal/models"
	"github.com/swiftcartapp/swiftcart/internal/payment"
	"github.com/swiftcartapp/swiftcart/internal/services"
)

type createIntentRequest struct {
	CartID          uuid.UUID            `json:"cart_id"`
	Method          models.PaymentMethod `json:"method"`
	ShippingAddress models.Address       `json:"shipping_address"`
	BillingAddress  models.Address       `json:"billing_address"`
	CouponCode      string               `json:"coupon_code,omitempty"`
}

type gatewayStateView struct {
	ProviderOrderRef string `json:"provider_order_ref"`
}

// intentResponse is the client view of an intent. Wallet internals (the OTP
// hash in particular) never leave the server.
type intentResponse struct {
	ID        uuid.UUID            `json:"id"`
	Method    models.PaymentMethod `json:"method"`
	Status    models.IntentStatus  `json:"status"`
	Items     []models.LineItem    `json:"items"`
	Totals    models.Totals        `json:"totals"`
	Gateway   *gatewayStateView    `json:"gateway,omitempty"`
	OrderID   *uuid.UUID           `json:"order_id,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

func (h *Handlers) intentView(intent *models.PaymentIntent) intentResponse {
	resp := intentResponse{
		ID:        intent.ID,
		Method:    intent.Method,
		Status:    intent.Status,
		Items:     intent.Snapshot.Items,
		Totals:    intent.Snapshot.Totals,
		CreatedAt: intent.CreatedAt,
		ExpiresAt: intent.CreatedAt.Add(h.config.IntentTTL),
	}
	if intent.Gateway != nil {
		resp.Gateway = &gatewayStateView{ProviderOrderRef: intent.Gateway.ProviderOrderRef}
	}
	if intent.Materialized() {
		orderID := intent.OrderID
		resp.OrderID = &orderID
	}
	return resp
}

func (h *Handlers) CreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "authentication required"}})
		return
	}

	var req createIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(ctx, w, err.Error())
		return
	}
	if req.CartID == uuid.Nil {
		h.writeBadRequest(ctx, w, "cart_id is required")
		return
	}

	intent, err := h.checkout.CreateIntent(ctx, userID, services.CreateIntentInput{
		CartID:          req.CartID,
		Method:          req.Method,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, h.intentView(intent))
}

func (h *Handlers) GetIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "authentication required"}})
		return
	}
	intentID, ok := pathID(r, "intent_id")
	if !ok {
		h.writeBadRequest(ctx, w, "invalid intent id")
		return
	}

	intent, err := h.checkout.GetIntent(ctx, userID, intentID)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, h.intentView(intent))
}

type walletOTPRequest struct {
	MobileNumber string `json:"mobile_number"`
}

type walletOTPResponse struct {
	ChallengeID uuid.UUID `json:"challenge_id"`
}

func (h *Handlers) WalletRequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "authentication required"}})
		return
	}
	intentID, ok := pathID(r, "intent_id")
	if !ok {
		h.writeBadRequest(ctx, w, "invalid intent id")
		return
	}

	var req walletOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(ctx, w, err.Error())
		return
	}
	if strings.TrimSpace(req.MobileNumber) == "" {
		h.writeBadRequest(ctx, w, "mobile_number is required")
		return
	}

	challengeID, err := h.checkout.WalletRequestOTP(ctx, userID, intentID, strings.TrimSpace(req.MobileNumber))
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, walletOTPResponse{ChallengeID: challengeID})
}

type walletVerifyRequest struct {
	ChallengeID uuid.UUID `json:"challenge_id"`
	Code        string    `json:"code"`
}

type walletVerifyResponse struct {
	BalanceCents   int64 `json:"balance_cents"`
	RemainingCents int64 `json:"remaining_cents"`
	CanProceed     bool  `json:"can_proceed"`
}

func (h *Handlers) WalletConfirmOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "authentication required"}})
		return
	}
	intentID, ok := pathID(r, "intent_id")
	if !ok {
		h.writeBadRequest(ctx, w, "invalid intent id")
		return
	}

	var req walletVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(ctx, w, err.Error())
		return
	}
	if req.ChallengeID == uuid.Nil || strings.TrimSpace(req.Code) == "" {
		h.writeBadRequest(ctx, w, "challenge_id and code are required")
		return
	}

	preview, err := h.checkout.WalletConfirmOTP(ctx, userID, intentID, req.ChallengeID, strings.TrimSpace(req.Code))
	if preview != nil {
		// A correct code always yields the preview, even when the balance
		// falls short; can_proceed tells the client which case it is.
		writeJSON(ctx, w, http.StatusOK, walletVerifyResponse{
			BalanceCents:   preview.BalanceCents,
			RemainingCents: preview.RemainingCents,
			CanProceed:     preview.CanProceed,
		})
		return
	}
	h.writeDomainError(ctx, w, err)
}

func (h *Handlers) ConfirmIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "authentication required"}})
		return
	}
	intentID, ok := pathID(r, "intent_id")
	if !ok {
		h.writeBadRequest(ctx, w, "invalid intent id")
		return
	}

	var evidence payment.Evidence
	if err := decodeJSON(w, r, &evidence); err != nil {
		h.writeBadRequest(ctx, w, err.Error())
		return
	}

	order, err := h.checkout.Confirm(ctx, userID, intentID, evidence)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, order)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := userIDFromContext(ctx)
	if !ok {
		writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: errorBody{Code: "unauthorized", Message: "authentication required"}})
		return
	}
	orderID, ok := pathID(r, "order_id")
	if !ok {
		h.writeBadRequest(ctx, w, "invalid order id")
		return
	}

	order, err := h.checkout.GetOrder(ctx, userID, orderID)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, order)
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
