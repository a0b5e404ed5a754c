package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/swiftcartapp/swiftcart/internal/cache"
	"github.com/swiftcartapp/swiftcart/internal/config"
	"github.com/swiftcartapp/swiftcart/internal/models"
	"github.com/swiftcartapp/swiftcart/internal/payment"
	"github.com/swiftcartapp/swiftcart/internal/services"
)

const testJWTSecret = "unit-test-jwt-secret"

type fakeCheckout struct {
	intent        *models.PaymentIntent
	order         *models.Order
	preview       *payment.BalancePreview
	challengeID   uuid.UUID
	err           error
	confirmCalls  int
	callbackCalls int
	lastUserID    uuid.UUID
}

func (f *fakeCheckout) CreateIntent(_ context.Context, userID uuid.UUID, _ services.CreateIntentInput) (*models.PaymentIntent, error) {
	f.lastUserID = userID
	return f.intent, f.err
}

func (f *fakeCheckout) GetIntent(_ context.Context, userID, _ uuid.UUID) (*models.PaymentIntent, error) {
	f.lastUserID = userID
	return f.intent, f.err
}

func (f *fakeCheckout) GetOrder(_ context.Context, userID, _ uuid.UUID) (*models.Order, error) {
	f.lastUserID = userID
	return f.order, f.err
}

func (f *fakeCheckout) WalletRequestOTP(_ context.Context, userID, _ uuid.UUID, _ string) (uuid.UUID, error) {
	f.lastUserID = userID
	return f.challengeID, f.err
}

func (f *fakeCheckout) WalletConfirmOTP(_ context.Context, userID, _, _ uuid.UUID, _ string) (*payment.BalancePreview, error) {
	f.lastUserID = userID
	return f.preview, f.err
}

func (f *fakeCheckout) Confirm(_ context.Context, userID, _ uuid.UUID, _ payment.Evidence) (*models.Order, error) {
	f.lastUserID = userID
	f.confirmCalls++
	return f.order, f.err
}

func (f *fakeCheckout) HandleGatewayCallback(context.Context, string, payment.Evidence) (*models.Order, error) {
	f.callbackCalls++
	return f.order, f.err
}

func newTestHandlers(t *testing.T, svc CheckoutService) *Handlers {
	t.Helper()

	memory, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	h, err := New(Dependencies{
		Config: &config.Config{
			JWTSecret:     testJWTSecret,
			GatewaySecret: "gateway-shared-secret",
			IntentTTL:     30 * time.Minute,
		},
		Checkout:      svc,
		CacheProvider: memory,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func newTestRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.RequireAuth)
	api.HandleFunc("/checkout/intents", h.CreateIntent).Methods(http.MethodPost)
	api.HandleFunc("/checkout/intents/{intent_id}", h.GetIntent).Methods(http.MethodGet)
	api.HandleFunc("/checkout/intents/{intent_id}/wallet/otp", h.WalletRequestOTP).Methods(http.MethodPost)
	api.HandleFunc("/checkout/intents/{intent_id}/wallet/verify", h.WalletConfirmOTP).Methods(http.MethodPost)
	api.HandleFunc("/checkout/intents/{intent_id}/confirm", h.ConfirmIntent).Methods(http.MethodPost)
	api.HandleFunc("/orders/{order_id}", h.GetOrder).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/gateway", h.GatewayCallback).Methods(http.MethodPost)
	return r
}

func bearerToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return "Bearer " + signed
}

func doRequest(t *testing.T, h *Handlers, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)
	return rec
}

func testIntent(method models.PaymentMethod) *models.PaymentIntent {
	intent := &models.PaymentIntent{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Method: method,
		Status: models.IntentCreated,
		Snapshot: models.CartSnapshot{
			Items:  []models.LineItem{{ProductID: uuid.New(), VariantID: uuid.New(), Name: "Trail Runner", Quantity: 2, UnitPriceCents: 24_900}},
			Totals: models.Totals{TotalCents: 60_460},
		},
		CreatedAt: time.Now(),
	}
	if method == models.MethodWallet {
		intent.Wallet = &models.WalletState{OTPHash: "secret-hash", Attempts: 1}
	}
	return intent
}

func TestCreateIntentEndpoint(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := &fakeCheckout{intent: testIntent(models.MethodCOD)}
	h := newTestHandlers(t, svc)

	rec := doRequest(t, h, http.MethodPost, "/api/checkout/intents", bearerToken(t, userID), map[string]any{
		"cart_id": uuid.NewString(),
		"method":  "cod",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body)
	}
	if svc.lastUserID != userID {
		t.Fatalf("service saw user %s, want %s", svc.lastUserID, userID)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := resp["totals"].(map[string]any)["total_cents"].(float64); got != 60_460 {
		t.Fatalf("total_cents = %v, want 60460", got)
	}
	if _, ok := resp["expires_at"]; !ok {
		t.Fatal("response missing expires_at")
	}
}

func TestCreateIntentRequiresAuth(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &fakeCheckout{})

	rec := doRequest(t, h, http.MethodPost, "/api/checkout/intents", "", map[string]any{"cart_id": uuid.NewString(), "method": "cod"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsForgedToken(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &fakeCheckout{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	rec := doRequest(t, h, http.MethodPost, "/api/checkout/intents", "Bearer "+signed, map[string]any{"cart_id": uuid.NewString(), "method": "cod"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestIntentViewHidesWalletState(t *testing.T) {
	t.Parallel()

	intent := testIntent(models.MethodWallet)
	h := newTestHandlers(t, &fakeCheckout{intent: intent})

	rec := doRequest(t, h, http.MethodGet, "/api/checkout/intents/"+intent.ID.String(), bearerToken(t, intent.UserID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "secret-hash") || strings.Contains(rec.Body.String(), "otp_hash") {
		t.Fatalf("wallet internals leaked in response: %s", rec.Body)
	}
}

func TestConfirmEndpointStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", services.ErrIntentNotFound, http.StatusNotFound, "intent_not_found"},
		{"expired", services.ErrIntentExpired, http.StatusGone, "intent_expired"},
		{"stock changed", services.ErrStockChanged, http.StatusConflict, "stock_changed"},
		{"finalized", services.ErrIntentFinalized, http.StatusConflict, "intent_finalized"},
		{"bad signature", payment.ErrSignatureInvalid, http.StatusBadRequest, "signature_invalid"},
		{"insufficient balance", payment.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newTestHandlers(t, &fakeCheckout{err: tc.err})

			rec := doRequest(t, h, http.MethodPost, "/api/checkout/intents/"+uuid.NewString()+"/confirm", bearerToken(t, uuid.New()),
				map[string]any{"cod": map[string]any{"confirmed": true}})
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tc.wantStatus, rec.Body)
			}

			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Fatalf("error code = %q, want %q", resp.Error.Code, tc.wantCode)
			}
		})
	}
}

func TestWalletVerifyReturnsPreviewOnShortBalance(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckout{
		preview: &payment.BalancePreview{BalanceCents: 10_000, RemainingCents: 0, CanProceed: false},
		err:     payment.ErrInsufficientBalance,
	}
	h := newTestHandlers(t, svc)

	rec := doRequest(t, h, http.MethodPost, "/api/checkout/intents/"+uuid.NewString()+"/wallet/verify", bearerToken(t, uuid.New()),
		map[string]any{"challenge_id": uuid.NewString(), "code": "123456"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}

	var resp walletVerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CanProceed {
		t.Fatal("can_proceed = true, want false")
	}
	if resp.BalanceCents != 10_000 {
		t.Fatalf("balance_cents = %d, want 10000", resp.BalanceCents)
	}
}

func TestWalletOTPThrottledStatus(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &fakeCheckout{err: services.ErrOTPThrottled})

	rec := doRequest(t, h, http.MethodPost, "/api/checkout/intents/"+uuid.NewString()+"/wallet/otp", bearerToken(t, uuid.New()),
		map[string]any{"mobile_number": "8801712345678"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429; body: %s", rec.Code, rec.Body)
	}
}

func TestGatewayCallbackDeduplicates(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckout{order: &models.Order{ID: uuid.New()}}
	h := newTestHandlers(t, svc)
	body := map[string]any{
		"delivery_id":          "dlv_001",
		"provider_order_ref":   "gwo_abc",
		"provider_payment_ref": "pay_001",
		"signature":            "sig",
	}

	for i := 0; i < 2; i++ {
		rec := doRequest(t, h, http.MethodPost, "/webhooks/gateway", "", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d, want 200; body: %s", i+1, rec.Code, rec.Body)
		}
	}
	if svc.callbackCalls != 1 {
		t.Fatalf("callback processed %d times, want 1", svc.callbackCalls)
	}
}

func TestGatewayCallbackFailureIsNotCached(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckout{err: payment.ErrSignatureInvalid}
	h := newTestHandlers(t, svc)
	body := map[string]any{
		"delivery_id":        "dlv_002",
		"provider_order_ref": "gwo_abc",
		"signature":          "forged",
	}

	for i := 0; i < 2; i++ {
		rec := doRequest(t, h, http.MethodPost, "/webhooks/gateway", "", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("call %d: status = %d, want 400", i+1, rec.Code)
		}
	}
	// A failed delivery must stay retryable.
	if svc.callbackCalls != 2 {
		t.Fatalf("callback processed %d times, want 2", svc.callbackCalls)
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	t.Parallel()

	order := &models.Order{ID: uuid.New(), UserID: uuid.New(), PaymentStatus: models.PaymentPaid}
	h := newTestHandlers(t, &fakeCheckout{order: order})

	rec := doRequest(t, h, http.MethodGet, "/api/orders/"+order.ID.String(), bearerToken(t, order.UserID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}

	var got models.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if got.ID != order.ID {
		t.Fatalf("order id = %s, want %s", got.ID, order.ID)
	}
}
