package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/swiftcartapp/swiftcart/internal/observability"
)

// HTTPProvider delivers OTP codes through an SMS gateway's JSON API.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: observability.NewHTTPClient(timeout),
	}
}

type sendOTPRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (p *HTTPProvider) SendOTP(ctx context.Context, mobileNumber, code string) error {
	payload, err := json.Marshal(sendOTPRequest{
		To:      mobileNumber,
		Message: fmt.Sprintf("Your SwiftCart verification code is %s. It expires in 10 minutes.", code),
	})
	if err != nil {
		return fmt.Errorf("failed to encode otp message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build otp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("otp dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
