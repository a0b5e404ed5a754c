package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/swiftcartapp/swiftcart/internal/observability"
)

const (
	balanceRetries   = 2
	retryBaseBackoff = 200 * time.Millisecond
)

// Client is an HTTP implementation of Ledger.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: observability.NewHTTPClient(timeout),
	}
}

type balanceResponse struct {
	BalanceCents int64 `json:"balance_cents"`
}

type debitRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference"`
}

type debitResponse struct {
	TransactionID string `json:"transaction_id"`
}

// GetBalance reads the current balance. Transient failures are retried with
// bounded backoff; the read is idempotent so replays are safe.
func (c *Client) GetBalance(ctx context.Context, accountRef string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= balanceRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBaseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		balance, err := c.fetchBalance(ctx, accountRef)
		if err == nil {
			return balance, nil
		}
		if !retryable(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("balance lookup failed after retries: %w", lastErr)
}

func (c *Client) fetchBalance(ctx context.Context, accountRef string) (int64, error) {
	endpoint := c.baseURL + "/v1/accounts/" + url.PathEscape(accountRef) + "/balance"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build balance request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &transientError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return 0, ErrAccountNotFound
	case resp.StatusCode >= 500:
		return 0, &transientError{err: fmt.Errorf("ledger returned status %d", resp.StatusCode)}
	default:
		return 0, fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}
	return body.BalanceCents, nil
}

// Debit moves funds out of the account. Never retried: a timeout here is
// surfaced to the caller for manual reconciliation instead of risking a
// double charge.
func (c *Client) Debit(ctx context.Context, accountRef string, amountCents int64, reference string) (string, error) {
	payload, err := json.Marshal(debitRequest{AmountCents: amountCents, Reference: reference})
	if err != nil {
		return "", fmt.Errorf("failed to encode debit request: %w", err)
	}

	endpoint := c.baseURL + "/v1/accounts/" + url.PathEscape(accountRef) + "/debits"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build debit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("debit request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return "", ErrAccountNotFound
	case http.StatusUnprocessableEntity, http.StatusPaymentRequired:
		return "", ErrInsufficientFunds
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ledger debit returned status %d: %s", resp.StatusCode, body)
	}

	var body debitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode debit response: %w", err)
	}
	if body.TransactionID == "" {
		return "", fmt.Errorf("ledger debit returned empty transaction id")
	}
	return body.TransactionID, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

func retryable(err error) bool {
	var transient *transientError
	return errors.As(err, &transient)
}
