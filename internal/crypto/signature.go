// Package crypto provides signing utilities for payment gateway callbacks.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrMissingSecret = errors.New("signing secret is required")

// Signer computes and checks gateway callback signatures. The gateway signs
// the concatenation "orderRef|paymentRef" with a shared HMAC-SHA256 secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the hex-encoded HMAC over orderRef|paymentRef.
func (s *Signer) Sign(orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderRef))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected HMAC in constant time.
func (s *Signer) Verify(orderRef, paymentRef, signature string) bool {
	expected := s.Sign(orderRef, paymentRef)
	return hmac.Equal([]byte(expected), []byte(signature))
}
