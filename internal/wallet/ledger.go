// Package wallet talks to the external stored-value ledger.
package wallet

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds is returned by Debit when the account balance is
	// below the requested amount.
	ErrInsufficientFunds = errors.New("insufficient wallet funds")
	// ErrAccountNotFound is returned when the ledger does not know the account.
	ErrAccountNotFound = errors.New("wallet account not found")
)

// Ledger is the contract required from the wallet-ledger collaborator.
// GetBalance is idempotent and may be retried; Debit must never be retried
// automatically.
type Ledger interface {
	GetBalance(ctx context.Context, accountRef string) (int64, error)
	Debit(ctx context.Context, accountRef string, amountCents int64, reference string) (string, error)
}
