package payment

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/swiftcartapp/swiftcart/internal/logging"
	"github.com/swiftcartapp/swiftcart/internal/models"
	"github.com/swiftcartapp/swiftcart/internal/notify"
	"github.com/swiftcartapp/swiftcart/internal/wallet"
)

const otpDigits = 6

// WalletAdapter drives the three-step wallet protocol: bind a mobile number
// and send an OTP, confirm the OTP and preview the balance, then debit.
// Verification and debit are split so the balance can be previewed without
// committing funds, and so a crash between the two leaves the intent
// re-drivable from the debit step alone.
type WalletAdapter struct {
	ledger      wallet.Ledger
	notifier    notify.Provider
	otpTTL      time.Duration
	attemptCap  int
	logger      *slog.Logger
	now         func() time.Time
	generateOTP func() (string, error)
}

func NewWalletAdapter(ledger wallet.Ledger, notifier notify.Provider, otpTTL time.Duration, attemptCap int, logger *slog.Logger) *WalletAdapter {
	return &WalletAdapter{
		ledger:      ledger,
		notifier:    notifier,
		otpTTL:      otpTTL,
		attemptCap:  attemptCap,
		logger:      logger,
		now:         time.Now,
		generateOTP: generateOTP,
	}
}

func (a *WalletAdapter) Method() models.PaymentMethod {
	return models.MethodWallet
}

// RequestVerification starts (or restarts) the OTP challenge. Exactly one
// challenge is live per intent: re-invocation before expiry replaces the
// previous one.
func (a *WalletAdapter) RequestVerification(ctx context.Context, intent *models.PaymentIntent, mobileNumber string) (uuid.UUID, error) {
	if intent.Wallet == nil {
		intent.Wallet = &models.WalletState{}
	}
	state := intent.Wallet
	if state.TransactionID != "" {
		return uuid.Nil, ErrAlreadyFinalized
	}

	code, err := a.generateOTP()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate otp: %w", err)
	}

	challengeID := uuid.New()
	state.MobileNumber = mobileNumber
	state.ChallengeID = challengeID
	state.OTPHash = hashOTP(challengeID, code)
	state.OTPExpiresAt = a.now().Add(a.otpTTL)
	state.Attempts = 0
	state.Verified = false

	if err := a.notifier.SendOTP(ctx, mobileNumber, code); err != nil {
		// Roll the challenge back so a dispatch failure never leaves a code
		// the customer can't have received.
		state.ChallengeID = uuid.Nil
		state.OTPHash = ""
		return uuid.Nil, fmt.Errorf("failed to dispatch otp: %w", err)
	}

	return challengeID, nil
}

// BalancePreview is the outcome of a successful OTP confirmation.
type BalancePreview struct {
	BalanceCents   int64
	RemainingCents int64
	CanProceed     bool
}

// ConfirmOTP checks the code against the live challenge and, on match,
// previews the wallet balance against the intent amount. The challenge is
// consumed either way; an insufficient balance requires a fresh
// RequestVerification after topping up.
func (a *WalletAdapter) ConfirmOTP(ctx context.Context, intent *models.PaymentIntent, challengeID uuid.UUID, code string) (*BalancePreview, error) {
	logger := logging.FromContext(ctx, a.logger)
	state := intent.Wallet
	if state == nil || !state.HasLiveChallenge(a.now()) || state.ChallengeID != challengeID {
		return nil, ErrChallengeExpired
	}

	if !otpMatches(state, challengeID, code) {
		state.Attempts++
		if state.Attempts >= a.attemptCap {
			invalidateChallenge(state)
			logger.Info("otp challenge invalidated after attempt cap", "intent_id", intent.ID, "attempts", state.Attempts)
			return nil, ErrChallengeExpired
		}
		return nil, ErrOTPMismatch
	}

	// The code matched; the challenge is spent regardless of the balance.
	invalidateChallenge(state)

	balance, err := a.ledger.GetBalance(ctx, state.MobileNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet balance: %w", err)
	}
	state.BalanceCents = balance
	state.BalanceKnown = true

	amount := intent.AmountCents()
	if balance < amount {
		return &BalancePreview{BalanceCents: balance, RemainingCents: 0, CanProceed: false},
			fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, amount)
	}

	state.Verified = true
	return &BalancePreview{
		BalanceCents:   balance,
		RemainingCents: balance - amount,
		CanProceed:     true,
	}, nil
}

// Verify performs the debit. Only callable once the OTP and balance checks
// have passed; an already-recorded transaction id makes it a no-op so a crash
// between debit and persist stays recoverable.
func (a *WalletAdapter) Verify(ctx context.Context, intent *models.PaymentIntent, _ Evidence) error {
	state := intent.Wallet
	if state == nil {
		return ErrNotVerified
	}
	if state.TransactionID != "" {
		return nil
	}
	if !state.Verified {
		return ErrNotVerified
	}

	txnID, err := a.ledger.Debit(ctx, state.MobileNumber, intent.AmountCents(), intent.ID.String())
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			// Balance moved between preview and debit. Re-drivable after a
			// fresh verification round.
			state.Verified = false
			return fmt.Errorf("%w: balance changed before debit", ErrInsufficientBalance)
		}
		return fmt.Errorf("wallet debit failed: %w", err)
	}

	state.TransactionID = txnID
	return nil
}

func (a *WalletAdapter) Amount(intent *models.PaymentIntent) int64 {
	return intent.AmountCents()
}

func invalidateChallenge(state *models.WalletState) {
	state.ChallengeID = uuid.Nil
	state.OTPHash = ""
	state.OTPExpiresAt = time.Time{}
}

func otpMatches(state *models.WalletState, challengeID uuid.UUID, code string) bool {
	expected := hashOTP(challengeID, code)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(state.OTPHash)) == 1
}

func hashOTP(challengeID uuid.UUID, code string) string {
	sum := sha256.Sum256([]byte(challengeID.String() + ":" + code))
	return hex.EncodeToString(sum[:])
}

func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
