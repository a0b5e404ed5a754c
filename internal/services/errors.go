package services

import "errors"

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrIntentNotFound     = errors.New("payment intent not found")
	ErrIntentExpired      = errors.New("payment intent expired")
	ErrIntentFinalized    = errors.New("payment intent already finalized")
	ErrIntentNotConfirmed = errors.New("payment intent is not confirmed")
	ErrStockChanged       = errors.New("stock changed since checkout")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrOTPThrottled       = errors.New("verification code requested too recently")
	ErrOrderNotFound      = errors.New("order not found")
)
