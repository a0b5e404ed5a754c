package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/swiftcartapp/swiftcart/internal/db"
	"github.com/swiftcartapp/swiftcart/internal/models"
)

var ErrInvalidCoupon = errors.New("coupon is invalid or expired")

type couponSource interface {
	GetByCode(ctx context.Context, code string) (*db.Coupon, error)
}

type Service struct {
	rules   Rules
	coupons couponSource
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(rules Rules, coupons couponSource, logger *slog.Logger) *Service {
	return &Service{
		rules:   rules,
		coupons: coupons,
		logger:  logger,
		now:     time.Now,
	}
}

// ComputeTotals prices the given line items. Discount applies before tax;
// shipping follows the flat rate with a free-shipping threshold.
func (s *Service) ComputeTotals(ctx context.Context, items []models.LineItem, couponCode string) (models.Totals, error) {
	var totals models.Totals
	for _, item := range items {
		totals.SubtotalCents += int64(item.Quantity) * item.UnitPriceCents
	}

	if code := strings.TrimSpace(couponCode); code != "" {
		discount, err := s.couponDiscount(ctx, code, totals.SubtotalCents)
		if err != nil {
			return models.Totals{}, err
		}
		totals.DiscountCents = discount
	}

	taxable := totals.SubtotalCents - totals.DiscountCents
	if taxable < 0 {
		taxable = 0
	}
	totals.TaxCents = taxable * s.rules.TaxRateBps / 10_000

	totals.ShippingCents = s.rules.ShippingFlatCents
	if s.rules.FreeShippingOverCents > 0 && taxable >= s.rules.FreeShippingOverCents {
		totals.ShippingCents = 0
	}

	totals.TotalCents = taxable + totals.TaxCents + totals.ShippingCents
	return totals, nil
}

func (s *Service) couponDiscount(ctx context.Context, code string, subtotalCents int64) (int64, error) {
	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrInvalidCoupon, code)
		}
		return 0, fmt.Errorf("failed to look up coupon: %w", err)
	}

	if !coupon.Usable(s.now()) || subtotalCents < coupon.MinTotalCents {
		return 0, fmt.Errorf("%w: %s", ErrInvalidCoupon, code)
	}

	var discount int64
	switch coupon.Kind {
	case db.CouponKindPercent:
		discount = subtotalCents * coupon.Value / 100
	case db.CouponKindFixed:
		discount = coupon.Value
	default:
		s.logger.Warn("unknown coupon kind", "code", coupon.Code, "kind", coupon.Kind)
		return 0, fmt.Errorf("%w: %s", ErrInvalidCoupon, code)
	}

	if discount > subtotalCents {
		discount = subtotalCents
	}
	return discount, nil
}
