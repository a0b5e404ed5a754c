package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type CouponStore struct {
	db DBTX
}

func NewCouponStore(db DBTX) *CouponStore {
	return &CouponStore{db: db}
}

const (
	CouponKindPercent = "percent"
	CouponKindFixed   = "fixed"
)

type Coupon struct {
	Code          string
	Kind          string
	Value         int64 // percent points for "percent", cents for "fixed"
	MinTotalCents int64
	Active        bool
	ExpiresAt     time.Time
}

func (c *Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

func (s *CouponStore) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	var (
		coupon    Coupon
		expiresAt pgtype.Timestamptz
	)
	row := s.db.QueryRow(ctx, `
		SELECT code, kind, value, min_total_cents, active, expires_at
		FROM coupons WHERE code = $1`, code)
	if err := row.Scan(&coupon.Code, &coupon.Kind, &coupon.Value, &coupon.MinTotalCents, &coupon.Active, &expiresAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		coupon.ExpiresAt = expiresAt.Time
	}
	return &coupon, nil
}
