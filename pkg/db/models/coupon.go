package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
)

// Coupon is a marketplace-wide discount. Value means percent for percentage
// coupons and a currency amount for fixed_amount coupons.
type Coupon struct {
	ID   uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code string           `gorm:"column:code;uniqueIndex;not null"`
	Type enums.CouponType `gorm:"column:type;not null"`

	Value                decimal.Decimal `gorm:"column:value;type:numeric(12,2);not null"`
	MaximumDiscountCents *int64          `gorm:"column:maximum_discount_cents"`
	MinimumAmountCents   int64           `gorm:"column:minimum_amount_cents;not null"`

	UsageLimit *int `gorm:"column:usage_limit"`
	UsedCount  int  `gorm:"column:used_count;not null"`

	IsActive   bool      `gorm:"column:is_active;not null"`
	ValidFrom  time.Time `gorm:"column:valid_from;not null"`
	ValidUntil time.Time `gorm:"column:valid_until;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
