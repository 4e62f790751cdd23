package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

// VendorSlice is the per-vendor substructure of an order: the vendor's
// items, its cut of the money, and its own fulfillment state machine.
type VendorSlice struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID  uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index:idx_slices_vendor_created,priority:1"`

	Status enums.OrderStatus `gorm:"column:status;not null"`

	SubtotalCents     int64 `gorm:"column:subtotal_cents;not null"`
	TaxCents          int64 `gorm:"column:tax_cents;not null"`
	ShippingCents     int64 `gorm:"column:shipping_cents;not null"`
	DiscountCents     int64 `gorm:"column:discount_cents;not null"`
	TotalCents        int64 `gorm:"column:total_cents;not null"`
	CommissionCents   int64 `gorm:"column:commission_cents;not null"`
	VendorAmountCents int64 `gorm:"column:vendor_amount_cents;not null"`

	Tracking *types.TrackingDetails `gorm:"column:tracking;type:jsonb;serializer:json"`

	Items []OrderItem `gorm:"foreignKey:SliceID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_slices_vendor_created,priority:2,sort:desc"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
