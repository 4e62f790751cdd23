package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is the immutable snapshot of one cart line inside an order.
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	SliceID   uuid.UUID `gorm:"column:slice_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	VendorID  uuid.UUID `gorm:"column:vendor_id;type:uuid;not null"`

	Name           string  `gorm:"column:name;not null"`
	Qty            int     `gorm:"column:qty;not null"`
	UnitPriceCents int64   `gorm:"column:unit_price_cents;not null"`
	Variant        *string `gorm:"column:variant"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
