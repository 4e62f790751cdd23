package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog row the checkout engine snapshots prices from. The
// available quantity column doubles as the inventory ledger's backing store.
type Product struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`

	Title      string `gorm:"column:title;not null"`
	PriceCents int64  `gorm:"column:price_cents;not null"`
	IsActive   bool   `gorm:"column:is_active;not null"`

	TrackQuantity bool `gorm:"column:track_quantity;not null"`
	AvailableQty  int  `gorm:"column:available_qty;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
