package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a customer's cart. The cart is cleared when a
// checkout commits.
type CartItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Qty        int       `gorm:"column:qty;not null"`
	Variant    *string   `gorm:"column:variant"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
