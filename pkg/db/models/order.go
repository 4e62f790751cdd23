package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

// Order is the per-vendor purchase record produced by checkout. Multi-vendor
// carts produce multiple orders sharing one payment intent. Slices and items
// are owned children and always load with the order.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber string    `gorm:"column:order_number;uniqueIndex;not null"`
	CustomerID  uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index:idx_orders_customer_created,priority:1"`

	Status        enums.OrderStatus   `gorm:"column:status;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`

	RazorpayOrderID   *string `gorm:"column:razorpay_order_id;index"`
	RazorpayPaymentID *string `gorm:"column:razorpay_payment_id"`
	RazorpaySignature *string `gorm:"column:razorpay_signature"`

	SubtotalCents int64          `gorm:"column:subtotal_cents;not null"`
	TaxCents      int64          `gorm:"column:tax_cents;not null"`
	ShippingCents int64          `gorm:"column:shipping_cents;not null"`
	DiscountCents int64          `gorm:"column:discount_cents;not null"`
	TotalCents    int64          `gorm:"column:total_cents;not null"`
	Currency      enums.Currency `gorm:"column:currency;not null"`
	CouponCode    *string        `gorm:"column:coupon_code"`

	ShippingAddress types.Address  `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *types.Address `gorm:"column:billing_address;type:jsonb;serializer:json"`

	Escrow *types.EscrowDetails `gorm:"column:escrow;type:jsonb;serializer:json"`

	Slices []VendorSlice `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Items  []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_orders_customer_created,priority:2,sort:desc"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
