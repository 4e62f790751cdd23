package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
)

// CheckoutTicket is the write-ahead record for a checkout attempt. The
// gateway intent id is the idempotency anchor: a ticket moves
// pending -> committed exactly once, and re-verification of the same intent
// returns the orders already linked to it.
type CheckoutTicket struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`

	IntentID string             `gorm:"column:intent_id;uniqueIndex;not null"`
	Status   enums.TicketStatus `gorm:"column:status;not null"`

	AmountCents int64          `gorm:"column:amount_cents;not null"`
	Currency    enums.Currency `gorm:"column:currency;not null"`

	// Payload is the pending checkout request, replayed on verification.
	Payload []byte `gorm:"column:payload;type:jsonb"`

	FailureReason *string `gorm:"column:failure_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
