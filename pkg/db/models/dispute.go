package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

// Dispute is the chat-backed contention record anchored one-to-one to an
// order. Disputes are never destroyed.
type Dispute struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;uniqueIndex;not null"`

	BuyerID  uuid.UUID `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`

	RaisedBy     uuid.UUID         `gorm:"column:raised_by;type:uuid;not null"`
	RaisedByRole enums.DisputeRole `gorm:"column:raised_by_role;not null"`
	Reason       string            `gorm:"column:reason;not null"`

	Status     enums.DisputeStatus      `gorm:"column:status;not null"`
	Resolution *types.DisputeResolution `gorm:"column:resolution;type:jsonb;serializer:json"`

	AssignedAdminID *uuid.UUID            `gorm:"column:assigned_admin_id;type:uuid"`
	Priority        enums.DisputePriority `gorm:"column:priority;not null"`

	Messages []DisputeMessage `gorm:"foreignKey:DisputeID;constraint:OnDelete:CASCADE"`

	LastActivityAt time.Time `gorm:"column:last_activity_at;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
