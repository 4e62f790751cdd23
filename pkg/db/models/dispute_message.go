package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

// DisputeMessage is one append-only chat entry. Content may be empty only
// when images are attached. ReadBy only ever grows.
type DisputeMessage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DisputeID uuid.UUID `gorm:"column:dispute_id;type:uuid;not null;index"`

	SenderID   uuid.UUID         `gorm:"column:sender_id;type:uuid;not null"`
	SenderRole enums.DisputeRole `gorm:"column:sender_role;not null"`
	IsSystem   bool              `gorm:"column:is_system;not null"`

	Content *string              `gorm:"column:content"`
	Images  []types.MessageImage `gorm:"column:images;type:jsonb;serializer:json"`
	ReadBy  []types.ReadReceipt  `gorm:"column:read_by;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
