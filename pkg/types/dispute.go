package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
)

// DisputeResolution captures the admin verdict.
type DisputeResolution struct {
	Winner     enums.DisputeRole `json:"winner"`
	ResolvedBy uuid.UUID         `json:"resolved_by"`
	ResolvedAt time.Time         `json:"resolved_at"`
	Notes      string            `json:"notes,omitempty"`
}

// MessageImage is an attachment reference with its expiry.
type MessageImage struct {
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReadReceipt marks a message as read by a user. Receipts are append-only.
type ReadReceipt struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}
