package types

import (
	"time"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
)

// TrackingEvent is one normalized shipment event.
type TrackingEvent struct {
	Timestamp   time.Time            `json:"timestamp"`
	Location    string               `json:"location,omitempty"`
	Status      enums.TrackingStatus `json:"status"`
	Description string               `json:"description,omitempty"`
	RawData     string               `json:"raw_data,omitempty"`
}

// TrackingDetails is the shipment snapshot stored on a vendor slice.
type TrackingDetails struct {
	Carrier        string          `json:"carrier,omitempty"`
	TrackingNumber string          `json:"tracking_number"`
	CourierCode    string          `json:"courier_code,omitempty"`
	History        []TrackingEvent `json:"history,omitempty"`
	LastUpdated    *time.Time      `json:"last_updated,omitempty"`
	IsMockData     bool            `json:"is_mock_data,omitempty"`
}
