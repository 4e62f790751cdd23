package enums

// TrackingStatus is the normalized shipment event status.
type TrackingStatus string

const (
	TrackingStatusPickedUp       TrackingStatus = "Picked Up"
	TrackingStatusInTransit      TrackingStatus = "In Transit"
	TrackingStatusOutForDelivery TrackingStatus = "Out for Delivery"
	TrackingStatusInCustoms      TrackingStatus = "In Customs"
	TrackingStatusException      TrackingStatus = "Exception"
	TrackingStatusDelivered      TrackingStatus = "Delivered"
)

var validTrackingStatuses = []TrackingStatus{
	TrackingStatusPickedUp,
	TrackingStatusInTransit,
	TrackingStatusOutForDelivery,
	TrackingStatusInCustoms,
	TrackingStatusException,
	TrackingStatusDelivered,
}

// String implements fmt.Stringer.
func (t TrackingStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TrackingStatus.
func (t TrackingStatus) IsValid() bool {
	for _, candidate := range validTrackingStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}
