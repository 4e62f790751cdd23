package tracking

import (
	"hash/fnv"
	"time"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

// mockJourney is the synthetic event sequence used when the upstream is
// unavailable, oldest first.
var mockJourney = []struct {
	status      enums.TrackingStatus
	location    string
	description string
	ageHours    int
}{
	{enums.TrackingStatusPickedUp, "Origin Facility", "Package picked up by carrier", 72},
	{enums.TrackingStatusInTransit, "Regional Hub", "Departed sorting facility", 48},
	{enums.TrackingStatusInTransit, "Destination Hub", "Arrived at destination facility", 24},
	{enums.TrackingStatusOutForDelivery, "Local Depot", "Out for delivery", 4},
}

// MockEvents synthesizes a deterministic history for a tracking number. The
// same number always yields the same truncation point, so repeated fallback
// reads agree with each other. Mock journeys never reach Delivered; state
// transitions stay vendor-driven while the upstream is down.
func MockEvents(trackingNumber string, now time.Time) []types.TrackingEvent {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(trackingNumber))
	visible := int(hasher.Sum32()%uint32(len(mockJourney))) + 1

	base := now.Truncate(time.Hour)
	events := make([]types.TrackingEvent, 0, visible)
	for i := visible - 1; i >= 0; i-- {
		step := mockJourney[i]
		events = append(events, types.TrackingEvent{
			Timestamp:   base.Add(-time.Duration(step.ageHours) * time.Hour),
			Location:    step.location,
			Status:      step.status,
			Description: step.description,
		})
	}
	return events
}
