package tracking

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

// Service refreshes shipment details against the upstream and merges the
// result into the stored history.
type Service struct {
	provider Provider
	log      *logger.Logger

	// registerDelay separates register from the first fetch; tests shrink it.
	registerDelay time.Duration
	now           func() time.Time
}

// NewService builds the tracking service around an upstream provider.
func NewService(provider Provider, log *logger.Logger) (*Service, error) {
	if provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tracking provider is required")
	}
	if log == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &Service{
		provider:      provider,
		log:           log,
		registerDelay: registerFetchInterval,
		now:           time.Now,
	}, nil
}

// Refresh validates the tracking number, pulls fresh events, and merges
// them into details. When the upstream is unconfigured or failing, a
// deterministic mock history is substituted and flagged. The returned bool
// reports whether any event is Delivered.
func (s *Service) Refresh(ctx context.Context, details types.TrackingDetails) (types.TrackingDetails, bool, error) {
	if err := ValidateTrackingNumber(details.TrackingNumber, details.Carrier); err != nil {
		return details, false, err
	}

	events, mock := s.fetchEvents(ctx, details)

	merged := MergeEvents(details.History, events)
	details.History = merged
	details.IsMockData = mock
	now := s.now()
	details.LastUpdated = &now

	return details, hasDelivered(merged), nil
}

func (s *Service) fetchEvents(ctx context.Context, details types.TrackingDetails) ([]types.TrackingEvent, bool) {
	if !s.provider.IsConfigured() {
		return MockEvents(details.TrackingNumber, s.now()), true
	}

	var events []types.TrackingEvent
	backoff := retry.WithMaxRetries(1, retry.NewFibonacci(500*time.Millisecond))
	backoff = retry.WithJitterPercent(20, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if rerr := s.provider.Register(ctx, details.TrackingNumber, details.CourierCode); rerr != nil {
			return retry.RetryableError(rerr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.registerDelay):
		}

		fetched, ferr := s.provider.Fetch(ctx, details.TrackingNumber, details.CourierCode)
		if ferr != nil {
			return retry.RetryableError(ferr)
		}
		events = fetched
		return nil
	})
	if err != nil {
		ctx = s.log.WithFields(ctx, map[string]any{
			"tracking_number": details.TrackingNumber,
			"error":           err.Error(),
		})
		s.log.Warn(ctx, "tracking upstream unavailable, serving mock data")
		return MockEvents(details.TrackingNumber, s.now()), true
	}
	return events, false
}

// MergeEvents folds fresh events into the stored history, deduplicating by
// (timestamp, status). The result is sorted newest first.
func MergeEvents(history, fresh []types.TrackingEvent) []types.TrackingEvent {
	type key struct {
		ts     int64
		status string
	}

	seen := make(map[key]struct{}, len(history)+len(fresh))
	merged := make([]types.TrackingEvent, 0, len(history)+len(fresh))
	for _, batch := range [][]types.TrackingEvent{history, fresh} {
		for _, event := range batch {
			k := key{ts: event.Timestamp.UnixNano(), status: string(event.Status)}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, event)
		}
	}

	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && merged[j].Timestamp.After(merged[j-1].Timestamp); j-- {
			merged[j], merged[j-1] = merged[j-1], merged[j]
		}
	}
	return merged
}

func hasDelivered(events []types.TrackingEvent) bool {
	for _, event := range events {
		if event.Status == enums.TrackingStatusDelivered {
			return true
		}
	}
	return false
}
