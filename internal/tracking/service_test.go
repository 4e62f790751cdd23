package tracking

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

type stubProvider struct {
	configured  bool
	registerErr error
	fetchErr    error
	events      []types.TrackingEvent
	registered  []string
	fetched     []string
}

func (s *stubProvider) Register(_ context.Context, trackingNumber, _ string) error {
	s.registered = append(s.registered, trackingNumber)
	return s.registerErr
}

func (s *stubProvider) Fetch(_ context.Context, trackingNumber, _ string) ([]types.TrackingEvent, error) {
	s.fetched = append(s.fetched, trackingNumber)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.events, nil
}

func (s *stubProvider) IsConfigured() bool { return s.configured }

func newTestService(t *testing.T, provider Provider) *Service {
	t.Helper()
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	service, err := NewService(provider, log)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	service.registerDelay = time.Millisecond
	return service
}

func TestRefreshMergesAndDetectsDelivery(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &stubProvider{
		configured: true,
		events: []types.TrackingEvent{
			{Timestamp: base.Add(2 * time.Hour), Status: enums.TrackingStatusDelivered, Location: "Front door"},
			{Timestamp: base, Status: enums.TrackingStatusInTransit, Location: "Hub"},
		},
	}
	service := newTestService(t, provider)

	details := types.TrackingDetails{
		Carrier:        "ups",
		TrackingNumber: "1Z999AA10123456784",
		History: []types.TrackingEvent{
			{Timestamp: base, Status: enums.TrackingStatusInTransit, Location: "Hub"},
		},
	}

	refreshed, delivered, err := service.Refresh(context.Background(), details)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !delivered {
		t.Fatal("expected delivery detection")
	}
	if refreshed.IsMockData {
		t.Fatal("expected live data")
	}
	if len(refreshed.History) != 2 {
		t.Fatalf("expected duplicate event folded, got %d events", len(refreshed.History))
	}
	if refreshed.History[0].Status != enums.TrackingStatusDelivered {
		t.Fatalf("expected newest-first ordering, got %s", refreshed.History[0].Status)
	}
	if refreshed.LastUpdated == nil {
		t.Fatal("expected last updated set")
	}
	if len(provider.registered) != 1 || len(provider.fetched) != 1 {
		t.Fatalf("expected one register and one fetch, got %d/%d",
			len(provider.registered), len(provider.fetched))
	}
}

func TestRefreshInvalidNumber(t *testing.T) {
	t.Parallel()

	service := newTestService(t, &stubProvider{configured: true})
	_, _, err := service.Refresh(context.Background(), types.TrackingDetails{
		Carrier:        "ups",
		TrackingNumber: "short",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRefreshFallsBackToMock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{name: "unconfigured", provider: &stubProvider{}},
		{name: "upstream failing", provider: &stubProvider{configured: true, fetchErr: context.DeadlineExceeded}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			service := newTestService(t, tc.provider)
			refreshed, delivered, err := service.Refresh(context.Background(), types.TrackingDetails{
				Carrier:        "fedex",
				TrackingNumber: "123456789012",
			})
			if err != nil {
				t.Fatalf("refresh: %v", err)
			}
			if !refreshed.IsMockData {
				t.Fatal("expected mock data flag")
			}
			if delivered {
				t.Fatal("mock journeys must not report delivery")
			}
			if len(refreshed.History) == 0 {
				t.Fatal("expected synthesized events")
			}
		})
	}
}

func TestMockEventsDeterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	first := MockEvents("123456789012", now)
	second := MockEvents("123456789012", now)
	if len(first) != len(second) {
		t.Fatalf("expected deterministic length, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("event %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestMergeEventsDedupe(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := []types.TrackingEvent{
		{Timestamp: base, Status: enums.TrackingStatusInTransit},
	}
	fresh := []types.TrackingEvent{
		{Timestamp: base, Status: enums.TrackingStatusInTransit},
		{Timestamp: base, Status: enums.TrackingStatusException},
		{Timestamp: base.Add(time.Hour), Status: enums.TrackingStatusInTransit},
	}

	merged := MergeEvents(history, fresh)
	if len(merged) != 3 {
		t.Fatalf("expected 3 events after dedupe, got %d", len(merged))
	}
	if !merged[0].Timestamp.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected newest first, got %v", merged[0].Timestamp)
	}
}
