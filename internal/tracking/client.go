// Package tracking integrates shipment tracking: number validation, the
// 17track upstream, history merging, and the delivered auto-transition.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sameerdalvi/bazario-backend/pkg/config"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

const (
	defaultBaseURL              = "https://api.17track.net/track/v2.2"
	defaultRequestTimeout       = 10 * time.Second
	errorBodyReadLimit    int64 = 1024

	// Upstream requires a pause between registering a number and the first
	// fetch for it.
	registerFetchInterval = 500 * time.Millisecond
)

// Provider is the upstream tracking dependency. The 17track client
// implements it; tests and the mock fallback substitute it.
type Provider interface {
	Register(ctx context.Context, trackingNumber, carrier string) error
	Fetch(ctx context.Context, trackingNumber, carrier string) ([]types.TrackingEvent, error)
	IsConfigured() bool
}

// Client talks to the 17track REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ Provider = (*Client)(nil)

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a 17track client. An empty API key yields a client that
// reports unconfigured; callers fall back to mock data.
func NewClient(cfg config.TrackingConfig, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    defaultBaseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		client.baseURL = strings.TrimSpace(cfg.BaseURL)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

type registerRequest struct {
	Number  string `json:"number"`
	Carrier string `json:"carrier,omitempty"`
}

// Register submits the tracking number to 17track. Already-registered
// numbers are not an error.
func (c *Client) Register(ctx context.Context, trackingNumber, carrier string) error {
	body, err := c.post(ctx, "/register", []registerRequest{{Number: trackingNumber, Carrier: carrier}})
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(body, errorBodyReadLimit))
	return nil
}

// Fetch pulls raw events for the number and normalizes them, sorted newest
// first.
func (c *Client) Fetch(ctx context.Context, trackingNumber, carrier string) ([]types.TrackingEvent, error) {
	body, err := c.post(ctx, "/gettrackinfo", []registerRequest{{Number: trackingNumber, Carrier: carrier}})
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	// 17track wire format: events live in track.z1 with single-letter
	// fields a (timestamp), c (location), z (status text).
	var apiResp struct {
		Data struct {
			Accepted []struct {
				Number string `json:"number"`
				Track  struct {
					Z1 []struct {
						A string `json:"a"`
						C string `json:"c"`
						Z string `json:"z"`
					} `json:"z1"`
				} `json:"track"`
			} `json:"accepted"`
		} `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode tracking response")
	}

	events := make([]types.TrackingEvent, 0)
	for _, accepted := range apiResp.Data.Accepted {
		if accepted.Number != trackingNumber {
			continue
		}
		for _, raw := range accepted.Track.Z1 {
			timestamp, terr := parseEventTime(raw.A)
			if terr != nil {
				continue
			}
			events = append(events, types.TrackingEvent{
				Timestamp:   timestamp,
				Location:    raw.C,
				Status:      normalizeStatus(raw.Z),
				Description: raw.Z,
				RawData:     fmt.Sprintf("a=%s c=%s z=%s", raw.A, raw.C, raw.Z),
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	if !c.IsConfigured() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tracking client not configured")
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal tracking request")
	}

	url := strings.TrimRight(c.baseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build tracking request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("17token", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute tracking request")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		_ = resp.Body.Close()
		return nil, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"tracking request failed",
		)
	}
	return resp.Body, nil
}

func parseEventTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable event time %q", raw)
}

// normalizeStatus maps the upstream free-text status into the fixed set.
func normalizeStatus(statusText string) enums.TrackingStatus {
	text := strings.ToLower(statusText)
	switch {
	case strings.Contains(text, "delivered"):
		return enums.TrackingStatusDelivered
	case strings.Contains(text, "out for delivery"):
		return enums.TrackingStatusOutForDelivery
	case strings.Contains(text, "customs"):
		return enums.TrackingStatusInCustoms
	case strings.Contains(text, "picked up"), strings.Contains(text, "accepted"), strings.Contains(text, "shipment information"):
		return enums.TrackingStatusPickedUp
	case strings.Contains(text, "exception"), strings.Contains(text, "return"), strings.Contains(text, "failed"):
		return enums.TrackingStatusException
	default:
		return enums.TrackingStatusInTransit
	}
}
