package tracking

import (
	"regexp"
	"strings"

	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
)

const (
	minTrackingNumberLen = 8
	maxTrackingNumberLen = 40
)

var carrierPatterns = map[string][]*regexp.Regexp{
	"fedex": {regexp.MustCompile(`^\d{12,14}$`)},
	"ups":   {regexp.MustCompile(`^1Z[A-Z0-9]{16}$`)},
	"usps": {
		regexp.MustCompile(`^(94|93|92|95)\d{20}$`),
		regexp.MustCompile(`^[A-Z]{2}\d{9}[A-Z]{2}$`),
	},
	"dhl": {regexp.MustCompile(`^\d{10,11}$`)},
}

// ValidateTrackingNumber checks length bounds and, when the carrier is
// known, its number format. Unknown carriers only get the length check.
func ValidateTrackingNumber(trackingNumber, carrier string) error {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if len(trackingNumber) < minTrackingNumberLen || len(trackingNumber) > maxTrackingNumberLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking number must be between 8 and 40 characters").
			WithDetails(map[string]any{"tracking_number": trackingNumber})
	}

	patterns, known := carrierPatterns[strings.ToLower(strings.TrimSpace(carrier))]
	if !known {
		return nil
	}
	for _, pattern := range patterns {
		if pattern.MatchString(trackingNumber) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "tracking number does not match carrier format").
		WithDetails(map[string]any{"tracking_number": trackingNumber, "carrier": carrier})
}
