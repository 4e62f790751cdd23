package checkout

import (
	"regexp"
	"testing"
	"time"
)

func TestNewOrderNumber(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-1772366400000-[0-9A-Z]{5}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number, err := NewOrderNumber(now)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !pattern.MatchString(number) {
			t.Fatalf("unexpected format %q", number)
		}
		seen[number] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected random suffixes to vary")
	}
}
