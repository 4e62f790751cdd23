package checkout

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const orderNumberSuffixLen = 5

var base36Alphabet = []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ")

// NewOrderNumber generates a customer-facing order number:
// "ORD-" + unix millis + "-" + 5 random uppercase base36 characters.
// Uniqueness is ultimately enforced by the database index.
func NewOrderNumber(now time.Time) (string, error) {
	suffix := make([]byte, orderNumberSuffixLen)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating order number: %w", err)
		}
		suffix[i] = base36Alphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix), nil
}
