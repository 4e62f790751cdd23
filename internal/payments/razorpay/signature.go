package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// computeSignature signs "orderID|paymentID" with the key secret and returns
// the lower-hex digest, matching what Razorpay sends back after capture.
func computeSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature authenticates a payment callback. Comparison is
// constant-time. It proves provenance only; the payload itself is not
// decoded here.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if c == nil || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := computeSignature(c.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
