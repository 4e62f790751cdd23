package razorpay

import (
	"testing"

	"github.com/sameerdalvi/bazario-backend/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(config.RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "super-secret",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	orderID := "order_Nxy123"
	paymentID := "pay_Abc456"
	valid := computeSignature("super-secret", orderID, paymentID)

	if !client.VerifySignature(orderID, paymentID, valid) {
		t.Fatal("expected valid signature to verify")
	}
	if client.VerifySignature(orderID, paymentID, "deadbeef") {
		t.Fatal("expected garbage signature to fail")
	}
	if client.VerifySignature(orderID, "pay_other", valid) {
		t.Fatal("expected signature over different payment to fail")
	}
	if client.VerifySignature(orderID, paymentID, "") {
		t.Fatal("expected empty signature to fail")
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	signature := computeSignature("another-secret", "order_1", "pay_1")
	if client.VerifySignature("order_1", "pay_1", signature) {
		t.Fatal("expected signature from wrong secret to fail")
	}
}
