package controllers

import (
	"net/http"

	"github.com/sameerdalvi/bazario-backend/api/responses"
	"github.com/sameerdalvi/bazario-backend/api/validators"
	"github.com/sameerdalvi/bazario-backend/internal/checkout"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
)

type razorpayCreateOrderRequest struct {
	checkoutRequest
	Currency string `json:"currency" validate:"omitempty,oneof=INR USD"`
}

type razorpayVerifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

// RazorpayCreateOrder prices the cart and opens a payment intent at the
// gateway. No local order exists until the payment verifies.
func RazorpayCreateOrder(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req razorpayCreateOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.PaymentMethod != enums.PaymentMethodRazorpay {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "payment method must be razorpay"))
			return
		}

		currency := enums.CurrencyINR
		if req.Currency != "" {
			currency = enums.Currency(req.Currency)
		}

		gatewayOrder, err := svc.BeginPayment(r.Context(), actor.UserID, input, currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, gatewayOrder)
	}
}

// RazorpayVerifyPayment checks the gateway signature and materializes the
// pending checkout. Safe to call repeatedly for the same intent.
func RazorpayVerifyPayment(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req razorpayVerifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.VerifyPayment(r.Context(), actor.UserID, checkout.VerifyInput{
			RazorpayOrderID:   req.RazorpayOrderID,
			RazorpayPaymentID: req.RazorpayPaymentID,
			RazorpaySignature: req.RazorpaySignature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"orders": orders})
	}
}
