package controllers

import (
	"net/http"

	"github.com/sameerdalvi/bazario-backend/api/responses"
	"github.com/sameerdalvi/bazario-backend/api/validators"
	"github.com/sameerdalvi/bazario-backend/internal/checkout"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

type checkoutLineRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Qty       int     `json:"qty" validate:"required,min=1"`
	Variant   *string `json:"variant,omitempty"`
}

type checkoutRequest struct {
	Items           []checkoutLineRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address         `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address        `json:"billing_address,omitempty"`
	PaymentMethod   string                `json:"payment_method" validate:"required,oneof=razorpay paypal cash_on_delivery"`
	CouponCode      *string               `json:"coupon_code,omitempty"`
}

func (req checkoutRequest) toInput() (checkout.Input, error) {
	input := checkout.Input{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   enums.PaymentMethod(req.PaymentMethod),
		CouponCode:      req.CouponCode,
	}
	for _, line := range req.Items {
		productID, err := parseIDParam(line.ProductID, "product id")
		if err != nil {
			return checkout.Input{}, err
		}
		input.Items = append(input.Items, checkout.LineInput{
			ProductID: productID,
			Qty:       line.Qty,
			Variant:   line.Variant,
		})
	}
	return input, nil
}

// CreateOrder runs the direct checkout path. Payment-gateway flows go
// through the razorpay endpoints instead.
func CreateOrder(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.PaymentMethod == enums.PaymentMethodRazorpay {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "razorpay orders start at /api/razorpay/create-order"))
			return
		}

		orders, err := svc.Checkout(r.Context(), actor.UserID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"orders": orders})
	}
}

// QuoteOrder prices a cart without reserving stock or writing anything.
func QuoteOrder(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := actorFromRequest(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}
