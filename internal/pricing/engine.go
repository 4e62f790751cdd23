// Package pricing turns per-vendor subtotals into full money breakdowns:
// tax, shipping, coupon allocation, platform commission.
package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sameerdalvi/bazario-backend/pkg/config"
	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/money"
)

// Shipping strategies. per_vendor_flat charges each vendor slice its own
// flat rate; order_flat keeps the legacy single-charge behavior where the
// whole order pays one flat rate attached to the first vendor.
const (
	ShippingPerVendorFlat = "per_vendor_flat"
	ShippingOrderFlat     = "order_flat"
)

// VendorSubtotal is one vendor's share of the cart.
type VendorSubtotal struct {
	VendorID      uuid.UUID
	SubtotalCents int64
}

// VendorQuote is the priced breakdown for one vendor.
type VendorQuote struct {
	VendorID          uuid.UUID
	SubtotalCents     int64
	TaxCents          int64
	ShippingCents     int64
	DiscountCents     int64
	TotalCents        int64
	CommissionCents   int64
	VendorAmountCents int64
}

// Quote is the full checkout pricing result.
type Quote struct {
	Vendors       []VendorQuote
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

// Engine prices carts from static configuration. Rates are parsed once at
// construction.
type Engine struct {
	taxRate          decimal.Decimal
	commissionRate   decimal.Decimal
	freeShipOver     int64
	flatShipping     int64
	shippingStrategy string
}

// NewEngine builds the pricing engine from configuration.
func NewEngine(cfg config.PricingConfig) (*Engine, error) {
	taxRate, err := cfg.TaxRateDecimal()
	if err != nil {
		return nil, err
	}
	commissionRate, err := cfg.CommissionRateDecimal()
	if err != nil {
		return nil, err
	}
	switch cfg.ShippingStrategy {
	case ShippingPerVendorFlat, ShippingOrderFlat:
	default:
		return nil, fmt.Errorf("unknown shipping strategy %q", cfg.ShippingStrategy)
	}
	return &Engine{
		taxRate:          taxRate,
		commissionRate:   commissionRate,
		freeShipOver:     cfg.FreeShippingThresholdCents,
		flatShipping:     cfg.FlatShippingCents,
		shippingStrategy: cfg.ShippingStrategy,
	}, nil
}

// ValidateCoupon checks that the coupon can be applied to a cart with the
// given subtotal at the given time. Usage is re-checked under the checkout
// transaction when the counter is incremented.
func ValidateCoupon(coupon *models.Coupon, now time.Time, subtotalCents int64) error {
	if coupon == nil {
		return nil
	}
	if !coupon.IsActive {
		return pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon is not active")
	}
	if now.Before(coupon.ValidFrom) {
		return pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon is not yet valid")
	}
	if now.After(coupon.ValidUntil) {
		return pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon has expired")
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon usage limit reached")
	}
	if subtotalCents < coupon.MinimumAmountCents {
		return pkgerrors.New(pkgerrors.CodeCouponInvalid, "order subtotal below coupon minimum").
			WithDetails(map[string]any{
				"minimum_amount_cents": coupon.MinimumAmountCents,
				"subtotal_cents":       subtotalCents,
			})
	}
	return nil
}

// Price computes the full per-vendor breakdown. The coupon, when present,
// must already be validated. Vendor order is preserved from the input.
func (e *Engine) Price(vendors []VendorSubtotal, coupon *models.Coupon) (*Quote, error) {
	if len(vendors) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to price")
	}

	var cartSubtotal int64
	for _, v := range vendors {
		if v.SubtotalCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor subtotal must be non-negative")
		}
		cartSubtotal += v.SubtotalCents
	}

	quote := &Quote{Vendors: make([]VendorQuote, len(vendors)), SubtotalCents: cartSubtotal}
	for i, v := range vendors {
		quote.Vendors[i] = VendorQuote{
			VendorID:      v.VendorID,
			SubtotalCents: v.SubtotalCents,
			TaxCents:      money.ApplyRate(v.SubtotalCents, e.taxRate),
			ShippingCents: e.vendorShipping(i, v.SubtotalCents, cartSubtotal),
		}
	}

	e.allocateCoupon(quote, coupon, cartSubtotal)

	for i := range quote.Vendors {
		v := &quote.Vendors[i]
		v.TotalCents = money.Clamp(v.SubtotalCents + v.TaxCents + v.ShippingCents - v.DiscountCents)
		v.CommissionCents = money.ApplyRate(v.SubtotalCents, e.commissionRate)
		v.VendorAmountCents = money.Clamp(v.SubtotalCents - v.CommissionCents)

		quote.TaxCents += v.TaxCents
		quote.ShippingCents += v.ShippingCents
		quote.DiscountCents += v.DiscountCents
		quote.TotalCents += v.TotalCents
	}

	return quote, nil
}

func (e *Engine) vendorShipping(index int, vendorSubtotal, cartSubtotal int64) int64 {
	switch e.shippingStrategy {
	case ShippingOrderFlat:
		// Legacy one-charge path: shipping rides on the first slice and is
		// waived when the whole cart clears the threshold.
		if index != 0 || cartSubtotal > e.freeShipOver {
			return 0
		}
		return e.flatShipping
	default:
		if vendorSubtotal > e.freeShipOver {
			return 0
		}
		return e.flatShipping
	}
}

// allocateCoupon assigns per-vendor discounts. The total never exceeds the
// coupon's effective cap; rounding overshoot is trimmed from the largest
// allocation first.
func (e *Engine) allocateCoupon(quote *Quote, coupon *models.Coupon, cartSubtotal int64) {
	if coupon == nil {
		return
	}

	var capCents int64
	switch coupon.Type {
	case enums.CouponTypeFreeShipping:
		for i := range quote.Vendors {
			quote.Vendors[i].ShippingCents = 0
		}
		return
	case enums.CouponTypePercentage:
		capCents = money.ApplyRate(cartSubtotal, coupon.Value.Div(decimal.NewFromInt(100)))
	case enums.CouponTypeFixedAmount:
		capCents = money.ToCents(coupon.Value)
	default:
		return
	}
	if coupon.MaximumDiscountCents != nil {
		capCents = money.Min(capCents, *coupon.MaximumDiscountCents)
	}
	capCents = money.Min(capCents, cartSubtotal)

	for i := range quote.Vendors {
		v := &quote.Vendors[i]
		var d int64
		switch coupon.Type {
		case enums.CouponTypePercentage:
			d = money.ApplyRate(v.SubtotalCents, coupon.Value.Div(decimal.NewFromInt(100)))
		case enums.CouponTypeFixedAmount:
			d = money.ProRata(money.ToCents(coupon.Value), v.SubtotalCents, cartSubtotal)
		}
		if coupon.MaximumDiscountCents != nil {
			d = money.Min(d, *coupon.MaximumDiscountCents)
		}
		v.DiscountCents = money.Min(d, v.SubtotalCents)
	}

	trimOvershoot(quote.Vendors, capCents)
}

// trimOvershoot reduces allocations, largest first, until their sum fits the
// cap.
func trimOvershoot(vendors []VendorQuote, capCents int64) {
	var total int64
	for i := range vendors {
		total += vendors[i].DiscountCents
	}
	if total <= capCents {
		return
	}

	order := make([]int, len(vendors))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return vendors[order[a]].DiscountCents > vendors[order[b]].DiscountCents
	})

	excess := total - capCents
	for _, idx := range order {
		if excess <= 0 {
			return
		}
		cut := money.Min(vendors[idx].DiscountCents, excess)
		vendors[idx].DiscountCents -= cut
		excess -= cut
	}
}
