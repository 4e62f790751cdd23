// Package checkout turns a validated cart into per-vendor orders: pricing,
// payment intent creation, idempotent verification, and the atomic
// materialization with inventory commit.
package checkout

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sameerdalvi/bazario-backend/internal/carts"
	"github.com/sameerdalvi/bazario-backend/internal/coupons"
	"github.com/sameerdalvi/bazario-backend/internal/inventory"
	"github.com/sameerdalvi/bazario-backend/internal/orders"
	"github.com/sameerdalvi/bazario-backend/internal/payments/razorpay"
	"github.com/sameerdalvi/bazario-backend/internal/pricing"
	"github.com/sameerdalvi/bazario-backend/internal/products"
	"github.com/sameerdalvi/bazario-backend/pkg/config"
	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
	"github.com/sameerdalvi/bazario-backend/pkg/money"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LineInput is one requested cart line.
type LineInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
	Variant   *string   `json:"variant,omitempty"`
}

// Input is the full checkout request.
type Input struct {
	Items           []LineInput         `json:"items"`
	ShippingAddress types.Address       `json:"shipping_address"`
	BillingAddress  *types.Address      `json:"billing_address,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
}

// VerifyInput is the gateway callback for a Razorpay payment.
type VerifyInput struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string
}

// vendorPlan is one vendor's share of a priced checkout.
type vendorPlan struct {
	quote pricing.VendorQuote
	items []models.OrderItem
}

// plan is the validated, priced checkout before materialization.
type plan struct {
	vendors []vendorPlan
	quote   *pricing.Quote
	coupon  *models.Coupon
}

// Service orchestrates checkout.
type Service struct {
	tx       txRunner
	products *products.Repository
	carts    *carts.Repository
	coupons  *coupons.Repository
	orders   *orders.Repository
	tickets  *TicketRepository
	ledger   *inventory.Ledger
	engine   *pricing.Engine
	gateway  razorpay.Gateway
	pricing  config.PricingConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	productRepo *products.Repository,
	cartRepo *carts.Repository,
	couponRepo *coupons.Repository,
	orderRepo *orders.Repository,
	ticketRepo *TicketRepository,
	ledger *inventory.Ledger,
	engine *pricing.Engine,
	gateway razorpay.Gateway,
	pricingCfg config.PricingConfig,
	log *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner is required")
	}
	if productRepo == nil || cartRepo == nil || couponRepo == nil || orderRepo == nil || ticketRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout repositories are required")
	}
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger is required")
	}
	if engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pricing engine is required")
	}
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway is required")
	}
	if log == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &Service{
		tx:       tx,
		products: productRepo,
		carts:    cartRepo,
		coupons:  couponRepo,
		orders:   orderRepo,
		tickets:  ticketRepo,
		ledger:   ledger,
		engine:   engine,
		gateway:  gateway,
		pricing:  pricingCfg,
		log:      log,
		now:      time.Now,
	}, nil
}

// Quote prices the request without side effects.
func (s *Service) Quote(ctx context.Context, input Input) (*pricing.Quote, error) {
	built, err := s.buildPlan(ctx, input)
	if err != nil {
		return nil, err
	}
	return built.quote, nil
}

// Checkout materializes orders directly: the path for cash_on_delivery and
// other non-gateway methods. Orders start with paymentStatus pending.
func (s *Service) Checkout(ctx context.Context, customerID uuid.UUID, input Input) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}

	built, err := s.buildPlan(ctx, input)
	if err != nil {
		return nil, err
	}

	var created []models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		created, txErr = s.materialize(ctx, tx, customerID, input, built, nil)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithUserID(ctx, customerID.String()), "checkout committed")
	return created, nil
}

// BeginPayment prices the request, registers a gateway order for the grand
// total, and writes the pending checkout ticket that verification replays.
// The amount is in minor units, converted with the configured USD to INR
// rate when charging in INR.
func (s *Service) BeginPayment(ctx context.Context, customerID uuid.UUID, input Input, currency enums.Currency) (*razorpay.GatewayOrder, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown currency")
	}

	built, err := s.buildPlan(ctx, input)
	if err != nil {
		return nil, err
	}

	amount := built.quote.TotalCents
	if currency == enums.CurrencyINR {
		rate, rerr := s.pricing.USDToINRDecimal()
		if rerr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, rerr, "load conversion rate")
		}
		amount = money.ApplyRate(amount, rate)
	}

	receipt := "rcpt_" + uuid.NewString()
	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amount,
		Currency: string(currency),
		Receipt:  receipt,
		Notes:    map[string]string{"customer_id": customerID.String()},
	})
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "serialize checkout payload")
	}

	ticket := &models.CheckoutTicket{
		ID:          uuid.New(),
		CustomerID:  customerID,
		IntentID:    gatewayOrder.ID,
		Status:      enums.TicketStatusPending,
		AmountCents: amount,
		Currency:    currency,
		Payload:     payload,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout ticket")
	}

	return gatewayOrder, nil
}

// VerifyPayment authenticates the gateway callback and materializes the
// ticketed checkout exactly once. Re-verification with the same intent id
// returns the already-created orders.
func (s *Service) VerifyPayment(ctx context.Context, customerID uuid.UUID, input VerifyInput) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(input.RazorpayOrderID) == "" || strings.TrimSpace(input.RazorpayPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment identifiers are required")
	}

	if !s.gateway.VerifySignature(input.RazorpayOrderID, input.RazorpayPaymentID, input.RazorpaySignature) {
		return nil, pkgerrors.New(pkgerrors.CodeBadSignature, "payment signature verification failed")
	}

	ticket, err := s.tickets.FindByIntentID(ctx, input.RazorpayOrderID)
	if err != nil {
		return nil, err
	}
	if ticket.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment intent belongs to another customer")
	}
	if ticket.Status == enums.TicketStatusCommitted {
		return s.orders.FindByRazorpayOrderID(ctx, input.RazorpayOrderID)
	}
	if ticket.Status == enums.TicketStatusFailed || ticket.Status == enums.TicketStatusCompensating {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout attempt already failed").
			WithDetails(map[string]any{"intent_id": ticket.IntentID})
	}

	var replay Input
	if err := json.Unmarshal(ticket.Payload, &replay); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout payload")
	}
	replay.PaymentMethod = enums.PaymentMethodRazorpay

	built, err := s.buildPlan(ctx, replay)
	if err != nil {
		return nil, s.failTicket(ctx, ticket.IntentID, err)
	}

	payment := &paymentResult{
		razorpayOrderID:   input.RazorpayOrderID,
		razorpayPaymentID: input.RazorpayPaymentID,
		razorpaySignature: input.RazorpaySignature,
	}

	var created []models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// The pending->committed transition is the idempotency gate: the
		// loser of a concurrent verify sees zero rows and backs off.
		won, terr := s.tickets.WithTx(tx).Transition(ctx, ticket.IntentID, enums.TicketStatusPending, enums.TicketStatusCommitted, nil)
		if terr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, terr, "commit checkout ticket")
		}
		if !won {
			return errTicketAlreadyCommitted
		}

		var txErr error
		created, txErr = s.materialize(ctx, tx, customerID, replay, built, payment)
		return txErr
	})
	if err == errTicketAlreadyCommitted {
		return s.orders.FindByRazorpayOrderID(ctx, input.RazorpayOrderID)
	}
	if err != nil {
		return nil, s.failTicket(ctx, ticket.IntentID, err)
	}

	s.log.Info(s.log.WithUserID(ctx, customerID.String()), "payment verified, orders created")
	return created, nil
}

var errTicketAlreadyCommitted = pkgerrors.New(pkgerrors.CodeConflict, "ticket already committed")

// failTicket marks the write-ahead record failed and passes the original
// error through. The materialization transaction has already rolled back,
// so inventory and coupon state are untouched.
func (s *Service) failTicket(ctx context.Context, intentID string, cause error) error {
	reason := cause.Error()
	if _, err := s.tickets.Transition(ctx, intentID, enums.TicketStatusPending, enums.TicketStatusFailed, &reason); err != nil {
		s.log.Error(ctx, "marking checkout ticket failed", err)
	}
	return cause
}

// buildPlan loads and validates products, partitions lines by vendor, and
// prices the result. No side effects.
func (s *Service) buildPlan(ctx context.Context, input Input) (*plan, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}
	if input.ShippingAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id is required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, line := range input.Items {
		ids = append(ids, line.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	// Partition by vendor preserving first-appearance order.
	vendorOrder := make([]uuid.UUID, 0)
	byVendor := map[uuid.UUID]*vendorPlan{}
	for _, line := range input.Items {
		product, ok := catalog[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": product.ID})
		}

		vp, exists := byVendor[product.VendorID]
		if !exists {
			vp = &vendorPlan{}
			byVendor[product.VendorID] = vp
			vendorOrder = append(vendorOrder, product.VendorID)
		}
		vp.items = append(vp.items, models.OrderItem{
			ProductID:      product.ID,
			VendorID:       product.VendorID,
			Name:           product.Title,
			Qty:            line.Qty,
			UnitPriceCents: product.PriceCents,
			Variant:        line.Variant,
		})
	}

	subtotals := make([]pricing.VendorSubtotal, 0, len(vendorOrder))
	for _, vendorID := range vendorOrder {
		var subtotal int64
		for _, item := range byVendor[vendorID].items {
			subtotal += item.UnitPriceCents * int64(item.Qty)
		}
		subtotals = append(subtotals, pricing.VendorSubtotal{VendorID: vendorID, SubtotalCents: subtotal})
	}

	var cartSubtotal int64
	for _, v := range subtotals {
		cartSubtotal += v.SubtotalCents
	}

	var coupon *models.Coupon
	if input.CouponCode != nil && strings.TrimSpace(*input.CouponCode) != "" {
		coupon, err = s.coupons.FindByCode(ctx, *input.CouponCode)
		if err != nil {
			return nil, err
		}
		if err := pricing.ValidateCoupon(coupon, s.now(), cartSubtotal); err != nil {
			return nil, err
		}
	}

	quote, err := s.engine.Price(subtotals, coupon)
	if err != nil {
		return nil, err
	}

	vendors := make([]vendorPlan, 0, len(vendorOrder))
	for i, vendorID := range vendorOrder {
		vendors = append(vendors, vendorPlan{
			quote: quote.Vendors[i],
			items: byVendor[vendorID].items,
		})
	}

	return &plan{vendors: vendors, quote: quote, coupon: coupon}, nil
}

type paymentResult struct {
	razorpayOrderID   string
	razorpayPaymentID string
	razorpaySignature string
}

// materialize commits the plan inside tx: inventory decrement, one order per
// vendor, coupon usage, cart cleanup. Any error rolls the whole batch back.
func (s *Service) materialize(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, input Input, built *plan, payment *paymentResult) ([]models.Order, error) {
	requests := make([]inventory.Request, 0)
	for _, vendor := range built.vendors {
		for _, item := range vendor.items {
			requests = append(requests, inventory.Request{ProductID: item.ProductID, Qty: item.Qty})
		}
	}
	results, err := s.ledger.WithTx(tx).Reserve(ctx, requests)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		if !result.Reserved {
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{"product_id": result.ProductID, "qty": result.Qty})
		}
	}

	paymentStatus := enums.PaymentStatusPending
	if payment != nil {
		paymentStatus = enums.PaymentStatusPaid
	}

	orderRepo := s.orders.WithTx(tx)
	created := make([]models.Order, 0, len(built.vendors))
	for _, vendor := range built.vendors {
		orderNumber, nerr := NewOrderNumber(s.now())
		if nerr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, nerr, "generate order number")
		}

		orderID := uuid.New()
		sliceID := uuid.New()
		items := make([]models.OrderItem, len(vendor.items))
		for i, item := range vendor.items {
			item.ID = uuid.New()
			item.OrderID = orderID
			item.SliceID = sliceID
			items[i] = item
		}

		order := &models.Order{
			ID:              orderID,
			OrderNumber:     orderNumber,
			CustomerID:      customerID,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   paymentStatus,
			PaymentMethod:   input.PaymentMethod,
			SubtotalCents:   vendor.quote.SubtotalCents,
			TaxCents:        vendor.quote.TaxCents,
			ShippingCents:   vendor.quote.ShippingCents,
			DiscountCents:   vendor.quote.DiscountCents,
			TotalCents:      vendor.quote.TotalCents,
			Currency:        enums.Currency(s.pricing.Currency),
			CouponCode:      input.CouponCode,
			ShippingAddress: input.ShippingAddress,
			BillingAddress:  input.BillingAddress,
			Slices: []models.VendorSlice{{
				ID:                sliceID,
				VendorID:          vendor.quote.VendorID,
				Status:            enums.OrderStatusPending,
				SubtotalCents:     vendor.quote.SubtotalCents,
				TaxCents:          vendor.quote.TaxCents,
				ShippingCents:     vendor.quote.ShippingCents,
				DiscountCents:     vendor.quote.DiscountCents,
				TotalCents:        vendor.quote.TotalCents,
				CommissionCents:   vendor.quote.CommissionCents,
				VendorAmountCents: vendor.quote.VendorAmountCents,
			}},
			Items: items,
		}
		if payment != nil {
			order.RazorpayOrderID = &payment.razorpayOrderID
			order.RazorpayPaymentID = &payment.razorpayPaymentID
			order.RazorpaySignature = &payment.razorpaySignature
		}

		if _, err := orderRepo.Create(ctx, order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		created = append(created, *order)
	}

	if built.coupon != nil {
		if err := s.coupons.WithTx(tx).IncrementUsage(ctx, built.coupon); err != nil {
			return nil, err
		}
	}

	if err := s.carts.WithTx(tx).ClearByCustomer(ctx, customerID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}

	return created, nil
}
