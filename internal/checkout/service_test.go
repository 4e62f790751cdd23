package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

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
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.Transaction(fn)
}

type stubGateway struct {
	orderID   string
	createErr error
	created   []razorpay.CreateOrderRequest
	validSig  string
}

func (s *stubGateway) CreateOrder(_ context.Context, req razorpay.CreateOrderRequest) (*razorpay.GatewayOrder, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, req)
	return &razorpay.GatewayOrder{
		ID:       s.orderID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (s *stubGateway) VerifySignature(_, _, signature string) bool {
	return signature == s.validSig
}

type fixture struct {
	service *Service
	db      *gorm.DB
	gateway *stubGateway
}

func pricingConfig() config.PricingConfig {
	return config.PricingConfig{
		TaxRate:                    "0.10",
		CommissionRate:             "0.10",
		FreeShippingThresholdCents: 10000,
		FlatShippingCents:          1500,
		ShippingStrategy:           pricing.ShippingPerVendorFlat,
		Currency:                   "INR",
		USDToINRRate:               "83",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory&id="+uuid.NewString()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{},
		&models.CartItem{},
		&models.Coupon{},
		&models.CheckoutTicket{},
		&models.Order{},
		&models.VendorSlice{},
		&models.OrderItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	engine, err := pricing.NewEngine(pricingConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	gateway := &stubGateway{orderID: "order_test123", validSig: "valid-signature"}
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	service, err := NewService(
		gormTxRunner{db: db},
		products.NewRepository(db),
		carts.NewRepository(db),
		coupons.NewRepository(db),
		orders.NewRepository(db),
		NewTicketRepository(db),
		inventory.NewLedger(db),
		engine,
		gateway,
		pricingConfig(),
		log,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{service: service, db: db, gateway: gateway}
}

func (f *fixture) seedProduct(t *testing.T, vendorID uuid.UUID, priceCents int64, qty int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:            uuid.New(),
		VendorID:      vendorID,
		Title:         "product",
		PriceCents:    priceCents,
		IsActive:      true,
		TrackQuantity: true,
		AvailableQty:  qty,
	}
	if err := f.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func shippingAddress() types.Address {
	return types.Address{
		FullName: "Asha Kumar", Line1: "1 Test Lane",
		City: "Pune", State: "MH", PostalCode: "411001", Country: "IN",
	}
}

func TestCheckoutSingleVendor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	vendorID := uuid.New()
	productID := f.seedProduct(t, vendorID, 5000, 5)

	if err := f.db.Create(&models.CartItem{
		ID: uuid.New(), CustomerID: customerID, ProductID: productID, Qty: 2,
	}).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	created, err := f.service.Checkout(context.Background(), customerID, Input{
		Items:           []LineInput{{ProductID: productID, Qty: 2}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 order, got %d", len(created))
	}

	order := created[0]
	if order.SubtotalCents != 10000 || order.TaxCents != 1000 || order.ShippingCents != 1500 ||
		order.DiscountCents != 0 || order.TotalCents != 12500 {
		t.Fatalf("unexpected money breakdown: %+v", order)
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("cod orders start pending, got %s", order.PaymentStatus)
	}
	if len(order.Slices) != 1 {
		t.Fatalf("expected one slice, got %d", len(order.Slices))
	}
	slice := order.Slices[0]
	if slice.CommissionCents != 1000 || slice.VendorAmountCents != 9000 {
		t.Fatalf("unexpected vendor split: %+v", slice)
	}

	var product models.Product
	if err := f.db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.AvailableQty != 3 {
		t.Fatalf("expected stock decremented to 3, got %d", product.AvailableQty)
	}

	var cartCount int64
	if err := f.db.Model(&models.CartItem{}).Where("customer_id = ?", customerID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if cartCount != 0 {
		t.Fatalf("expected cart cleared, %d items remain", cartCount)
	}
}

func TestCheckoutMultiVendorFanOut(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	vendorA := uuid.New()
	vendorB := uuid.New()
	productA := f.seedProduct(t, vendorA, 6000, 5)
	productB := f.seedProduct(t, vendorB, 4000, 5)

	created, err := f.service.Checkout(context.Background(), customerID, Input{
		Items: []LineInput{
			{ProductID: productA, Qty: 1},
			{ProductID: productB, Qty: 1},
		},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected one order per vendor, got %d", len(created))
	}
	if created[0].Slices[0].VendorID != vendorA || created[1].Slices[0].VendorID != vendorB {
		t.Fatal("expected vendor order preserved")
	}
	for _, order := range created {
		if order.SubtotalCents != order.Slices[0].SubtotalCents {
			t.Fatalf("order/slice subtotal mismatch: %+v", order)
		}
		want := order.SubtotalCents + order.TaxCents + order.ShippingCents - order.DiscountCents
		if order.TotalCents != want {
			t.Fatalf("total invariant violated: %+v", order)
		}
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	vendorID := uuid.New()
	okProduct := f.seedProduct(t, vendorID, 5000, 5)
	lowProduct := f.seedProduct(t, vendorID, 5000, 1)

	_, err := f.service.Checkout(context.Background(), customerID, Input{
		Items: []LineInput{
			{ProductID: okProduct, Qty: 2},
			{ProductID: lowProduct, Qty: 2},
		},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
	})
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}

	// The winning decrement must roll back with the batch.
	var product models.Product
	if err := f.db.First(&product, "id = ?", okProduct).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.AvailableQty != 5 {
		t.Fatalf("expected rollback to restore stock, got %d", product.AvailableQty)
	}

	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}
}

func TestCheckoutInactiveProduct(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	productID := uuid.New()
	if err := f.db.Create(&models.Product{
		ID: productID, VendorID: uuid.New(), Title: "retired",
		PriceCents: 1000, IsActive: false, TrackQuantity: true, AvailableQty: 5,
	}).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	_, err := f.service.Checkout(context.Background(), uuid.New(), Input{
		Items:           []LineInput{{ProductID: productID, Qty: 1}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
	})
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	vendorID := uuid.New()
	productID := f.seedProduct(t, vendorID, 5000, 5)

	limit := 10
	coupon := models.Coupon{
		ID: uuid.New(), Code: "SAVE10", Type: enums.CouponTypePercentage,
		Value: decimal.NewFromInt(10), UsageLimit: &limit, IsActive: true,
		ValidFrom: time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour),
	}
	if err := f.db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	couponCode := "SAVE10"
	input := Input{
		Items:           []LineInput{{ProductID: productID, Qty: 2}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodRazorpay,
		CouponCode:      &couponCode,
	}

	gatewayOrder, err := f.service.BeginPayment(context.Background(), customerID, input, enums.CurrencyINR)
	if err != nil {
		t.Fatalf("begin payment: %v", err)
	}
	// 115.00 total after 10% coupon, converted at 83.
	if gatewayOrder.Amount != 954500 {
		t.Fatalf("unexpected gateway amount %d", gatewayOrder.Amount)
	}

	verify := VerifyInput{
		RazorpayOrderID:   gatewayOrder.ID,
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: "valid-signature",
	}

	first, err := f.service.VerifyPayment(context.Background(), customerID, verify)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 order, got %d", len(first))
	}
	if first[0].PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid order, got %s", first[0].PaymentStatus)
	}
	if first[0].RazorpayOrderID == nil || *first[0].RazorpayOrderID != gatewayOrder.ID {
		t.Fatal("expected gateway order id persisted")
	}

	second, err := f.service.VerifyPayment(context.Background(), customerID, verify)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if len(second) != 1 || second[0].ID != first[0].ID {
		t.Fatalf("expected same orders on replay, got %+v", second)
	}

	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected no duplicate rows, got %d", orderCount)
	}

	var reloaded models.Coupon
	if err := f.db.First(&reloaded, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("expected coupon used once, got %d", reloaded.UsedCount)
	}

	var ticket models.CheckoutTicket
	if err := f.db.First(&ticket, "intent_id = ?", gatewayOrder.ID).Error; err != nil {
		t.Fatalf("load ticket: %v", err)
	}
	if ticket.Status != enums.TicketStatusCommitted {
		t.Fatalf("expected committed ticket, got %s", ticket.Status)
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	productID := f.seedProduct(t, uuid.New(), 5000, 5)

	input := Input{
		Items:           []LineInput{{ProductID: productID, Qty: 1}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodRazorpay,
	}
	gatewayOrder, err := f.service.BeginPayment(context.Background(), customerID, input, enums.CurrencyINR)
	if err != nil {
		t.Fatalf("begin payment: %v", err)
	}

	_, err = f.service.VerifyPayment(context.Background(), customerID, VerifyInput{
		RazorpayOrderID:   gatewayOrder.ID,
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: "deadbeef",
	})
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeBadSignature {
		t.Fatalf("expected bad signature, got %v", err)
	}

	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}

	var product models.Product
	if err := f.db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.AvailableQty != 5 {
		t.Fatalf("expected stock untouched, got %d", product.AvailableQty)
	}
}

func TestVerifyPaymentUnknownIntent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.service.VerifyPayment(context.Background(), uuid.New(), VerifyInput{
		RazorpayOrderID:   "order_ghost",
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: "valid-signature",
	})
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyPaymentFailureMarksTicket(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	productID := f.seedProduct(t, uuid.New(), 5000, 2)

	input := Input{
		Items:           []LineInput{{ProductID: productID, Qty: 2}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodRazorpay,
	}
	gatewayOrder, err := f.service.BeginPayment(context.Background(), customerID, input, enums.CurrencyINR)
	if err != nil {
		t.Fatalf("begin payment: %v", err)
	}

	// Stock vanishes between intent creation and verification.
	if err := f.db.Model(&models.Product{}).Where("id = ?", productID).
		Update("available_qty", 0).Error; err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err = f.service.VerifyPayment(context.Background(), customerID, VerifyInput{
		RazorpayOrderID:   gatewayOrder.ID,
		RazorpayPaymentID: "pay_abc",
		RazorpaySignature: "valid-signature",
	})
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}

	var ticket models.CheckoutTicket
	if err := f.db.First(&ticket, "intent_id = ?", gatewayOrder.ID).Error; err != nil {
		t.Fatalf("load ticket: %v", err)
	}
	if ticket.Status != enums.TicketStatusFailed {
		t.Fatalf("expected failed ticket, got %s", ticket.Status)
	}
	if ticket.FailureReason == nil {
		t.Fatal("expected failure reason recorded")
	}
}

func TestQuoteHasNoSideEffects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	productID := f.seedProduct(t, uuid.New(), 5000, 5)

	quote, err := f.service.Quote(context.Background(), Input{
		Items:           []LineInput{{ProductID: productID, Qty: 2}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodRazorpay,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.TotalCents != 12500 {
		t.Fatalf("unexpected total %d", quote.TotalCents)
	}

	var product models.Product
	if err := f.db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.AvailableQty != 5 {
		t.Fatalf("quote must not touch stock, got %d", product.AvailableQty)
	}
}
