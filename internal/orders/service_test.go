package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sameerdalvi/bazario-backend/internal/inventory"
	"github.com/sameerdalvi/bazario-backend/internal/tracking"
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

type stubTrackingProvider struct {
	events []types.TrackingEvent
}

func (s *stubTrackingProvider) Register(context.Context, string, string) error { return nil }

func (s *stubTrackingProvider) Fetch(context.Context, string, string) ([]types.TrackingEvent, error) {
	return s.events, nil
}

func (s *stubTrackingProvider) IsConfigured() bool { return true }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory&id="+uuid.NewString()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.VendorSlice{},
		&models.OrderItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	service  *Service
	db       *gorm.DB
	provider *stubTrackingProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	provider := &stubTrackingProvider{}
	tracker, err := tracking.NewService(provider, log)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	service, err := NewService(NewRepository(db), gormTxRunner{db: db}, inventory.NewLedger(db), tracker, log)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{service: service, db: db, provider: provider}
}

type seedOpts struct {
	status      enums.OrderStatus
	sliceStatus enums.OrderStatus
	tracking    *types.TrackingDetails
}

func (f *fixture) seedOrder(t *testing.T, customerID, vendorID uuid.UUID, opts seedOpts) *models.Order {
	t.Helper()

	product := models.Product{
		ID:            uuid.New(),
		VendorID:      vendorID,
		Title:         "widget",
		PriceCents:    5000,
		IsActive:      true,
		TrackQuantity: true,
		AvailableQty:  3,
	}
	if err := f.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	orderID := uuid.New()
	sliceID := uuid.New()
	order := models.Order{
		ID:            orderID,
		OrderNumber:   "ORD-1756000000000-" + uuid.NewString()[:5],
		CustomerID:    customerID,
		Status:        opts.status,
		PaymentStatus: enums.PaymentStatusPaid,
		PaymentMethod: enums.PaymentMethodRazorpay,
		SubtotalCents: 10000,
		TaxCents:      1000,
		ShippingCents: 1500,
		TotalCents:    12500,
		Currency:      enums.CurrencyINR,
		ShippingAddress: types.Address{
			Line1: "1 Test Lane", City: "Pune", State: "MH", PostalCode: "411001", Country: "IN",
		},
		Slices: []models.VendorSlice{{
			ID:                sliceID,
			VendorID:          vendorID,
			Status:            opts.sliceStatus,
			SubtotalCents:     10000,
			TaxCents:          1000,
			ShippingCents:     1500,
			TotalCents:        12500,
			CommissionCents:   1000,
			VendorAmountCents: 9000,
			Tracking:          opts.tracking,
		}},
		Items: []models.OrderItem{{
			ID:             uuid.New(),
			SliceID:        sliceID,
			ProductID:      product.ID,
			VendorID:       vendorID,
			Name:           "widget",
			Qty:            2,
			UnitPriceCents: 5000,
		}},
	}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func TestCancelRestoresInventory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedOrder(t, customerID, uuid.New(), seedOpts{
		status: enums.OrderStatusPending, sliceStatus: enums.OrderStatusPending,
	})

	cancelled, err := f.service.Cancel(context.Background(),
		Actor{UserID: customerID, Role: enums.RoleCustomer}, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("order status: %s", cancelled.Status)
	}
	if cancelled.Slices[0].Status != enums.OrderStatusCancelled {
		t.Fatalf("slice status: %s", cancelled.Slices[0].Status)
	}

	var product models.Product
	if err := f.db.First(&product, "id = ?", order.Items[0].ProductID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.AvailableQty != 5 {
		t.Fatalf("expected inventory restored to 5, got %d", product.AvailableQty)
	}
}

func TestCancelRejectedAfterProcessing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedOrder(t, customerID, uuid.New(), seedOpts{
		status: enums.OrderStatusProcessing, sliceStatus: enums.OrderStatusProcessing,
	})

	_, err := f.service.Cancel(context.Background(),
		Actor{UserID: customerID, Role: enums.RoleCustomer}, order.ID)
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelWrongCustomer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order := f.seedOrder(t, uuid.New(), uuid.New(), seedOpts{
		status: enums.OrderStatusPending, sliceStatus: enums.OrderStatusPending,
	})

	_, err := f.service.Cancel(context.Background(),
		Actor{UserID: uuid.New(), Role: enums.RoleCustomer}, order.ID)
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateSliceStatusShipRequiresTracking(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	vendorID := uuid.New()
	order := f.seedOrder(t, uuid.New(), vendorID, seedOpts{
		status: enums.OrderStatusProcessing, sliceStatus: enums.OrderStatusProcessing,
	})
	actor := Actor{UserID: uuid.New(), Role: enums.RoleVendor, VendorID: &vendorID}

	_, err := f.service.UpdateSliceStatus(context.Background(), actor, UpdateSliceStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusShipped,
	})
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	updated, err := f.service.UpdateSliceStatus(context.Background(), actor, UpdateSliceStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusShipped,
		Tracking: &types.TrackingDetails{
			Carrier:        "ups",
			TrackingNumber: "1Z999AA10123456784",
		},
	})
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if updated.Slices[0].Status != enums.OrderStatusShipped {
		t.Fatalf("slice status: %s", updated.Slices[0].Status)
	}
	if updated.Status != enums.OrderStatusShipped {
		t.Fatalf("parent status: %s", updated.Status)
	}
	if updated.Slices[0].Tracking == nil || updated.Slices[0].Tracking.TrackingNumber == "" {
		t.Fatal("expected tracking persisted")
	}
}

func TestUpdateSliceStatusInvalidTransition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	vendorID := uuid.New()
	order := f.seedOrder(t, uuid.New(), vendorID, seedOpts{
		status: enums.OrderStatusPending, sliceStatus: enums.OrderStatusPending,
	})
	actor := Actor{UserID: uuid.New(), Role: enums.RoleVendor, VendorID: &vendorID}

	_, err := f.service.UpdateSliceStatus(context.Background(), actor, UpdateSliceStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusDelivered,
	})
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestUpdateSliceStatusVendorCancelRestoresInventory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	vendorID := uuid.New()
	order := f.seedOrder(t, uuid.New(), vendorID, seedOpts{
		status: enums.OrderStatusConfirmed, sliceStatus: enums.OrderStatusConfirmed,
	})
	actor := Actor{UserID: uuid.New(), Role: enums.RoleVendor, VendorID: &vendorID}

	updated, err := f.service.UpdateSliceStatus(context.Background(), actor, UpdateSliceStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusCancelled,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("parent status: %s", updated.Status)
	}

	var product models.Product
	if err := f.db.First(&product, "id = ?", order.Items[0].ProductID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.AvailableQty != 5 {
		t.Fatalf("expected inventory restored to 5, got %d", product.AvailableQty)
	}
}

func TestRefreshTrackingAutoDelivers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	order := f.seedOrder(t, customerID, uuid.New(), seedOpts{
		status:      enums.OrderStatusShipped,
		sliceStatus: enums.OrderStatusShipped,
		tracking: &types.TrackingDetails{
			Carrier:        "ups",
			TrackingNumber: "1Z999AA10123456784",
		},
	})
	f.provider.events = []types.TrackingEvent{{
		Timestamp: time.Now().UTC(),
		Status:    enums.TrackingStatusDelivered,
		Location:  "Front door",
	}}

	refreshed, err := f.service.RefreshTracking(context.Background(),
		Actor{UserID: customerID, Role: enums.RoleCustomer}, order.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Slices[0].Status != enums.OrderStatusDelivered {
		t.Fatalf("slice status: %s", refreshed.Slices[0].Status)
	}
	if refreshed.Status != enums.OrderStatusDelivered {
		t.Fatalf("parent status: %s", refreshed.Status)
	}
	if len(refreshed.Slices[0].Tracking.History) == 0 {
		t.Fatal("expected tracking history merged")
	}
}

func TestGetAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	customerID := uuid.New()
	vendorID := uuid.New()
	order := f.seedOrder(t, customerID, vendorID, seedOpts{
		status: enums.OrderStatusPending, sliceStatus: enums.OrderStatusPending,
	})

	ctx := context.Background()
	if _, err := f.service.Get(ctx, Actor{UserID: customerID, Role: enums.RoleCustomer}, order.ID); err != nil {
		t.Fatalf("customer read: %v", err)
	}
	if _, err := f.service.Get(ctx, Actor{UserID: uuid.New(), Role: enums.RoleVendor, VendorID: &vendorID}, order.ID); err != nil {
		t.Fatalf("vendor read: %v", err)
	}
	if _, err := f.service.Get(ctx, Actor{UserID: uuid.New(), Role: enums.RoleAdmin}, order.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}

	_, err := f.service.Get(ctx, Actor{UserID: uuid.New(), Role: enums.RoleCustomer}, order.ID)
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
