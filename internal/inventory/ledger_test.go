package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)&mode=memory&id="+uuid.NewString()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, qty int, tracked bool) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:            uuid.New(),
		VendorID:      uuid.New(),
		Title:         "test product",
		PriceCents:    1000,
		IsActive:      true,
		TrackQuantity: tracked,
		AvailableQty:  qty,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := seedProduct(t, db, 5, true)
	productB := seedProduct(t, db, 1, true)

	requests := []Request{
		{ProductID: productA, Qty: 3},
		{ProductID: productA, Qty: 4},
		{ProductID: productB, Qty: 1},
	}

	ledger := NewLedger(db)
	results, err := ledger.Reserve(ctx, requests)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Reserved || results[0].Reason != "" {
		t.Fatalf("expected first reservation to succeed: %+v", results[0])
	}
	if results[1].Reserved || results[1].Reason == "" {
		t.Fatalf("expected second reservation to fail with reason: %+v", results[1])
	}
	if !results[2].Reserved {
		t.Fatalf("expected third reservation to succeed: %+v", results[2])
	}

	var a, b models.Product
	if err := db.First(&a, "id = ?", productA).Error; err != nil {
		t.Fatalf("load product a: %v", err)
	}
	if err := db.First(&b, "id = ?", productB).Error; err != nil {
		t.Fatalf("load product b: %v", err)
	}
	if a.AvailableQty != 2 {
		t.Fatalf("unexpected product a qty: %d", a.AvailableQty)
	}
	if b.AvailableQty != 0 {
		t.Fatalf("unexpected product b qty: %d", b.AvailableQty)
	}
}

func TestReserveUntracked(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	productID := seedProduct(t, db, 0, false)

	ledger := NewLedger(db)
	results, err := ledger.Reserve(context.Background(), []Request{{ProductID: productID, Qty: 10}})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !results[0].Reserved {
		t.Fatalf("expected untracked product to reserve: %+v", results[0])
	}

	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.AvailableQty != 0 {
		t.Fatalf("untracked qty should be untouched, got %d", product.AvailableQty)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	productID := seedProduct(t, db, 5, true)

	ledger := NewLedger(db)
	_, err := ledger.Reserve(context.Background(), []Request{{ProductID: productID, Qty: 0}})
	if err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if te := pkgerrors.As(err); te == nil || te.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tracked := seedProduct(t, db, 2, true)
	untracked := seedProduct(t, db, 0, false)

	ledger := NewLedger(db)
	err := ledger.Restore(ctx, []Request{
		{ProductID: tracked, Qty: 3},
		{ProductID: untracked, Qty: 3},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	var a, b models.Product
	if err := db.First(&a, "id = ?", tracked).Error; err != nil {
		t.Fatalf("load tracked: %v", err)
	}
	if err := db.First(&b, "id = ?", untracked).Error; err != nil {
		t.Fatalf("load untracked: %v", err)
	}
	if a.AvailableQty != 5 {
		t.Fatalf("expected restored qty 5, got %d", a.AvailableQty)
	}
	if b.AvailableQty != 0 {
		t.Fatalf("untracked qty should be untouched, got %d", b.AvailableQty)
	}
}
