package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
)

// Request asks for qty units of a product.
type Request struct {
	ProductID uuid.UUID
	Qty       int
}

// Result reports per-request whether the stock was taken. Reason is set only
// when Reserved is false.
type Result struct {
	ProductID uuid.UUID
	Qty       int
	Reserved  bool
	Reason    string
}

// Ledger applies stock movements against products.available_qty. Decrements
// are conditional so two checkouts racing for the last unit cannot both win.
type Ledger struct {
	db *gorm.DB
}

// NewLedger builds a ledger tied to the provided GORM DB.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx returns a ledger bound to the provided transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx}
}

// Reserve decrements available_qty for every request, in order. Products with
// track_quantity disabled always reserve. The caller is expected to run this
// inside a transaction and roll back when any result is not Reserved.
func (l *Ledger) Reserve(ctx context.Context, requests []Request) ([]Result, error) {
	results := make([]Result, 0, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive").
				WithDetails(map[string]any{"product_id": req.ProductID, "qty": req.Qty})
		}

		result := Result{ProductID: req.ProductID, Qty: req.Qty}

		update := l.db.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND (track_quantity = ? OR available_qty >= ?)", req.ProductID, false, req.Qty).
			UpdateColumn("available_qty", gorm.Expr(
				"CASE WHEN track_quantity THEN available_qty - ? ELSE available_qty END", req.Qty,
			))
		if update.Error != nil {
			return nil, fmt.Errorf("reserving product %s: %w", req.ProductID, update.Error)
		}
		if update.RowsAffected == 0 {
			result.Reason = "insufficient stock"
		} else {
			result.Reserved = true
		}
		results = append(results, result)
	}
	return results, nil
}

// Restore returns units to stock, for cancellations and failed checkouts.
// Untracked products are left alone.
func (l *Ledger) Restore(ctx context.Context, requests []Request) error {
	for _, req := range requests {
		if req.Qty <= 0 {
			continue
		}
		err := l.db.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND track_quantity = ?", req.ProductID, true).
			UpdateColumn("available_qty", gorm.Expr("available_qty + ?", req.Qty)).Error
		if err != nil {
			return fmt.Errorf("restoring product %s: %w", req.ProductID, err)
		}
	}
	return nil
}
