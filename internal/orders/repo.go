package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/pagination"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

// Repository persists orders with their owned slices and items. Reads always
// hydrate the full aggregate.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order aggregate. Slices and items ride along via GORM
// associations.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindByID loads the full aggregate.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Slices.Items").
		Preload("Items").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"order_id": id})
		}
		return nil, err
	}
	return &order, nil
}

// FindByRazorpayOrderID returns every order attached to a gateway order id,
// oldest first. Used by idempotent verify.
func (r *Repository) FindByRazorpayOrderID(ctx context.Context, razorpayOrderID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Slices.Items").
		Preload("Items").
		Where("razorpay_order_id = ?", razorpayOrderID).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByCustomer pages through a customer's orders, newest first, optionally
// filtered by status.
func (r *Repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params, status *enums.OrderStatus) (*pagination.PageResult[models.Order], error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("customer_id = ?", customerID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var orders []models.Order
	err := query.
		Preload("Slices.Items").
		Preload("Items").
		Order("created_at DESC").
		Limit(pagination.NormalizeLimit(params.Limit)).
		Offset(params.Offset()).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	return &pagination.PageResult[models.Order]{
		Items:      orders,
		Page:       pagination.NormalizePage(params.Page),
		Limit:      pagination.NormalizeLimit(params.Limit),
		TotalCount: total,
	}, nil
}

// ListByVendor pages through orders containing a slice for the vendor,
// newest first.
func (r *Repository) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*pagination.PageResult[models.Order], error) {
	base := r.db.WithContext(ctx).Model(&models.Order{}).
		Joins("JOIN vendor_slices ON vendor_slices.order_id = orders.id").
		Where("vendor_slices.vendor_id = ?", vendorID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var orders []models.Order
	err := base.
		Preload("Slices.Items").
		Preload("Items").
		Order("orders.created_at DESC").
		Limit(pagination.NormalizeLimit(params.Limit)).
		Offset(params.Offset()).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	return &pagination.PageResult[models.Order]{
		Items:      orders,
		Page:       pagination.NormalizePage(params.Page),
		Limit:      pagination.NormalizeLimit(params.Limit),
		TotalCount: total,
	}, nil
}

// UpdateStatuses writes the order-level status columns.
func (r *Repository) UpdateStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, paymentStatus *enums.PaymentStatus) error {
	updates := map[string]any{"status": status}
	if paymentStatus != nil {
		updates["payment_status"] = *paymentStatus
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// UpdateEscrow writes the order's escrow snapshot. Column-map updates skip
// the field serializer, so the payload is marshalled here.
func (r *Repository) UpdateEscrow(ctx context.Context, orderID uuid.UUID, escrow *types.EscrowDetails) error {
	var value any
	if escrow != nil {
		raw, err := json.Marshal(escrow)
		if err != nil {
			return fmt.Errorf("encode escrow: %w", err)
		}
		value = string(raw)
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("escrow", value).Error
}

// SaveSlice persists slice-level mutations (status, tracking).
func (r *Repository) SaveSlice(ctx context.Context, slice *models.VendorSlice) error {
	var tracking any
	if slice.Tracking != nil {
		raw, err := json.Marshal(slice.Tracking)
		if err != nil {
			return fmt.Errorf("encode tracking: %w", err)
		}
		tracking = string(raw)
	}
	return r.db.WithContext(ctx).
		Model(&models.VendorSlice{}).
		Where("id = ?", slice.ID).
		Updates(map[string]any{
			"status":   slice.Status,
			"tracking": tracking,
		}).Error
}

// UpdateSliceStatuses sets every slice of an order to the given status.
func (r *Repository) UpdateSliceStatuses(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorSlice{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}
