package coupons

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
)

// Repository exposes coupon lookup and the usage counter.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
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

// FindByCode loads a coupon by its (case-insensitive) code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("lower(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon not found")
		}
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsage bumps used_count, re-checking the usage limit so two
// concurrent checkouts cannot both consume the final use.
func (r *Repository) IncrementUsage(ctx context.Context, coupon *models.Coupon) error {
	query := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", coupon.ID)
	if coupon.UsageLimit != nil {
		query = query.Where("used_count < ?", *coupon.UsageLimit)
	}
	result := query.UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon usage limit reached")
	}
	return nil
}
