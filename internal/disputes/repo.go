package disputes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sameerdalvi/bazario-backend/pkg/db"
	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/pagination"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

// Repository persists disputes and their append-only message log.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a disputes repository bound to the provided DB.
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

// Create inserts a dispute. The unique order index turns a duplicate into a
// conflict.
func (r *Repository) Create(ctx context.Context, dispute *models.Dispute) error {
	if err := r.db.WithContext(ctx).Create(dispute).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "a dispute already exists for this order").
				WithDetails(map[string]any{"order_id": dispute.OrderID})
		}
		return err
	}
	return nil
}

// FindByID loads a dispute with its messages in insertion order.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		}).
		First(&dispute, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found").
				WithDetails(map[string]any{"dispute_id": id})
		}
		return nil, err
	}
	return &dispute, nil
}

// FindByOrderID loads the dispute anchored to an order, or nil when none
// exists.
func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		}).
		First(&dispute, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dispute, nil
}

// List pages disputes for the admin queue, most recently active first.
func (r *Repository) List(ctx context.Context, params pagination.Params, status *enums.DisputeStatus) (*pagination.PageResult[models.Dispute], error) {
	query := r.db.WithContext(ctx).Model(&models.Dispute{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var disputes []models.Dispute
	err := query.
		Order("last_activity_at DESC").
		Limit(pagination.NormalizeLimit(params.Limit)).
		Offset(params.Offset()).
		Find(&disputes).Error
	if err != nil {
		return nil, err
	}

	return &pagination.PageResult[models.Dispute]{
		Items:      disputes,
		Page:       pagination.NormalizePage(params.Page),
		Limit:      pagination.NormalizeLimit(params.Limit),
		TotalCount: total,
	}, nil
}

// AppendMessage inserts a message and advances last_activity_at.
func (r *Repository) AppendMessage(ctx context.Context, message *models.DisputeMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", message.DisputeID).
		Update("last_activity_at", time.Now().UTC()).Error
}

// UpdateStatus writes the dispute status.
func (r *Repository) UpdateStatus(ctx context.Context, disputeID uuid.UUID, status enums.DisputeStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", disputeID).
		Update("status", status).Error
}

// UpdateResolution stores the verdict alongside the resolved status.
// Column-map updates skip the field serializer, so the payload is marshalled
// here.
func (r *Repository) UpdateResolution(ctx context.Context, disputeID uuid.UUID, resolution *types.DisputeResolution) error {
	raw, err := json.Marshal(resolution)
	if err != nil {
		return fmt.Errorf("encode resolution: %w", err)
	}
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", disputeID).
		Updates(map[string]any{
			"status":     enums.DisputeStatusResolved,
			"resolution": string(raw),
		}).Error
}

// UpdatePriority writes the triage priority.
func (r *Repository) UpdatePriority(ctx context.Context, disputeID uuid.UUID, priority enums.DisputePriority) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", disputeID).
		Update("priority", priority).Error
}

// AssignAdmin writes the assigned admin.
func (r *Repository) AssignAdmin(ctx context.Context, disputeID, adminID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", disputeID).
		Update("assigned_admin_id", adminID).Error
}

// readReceiptRetries bounds the optimistic append loop below.
const readReceiptRetries = 3

// MarkMessageRead appends a read receipt for the user unless one already
// exists. The update is guarded on the current read_by value so two
// concurrent readers never overwrite each other's receipt; the loser of the
// race re-reads and retries. Receipts only ever grow.
func (r *Repository) MarkMessageRead(ctx context.Context, messageID, userID uuid.UUID, readAt time.Time) error {
	for attempt := 0; attempt < readReceiptRetries; attempt++ {
		var message models.DisputeMessage
		if err := r.db.WithContext(ctx).First(&message, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispute message not found").
					WithDetails(map[string]any{"message_id": messageID})
			}
			return err
		}

		for _, receipt := range message.ReadBy {
			if receipt.UserID == userID {
				return nil
			}
		}

		next, err := json.Marshal(append(message.ReadBy, types.ReadReceipt{UserID: userID, ReadAt: readAt}))
		if err != nil {
			return fmt.Errorf("encode read receipts: %w", err)
		}

		query := r.db.WithContext(ctx).
			Model(&models.DisputeMessage{}).
			Where("id = ?", messageID)
		if len(message.ReadBy) == 0 {
			query = query.Where("read_by IS NULL OR read_by = ? OR read_by = ?", "[]", "null")
		} else {
			current, merr := json.Marshal(message.ReadBy)
			if merr != nil {
				return fmt.Errorf("encode read receipts: %w", merr)
			}
			query = query.Where("read_by = ?", string(current))
		}

		result := query.Update("read_by", string(next))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "concurrent read receipt update").
		WithDetails(map[string]any{"message_id": messageID})
}
