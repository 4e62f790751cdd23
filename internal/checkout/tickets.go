package checkout

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
)

// TicketRepository persists the write-ahead checkout tickets keyed by the
// gateway intent id.
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository builds a ticket repository bound to the provided DB.
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *TicketRepository) WithTx(tx *gorm.DB) *TicketRepository {
	if tx == nil {
		return r
	}
	return &TicketRepository{db: tx}
}

// Create inserts a pending ticket.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.CheckoutTicket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

// FindByIntentID loads the ticket for a gateway intent.
func (r *TicketRepository) FindByIntentID(ctx context.Context, intentID string) (*models.CheckoutTicket, error) {
	var ticket models.CheckoutTicket
	err := r.db.WithContext(ctx).First(&ticket, "intent_id = ?", intentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment intent").
				WithDetails(map[string]any{"intent_id": intentID})
		}
		return nil, err
	}
	return &ticket, nil
}

// Transition moves the ticket from one status to another. Returns false when
// the ticket was not in the expected state, which signals a concurrent
// winner.
func (r *TicketRepository) Transition(ctx context.Context, intentID string, from, to enums.TicketStatus, failureReason *string) (bool, error) {
	updates := map[string]any{"status": to}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}
	result := r.db.WithContext(ctx).
		Model(&models.CheckoutTicket{}).
		Where("intent_id = ? AND status = ?", intentID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
