// Package disputes implements the chat-backed dispute lifecycle and its
// coupling to the external escrow state machine. On-chain success always
// precedes local mutation.
package disputes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sameerdalvi/bazario-backend/internal/escrow"
	"github.com/sameerdalvi/bazario-backend/internal/orders"
	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
	"github.com/sameerdalvi/bazario-backend/pkg/pagination"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

const (
	// escrowAutoReason is the reason recorded when a dispute is created
	// because the escrow was observed Disputed without a local record.
	escrowAutoReason = "Dispute raised via escrow system"

	// messageImageTTL is how long attached images stay downloadable.
	messageImageTTL = 7 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MessageInput carries one chat entry. Images are file references already
// persisted by the upload collaborator.
type MessageInput struct {
	Content        *string
	ImageFilenames []string
}

// Service implements the dispute operations.
type Service struct {
	repo    *Repository
	orders  *orders.Repository
	tx      txRunner
	adapter escrow.Adapter
	log     *logger.Logger
	now     func() time.Time
}

// NewService builds the disputes service.
func NewService(repo *Repository, orderRepo *orders.Repository, tx txRunner, adapter escrow.Adapter, log *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "disputes repository is required")
	}
	if orderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository is required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner is required")
	}
	if adapter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "escrow adapter is required")
	}
	if log == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &Service{
		repo:    repo,
		orders:  orderRepo,
		tx:      tx,
		adapter: adapter,
		log:     log,
		now:     time.Now,
	}, nil
}

// Create opens a dispute on an order. Buyer or seller only; one dispute per
// order. When the order carries an escrow, the on-chain dispute is raised
// and mirrored locally on success.
func (s *Service) Create(ctx context.Context, actor orders.Actor, orderID uuid.UUID, reason string) (*models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason is required")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	role, err := participantRole(actor, order)
	if err != nil {
		return nil, err
	}
	if role == enums.DisputeRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or seller may open a dispute")
	}

	dispute := &models.Dispute{
		ID:             uuid.New(),
		OrderID:        order.ID,
		BuyerID:        order.CustomerID,
		SellerID:       sellerID(order),
		RaisedBy:       actor.UserID,
		RaisedByRole:   role,
		Reason:         reason,
		Status:         enums.DisputeStatusOpen,
		Priority:       enums.DisputePriorityMedium,
		LastActivityAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, dispute); err != nil {
		return nil, err
	}

	if order.Escrow != nil && order.Escrow.Address != "" {
		if err := s.raiseEscrowDispute(ctx, order, actor); err != nil {
			// Local dispute stands; the chain catches up via reconciliation.
			s.log.Error(s.log.WithDisputeID(ctx, dispute.ID.String()), "raising escrow dispute", err)
		}
	}

	return s.repo.FindByID(ctx, dispute.ID)
}

// GetByOrder returns the dispute for an order, auto-creating it when the
// escrow is observed Disputed without a local record. Unread messages are
// marked read for the viewer.
func (s *Service) GetByOrder(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Dispute, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	role, err := participantRole(actor, order)
	if err != nil {
		return nil, err
	}

	dispute, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if dispute == nil {
		if order.Escrow == nil || order.Escrow.Status != enums.EscrowStatusDisputed {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no dispute exists for this order").
				WithDetails(map[string]any{"order_id": orderID})
		}
		dispute, err = s.ensureDispute(ctx, order, actor, role)
		if err != nil {
			return nil, err
		}
	}

	if err := s.markMessagesRead(ctx, dispute, actor.UserID); err != nil {
		return nil, err
	}
	return dispute, nil
}

// Get loads a dispute by id for a participant and marks messages read.
func (s *Service) Get(ctx context.Context, actor orders.Actor, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, actor, dispute); err != nil {
		return nil, err
	}
	if err := s.markMessagesRead(ctx, dispute, actor.UserID); err != nil {
		return nil, err
	}
	return dispute, nil
}

// List pages the admin dispute queue.
func (s *Service) List(ctx context.Context, actor orders.Actor, params pagination.Params, status *enums.DisputeStatus) (*pagination.PageResult[models.Dispute], error) {
	if actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	return s.repo.List(ctx, params, status)
}

// SendMessage appends a chat entry. The first admin reply moves an open
// dispute to under_review and claims assignment when unset.
func (s *Service) SendMessage(ctx context.Context, actor orders.Actor, disputeID uuid.UUID, input MessageInput) (*models.Dispute, error) {
	content := ""
	if input.Content != nil {
		content = strings.TrimSpace(*input.Content)
	}
	if content == "" && len(input.ImageFilenames) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message requires text or images")
	}

	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	role, err := s.authorize(ctx, actor, dispute)
	if err != nil {
		return nil, err
	}
	if dispute.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "dispute is no longer accepting messages").
			WithDetails(map[string]any{"status": dispute.Status})
	}

	images := make([]types.MessageImage, 0, len(input.ImageFilenames))
	expiry := s.now().UTC().Add(messageImageTTL)
	for _, filename := range input.ImageFilenames {
		images = append(images, types.MessageImage{Filename: filename, ExpiresAt: expiry})
	}

	message := &models.DisputeMessage{
		ID:         uuid.New(),
		DisputeID:  dispute.ID,
		SenderID:   actor.UserID,
		SenderRole: role,
		ReadBy:     []types.ReadReceipt{{UserID: actor.UserID, ReadAt: s.now().UTC()}},
	}
	if content != "" {
		message.Content = &content
	}
	if len(images) > 0 {
		message.Images = images
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AppendMessage(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append message")
		}
		if role == enums.DisputeRoleAdmin && dispute.Status == enums.DisputeStatusOpen {
			if err := repo.UpdateStatus(ctx, dispute.ID, enums.DisputeStatusUnderReview); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move dispute under review")
			}
			if dispute.AssignedAdminID == nil {
				if err := repo.AssignAdmin(ctx, dispute.ID, actor.UserID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign admin")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, dispute.ID)
}

// Resolve records the admin verdict. The escrow call runs first; a revert
// leaves all local state untouched. Buyer wins refund the order, seller wins
// keep it paid.
func (s *Service) Resolve(ctx context.Context, actor orders.Actor, disputeID uuid.UUID, winner enums.DisputeRole, notes string) (*models.Dispute, error) {
	if actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	if winner != enums.DisputeRoleBuyer && winner != enums.DisputeRoleSeller {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "winner must be buyer or seller")
	}

	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "dispute already resolved or closed").
			WithDetails(map[string]any{"status": dispute.Status})
	}

	order, err := s.orders.FindByID(ctx, dispute.OrderID)
	if err != nil {
		return nil, err
	}

	// On-chain first. A revert aborts everything local.
	var receipt *escrow.Receipt
	if order.Escrow != nil && order.Escrow.Address != "" {
		winnerAddress := order.Escrow.SellerAddress
		if winner == enums.DisputeRoleBuyer {
			winnerAddress = order.Escrow.BuyerAddress
		}
		receipt, err = s.adapter.Resolve(ctx, order.Escrow.Address, winnerAddress)
		if err != nil {
			return nil, err
		}
	}

	resolution := &types.DisputeResolution{
		Winner:     winner,
		ResolvedBy: actor.UserID,
		ResolvedAt: s.now().UTC(),
		Notes:      strings.TrimSpace(notes),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		if order.Escrow != nil && order.Escrow.Address != "" {
			escrowState := *order.Escrow
			if winner == enums.DisputeRoleBuyer {
				escrowState.Status = enums.EscrowStatusRefunded
			} else {
				escrowState.Status = enums.EscrowStatusComplete
			}
			if receipt != nil {
				escrowState.Transactions = append(escrowState.Transactions, types.EscrowTransaction{
					Kind:        "resolve",
					TxHash:      receipt.TxHash,
					BlockNumber: receipt.BlockNumber,
				})
			}
			if err := orderRepo.UpdateEscrow(ctx, order.ID, &escrowState); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update escrow state")
			}
		}

		if winner == enums.DisputeRoleBuyer {
			if err := orderRepo.UpdateSliceStatuses(ctx, order.ID, enums.OrderStatusRefunded); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund slices")
			}
			refunded := enums.PaymentStatusRefunded
			if err := orderRepo.UpdateStatuses(ctx, order.ID, enums.OrderStatusRefunded, &refunded); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund order")
			}
		}

		if err := repo.UpdateResolution(ctx, dispute.ID, resolution); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record resolution")
		}

		note := "Dispute resolved in favor of " + string(winner)
		return repo.AppendMessage(ctx, s.systemMessage(dispute.ID, actor.UserID, note))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithDisputeID(ctx, dispute.ID.String()), "dispute resolved")
	return s.repo.FindByID(ctx, dispute.ID)
}

// Close terminates a dispute without a verdict. Raiser or admin only.
func (s *Service) Close(ctx context.Context, actor orders.Actor, disputeID uuid.UUID, reason string) (*models.Dispute, error) {
	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.RoleAdmin && dispute.RaisedBy != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the raiser or an admin may close a dispute")
	}
	if dispute.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "dispute already resolved or closed").
			WithDetails(map[string]any{"status": dispute.Status})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStatus(ctx, dispute.ID, enums.DisputeStatusClosed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close dispute")
		}
		note := "Dispute closed"
		if reason = strings.TrimSpace(reason); reason != "" {
			note += ": " + reason
		}
		return repo.AppendMessage(ctx, s.systemMessage(dispute.ID, actor.UserID, note))
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, dispute.ID)
}

// UpdatePriority changes the triage priority. Admin only.
func (s *Service) UpdatePriority(ctx context.Context, actor orders.Actor, disputeID uuid.UUID, priority enums.DisputePriority) (*models.Dispute, error) {
	if actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	if !priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown priority")
	}
	if _, err := s.repo.FindByID(ctx, disputeID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePriority(ctx, disputeID, priority); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, disputeID)
}

// AssignAdmin sets the handling admin. Admin only.
func (s *Service) AssignAdmin(ctx context.Context, actor orders.Actor, disputeID, adminID uuid.UUID) (*models.Dispute, error) {
	if actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}
	if _, err := s.repo.FindByID(ctx, disputeID); err != nil {
		return nil, err
	}
	if err := s.repo.AssignAdmin(ctx, disputeID, adminID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, disputeID)
}

// ensureDispute materializes the local record for an escrow already
// Disputed on-chain, attributed to the viewer (or the buyer when an admin
// triggers it).
func (s *Service) ensureDispute(ctx context.Context, order *models.Order, actor orders.Actor, role enums.DisputeRole) (*models.Dispute, error) {
	raisedBy := actor.UserID
	raisedByRole := role
	if role == enums.DisputeRoleAdmin {
		raisedBy = order.CustomerID
		raisedByRole = enums.DisputeRoleBuyer
	}

	dispute := &models.Dispute{
		ID:             uuid.New(),
		OrderID:        order.ID,
		BuyerID:        order.CustomerID,
		SellerID:       sellerID(order),
		RaisedBy:       raisedBy,
		RaisedByRole:   raisedByRole,
		Reason:         escrowAutoReason,
		Status:         enums.DisputeStatusOpen,
		Priority:       enums.DisputePriorityMedium,
		LastActivityAt: s.now().UTC(),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, dispute); err != nil {
			return err
		}
		return repo.AppendMessage(ctx, s.systemMessage(dispute.ID, raisedBy, escrowAutoReason))
	})
	if err != nil {
		// A concurrent reader may have created it first.
		if te := pkgerrors.As(err); te != nil && te.Code() == pkgerrors.CodeConflict {
			return s.repo.FindByOrderID(ctx, order.ID)
		}
		return nil, err
	}

	return s.repo.FindByID(ctx, dispute.ID)
}

// raiseEscrowDispute mirrors a new dispute onto the chain and records the
// transaction locally on success.
func (s *Service) raiseEscrowDispute(ctx context.Context, order *models.Order, actor orders.Actor) error {
	actorAddress := order.Escrow.BuyerAddress
	if actor.Role == enums.RoleVendor {
		actorAddress = order.Escrow.SellerAddress
	}

	receipt, err := s.adapter.RaiseDispute(ctx, order.Escrow.Address, actorAddress)
	if err != nil {
		return err
	}

	escrowState := *order.Escrow
	escrowState.Status = enums.EscrowStatusDisputed
	escrowState.Transactions = append(escrowState.Transactions, types.EscrowTransaction{
		Kind:        "raise_dispute",
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
	})
	return s.orders.UpdateEscrow(ctx, order.ID, &escrowState)
}

// markMessagesRead appends a read receipt to every message the viewer has
// not read yet. The per-message append is guarded in the repository so
// concurrent readers never drop each other's receipts.
func (s *Service) markMessagesRead(ctx context.Context, dispute *models.Dispute, userID uuid.UUID) error {
	now := s.now().UTC()
	for i := range dispute.Messages {
		message := &dispute.Messages[i]
		read := false
		for _, receipt := range message.ReadBy {
			if receipt.UserID == userID {
				read = true
				break
			}
		}
		if read {
			continue
		}
		if err := s.repo.MarkMessageRead(ctx, message.ID, userID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark message read")
		}
		message.ReadBy = append(message.ReadBy, types.ReadReceipt{UserID: userID, ReadAt: now})
	}
	return nil
}

// authorize checks the actor participates in the dispute and returns their
// dispute role.
func (s *Service) authorize(ctx context.Context, actor orders.Actor, dispute *models.Dispute) (enums.DisputeRole, error) {
	switch actor.Role {
	case enums.RoleAdmin:
		return enums.DisputeRoleAdmin, nil
	case enums.RoleCustomer:
		if dispute.BuyerID == actor.UserID {
			return enums.DisputeRoleBuyer, nil
		}
	case enums.RoleVendor:
		order, err := s.orders.FindByID(ctx, dispute.OrderID)
		if err != nil {
			return "", err
		}
		if actor.VendorID != nil {
			for i := range order.Slices {
				if order.Slices[i].VendorID == *actor.VendorID {
					return enums.DisputeRoleSeller, nil
				}
			}
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this dispute")
}

func (s *Service) systemMessage(disputeID, senderID uuid.UUID, content string) *models.DisputeMessage {
	return &models.DisputeMessage{
		ID:         uuid.New(),
		DisputeID:  disputeID,
		SenderID:   senderID,
		SenderRole: enums.DisputeRoleAdmin,
		IsSystem:   true,
		Content:    &content,
	}
}

// participantRole maps an actor onto their dispute role for an order.
func participantRole(actor orders.Actor, order *models.Order) (enums.DisputeRole, error) {
	switch actor.Role {
	case enums.RoleAdmin:
		return enums.DisputeRoleAdmin, nil
	case enums.RoleCustomer:
		if order.CustomerID == actor.UserID {
			return enums.DisputeRoleBuyer, nil
		}
	case enums.RoleVendor:
		if actor.VendorID != nil {
			for i := range order.Slices {
				if order.Slices[i].VendorID == *actor.VendorID {
					return enums.DisputeRoleSeller, nil
				}
			}
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this order")
}

// sellerID picks the vendor of the order's slice. Checkout fans out one
// order per vendor, so there is exactly one.
func sellerID(order *models.Order) uuid.UUID {
	if len(order.Slices) > 0 {
		return order.Slices[0].VendorID
	}
	return uuid.Nil
}
