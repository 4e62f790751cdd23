package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sameerdalvi/bazario-backend/internal/inventory"
	"github.com/sameerdalvi/bazario-backend/internal/tracking"
	"github.com/sameerdalvi/bazario-backend/pkg/db/models"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
	"github.com/sameerdalvi/bazario-backend/pkg/pagination"
	"github.com/sameerdalvi/bazario-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies the caller for authorization decisions.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.Role
	VendorID *uuid.UUID
}

// UpdateSliceStatusInput carries a vendor's fulfillment update.
type UpdateSliceStatusInput struct {
	OrderID  uuid.UUID
	Status   enums.OrderStatus
	Tracking *types.TrackingDetails
}

// Service implements order reads and the fulfillment state machine.
type Service struct {
	repo    *Repository
	tx      txRunner
	ledger  *inventory.Ledger
	tracker *tracking.Service
	log     *logger.Logger
}

// NewService builds the orders service.
func NewService(repo *Repository, tx txRunner, ledger *inventory.Ledger, tracker *tracking.Service, log *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository is required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner is required")
	}
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger is required")
	}
	if tracker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tracking service is required")
	}
	if log == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &Service{repo: repo, tx: tx, ledger: ledger, tracker: tracker, log: log}, nil
}

// Get loads an order, restricted to its participants: the customer, a vendor
// with a slice in it, or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParticipant(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListMine pages the customer's own orders.
func (s *Service) ListMine(ctx context.Context, customerID uuid.UUID, params pagination.Params, status *enums.OrderStatus) (*pagination.PageResult[models.Order], error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.repo.ListByCustomer(ctx, customerID, params, status)
}

// ListForVendor pages orders that include the vendor's slices.
func (s *Service) ListForVendor(ctx context.Context, actor Actor, params pagination.Params) (*pagination.PageResult[models.Order], error) {
	if actor.Role != enums.RoleVendor || actor.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	return s.repo.ListByVendor(ctx, *actor.VendorID, params)
}

// Cancel is the customer-initiated cancellation. Allowed only while every
// slice is still pending or confirmed; restores reserved inventory.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if actor.Role != enums.RoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the customer may cancel an order")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.CustomerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		if !CanCustomerCancel(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}
		for _, slice := range order.Slices {
			if !CanCustomerCancel(slice.Status) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "a vendor has already started fulfillment").
					WithDetails(map[string]any{"slice_id": slice.ID, "status": slice.Status})
			}
		}

		if err := repo.UpdateSliceStatuses(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel slices")
		}
		if err := repo.UpdateStatuses(ctx, order.ID, enums.OrderStatusCancelled, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		restores := make([]inventory.Request, 0, len(order.Items))
		for _, item := range order.Items {
			restores = append(restores, inventory.Request{ProductID: item.ProductID, Qty: item.Qty})
		}
		return s.ledger.WithTx(tx).Restore(ctx, restores)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithOrderID(ctx, orderID.String()), "order cancelled by customer")
	return s.repo.FindByID(ctx, orderID)
}

// UpdateSliceStatus is the vendor-driven state machine step. Shipping
// requires a carrier and a valid tracking number; cancellation restores the
// slice's inventory.
func (s *Service) UpdateSliceStatus(ctx context.Context, actor Actor, input UpdateSliceStatusInput) (*models.Order, error) {
	if actor.Role != enums.RoleVendor || actor.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context missing")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": input.Status})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}

		slice := findVendorSlice(order, *actor.VendorID)
		if slice == nil {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order has no slice for vendor")
		}
		if slice.Status == input.Status {
			return nil
		}
		if !CanVendorTransition(slice.Status, input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{"from": slice.Status, "to": input.Status})
		}

		if input.Status == enums.OrderStatusShipped {
			if err := requireTracking(input.Tracking); err != nil {
				return err
			}
			slice.Tracking = input.Tracking
		} else if input.Tracking != nil {
			slice.Tracking = input.Tracking
		}

		slice.Status = input.Status
		if err := repo.SaveSlice(ctx, slice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save slice")
		}

		if input.Status == enums.OrderStatusCancelled {
			restores := make([]inventory.Request, 0, len(slice.Items))
			for _, item := range slice.Items {
				restores = append(restores, inventory.Request{ProductID: item.ProductID, Qty: item.Qty})
			}
			if err := s.ledger.WithTx(tx).Restore(ctx, restores); err != nil {
				return err
			}
		}

		return s.recomputeParent(ctx, repo, order, slice)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, input.OrderID)
}

// RefreshTracking pulls fresh tracking for every shipped slice, merges the
// histories, and applies the delivered auto-transition.
func (s *Service) RefreshTracking(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	refreshed := false
	for i := range order.Slices {
		slice := &order.Slices[i]
		if slice.Tracking == nil || slice.Tracking.TrackingNumber == "" {
			continue
		}
		if slice.Status != enums.OrderStatusShipped && slice.Status != enums.OrderStatusDelivered {
			s.log.Warn(s.log.WithOrderID(ctx, order.ID.String()),
				"slice carries tracking before shipment, skipping refresh")
			continue
		}

		details, delivered, rerr := s.tracker.Refresh(ctx, *slice.Tracking)
		if rerr != nil {
			return nil, rerr
		}

		txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			slice.Tracking = &details
			if delivered && slice.Status == enums.OrderStatusShipped {
				slice.Status = enums.OrderStatusDelivered
			}
			if err := repo.SaveSlice(ctx, slice); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save slice tracking")
			}
			return s.recomputeParent(ctx, repo, order, slice)
		})
		if txErr != nil {
			return nil, txErr
		}
		refreshed = true
	}

	if !refreshed {
		return order, nil
	}
	return s.repo.FindByID(ctx, orderID)
}

func (s *Service) recomputeParent(ctx context.Context, repo *Repository, order *models.Order, updated *models.VendorSlice) error {
	statuses := make([]enums.OrderStatus, 0, len(order.Slices))
	for i := range order.Slices {
		if order.Slices[i].ID == updated.ID {
			statuses = append(statuses, updated.Status)
			continue
		}
		statuses = append(statuses, order.Slices[i].Status)
	}

	parent := AggregateStatus(statuses)
	if parent == order.Status {
		return nil
	}
	if err := repo.UpdateStatuses(ctx, order.ID, parent, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update parent status")
	}
	order.Status = parent
	return nil
}

func authorizeParticipant(actor Actor, order *models.Order) error {
	switch actor.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleCustomer:
		if order.CustomerID == actor.UserID {
			return nil
		}
	case enums.RoleVendor:
		if actor.VendorID != nil && findVendorSlice(order, *actor.VendorID) != nil {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this order")
}

func findVendorSlice(order *models.Order, vendorID uuid.UUID) *models.VendorSlice {
	for i := range order.Slices {
		if order.Slices[i].VendorID == vendorID {
			return &order.Slices[i]
		}
	}
	return nil
}

func requireTracking(details *types.TrackingDetails) error {
	if details == nil || details.TrackingNumber == "" || details.Carrier == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping requires a carrier and tracking number")
	}
	return tracking.ValidateTrackingNumber(details.TrackingNumber, details.Carrier)
}
