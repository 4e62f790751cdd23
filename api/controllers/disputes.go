package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sameerdalvi/bazario-backend/api/responses"
	"github.com/sameerdalvi/bazario-backend/api/validators"
	"github.com/sameerdalvi/bazario-backend/internal/disputes"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
)

type createDisputeRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"required,min=3,max=2000"`
}

type disputeMessageRequest struct {
	Content *string  `json:"content,omitempty" validate:"omitempty,max=5000"`
	Images  []string `json:"images,omitempty" validate:"omitempty,max=5,dive,min=1"`
}

type resolveDisputeRequest struct {
	Winner string `json:"winner" validate:"required,oneof=buyer seller"`
	Notes  string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type closeDisputeRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=2000"`
}

type disputePriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=low medium high urgent"`
}

type assignAdminRequest struct {
	AdminID string `json:"admin_id" validate:"required,uuid"`
}

// CreateDispute opens a dispute on an order.
func CreateDispute(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseIDParam(req.OrderID, "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Create(r.Context(), actor, orderID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

// DisputeByOrder returns the dispute anchored to an order, materializing one
// when the escrow is already disputed on-chain.
func DisputeByOrder(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseIDParam(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.GetByOrder(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// DisputeDetail returns one dispute with its message thread.
func DisputeDetail(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseIDParam(chi.URLParam(r, "disputeId"), "dispute id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Get(r.Context(), actor, disputeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// ListDisputes pages the admin dispute queue, optionally filtered by status.
func ListDisputes(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.DisputeStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed := enums.DisputeStatus(raw)
			if !parsed.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown dispute status").WithDetails(map[string]any{"status": raw}))
				return
			}
			status = &parsed
		}

		page, err := svc.List(r.Context(), actor, params, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// SendDisputeMessage appends a chat entry to the dispute thread.
func SendDisputeMessage(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseIDParam(chi.URLParam(r, "disputeId"), "dispute id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req disputeMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.SendMessage(r.Context(), actor, disputeID, disputes.MessageInput{
			Content:        req.Content,
			ImageFilenames: req.Images,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

// ResolveDispute records the admin verdict and settles the escrow.
func ResolveDispute(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseIDParam(chi.URLParam(r, "disputeId"), "dispute id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Resolve(r.Context(), actor, disputeID, enums.DisputeRole(req.Winner), req.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// CloseDispute terminates the dispute without a verdict.
func CloseDispute(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseIDParam(chi.URLParam(r, "disputeId"), "dispute id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req closeDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Close(r.Context(), actor, disputeID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// UpdateDisputePriority changes the triage priority.
func UpdateDisputePriority(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseIDParam(chi.URLParam(r, "disputeId"), "dispute id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req disputePriorityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.UpdatePriority(r.Context(), actor, disputeID, enums.DisputePriority(req.Priority))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// AssignDisputeAdmin sets the handling admin.
func AssignDisputeAdmin(svc *disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseIDParam(chi.URLParam(r, "disputeId"), "dispute id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignAdminRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adminID, err := parseIDParam(req.AdminID, "admin id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.AssignAdmin(r.Context(), actor, disputeID, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}
