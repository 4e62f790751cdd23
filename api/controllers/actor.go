package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sameerdalvi/bazario-backend/api/middleware"
	"github.com/sameerdalvi/bazario-backend/internal/orders"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
)

// actorFromRequest rebuilds the authenticated actor from the context the
// auth middleware seeded.
func actorFromRequest(r *http.Request) (orders.Actor, error) {
	rawUserID := middleware.UserIDFromContext(r.Context())
	if rawUserID == "" {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}

	role := enums.Role(middleware.RoleFromContext(r.Context()))
	if !role.IsValid() {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "role context missing")
	}

	actor := orders.Actor{UserID: userID, Role: role}
	if rawVendorID := middleware.VendorIDFromContext(r.Context()); rawVendorID != "" {
		vendorID, err := uuid.Parse(rawVendorID)
		if err != nil {
			return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid vendor id")
		}
		actor.VendorID = &vendorID
	}
	return actor, nil
}

func parseIDParam(raw, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}
