package controllers

import (
	"net/http"

	"github.com/angelmondragon/vehiclesync-backend/api/middleware"
	"github.com/angelmondragon/vehiclesync-backend/api/responses"
	"github.com/angelmondragon/vehiclesync-backend/api/validators"
	"github.com/angelmondragon/vehiclesync-backend/internal/custody"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

type registerItemRequest struct {
	VehicleID string `json:"vehicle_id" validate:"required,vehicle_id"`
	Kind      string `json:"kind" validate:"required"`
	ItemType  string `json:"item_type" validate:"required,max=128"`
	Location  string `json:"location" validate:"required,max=128"`
}

// CustodyRegister brings a key or document into custody.
func CustodyRegister(svc custody.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "custody service unavailable"))
			return
		}
		var payload registerItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseCustodyItemKind(payload.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}
		item, err := svc.RegisterItem(r.Context(), custody.RegisterInput{
			VehicleID: payload.VehicleID,
			Kind:      kind,
			ItemType:  validators.SanitizeString(payload.ItemType, 128),
			Location:  validators.SanitizeString(payload.Location, 128),
			Actor:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

type moveItemRequest struct {
	From string `json:"from" validate:"required,max=128"`
	To   string `json:"to" validate:"required,max=128"`
}

// CustodyMove records a hand-to-hand movement of a custody item.
func CustodyMove(svc custody.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "custody service unavailable"))
			return
		}
		itemID, err := validators.PathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload moveItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.RecordMovement(r.Context(), custody.MovementInput{
			ItemID: itemID,
			From:   validators.SanitizeString(payload.From, 128),
			To:     validators.SanitizeString(payload.To, 128),
			Actor:  middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movementResponseFromModel(*event))
	}
}
