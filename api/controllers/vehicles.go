package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/vehiclesync-backend/api/middleware"
	"github.com/angelmondragon/vehiclesync-backend/api/responses"
	"github.com/angelmondragon/vehiclesync-backend/api/validators"
	"github.com/angelmondragon/vehiclesync-backend/internal/battery"
	"github.com/angelmondragon/vehiclesync-backend/internal/custody"
	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/pagination"
	"github.com/angelmondragon/vehiclesync-backend/pkg/types"
)

// VehicleDescriber returns the derived lifecycle view of a vehicle.
type VehicleDescriber interface {
	Describe(ctx context.Context, vehicleID string) (*lifecycle.View, error)
}

// StockList pages through stock, optionally filtered by availability, sold and received flags.
func StockList(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := stock.ListQuery{Limit: limit}
		if raw := r.URL.Query().Get("cursor"); raw != "" {
			cursor, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			query.Cursor = cursor
		}
		for key, dest := range map[string]**bool{
			"available": &query.Available,
			"sold":      &query.Sold,
			"received":  &query.Received,
		} {
			value, err := validators.ParseQueryBool(r, key)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			*dest = value
		}

		result, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]stockResponse, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, *stockResponseFromModel(&result.Items[i]))
		}
		responses.WriteSuccess(w, types.NewPage(items, result.NextCursor))
	}
}

// VehicleDescribe returns stock plus the derived lifecycle state and battery overlay.
func VehicleDescribe(describer VehicleDescriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if describer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "lifecycle view unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := describer.Describe(r.Context(), vehicleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vehicleResponseFromView(view))
	}
}

// VehicleReceive records a manual intake.
func VehicleReceive(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.MarkReceived(r.Context(), stock.MarkReceivedInput{
			VehicleID: vehicleID,
			Actor:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stockResponseFromModel(entry))
	}
}

type bodyReadinessRequest struct {
	Ready *bool `json:"ready" validate:"required"`
}

// VehicleBodyReadiness flips the body-readiness flag that paint readiness mirrors.
func VehicleBodyReadiness(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock service unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload bodyReadinessRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.SetBodyReadiness(r.Context(), stock.BodyReadinessInput{
			VehicleID: vehicleID,
			Ready:     *payload.Ready,
			Actor:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stockResponseFromModel(entry))
	}
}

type chargeRequest struct {
	Level *int `json:"level" validate:"required,min=0,max=100"`
}

// BatteryCharge records a completed charge and clears any alert.
func BatteryCharge(svc battery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "battery service unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload chargeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.RecordCharge(r.Context(), battery.ChargeInput{
			VehicleID: vehicleID,
			Level:     *payload.Level,
			Actor:     middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, batteryResponseFromModel(status.Record, status.Overlay))
	}
}

// BatteryStatus returns the battery record with its current overlay.
func BatteryStatus(svc battery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "battery service unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.Status(r.Context(), vehicleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, batteryResponseFromModel(status.Record, status.Overlay))
	}
}

type custodyOverviewResponse struct {
	Items     []custody.Item     `json:"items"`
	Movements []movementResponse `json:"movements"`
}

// VehicleMovements returns the vehicle's custody items and their movement log.
func VehicleMovements(svc custody.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "custody service unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.Items(r.Context(), vehicleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movements, err := svc.Movements(r.Context(), vehicleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := custodyOverviewResponse{
			Items:     items,
			Movements: make([]movementResponse, 0, len(movements)),
		}
		if out.Items == nil {
			out.Items = []custody.Item{}
		}
		for _, m := range movements {
			out.Movements = append(out.Movements, movementResponseFromModel(m))
		}
		responses.WriteSuccess(w, out)
	}
}
