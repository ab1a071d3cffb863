package controllers

import (
	"net/http"

	"github.com/angelmondragon/vehiclesync-backend/api/responses"
	"github.com/angelmondragon/vehiclesync-backend/api/validators"
	"github.com/angelmondragon/vehiclesync-backend/internal/photos"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/pagination"
)

type photographerRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// PhotosPending lists paint-ready vehicles still waiting for photos.
func PhotosPending(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photo service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := svc.Pending(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]*photoResponse, 0, len(records))
		for i := range records {
			out = append(out, photoResponseFromModel(&records[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// PhotoAssign hands the vehicle's photo job to a photographer.
func PhotoAssign(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photo service unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload photographerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Assign(r.Context(), photos.AssignInput{
			VehicleID: vehicleID,
			UserID:    validators.SanitizeString(payload.UserID, 128),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, photoResponseFromModel(record))
	}
}

// PhotoComplete closes the photo job and credits the photographer.
func PhotoComplete(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photo service unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload photographerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Complete(r.Context(), photos.CompleteInput{
			VehicleID: vehicleID,
			UserID:    validators.SanitizeString(payload.UserID, 128),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, photoResponseFromModel(record))
	}
}

// PhotoError reopens the job after a bad shoot.
func PhotoError(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photo service unavailable"))
			return
		}
		vehicleID, err := validators.PathVehicleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.ReportError(r.Context(), vehicleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, photoResponseFromModel(record))
	}
}
