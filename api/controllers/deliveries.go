package controllers

import (
	"net/http"

	"github.com/angelmondragon/vehiclesync-backend/api/middleware"
	"github.com/angelmondragon/vehiclesync-backend/api/responses"
	"github.com/angelmondragon/vehiclesync-backend/api/validators"
	"github.com/angelmondragon/vehiclesync-backend/internal/deliveries"
	"github.com/angelmondragon/vehiclesync-backend/internal/incidents"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

// DeliveryComplete marks the handover done. Open incidents or missing items reject it.
func DeliveryComplete(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		deliveryID, err := validators.PathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := svc.CompleteDelivery(r.Context(), deliveryID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deliveryResponseFromModel(delivery))
	}
}

type incidentsResponse struct {
	DeliveryID   string             `json:"delivery_id"`
	VehicleID    string             `json:"vehicle_id"`
	OpenTypes    []string           `json:"open_types"`
	HasIncidents bool               `json:"has_incidents"`
	History      []incidentResponse `json:"history"`
}

func incidentsResponseFrom(in *incidents.DeliveryIncidents) incidentsResponse {
	out := incidentsResponse{
		DeliveryID:   in.DeliveryID.String(),
		VehicleID:    in.VehicleID,
		OpenTypes:    in.OpenTypes,
		HasIncidents: in.HasIncidents,
		History:      make([]incidentResponse, 0, len(in.History)),
	}
	if out.OpenTypes == nil {
		out.OpenTypes = []string{}
	}
	for _, rec := range in.History {
		out.History = append(out.History, incidentResponseFromModel(rec))
	}
	return out
}

// DeliveryIncidents returns the open incident set and history for a delivery.
func DeliveryIncidents(svc incidents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "incident service unavailable"))
			return
		}
		deliveryID, err := validators.PathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListByDelivery(r.Context(), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, incidentsResponseFrom(result))
	}
}

type openIncidentRequest struct {
	Type string `json:"type" validate:"required,max=128"`
}

// DeliveryOpenIncident raises a manual incident on a delivery.
func DeliveryOpenIncident(svc incidents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "incident service unavailable"))
			return
		}
		deliveryID, err := validators.PathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload openIncidentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.OpenIncident(r.Context(), incidents.OpenInput{
			DeliveryID: deliveryID,
			Type:       validators.SanitizeString(payload.Type, 128),
			Actor:      middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, incidentsResponseFrom(result))
	}
}
