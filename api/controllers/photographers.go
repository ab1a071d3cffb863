package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/vehiclesync-backend/api/responses"
	"github.com/angelmondragon/vehiclesync-backend/api/validators"
	"github.com/angelmondragon/vehiclesync-backend/internal/photographers"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

// PhotographersList returns the allocation table.
func PhotographersList(svc photographers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photographer service unavailable"))
			return
		}
		items, err := svc.ListAllocations(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationResponses(items))
	}
}

type setAllocationsRequest struct {
	Allocations []photographers.AllocationInput `json:"allocations" validate:"required,dive"`
}

// PhotographersReplace replaces the whole allocation table.
func PhotographersReplace(svc photographers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photographer service unavailable"))
			return
		}
		var payload setAllocationsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.SetAllocations(r.Context(), payload.Allocations)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationResponses(items))
	}
}

type setAllocationRequest struct {
	DisplayName string `json:"display_name" validate:"max=128"`
	Percentage  int    `json:"percentage" validate:"min=0,max=100"`
	Active      bool   `json:"active"`
	Hidden      bool   `json:"hidden"`
	Locked      bool   `json:"locked"`
}

// PhotographerUpsert sets one photographer's allocation.
func PhotographerUpsert(svc photographers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photographer service unavailable"))
			return
		}
		userID := validators.SanitizeString(strings.TrimSpace(chi.URLParam(r, "userId")), 128)
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id is required"))
			return
		}
		var payload setAllocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.SetAllocation(r.Context(), photographers.AllocationInput{
			UserID:      userID,
			DisplayName: validators.SanitizeString(payload.DisplayName, 128),
			Percentage:  payload.Percentage,
			Active:      payload.Active,
			Hidden:      payload.Hidden,
			Locked:      payload.Locked,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationResponses(items))
	}
}

// PhotographersDistribute spreads 100% evenly over unlocked active photographers.
func PhotographersDistribute(svc photographers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photographer service unavailable"))
			return
		}
		items, err := svc.DistributeEqually(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationResponses(items))
	}
}

// PhotographersRebalance brings pending assignments back in line with the percentages.
// reassign=true also moves jobs already held by over-allocated photographers.
func PhotographersRebalance(svc photographers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photographer service unavailable"))
			return
		}
		reassign, err := validators.ParseQueryBool(r, "reassign")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Rebalance(r.Context(), reassign != nil && *reassign)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PhotographersStats reports assignments and completions per photographer.
func PhotographersStats(svc photographers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "photographer service unavailable"))
			return
		}
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if from != nil && to != nil && to.Before(*from) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from"))
			return
		}
		stats, err := svc.Stats(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if stats == nil {
			stats = []photographers.Stats{}
		}
		responses.WriteSuccess(w, stats)
	}
}
