package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

// PathUUID parses a uuid route parameter.
func PathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key).WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// PathVehicleID returns the vehicle id route parameter. Normalization is left
// to the services.
func PathVehicleID(r *http.Request) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "vehicleId"))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "vehicle id is required").WithDetails(map[string]any{"field": "vehicleId"})
	}
	return raw, nil
}
