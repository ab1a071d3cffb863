package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/vehiclesync-backend/api/middleware"
	"github.com/angelmondragon/vehiclesync-backend/api/responses"
	"github.com/angelmondragon/vehiclesync-backend/api/validators"
	"github.com/angelmondragon/vehiclesync-backend/internal/ingestion"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

// SnapshotRunner is the slice of the ingestion adapter the API needs.
type SnapshotRunner interface {
	Run(ctx context.Context, trigger enums.SnapshotTrigger, actor string) (*ingestion.RunResult, error)
	History(ctx context.Context, limit int) ([]models.SnapshotRun, error)
}

// SnapshotIngest runs one manual ingestion. A run already in progress answers 409.
func SnapshotIngest(runner SnapshotRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "snapshot source not configured"))
			return
		}
		result, err := runner.Run(r.Context(), enums.SnapshotTriggerManual, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SnapshotRuns lists the most recent ingestion runs.
func SnapshotRuns(runner SnapshotRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "snapshot source not configured"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		runs, err := runner.History(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]snapshotRunResponse, 0, len(runs))
		for _, run := range runs {
			out = append(out, snapshotRunResponseFromModel(run))
		}
		responses.WriteSuccess(w, out)
	}
}
