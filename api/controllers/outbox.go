package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vehiclesync-backend/api/responses"
	"github.com/angelmondragon/vehiclesync-backend/api/validators"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
)

// DeadLetterReader exposes parked outbox rows to operators.
type DeadLetterReader interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	Summary(ctx context.Context) ([]outbox.DLQCount, error)
}

type deadLetterResponse struct {
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   string                     `json:"aggregate_id"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Error         string                     `json:"error,omitempty"`
	AttemptCount  int                        `json:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at"`
	Payload       json.RawMessage            `json:"payload"`
}

type deadLettersResponse struct {
	Counts []outbox.DLQCount    `json:"counts"`
	Items  []deadLetterResponse `json:"items"`
}

// OutboxDeadLetters lists parked events, optionally filtered by ?reason=.
func OutboxDeadLetters(reader DeadLetterReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dead letter store not configured"))
			return
		}
		filter := outbox.DLQFilter{}
		if raw := r.URL.Query().Get("reason"); raw != "" {
			reason, err := enums.ParseOutboxDLQErrorReason(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason"))
				return
			}
			filter.Reason = reason
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.Limit = limit

		rows, err := reader.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dead letters"))
			return
		}
		counts, err := reader.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count dead letters"))
			return
		}

		out := deadLettersResponse{Counts: counts, Items: make([]deadLetterResponse, 0, len(rows))}
		if out.Counts == nil {
			out.Counts = []outbox.DLQCount{}
		}
		for _, row := range rows {
			item := deadLetterResponse{
				EventID:       row.EventID,
				EventType:     row.EventType,
				AggregateType: row.AggregateType,
				AggregateID:   row.AggregateID,
				Reason:        row.ErrorReason,
				AttemptCount:  row.AttemptCount,
				FailedAt:      row.FailedAt,
				Payload:       row.Payload,
			}
			if row.ErrorMessage != nil {
				item.Error = *row.ErrorMessage
			}
			out.Items = append(out.Items, item)
		}
		responses.WriteSuccess(w, out)
	}
}
