package main

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	"github.com/angelmondragon/vehiclesync-backend/pkg/metrics"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/registry"
)

// outcome is how one claimed row was settled.
type outcome string

const (
	outcomePublished    outcome = metrics.OutboxPublished
	outcomeDeduplicated outcome = metrics.OutboxDeduplicated
	outcomeRetried      outcome = metrics.OutboxRetried
	outcomeDeadLettered outcome = metrics.OutboxDeadLettered
)

type settled struct {
	eventType enums.OutboxEventType
	outcome   outcome
}

type batchReport struct {
	claimed int
	rows    []settled
}

func (r batchReport) count(o outcome) int {
	n := 0
	for _, row := range r.rows {
		if row.outcome == o {
			n++
		}
	}
	return n
}

// processBatch claims up to batchSize rows and settles each one. Only a
// failure to record an outcome aborts the batch; the transaction then rolls
// back and the rows are claimed again on the next poll.
func (s *Service) processBatch(ctx context.Context) (batchReport, error) {
	var report batchReport
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		report = batchReport{}
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		report.claimed = len(events)
		for _, event := range events {
			result, err := s.settle(ctx, tx, event)
			if err != nil {
				return err
			}
			report.rows = append(report.rows, settled{eventType: event.EventType, outcome: result})
		}
		return nil
	})
	if err != nil {
		return batchReport{}, err
	}

	s.metrics.ObserveBatch(report.claimed)
	for _, row := range report.rows {
		s.metrics.ObserveEvent(string(row.eventType), string(row.outcome))
	}
	if report.claimed > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"claimed":       report.claimed,
			"published":     report.count(outcomePublished),
			"deduplicated":  report.count(outcomeDeduplicated),
			"retried":       report.count(outcomeRetried),
			"dead_lettered": report.count(outcomeDeadLettered),
		}), "outbox batch settled")
	}
	return report, nil
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, s.park(ctx, tx, event, enums.OutboxDLQReasonUnresolvable, err, eventFields(event, nil))
	}
	fields := eventFields(event, resolved)

	if s.alreadyPublished(ctx, event, fields) {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event already published")
		return outcomeDeduplicated, nil
	}

	publishErr := s.publish(ctx, event, resolved)
	if publishErr == nil {
		s.rememberPublished(ctx, event, fields)
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Debug(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil
	}
	if registry.IsNonRetryable(publishErr) {
		return outcomeDeadLettered, s.park(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, publishErr, fields)
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		exhausted := fmt.Errorf("gave up after %d attempts: %w", attempt, publishErr)
		return outcomeDeadLettered, s.park(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, exhausted, fields)
	}

	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", publishErr.Error()), "outbox publish failed, will retry")
	if err := s.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
		return "", fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetried, nil
}

// park copies the row into the dead-letter table and takes it out of the
// publish queue in the same transaction.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason.String()
	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", cause.Error()), "outbox event dead-lettered")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.deadLetter.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

// Guard failures only cost a possible duplicate, so they are logged and the
// row is published anyway.
func (s *Service) alreadyPublished(ctx context.Context, event models.OutboxEvent, fields map[string]any) bool {
	if s.guard == nil {
		return false
	}
	seen, err := s.guard.Published(ctx, guardName, event.ID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error()), "publish guard lookup failed")
		return false
	}
	return seen
}

func (s *Service) rememberPublished(ctx context.Context, event models.OutboxEvent, fields map[string]any) {
	if s.guard == nil {
		return
	}
	if err := s.guard.MarkPublished(ctx, guardName, event.ID); err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error()), "publish guard mark failed")
	}
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.broker.Topic(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	started := s.now()
	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	_, err := result.Get(publishCtx)
	s.metrics.ObservePublish(topic, s.now().Sub(started))
	return err
}

// messageAttributes lets subscribers route and filter without decoding the
// body.
func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID,
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if vehicleID := resolved.VehicleID(); vehicleID != "" {
		attrs["vehicle_id"] = vehicleID
	}
	return attrs
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["event_id"] = resolved.Envelope.EventID
		fields["topic"] = resolved.Descriptor.Topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
