package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	dlqRetentionDays    = 90
)

// OutboxRetentionJobParams configure the pruning job. DeadLetters is
// optional; without it only published rows are pruned.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Published    publishedPruner
	DeadLetters  deadLetterPruner
	Retention    int
	DLQRetention int
}

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Published == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		published:    params.Published,
		deadLetters:  params.DeadLetters,
		retention:    positiveOr(params.Retention, outboxRetentionDays),
		dlqRetention: positiveOr(params.DLQRetention, dlqRetentionDays),
		now:          time.Now,
	}
	if job.dlqRetention < job.retention {
		return nil, fmt.Errorf("dead letters must be kept at least as long as published events (%d < %d days)", job.dlqRetention, job.retention)
	}
	return job, nil
}

// outboxRetentionJob prunes delivered outbox rows and, on a longer window,
// parked dead letters. Unpublished rows are never touched.
type outboxRetentionJob struct {
	logg         *logger.Logger
	published    publishedPruner
	deadLetters  deadLetterPruner
	retention    int
	dlqRetention int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	fields := map[string]any{"retention_days": j.retention}

	cutoff := daysBefore(now, j.retention)
	published, errPublished := j.published.DeletePublishedBefore(ctx, cutoff)
	if errPublished != nil {
		errPublished = fmt.Errorf("prune published events: %w", errPublished)
	}
	fields["published_cutoff"] = cutoff
	fields["published_deleted"] = published

	var errDLQ error
	if j.deadLetters != nil {
		dlqCutoff := daysBefore(now, j.dlqRetention)
		var parked int64
		parked, errDLQ = j.deadLetters.DeleteBefore(ctx, dlqCutoff)
		if errDLQ != nil {
			errDLQ = fmt.Errorf("prune dead letters: %w", errDLQ)
		}
		fields["dlq_cutoff"] = dlqCutoff
		fields["dlq_deleted"] = parked
	}

	if err := multierr.Combine(errPublished, errDLQ); err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention cleanup complete")
	return nil
}

func daysBefore(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
