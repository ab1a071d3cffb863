package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/vehiclesync-backend/internal/ingestion"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
)

type snapshotRunner interface {
	Run(ctx context.Context, trigger enums.SnapshotTrigger, actor string) (*ingestion.RunResult, error)
}

type SnapshotIngestionJobParams struct {
	Logger  *logger.Logger
	Adapter snapshotRunner
}

// NewSnapshotIngestionJob pulls the listing once per cycle.
func NewSnapshotIngestionJob(params SnapshotIngestionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Adapter == nil {
		return nil, fmt.Errorf("ingestion adapter required")
	}
	return &snapshotIngestionJob{logg: params.Logger, adapter: params.Adapter}, nil
}

type snapshotIngestionJob struct {
	logg    *logger.Logger
	adapter snapshotRunner
}

func (j *snapshotIngestionJob) Name() string { return "snapshot-ingestion" }

func (j *snapshotIngestionJob) Run(ctx context.Context) error {
	result, err := j.adapter.Run(ctx, enums.SnapshotTriggerCron, outbox.SystemActor)
	if pkgerrors.IsCode(err, pkgerrors.CodeIngestionInProgress) {
		j.logg.Info(ctx, "ingestion already in flight; skipping")
		return nil
	}
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"snapshot_version": result.Version,
		"records":          result.Records,
		"added":            len(result.Added),
		"removed":          len(result.Removed),
		"changed":          len(result.Changed),
	}), "snapshot ingested")
	return nil
}
