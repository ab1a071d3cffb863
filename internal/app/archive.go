package app

import (
	"context"
	"errors"

	"github.com/angelmondragon/vehiclesync-backend/internal/ingestion"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/storage/gcs"
)

// OpenArchiver connects to GCS when snapshot archiving is enabled. The returned
// close func is never nil.
func OpenArchiver(ctx context.Context, cfg *config.Config, logg *logger.Logger) (ingestion.Archiver, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil || !cfg.Ingestion.ArchiveEnabled {
		return nil, noop, nil
	}
	if cfg.GCS.BucketName == "" {
		return nil, noop, errors.New("snapshot archiving needs a gcs bucket")
	}
	client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return nil, noop, err
	}
	archiver, err := gcs.NewSnapshotArchiver(client, client.DefaultBucket(), cfg.GCS.SnapshotsPath)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return archiver, client.Close, nil
}
