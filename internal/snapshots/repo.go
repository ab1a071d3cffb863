package snapshots

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/repo"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

const insertBatchSize = 200

// Repository stores snapshot versions and their runs. The current snapshot is
// the version of the most recent succeeded run; any other version present is
// either the retained previous copy or a candidate still being applied.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// CurrentVersion returns the committed snapshot version, or ok=false before
// the first successful run.
func (r *Repository) CurrentVersion(ctx context.Context) (int64, bool, error) {
	run, err := repo.FindOptional[models.SnapshotRun](
		r.DB(ctx).Order("snapshot_version DESC"),
		"status = ?", enums.SnapshotRunSucceeded,
	)
	if err != nil || run == nil {
		return 0, false, err
	}
	return run.SnapshotVersion, true, nil
}

// NextVersion allocates the version number for a new run.
func (r *Repository) NextVersion(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := r.DB(ctx).Model(&models.SnapshotRun{}).Select("MAX(snapshot_version)").Row().Scan(&max); err != nil {
		return 0, err
	}
	return max.Int64 + 1, nil
}

// CurrentRecords returns every row of the committed snapshot.
func (r *Repository) CurrentRecords(ctx context.Context) ([]models.ScrapedRecord, error) {
	version, ok, err := r.CurrentVersion(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return r.RecordsAt(ctx, version)
}

// RecordsAt returns the rows of the given version ordered by vehicle id.
func (r *Repository) RecordsAt(ctx context.Context, version int64) ([]models.ScrapedRecord, error) {
	var rows []models.ScrapedRecord
	err := r.DB(ctx).
		Where("snapshot_version = ?", version).
		Order("vehicle_id ASC").
		Find(&rows).Error
	return rows, err
}

// CurrentRecord returns the committed row for a vehicle, or nil when it is not listed.
func (r *Repository) CurrentRecord(ctx context.Context, vehicleID string) (*models.ScrapedRecord, error) {
	version, ok, err := r.CurrentVersion(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return repo.FindOptional[models.ScrapedRecord](r.DB(ctx), "snapshot_version = ? AND vehicle_id = ?", version, vehicleID)
}

// InsertRecords writes a candidate version.
func (r *Repository) InsertRecords(ctx context.Context, records []models.ScrapedRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.DB(ctx).CreateInBatches(records, insertBatchSize).Error
}

// PruneBefore drops every version older than keepFrom.
func (r *Repository) PruneBefore(ctx context.Context, keepFrom int64) (int64, error) {
	res := r.DB(ctx).Where("snapshot_version < ?", keepFrom).Delete(&models.ScrapedRecord{})
	return res.RowsAffected, res.Error
}

// DeleteVersion removes the rows of one version. Used to discard a candidate.
func (r *Repository) DeleteVersion(ctx context.Context, version int64) error {
	return r.DB(ctx).Where("snapshot_version = ?", version).Delete(&models.ScrapedRecord{}).Error
}

// CreateRun records a run.
func (r *Repository) CreateRun(ctx context.Context, run *models.SnapshotRun) error {
	return r.DB(ctx).Create(run).Error
}

// FinishRun records the outcome of a run.
func (r *Repository) FinishRun(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if _, ok := updates["finished_at"]; !ok {
		updates["finished_at"] = time.Now().UTC()
	}
	return r.DB(ctx).Model(&models.SnapshotRun{}).Where("id = ?", id).Updates(updates).Error
}

// SetArchiveURI stores where a committed snapshot was archived.
func (r *Repository) SetArchiveURI(ctx context.Context, id uuid.UUID, uri string) error {
	return r.DB(ctx).Model(&models.SnapshotRun{}).Where("id = ?", id).Update("archive_uri", uri).Error
}

// ListRuns returns recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]models.SnapshotRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var runs []models.SnapshotRun
	err := r.DB(ctx).Order("snapshot_version DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
