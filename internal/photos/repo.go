package photos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/repo"
	"github.com/angelmondragon/vehiclesync-backend/internal/snapshots"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
)

// Repository persists photo records and answers the workload queries the
// balancer and statistics need.
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

func (r *Repository) Find(ctx context.Context, vehicleID string) (*models.PhotoRecord, error) {
	return repo.FindOptional[models.PhotoRecord](r.DB(ctx), "vehicle_id = ?", vehicleID)
}

func (r *Repository) Create(ctx context.Context, record *models.PhotoRecord) error {
	if record.Version == 0 {
		record.Version = 1
	}
	return r.DB(ctx).Create(record).Error
}

// Update applies updates at the record's read version and advances it.
func (r *Repository) Update(ctx context.Context, record *models.PhotoRecord, updates map[string]any) error {
	if err := repo.UpdateVersioned(r.DB(ctx), &models.PhotoRecord{}, "vehicle_id", record.VehicleID, record.Version, updates); err != nil {
		return err
	}
	record.Version++
	return nil
}

// pending selects photo jobs still to be shot: not completed, not sold, still
// in stock, and not reserved in the committed snapshot.
func (r *Repository) pending(ctx context.Context) (*gorm.DB, error) {
	version, _, err := snapshots.NewRepository(r.DB(ctx)).CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	return r.DB(ctx).
		Model(&models.PhotoRecord{}).
		Joins("JOIN stock_entries se ON se.vehicle_id = photo_records.vehicle_id").
		Joins("LEFT JOIN scraped_records sr ON sr.vehicle_id = photo_records.vehicle_id AND sr.snapshot_version = ?", version).
		Where("photo_records.completed = ? AND photo_records.sold = ? AND se.sold = ?", false, false, false).
		Where("(sr.reserved IS NULL OR sr.reserved = ?)", false), nil
}

// ListPending returns the queue oldest first.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]models.PhotoRecord, error) {
	query, err := r.pending(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.PhotoRecord
	err = query.Order("photo_records.created_at ASC").Order("photo_records.vehicle_id ASC").Find(&rows).Error
	return rows, err
}

// NextUnassigned returns the oldest pending job nobody holds, or nil.
func (r *Repository) NextUnassigned(ctx context.Context) (*models.PhotoRecord, error) {
	query, err := r.pending(ctx)
	if err != nil {
		return nil, err
	}
	return repo.FindOptional[models.PhotoRecord](
		query.Order("photo_records.created_at ASC").Order("photo_records.vehicle_id ASC"),
		"photo_records.photographer_id IS NULL",
	)
}

// CountPending returns the size of the queue.
func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	query, err := r.pending(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	err = query.Count(&count).Error
	return count, err
}

type userCount struct {
	UserID string
	Total  int64
}

// PendingByPhotographer counts queued jobs currently assigned to each user.
func (r *Repository) PendingByPhotographer(ctx context.Context) (map[string]int64, error) {
	query, err := r.pending(ctx)
	if err != nil {
		return nil, err
	}
	var rows []userCount
	err = query.
		Select("photo_records.photographer_id AS user_id, COUNT(*) AS total").
		Where("photo_records.photographer_id IS NOT NULL").
		Group("photo_records.photographer_id").
		Scan(&rows).Error
	return toMap(rows), err
}

// CompletedByPhotographer counts completed jobs per user. Nil bounds are open.
func (r *Repository) CompletedByPhotographer(ctx context.Context, from, to *time.Time) (map[string]int64, error) {
	query := r.DB(ctx).
		Model(&models.PhotoRecord{}).
		Select("photographer_id AS user_id, COUNT(*) AS total").
		Where("completed = ? AND photographer_id IS NOT NULL", true)
	if from != nil {
		query = query.Where("completed_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("completed_at < ?", *to)
	}
	var rows []userCount
	err := query.Group("photographer_id").Scan(&rows).Error
	return toMap(rows), err
}

// ClearPendingAssignments unassigns every queued job held by the given users.
func (r *Repository) ClearPendingAssignments(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	res := r.DB(ctx).
		Model(&models.PhotoRecord{}).
		Where("completed = ? AND photographer_id IN ?", false, userIDs).
		Updates(map[string]any{
			"photographer_id": nil,
			"assigned_at":     nil,
			"version":         gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

func toMap(rows []userCount) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.UserID] = row.Total
	}
	return out
}
