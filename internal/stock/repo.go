package stock

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/repo"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/pagination"
)

// Repository persists stock entries. Every write is guarded by the row version.
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

// Find returns the live entry for a vehicle, or nil.
func (r *Repository) Find(ctx context.Context, vehicleID string) (*models.StockEntry, error) {
	return repo.FindOptional[models.StockEntry](r.DB(ctx), "vehicle_id = ?", vehicleID)
}

func (r *Repository) Create(ctx context.Context, entry *models.StockEntry) error {
	if entry.Version == 0 {
		entry.Version = 1
	}
	return r.DB(ctx).Create(entry).Error
}

// Update applies updates if entry is still at the version it was read at,
// then advances entry.Version.
func (r *Repository) Update(ctx context.Context, entry *models.StockEntry, updates map[string]any) error {
	if err := repo.UpdateVersioned(r.DB(ctx), &models.StockEntry{}, "vehicle_id", entry.VehicleID, entry.Version, updates); err != nil {
		return err
	}
	entry.Version++
	return nil
}

func (r *Repository) Delete(ctx context.Context, entry *models.StockEntry) error {
	return repo.DeleteVersioned(r.DB(ctx), &models.StockEntry{}, "vehicle_id", entry.VehicleID, entry.Version)
}

// ListQuery filters the stock listing. Nil filters are ignored.
type ListQuery struct {
	Limit     int
	Cursor    *pagination.Cursor
	Available *bool
	Sold      *bool
	Received  *bool
}

// List pages through stock ordered by vehicle id.
func (r *Repository) List(ctx context.Context, params ListQuery) ([]models.StockEntry, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.DB(ctx).Model(&models.StockEntry{})
	if params.Available != nil {
		query = query.Where("available = ?", *params.Available)
	}
	if params.Sold != nil {
		query = query.Where("sold = ?", *params.Sold)
	}
	if params.Received != nil {
		if *params.Received {
			query = query.Where("received_at IS NOT NULL")
		} else {
			query = query.Where("received_at IS NULL")
		}
	}
	if params.Cursor != nil {
		query = query.Where("vehicle_id > ?", params.Cursor.Key)
	}

	var entries []models.StockEntry
	if err := query.Order("vehicle_id ASC").Limit(pagination.LimitWithBuffer(limit)).Find(&entries).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Split(entries, limit, func(e models.StockEntry) pagination.Cursor {
		return pagination.Cursor{Key: e.VehicleID}
	})
	return page, next, nil
}
