package battery

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/repo"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
)

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

func (r *Repository) Find(ctx context.Context, vehicleID string) (*models.BatteryRecord, error) {
	return repo.FindOptional[models.BatteryRecord](r.DB(ctx), "vehicle_id = ?", vehicleID)
}

func (r *Repository) Create(ctx context.Context, record *models.BatteryRecord) error {
	if record.Version == 0 {
		record.Version = 1
	}
	return r.DB(ctx).Create(record).Error
}

// Update applies updates at the record's read version and advances it.
func (r *Repository) Update(ctx context.Context, record *models.BatteryRecord, updates map[string]any) error {
	if err := repo.UpdateVersioned(r.DB(ctx), &models.BatteryRecord{}, "vehicle_id", record.VehicleID, record.Version, updates); err != nil {
		return err
	}
	record.Version++
	return nil
}

// ListUnalerted returns monitored vehicles still in stock that have no
// outstanding charge alert.
func (r *Repository) ListUnalerted(ctx context.Context) ([]models.BatteryRecord, error) {
	var rows []models.BatteryRecord
	err := r.DB(ctx).
		Joins("JOIN stock_entries se ON se.vehicle_id = battery_records.vehicle_id").
		Where("battery_records.alerted_at IS NULL").
		Order("battery_records.vehicle_id ASC").
		Find(&rows).Error
	return rows, err
}
