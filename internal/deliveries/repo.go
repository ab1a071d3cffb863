package deliveries

import (
	"context"

	"github.com/google/uuid"
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

func (r *Repository) Find(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryRecord, error) {
	return repo.FindOptional[models.DeliveryRecord](r.DB(ctx), "id = ?", deliveryID)
}

func (r *Repository) FindBySale(ctx context.Context, saleID uuid.UUID) (*models.DeliveryRecord, error) {
	return repo.FindOptional[models.DeliveryRecord](r.DB(ctx), "sale_id = ?", saleID)
}

func (r *Repository) FindSale(ctx context.Context, saleID uuid.UUID) (*models.SaleRecord, error) {
	return repo.FindOptional[models.SaleRecord](r.DB(ctx), "id = ?", saleID)
}

func (r *Repository) Create(ctx context.Context, delivery *models.DeliveryRecord) error {
	if delivery.Version == 0 {
		delivery.Version = 1
	}
	return r.DB(ctx).Create(delivery).Error
}

// Update applies updates at the delivery's read version and advances it.
func (r *Repository) Update(ctx context.Context, delivery *models.DeliveryRecord, updates map[string]any) error {
	if err := repo.UpdateVersioned(r.DB(ctx), &models.DeliveryRecord{}, "id", delivery.ID, delivery.Version, updates); err != nil {
		return err
	}
	delivery.Version++
	return nil
}

// ItemLocations maps every custody item type of the vehicle, keys and
// documents alike, to its current location.
func (r *Repository) ItemLocations(ctx context.Context, vehicleID string) (map[string]string, error) {
	type row struct {
		ItemType string
		Location string
	}
	var keys, documents []row
	if err := r.DB(ctx).Model(&models.KeyRecord{}).
		Select("item_type, location").
		Where("vehicle_id = ?", vehicleID).
		Scan(&keys).Error; err != nil {
		return nil, err
	}
	if err := r.DB(ctx).Model(&models.DocumentRecord{}).
		Select("item_type, location").
		Where("vehicle_id = ?", vehicleID).
		Scan(&documents).Error; err != nil {
		return nil, err
	}
	locations := make(map[string]string, len(keys)+len(documents))
	for _, item := range append(keys, documents...) {
		locations[item.ItemType] = item.Location
	}
	return locations, nil
}
