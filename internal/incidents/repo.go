package incidents

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
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

// Append inserts an incident row. Rows are never updated afterwards.
func (r *Repository) Append(ctx context.Context, record *models.IncidentRecord) error {
	return r.DB(ctx).Create(record).Error
}

// ListByDelivery returns the incident history of a delivery, oldest first.
func (r *Repository) ListByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]models.IncidentRecord, error) {
	var records []models.IncidentRecord
	err := r.DB(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&records).Error
	return records, err
}

func (r *Repository) FindDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryRecord, error) {
	return repo.FindOptional[models.DeliveryRecord](r.DB(ctx), "id = ?", deliveryID)
}

// DeliveriesWithIncidents lists the vehicle's deliveries that still carry open incidents.
func (r *Repository) DeliveriesWithIncidents(ctx context.Context, vehicleID string) ([]models.DeliveryRecord, error) {
	var deliveries []models.DeliveryRecord
	err := r.DB(ctx).
		Where("vehicle_id = ? AND has_incidents = ?", vehicleID, true).
		Order("created_at ASC").
		Find(&deliveries).Error
	return deliveries, err
}

// SetOpenTypes rewrites the delivery's open incident set and its aggregate flag.
func (r *Repository) SetOpenTypes(ctx context.Context, delivery *models.DeliveryRecord, open []string) error {
	set := datatypes.JSONSlice[string](open)
	if err := repo.UpdateVersioned(r.DB(ctx), &models.DeliveryRecord{}, "id", delivery.ID, delivery.Version, map[string]any{
		"open_incident_types": set,
		"has_incidents":       len(open) > 0,
	}); err != nil {
		return err
	}
	delivery.OpenIncidentTypes = set
	delivery.HasIncidents = len(open) > 0
	delivery.Version++
	return nil
}
