package sales

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

func (r *Repository) Find(ctx context.Context, saleID uuid.UUID) (*models.SaleRecord, error) {
	return repo.FindOptional[models.SaleRecord](r.DB(ctx), "id = ?", saleID)
}

func (r *Repository) Create(ctx context.Context, sale *models.SaleRecord) error {
	if sale.Version == 0 {
		sale.Version = 1
	}
	return r.DB(ctx).Create(sale).Error
}

// Update applies updates at the sale's read version and advances it.
func (r *Repository) Update(ctx context.Context, sale *models.SaleRecord, updates map[string]any) error {
	if err := repo.UpdateVersioned(r.DB(ctx), &models.SaleRecord{}, "id", sale.ID, sale.Version, updates); err != nil {
		return err
	}
	sale.Version++
	return nil
}

func (r *Repository) Delete(ctx context.Context, sale *models.SaleRecord) error {
	return repo.DeleteVersioned(r.DB(ctx), &models.SaleRecord{}, "id", sale.ID, sale.Version)
}

// CreateOrder inserts the immutable validation copy.
func (r *Repository) CreateOrder(ctx context.Context, order *models.ValidatedOrder) error {
	return r.DB(ctx).Create(order).Error
}

func (r *Repository) FindOrderBySale(ctx context.Context, saleID uuid.UUID) (*models.ValidatedOrder, error) {
	return repo.FindOptional[models.ValidatedOrder](r.DB(ctx), "sale_id = ?", saleID)
}
