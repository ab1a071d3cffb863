package photographers

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

// List returns every allocation ordered by user id, the order remainders are
// handed out in.
func (r *Repository) List(ctx context.Context) ([]models.PhotographerAllocation, error) {
	var rows []models.PhotographerAllocation
	err := r.DB(ctx).Order("user_id ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Find(ctx context.Context, userID string) (*models.PhotographerAllocation, error) {
	return repo.FindOptional[models.PhotographerAllocation](r.DB(ctx), "user_id = ?", userID)
}

// Save inserts a new allocation or updates an existing one at its read version.
func (r *Repository) Save(ctx context.Context, existing *models.PhotographerAllocation, next models.PhotographerAllocation) error {
	if existing == nil {
		next.Version = 1
		return r.DB(ctx).Create(&next).Error
	}
	return repo.UpdateVersioned(r.DB(ctx), &models.PhotographerAllocation{}, "user_id", existing.UserID, existing.Version, map[string]any{
		"display_name": next.DisplayName,
		"percentage":   next.Percentage,
		"active":       next.Active,
		"hidden":       next.Hidden,
		"locked":       next.Locked,
	})
}

// SetPercentage changes only the percentage of an existing row.
func (r *Repository) SetPercentage(ctx context.Context, row *models.PhotographerAllocation, percentage int) error {
	if err := repo.UpdateVersioned(r.DB(ctx), &models.PhotographerAllocation{}, "user_id", row.UserID, row.Version, map[string]any{
		"percentage": percentage,
	}); err != nil {
		return err
	}
	row.Percentage = percentage
	row.Version++
	return nil
}
