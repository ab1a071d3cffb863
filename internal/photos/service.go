package photos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/repo"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the photography workflow.
type Service interface {
	Pending(ctx context.Context, limit int) ([]models.PhotoRecord, error)
	Assign(ctx context.Context, input AssignInput) (*models.PhotoRecord, error)
	Complete(ctx context.Context, input CompleteInput) (*models.PhotoRecord, error)
	ReportError(ctx context.Context, vehicleID string) (*models.PhotoRecord, error)
}

// AssignInput hands a pending job to a photographer.
type AssignInput struct {
	VehicleID string
	UserID    string
}

// CompleteInput closes a job. UserID is credited with the completion.
type CompleteInput struct {
	VehicleID string
	UserID    string
}

type service struct {
	repo  *Repository
	tx    txRunner
	locks vehiclelock.Locker
	now   func() time.Time
}

// NewService builds the photography service.
func NewService(repo *Repository, tx txRunner, locks vehiclelock.Locker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("photo repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if locks == nil {
		return nil, fmt.Errorf("vehicle locker required")
	}
	return &service{repo: repo, tx: tx, locks: locks, now: time.Now}, nil
}

func (s *service) Pending(ctx context.Context, limit int) ([]models.PhotoRecord, error) {
	rows, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending photos")
	}
	return rows, nil
}

func (s *service) Assign(ctx context.Context, input AssignInput) (*models.PhotoRecord, error) {
	if input.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.mutate(ctx, input.VehicleID, "assign photographer", func(ctx context.Context, tx *gorm.DB, records *Repository, record *models.PhotoRecord) error {
		if record.Completed || record.Sold {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "photo job is not pending").
				WithDetails(map[string]any{"vehicle_id": record.VehicleID})
		}
		if err := requireActivePhotographer(tx, input.UserID); err != nil {
			return err
		}
		now := s.now().UTC()
		if err := records.Update(ctx, record, map[string]any{
			"photographer_id": input.UserID,
			"assigned_at":     now,
		}); err != nil {
			return err
		}
		record.PhotographerID = &input.UserID
		record.AssignedAt = &now
		return nil
	})
}

func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.PhotoRecord, error) {
	return s.mutate(ctx, input.VehicleID, "complete photography", func(ctx context.Context, tx *gorm.DB, records *Repository, record *models.PhotoRecord) error {
		if record.Completed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "photography already completed").
				WithDetails(map[string]any{"vehicle_id": record.VehicleID})
		}
		userID := input.UserID
		if userID == "" && record.PhotographerID != nil {
			userID = *record.PhotographerID
		}
		if userID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "photographer is required to complete a job")
		}
		now := s.now().UTC()
		updates := map[string]any{
			"completed":       true,
			"completed_at":    now,
			"photographer_id": userID,
		}
		if record.AssignedAt == nil {
			updates["assigned_at"] = now
			record.AssignedAt = &now
		}
		if err := records.Update(ctx, record, updates); err != nil {
			return err
		}
		record.Completed = true
		record.CompletedAt = &now
		record.PhotographerID = &userID
		return nil
	})
}

// ReportError counts a failed shoot and sends a completed job back to the queue.
func (s *service) ReportError(ctx context.Context, vehicleID string) (*models.PhotoRecord, error) {
	return s.mutate(ctx, vehicleID, "report photo error", func(ctx context.Context, tx *gorm.DB, records *Repository, record *models.PhotoRecord) error {
		updates := map[string]any{
			"error_count":  record.ErrorCount + 1,
			"completed":    false,
			"completed_at": nil,
		}
		if err := records.Update(ctx, record, updates); err != nil {
			return err
		}
		record.ErrorCount++
		record.Completed = false
		record.CompletedAt = nil
		return nil
	})
}

func (s *service) mutate(ctx context.Context, vehicleID, op string, fn func(ctx context.Context, tx *gorm.DB, records *Repository, record *models.PhotoRecord) error) (*models.PhotoRecord, error) {
	id := lifecycle.NormalizeVehicleID(vehicleID)
	var result *models.PhotoRecord
	err := vehiclelock.With(ctx, s.locks, id, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.repo.WithTx(tx)
			record, err := records.Find(ctx, id)
			if err != nil {
				return err
			}
			if record == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "photo record not found").
					WithDetails(map[string]any{"vehicle_id": id})
			}
			if err := fn(ctx, tx, records, record); err != nil {
				return err
			}
			result = record
			return nil
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, op)
	}
	return result, nil
}

func requireActivePhotographer(tx *gorm.DB, userID string) error {
	allocation, err := repo.FindOptional[models.PhotographerAllocation](tx, "user_id = ?", userID)
	if err != nil {
		return err
	}
	if allocation == nil || !allocation.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "photographer is not active").
			WithDetails(map[string]any{"user_id": userID})
	}
	return nil
}
