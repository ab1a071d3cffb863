package photographers

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

const fullShare = 100

// AllocationInput is the desired state of one photographer's share.
type AllocationInput struct {
	UserID      string `json:"user_id" validate:"required"`
	DisplayName string `json:"display_name"`
	Percentage  int    `json:"percentage" validate:"min=0,max=100"`
	Active      bool   `json:"active"`
	Hidden      bool   `json:"hidden"`
	Locked      bool   `json:"locked"`
}

func (in AllocationInput) validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if in.Percentage < 0 || in.Percentage > fullShare {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage must be between 0 and 100").
			WithDetails(map[string]any{"user_id": in.UserID, "percentage": in.Percentage})
	}
	return nil
}

func (in AllocationInput) row() models.PhotographerAllocation {
	return models.PhotographerAllocation{
		UserID:      strings.TrimSpace(in.UserID),
		DisplayName: strings.TrimSpace(in.DisplayName),
		Percentage:  in.Percentage,
		Active:      in.Active,
		Hidden:      in.Hidden,
		Locked:      in.Locked,
	}
}

// checkSum enforces the persisted law: active, visible shares add up to 100.
// A table with no counting rows is accepted.
func checkSum(rows []models.PhotographerAllocation) error {
	sum, counted := 0, 0
	for _, row := range rows {
		if row.Counts() {
			sum += row.Percentage
			counted++
		}
	}
	if counted == 0 || sum == fullShare {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "active allocations must sum to 100").
		WithDetails(map[string]any{"sum": sum})
}

func (s *service) ListAllocations(ctx context.Context) ([]models.PhotographerAllocation, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list allocations")
	}
	return rows, nil
}

// SetAllocation saves one row. The write is rejected unless the resulting
// table still satisfies the sum law.
func (s *service) SetAllocation(ctx context.Context, input AllocationInput) ([]models.PhotographerAllocation, error) {
	return s.SetAllocations(ctx, []AllocationInput{input})
}

// SetAllocations saves a batch and validates the sum once, after all rows.
func (s *service) SetAllocations(ctx context.Context, inputs []AllocationInput) ([]models.PhotographerAllocation, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one allocation is required")
	}
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if err := in.validate(); err != nil {
			return nil, err
		}
		key := strings.TrimSpace(in.UserID)
		if _, dup := seen[key]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate user in allocation batch").
				WithDetails(map[string]any{"user_id": key})
		}
		seen[key] = struct{}{}
	}
	var rows []models.PhotographerAllocation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		records := s.repo.WithTx(tx)
		for _, in := range inputs {
			next := in.row()
			existing, err := records.Find(ctx, next.UserID)
			if err != nil {
				return err
			}
			if err := records.Save(ctx, existing, next); err != nil {
				return err
			}
		}
		var err error
		if rows, err = records.List(ctx); err != nil {
			return err
		}
		return checkSum(rows)
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "save allocations")
	}
	return rows, nil
}

// DistributeEqually splits whatever locked rows leave over evenly across the
// unlocked active, visible rows. Remainder points go to the first rows by
// user id.
func (s *service) DistributeEqually(ctx context.Context) ([]models.PhotographerAllocation, error) {
	var rows []models.PhotographerAllocation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		records := s.repo.WithTx(tx)
		var err error
		if rows, err = records.List(ctx); err != nil {
			return err
		}
		shares, err := equalShares(rows)
		if err != nil {
			return err
		}
		for i := range rows {
			share, ok := shares[rows[i].UserID]
			if !ok || rows[i].Percentage == share {
				continue
			}
			if err := records.SetPercentage(ctx, &rows[i], share); err != nil {
				return err
			}
		}
		return checkSum(rows)
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "distribute allocations")
	}
	return rows, nil
}

// equalShares computes the new percentage of every unlocked counting row.
// rows must be ordered by user id.
func equalShares(rows []models.PhotographerAllocation) (map[string]int, error) {
	locked := 0
	var unlocked []string
	for _, row := range rows {
		if !row.Counts() {
			continue
		}
		if row.Locked {
			locked += row.Percentage
			continue
		}
		unlocked = append(unlocked, row.UserID)
	}
	available := fullShare - locked
	if available < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "locked allocations exceed 100").
			WithDetails(map[string]any{"locked": locked})
	}
	if len(unlocked) == 0 {
		if available != 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no unlocked photographer to distribute to").
				WithDetails(map[string]any{"available": available})
		}
		return map[string]int{}, nil
	}
	base := available / len(unlocked)
	remainder := available % len(unlocked)
	shares := make(map[string]int, len(unlocked))
	for i, userID := range unlocked {
		shares[userID] = base
		if i < remainder {
			shares[userID]++
		}
	}
	return shares, nil
}
