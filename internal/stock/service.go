package stock

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, tx *gorm.DB, events ...reactor.Event) error
}

// Service exposes stock queries and the operator mutations owned by stock.
type Service interface {
	Get(ctx context.Context, vehicleID string) (*models.StockEntry, error)
	List(ctx context.Context, params ListQuery) (*ListResult, error)
	MarkReceived(ctx context.Context, input MarkReceivedInput) (*models.StockEntry, error)
	SetBodyReadiness(ctx context.Context, input BodyReadinessInput) (*models.StockEntry, error)
}

// ListResult is one page of stock.
type ListResult struct {
	Items      []models.StockEntry `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// MarkReceivedInput is a manual intake confirmation.
type MarkReceivedInput struct {
	VehicleID string
	Actor     string
}

// BodyReadinessInput flips the body-readiness flag.
type BodyReadinessInput struct {
	VehicleID string
	Ready     bool
	Actor     string
}

type service struct {
	repo    *Repository
	tx      txRunner
	reactor dispatcher
	locks   vehiclelock.Locker
	now     func() time.Time
}

// NewService builds the stock service.
func NewService(repo *Repository, tx txRunner, reactor dispatcher, locks vehiclelock.Locker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if reactor == nil {
		return nil, fmt.Errorf("reactor required")
	}
	if locks == nil {
		return nil, fmt.Errorf("vehicle locker required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		reactor: reactor,
		locks:   locks,
		now:     time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, vehicleID string) (*models.StockEntry, error) {
	entry, err := s.repo.Find(ctx, lifecycle.NormalizeVehicleID(vehicleID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not in stock")
	}
	return entry, nil
}

func (s *service) List(ctx context.Context, params ListQuery) (*ListResult, error) {
	entries, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock")
	}
	result := &ListResult{Items: entries}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// MarkReceived records a physical intake at the current time. Photography is
// marked complete only when the listing already carries photo references.
func (s *service) MarkReceived(ctx context.Context, input MarkReceivedInput) (*models.StockEntry, error) {
	id := lifecycle.NormalizeVehicleID(input.VehicleID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id is required")
	}
	var result *models.StockEntry
	err := vehiclelock.With(ctx, s.locks, id, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			facts, err := lifecycle.LoadFacts(ctx, tx, id)
			if err != nil {
				return err
			}
			if state, known := lifecycle.Derive(facts); known {
				if facts.Retired() || (facts.Stock != nil && facts.Stock.IsReceived()) {
					return lifecycle.Disallowed(id, lifecycle.ActionMarkReceived, state)
				}
			}

			repo := s.repo.WithTx(tx)
			if facts.Stock == nil {
				entry := &models.StockEntry{
					VehicleID:  id,
					Powertrain: enums.PowertrainUnknown,
					Source:     models.StockSourceIntake,
					Sold:       facts.Sale != nil,
				}
				if facts.Scraped != nil {
					entry.Powertrain = facts.Scraped.Powertrain
				}
				if err := repo.Create(ctx, entry); err != nil {
					return err
				}
			}

			event := reactor.Event{
				Type:          reactor.EventVehicleReceived,
				VehicleID:     id,
				Actor:         input.Actor,
				At:            s.now().UTC(),
				PhotosPresent: facts.Scraped != nil && facts.Scraped.HasPhotos(),
			}
			if err := s.reactor.Dispatch(ctx, tx, event); err != nil {
				return err
			}
			result, err = repo.Find(ctx, id)
			return err
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "mark received")
	}
	return result, nil
}

// SetBodyReadiness updates the flag and lets the reactor mirror it to photography.
func (s *service) SetBodyReadiness(ctx context.Context, input BodyReadinessInput) (*models.StockEntry, error) {
	id := lifecycle.NormalizeVehicleID(input.VehicleID)
	var result *models.StockEntry
	err := vehiclelock.With(ctx, s.locks, id, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			entry, err := repo.Find(ctx, id)
			if err != nil {
				return err
			}
			if entry == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not in stock").
					WithDetails(map[string]any{"vehicle_id": id})
			}
			result = entry
			if entry.BodyReady == input.Ready {
				return nil
			}
			if err := repo.Update(ctx, entry, map[string]any{"body_ready": input.Ready}); err != nil {
				return err
			}
			entry.BodyReady = input.Ready
			return s.reactor.Dispatch(ctx, tx, reactor.Event{
				Type:      reactor.EventBodyReadinessChanged,
				VehicleID: id,
				Actor:     input.Actor,
				At:        s.now().UTC(),
				BodyReady: input.Ready,
			})
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "set body readiness")
	}
	return result, nil
}
