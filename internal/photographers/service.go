package photographers

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/photos"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages photographer shares and spreads photo jobs by them.
type Service interface {
	ListAllocations(ctx context.Context) ([]models.PhotographerAllocation, error)
	SetAllocation(ctx context.Context, input AllocationInput) ([]models.PhotographerAllocation, error)
	SetAllocations(ctx context.Context, inputs []AllocationInput) ([]models.PhotographerAllocation, error)
	DistributeEqually(ctx context.Context) ([]models.PhotographerAllocation, error)
	Rebalance(ctx context.Context, reassign bool) (*RebalanceResult, error)
	Stats(ctx context.Context, from, to *time.Time) ([]Stats, error)
}

// ServiceParams wires the photographer service.
type ServiceParams struct {
	Repo   *Repository
	Photos *photos.Repository
	Tx     txRunner
	Locks  vehiclelock.Locker
	Outbox outbox.Emitter
	Logger *logger.Logger
	// Window is how far back completed jobs count toward a photographer's share.
	Window time.Duration
}

type service struct {
	repo   *Repository
	photos *photos.Repository
	tx     txRunner
	locks  vehiclelock.Locker
	outbox outbox.Emitter
	logg   *logger.Logger
	window time.Duration
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("allocation repository required")
	case params.Photos == nil:
		return nil, fmt.Errorf("photo repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Locks == nil:
		return nil, fmt.Errorf("vehicle locker required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repo,
		photos: params.Photos,
		tx:     params.Tx,
		locks:  params.Locks,
		outbox: params.Outbox,
		logg:   params.Logger,
		window: params.Window,
		now:    time.Now,
	}, nil
}
