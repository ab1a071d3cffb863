package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/vehiclesync-backend/internal/photographers"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

type rebalancer interface {
	Rebalance(ctx context.Context, reassign bool) (*photographers.RebalanceResult, error)
}

type PhotoRebalanceJobParams struct {
	Logger   *logger.Logger
	Balancer rebalancer
}

// NewPhotoRebalanceJob hands unassigned photo jobs out by allocation share.
// It never takes work away from a photographer.
func NewPhotoRebalanceJob(params PhotoRebalanceJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Balancer == nil {
		return nil, fmt.Errorf("photographer service required")
	}
	return &photoRebalanceJob{logg: params.Logger, balancer: params.Balancer}, nil
}

type photoRebalanceJob struct {
	logg     *logger.Logger
	balancer rebalancer
}

func (j *photoRebalanceJob) Name() string { return "photo-rebalance" }

func (j *photoRebalanceJob) Run(ctx context.Context) error {
	_, err := j.balancer.Rebalance(ctx, false)
	return err
}
