package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

type batteryMonitor interface {
	Monitor(ctx context.Context) (int, error)
}

type BatteryMonitorJobParams struct {
	Logger  *logger.Logger
	Battery batteryMonitor
}

// NewBatteryMonitorJob raises charge alerts for stale batteries.
func NewBatteryMonitorJob(params BatteryMonitorJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Battery == nil {
		return nil, fmt.Errorf("battery service required")
	}
	return &batteryMonitorJob{logg: params.Logger, battery: params.Battery}, nil
}

type batteryMonitorJob struct {
	logg    *logger.Logger
	battery batteryMonitor
}

func (j *batteryMonitorJob) Name() string { return "battery-monitor" }

func (j *batteryMonitorJob) Run(ctx context.Context) error {
	flagged, err := j.battery.Monitor(ctx)
	j.logg.Info(j.logg.WithField(ctx, "flagged", flagged), "battery monitor pass complete")
	return err
}
