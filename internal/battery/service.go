package battery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records charges and watches charge age.
type Service interface {
	RecordCharge(ctx context.Context, input ChargeInput) (*Status, error)
	Status(ctx context.Context, vehicleID string) (*Status, error)
	Monitor(ctx context.Context) (int, error)
}

// ChargeInput is a completed charge. Level is a percentage.
type ChargeInput struct {
	VehicleID string
	Level     int
	Actor     string
}

// Status pairs a battery record with its overlay state.
type Status struct {
	Record  *models.BatteryRecord    `json:"record"`
	Overlay lifecycle.BatteryOverlay `json:"overlay"`
}

type service struct {
	repo   *Repository
	tx     txRunner
	locks  vehiclelock.Locker
	outbox outbox.Emitter
	cfg    config.BatteryConfig
	logg   *logger.Logger
	now    func() time.Time
}

// ServiceParams wires the battery service.
type ServiceParams struct {
	Repo   *Repository
	Tx     txRunner
	Locks  vehiclelock.Locker
	Outbox outbox.Emitter
	Config config.BatteryConfig
	Logger *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("battery repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("vehicle locker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		locks:  params.Locks,
		outbox: params.Outbox,
		cfg:    params.Config,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// RecordCharge resets the charge clock and clears any outstanding alert.
func (s *service) RecordCharge(ctx context.Context, input ChargeInput) (*Status, error) {
	if input.Level < 0 || input.Level > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge level must be between 0 and 100").
			WithDetails(map[string]any{"level": input.Level})
	}
	id := lifecycle.NormalizeVehicleID(input.VehicleID)
	var record *models.BatteryRecord
	err := vehiclelock.With(ctx, s.locks, id, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.repo.WithTx(tx)
			found, err := records.Find(ctx, id)
			if err != nil {
				return err
			}
			if found == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "vehicle has no battery record").
					WithDetails(map[string]any{"vehicle_id": id})
			}
			now := s.now().UTC()
			level := input.Level
			if err := records.Update(ctx, found, map[string]any{
				"charge_level":    level,
				"last_charged_at": now,
				"alerted_at":      nil,
			}); err != nil {
				return err
			}
			found.ChargeLevel = &level
			found.LastChargedAt = &now
			found.AlertedAt = nil
			record = found
			return nil
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "record charge")
	}
	return &Status{Record: record, Overlay: lifecycle.EvaluateBattery(record, s.cfg, s.now().UTC())}, nil
}

func (s *service) Status(ctx context.Context, vehicleID string) (*Status, error) {
	record, err := s.repo.Find(ctx, lifecycle.NormalizeVehicleID(vehicleID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load battery record")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle has no battery record")
	}
	return &Status{Record: record, Overlay: lifecycle.EvaluateBattery(record, s.cfg, s.now().UTC())}, nil
}

// Monitor flags every monitored vehicle whose charge has gone stale and queues
// one alert event per flag. It returns how many vehicles were flagged.
func (s *service) Monitor(ctx context.Context) (int, error) {
	candidates, err := s.repo.ListUnalerted(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list battery records")
	}
	now := s.now().UTC()
	flagged := 0
	var errs error
	for i := range candidates {
		candidate := candidates[i]
		overlay := lifecycle.EvaluateBattery(&candidate, s.cfg, now)
		if overlay.State != enums.BatteryChargeAlert {
			continue
		}
		if err := s.alert(ctx, candidate, overlay, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("vehicle %s: %w", candidate.VehicleID, err))
			continue
		}
		flagged++
	}
	return flagged, errs
}

func (s *service) alert(ctx context.Context, candidate models.BatteryRecord, overlay lifecycle.BatteryOverlay, now time.Time) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, &candidate, map[string]any{"alerted_at": now}); err != nil {
			return err
		}
		logCtx := s.logg.WithVehicleID(ctx, candidate.VehicleID)
		s.logg.Warn(logCtx, "battery charge alert raised")
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBatteryChargeAlert,
			AggregateType: enums.AggregateVehicle,
			AggregateID:   candidate.VehicleID,
			OccurredAt:    now,
			Data: payloads.BatteryChargeAlertEvent{
				VehicleID:      candidate.VehicleID,
				Powertrain:     candidate.Powertrain,
				LastChargedAt:  candidate.LastChargedAt,
				ChargeLevel:    candidate.ChargeLevel,
				ThresholdHours: int(overlay.Threshold.Hours()),
				ElapsedHours:   int(overlay.Elapsed.Hours()),
			},
		})
	})
}
