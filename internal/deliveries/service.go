package deliveries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/incidents"
	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
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

type dispatcher interface {
	Dispatch(ctx context.Context, tx *gorm.DB, events ...reactor.Event) error
}

// Service schedules and completes handovers.
type Service interface {
	Get(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryRecord, error)
	ScheduleDelivery(ctx context.Context, input ScheduleInput) (*models.DeliveryRecord, error)
	CompleteDelivery(ctx context.Context, deliveryID uuid.UUID, actor string) (*models.DeliveryRecord, error)
}

// ScheduleInput books the handover of a validated sale.
type ScheduleInput struct {
	SaleID       uuid.UUID
	ScheduledFor time.Time
	Actor        string
}

// ServiceParams wires the delivery service.
type ServiceParams struct {
	Repo     *Repository
	Tx       txRunner
	Reactor  dispatcher
	Outbox   outbox.Emitter
	Resolver *incidents.Resolver
	Locks    vehiclelock.Locker
	Custody  config.CustodyConfig
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	tx       txRunner
	reactor  dispatcher
	outbox   outbox.Emitter
	resolver *incidents.Resolver
	locks    vehiclelock.Locker
	custody  config.CustodyConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("delivery repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Reactor == nil:
		return nil, fmt.Errorf("reactor required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Resolver == nil:
		return nil, fmt.Errorf("incident resolver required")
	case params.Locks == nil:
		return nil, fmt.Errorf("vehicle locker required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		reactor:  params.Reactor,
		outbox:   params.Outbox,
		resolver: params.Resolver,
		locks:    params.Locks,
		custody:  params.Custody,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, deliveryID uuid.UUID) (*models.DeliveryRecord, error) {
	delivery, err := s.repo.Find(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if delivery == nil {
		return nil, deliveryNotFound(deliveryID)
	}
	return delivery, nil
}

func (s *service) ScheduleDelivery(ctx context.Context, input ScheduleInput) (*models.DeliveryRecord, error) {
	if input.ScheduledFor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery date is required")
	}
	sale, err := s.repo.FindSale(ctx, input.SaleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	if sale == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found").
			WithDetails(map[string]any{"sale_id": input.SaleID.String()})
	}
	actor := actorOrSystem(input.Actor)
	var delivery *models.DeliveryRecord
	err = vehiclelock.With(ctx, s.locks, sale.VehicleID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			facts, err := lifecycle.LoadFacts(ctx, tx, sale.VehicleID)
			if err != nil {
				return err
			}
			if _, err := lifecycle.Guard(facts, lifecycle.ActionScheduleDelivery); err != nil {
				return err
			}
			if facts.Sale == nil || facts.Sale.ID != sale.ID {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "sale is no longer current for the vehicle").
					WithDetails(map[string]any{"sale_id": sale.ID.String(), "vehicle_id": sale.VehicleID})
			}
			delivery = &models.DeliveryRecord{
				SaleID:       sale.ID,
				VehicleID:    sale.VehicleID,
				ScheduledFor: input.ScheduledFor.UTC(),
			}
			if err := s.repo.WithTx(tx).Create(ctx, delivery); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDeliveryScheduled,
				AggregateType: enums.AggregateDelivery,
				AggregateID:   delivery.ID.String(),
				Actor:         actor,
				Data: payloads.DeliveryScheduledEvent{
					DeliveryID:   delivery.ID,
					SaleID:       sale.ID,
					VehicleID:    sale.VehicleID,
					ScheduledFor: delivery.ScheduledFor,
				},
			})
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "schedule delivery")
	}
	return delivery, nil
}

// CompleteDelivery hands the vehicle over. Every required custody item not
// already with the recipient opens an incident on the delivery, and the
// vehicle is retired from stock for good.
func (s *service) CompleteDelivery(ctx context.Context, deliveryID uuid.UUID, actor string) (*models.DeliveryRecord, error) {
	delivery, err := s.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	actor = actorOrSystem(actor)
	var result *models.DeliveryRecord
	err = vehiclelock.With(ctx, s.locks, delivery.VehicleID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.repo.WithTx(tx)
			current, err := records.Find(ctx, deliveryID)
			if err != nil {
				return err
			}
			if current == nil {
				return deliveryNotFound(deliveryID)
			}
			facts, err := lifecycle.LoadFacts(ctx, tx, current.VehicleID)
			if err != nil {
				return err
			}
			if _, err := lifecycle.Guard(facts, lifecycle.ActionCompleteDelivery); err != nil {
				return err
			}
			now := s.now().UTC()
			if err := records.Update(ctx, current, map[string]any{"delivered_at": now}); err != nil {
				return err
			}
			current.DeliveredAt = &now

			missing, err := s.missingItems(ctx, records, current.VehicleID)
			if err != nil {
				return err
			}
			if _, err := s.resolver.Open(ctx, tx, current, enums.IncidentSourceDelivery, actor, missing...); err != nil {
				return err
			}
			if err := s.reactor.Dispatch(ctx, tx, reactor.Event{
				Type:       reactor.EventDeliveryCompleted,
				VehicleID:  current.VehicleID,
				SaleID:     current.SaleID,
				DeliveryID: current.ID,
				Actor:      actor,
				At:         now,
			}); err != nil {
				return err
			}
			if len(missing) > 0 {
				logCtx := s.logg.WithFields(s.logg.WithVehicleID(ctx, current.VehicleID), map[string]any{
					"delivery_id": current.ID.String(),
					"missing":     missing,
				})
				s.logg.Warn(logCtx, "delivery completed with missing items")
			}
			result = current
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDeliveryCompleted,
				AggregateType: enums.AggregateDelivery,
				AggregateID:   current.ID.String(),
				Actor:         actor,
				OccurredAt:    now,
				Data: payloads.DeliveryCompletedEvent{
					DeliveryID:        current.ID,
					SaleID:            current.SaleID,
					VehicleID:         current.VehicleID,
					DeliveredAt:       now,
					OpenIncidentTypes: append([]string{}, current.OpenIncidentTypes...),
				},
			})
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "complete delivery")
	}
	return result, nil
}

func (s *service) missingItems(ctx context.Context, records *Repository, vehicleID string) ([]string, error) {
	locations, err := records.ItemLocations(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, raw := range s.custody.RequiredDeliveryItems {
		itemType := strings.TrimSpace(raw)
		if itemType == "" {
			continue
		}
		if location, ok := locations[itemType]; !ok || location != s.custody.RecipientLocation {
			missing = append(missing, itemType)
		}
	}
	return missing, nil
}

func deliveryNotFound(deliveryID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found").
		WithDetails(map[string]any{"delivery_id": deliveryID.String()})
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return outbox.SystemActor
	}
	return strings.TrimSpace(actor)
}
