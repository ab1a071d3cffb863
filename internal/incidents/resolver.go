package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/payloads"
)

// Resolver maintains a delivery's open incident set. All methods run inside
// the caller's transaction.
type Resolver struct {
	outbox outbox.Emitter
	now    func() time.Time
}

func NewResolver(emitter outbox.Emitter) (*Resolver, error) {
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Resolver{outbox: emitter, now: time.Now}, nil
}

// Open adds incidentTypes to the delivery's open set, appending one open row
// per type. Types already open are skipped.
func (r *Resolver) Open(ctx context.Context, tx *gorm.DB, delivery *models.DeliveryRecord, source enums.IncidentSource, actor string, incidentTypes ...string) ([]models.IncidentRecord, error) {
	records := NewRepository(tx)
	open := append([]string{}, delivery.OpenIncidentTypes...)
	var opened []models.IncidentRecord
	for _, raw := range incidentTypes {
		incidentType := strings.TrimSpace(raw)
		if incidentType == "" || contains(open, incidentType) {
			continue
		}
		record := models.IncidentRecord{
			DeliveryID: delivery.ID,
			VehicleID:  delivery.VehicleID,
			Type:       incidentType,
			Status:     enums.IncidentStatusOpen,
			Source:     source,
			Actor:      actorOrSystem(actor),
			CreatedAt:  r.now().UTC(),
		}
		if err := records.Append(ctx, &record); err != nil {
			return nil, err
		}
		open = append(open, incidentType)
		opened = append(opened, record)
	}
	if len(opened) == 0 {
		return nil, nil
	}
	if err := records.SetOpenTypes(ctx, delivery, open); err != nil {
		return nil, err
	}
	for _, record := range opened {
		if err := r.emit(ctx, tx, enums.EventIncidentOpened, record, open); err != nil {
			return nil, err
		}
	}
	return opened, nil
}

// ResolveMovement retires the open incident whose type exactly equals the
// moved item's type, on every delivery of the vehicle that has it open.
// A movement matching nothing is a no-op.
func (r *Resolver) ResolveMovement(ctx context.Context, tx *gorm.DB, movement *models.MovementEvent) ([]models.IncidentRecord, error) {
	records := NewRepository(tx)
	deliveries, err := records.DeliveriesWithIncidents(ctx, movement.VehicleID)
	if err != nil {
		return nil, err
	}
	var resolved []models.IncidentRecord
	for i := range deliveries {
		delivery := &deliveries[i]
		if !delivery.HasOpenIncident(movement.ItemType) {
			continue
		}
		remaining := make([]string, 0, len(delivery.OpenIncidentTypes))
		for _, open := range delivery.OpenIncidentTypes {
			if open != movement.ItemType {
				remaining = append(remaining, open)
			}
		}
		if err := records.SetOpenTypes(ctx, delivery, remaining); err != nil {
			return nil, err
		}
		now := r.now().UTC()
		movementID := movement.ID
		record := models.IncidentRecord{
			DeliveryID:           delivery.ID,
			VehicleID:            delivery.VehicleID,
			Type:                 movement.ItemType,
			Status:               enums.IncidentStatusResolved,
			Source:               enums.IncidentSourceMovement,
			Resolved:             true,
			ResolvedAt:           &now,
			ResolvedByMovementID: &movementID,
			Actor:                actorOrSystem(movement.Actor),
			CreatedAt:            now,
		}
		if err := records.Append(ctx, &record); err != nil {
			return nil, err
		}
		if err := r.emit(ctx, tx, enums.EventIncidentResolved, record, remaining); err != nil {
			return nil, err
		}
		resolved = append(resolved, record)
	}
	return resolved, nil
}

func (r *Resolver) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, record models.IncidentRecord, remaining []string) error {
	return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   record.DeliveryID.String(),
		Actor:         record.Actor,
		OccurredAt:    record.CreatedAt,
		Data: payloads.IncidentEvent{
			IncidentID: record.ID,
			DeliveryID: record.DeliveryID,
			VehicleID:  record.VehicleID,
			Type:       record.Type,
			Remaining:  append([]string{}, remaining...),
		},
	})
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return outbox.SystemActor
	}
	return strings.TrimSpace(actor)
}
