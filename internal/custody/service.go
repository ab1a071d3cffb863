package custody

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, tx *gorm.DB, events ...reactor.Event) error
}

// Service tracks where each key and document is.
type Service interface {
	RegisterItem(ctx context.Context, input RegisterInput) (*Item, error)
	RecordMovement(ctx context.Context, input MovementInput) (*models.MovementEvent, error)
	Items(ctx context.Context, vehicleID string) ([]Item, error)
	Movements(ctx context.Context, vehicleID string) ([]models.MovementEvent, error)
}

// RegisterInput brings a key or document into custody.
type RegisterInput struct {
	VehicleID string
	Kind      enums.CustodyItemKind
	ItemType  string
	Location  string
	Actor     string
}

// MovementInput moves an item. From must be where the item currently is.
type MovementInput struct {
	ItemID uuid.UUID
	From   string
	To     string
	Actor  string
}

type service struct {
	repo      *Repository
	tx        txRunner
	reactor   dispatcher
	outbox    outbox.Emitter
	locks     vehiclelock.Locker
	recipient string
	now       func() time.Time
}

func NewService(repo *Repository, tx txRunner, reactor dispatcher, emitter outbox.Emitter, locks vehiclelock.Locker, cfg config.CustodyConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("custody repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if reactor == nil {
		return nil, fmt.Errorf("reactor required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if locks == nil {
		return nil, fmt.Errorf("vehicle locker required")
	}
	if strings.TrimSpace(cfg.RecipientLocation) == "" {
		return nil, fmt.Errorf("recipient location required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		reactor:   reactor,
		outbox:    emitter,
		locks:     locks,
		recipient: strings.TrimSpace(cfg.RecipientLocation),
		now:       time.Now,
	}, nil
}

func (s *service) RegisterItem(ctx context.Context, input RegisterInput) (*Item, error) {
	id := lifecycle.NormalizeVehicleID(input.VehicleID)
	itemType := strings.TrimSpace(input.ItemType)
	location := strings.TrimSpace(input.Location)
	if id == "" || itemType == "" || location == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id, item type and location are required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid custody item kind").
			WithDetails(map[string]any{"kind": string(input.Kind)})
	}
	actor := actorOrSystem(input.Actor)
	var item *Item
	err := vehiclelock.With(ctx, s.locks, id, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.repo.WithTx(tx)
			existing, err := records.FindByType(ctx, input.Kind, id, itemType)
			if err != nil {
				return err
			}
			if existing != nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "custody item already registered").
					WithDetails(map[string]any{"vehicle_id": id, "item_type": itemType, "item_id": existing.ID.String()})
			}
			item = &Item{
				Kind:      input.Kind,
				VehicleID: id,
				ItemType:  itemType,
				Status:    s.statusAt(location),
				Location:  location,
			}
			if err := records.CreateItem(ctx, item); err != nil {
				return err
			}
			_, err = s.append(ctx, tx, records, item, "", enums.MovementIntake, actor)
			return err
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "register custody item")
	}
	return item, nil
}

// RecordMovement appends a movement and relocates the item. A movement to the
// recipient is a delivery and may resolve open incidents of the same type.
func (s *service) RecordMovement(ctx context.Context, input MovementInput) (*models.MovementEvent, error) {
	from := strings.TrimSpace(input.From)
	to := strings.TrimSpace(input.To)
	if to == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination is required")
	}
	if from == to {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin and destination must differ")
	}
	item, err := s.repo.FindItem(ctx, input.ItemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load custody item")
	}
	if item == nil {
		return nil, itemNotFound(input.ItemID)
	}
	actor := actorOrSystem(input.Actor)
	var movement *models.MovementEvent
	err = vehiclelock.With(ctx, s.locks, item.VehicleID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.repo.WithTx(tx)
			current, err := records.FindItem(ctx, input.ItemID)
			if err != nil {
				return err
			}
			if current == nil {
				return itemNotFound(input.ItemID)
			}
			if current.Location != from {
				return pkgerrors.New(pkgerrors.CodeConflict, "item is not at the stated origin").
					WithDetails(map[string]any{"item_id": current.ID.String(), "from": from, "location": current.Location})
			}
			movementType := enums.MovementTransfer
			if to == s.recipient {
				movementType = enums.MovementDeliveredToRecipient
			}
			if err := records.Move(ctx, current, to, s.statusAt(to)); err != nil {
				return err
			}
			movement, err = s.append(ctx, tx, records, current, from, movementType, actor)
			if err != nil {
				return err
			}
			if movementType != enums.MovementDeliveredToRecipient {
				return nil
			}
			return s.reactor.Dispatch(ctx, tx, reactor.Event{
				Type:      reactor.EventCustodyDelivered,
				VehicleID: current.VehicleID,
				Actor:     actor,
				At:        movement.OccurredAt,
				Movement:  movement,
			})
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "record custody movement")
	}
	return movement, nil
}

func (s *service) Items(ctx context.Context, vehicleID string) ([]Item, error) {
	items, err := s.repo.ListItems(ctx, lifecycle.NormalizeVehicleID(vehicleID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list custody items")
	}
	return items, nil
}

func (s *service) Movements(ctx context.Context, vehicleID string) ([]models.MovementEvent, error) {
	movements, err := s.repo.ListMovements(ctx, lifecycle.NormalizeVehicleID(vehicleID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return movements, nil
}

func (s *service) append(ctx context.Context, tx *gorm.DB, records *Repository, item *Item, from string, movementType enums.MovementType, actor string) (*models.MovementEvent, error) {
	movement := &models.MovementEvent{
		VehicleID:    item.VehicleID,
		EntityType:   item.Kind,
		EntityID:     item.ID,
		ItemType:     item.ItemType,
		MovementType: movementType,
		FromLocation: from,
		ToLocation:   item.Location,
		Actor:        actor,
		OccurredAt:   s.now().UTC(),
	}
	if err := records.AppendMovement(ctx, movement); err != nil {
		return nil, err
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCustodyMoved,
		AggregateType: enums.AggregateCustodyItem,
		AggregateID:   item.ID.String(),
		Actor:         actor,
		OccurredAt:    movement.OccurredAt,
		Data: payloads.CustodyMovedEvent{
			MovementID:   movement.ID,
			ItemID:       item.ID,
			Kind:         item.Kind,
			ItemType:     item.ItemType,
			VehicleID:    item.VehicleID,
			FromLocation: from,
			ToLocation:   item.Location,
			MovementType: movementType,
		},
	})
	return movement, err
}

func (s *service) statusAt(location string) enums.CustodyItemStatus {
	if location == s.recipient {
		return enums.CustodyStatusDelivered
	}
	return enums.CustodyStatusStored
}

func itemNotFound(itemID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "custody item not found").
		WithDetails(map[string]any{"item_id": itemID.String()})
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return outbox.SystemActor
	}
	return strings.TrimSpace(actor)
}
