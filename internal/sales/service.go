package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
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

// Service owns sale records and their validation snapshots.
type Service interface {
	Get(ctx context.Context, saleID uuid.UUID) (*models.SaleRecord, error)
	CreateSale(ctx context.Context, input CreateSaleInput) (*models.SaleRecord, error)
	DeleteSale(ctx context.Context, saleID uuid.UUID, actor string) error
	ValidateSale(ctx context.Context, saleID uuid.UUID, actor string) (*models.ValidatedOrder, error)
}

// CreateSaleInput is a confirmed sale of an in-stock vehicle.
type CreateSaleInput struct {
	VehicleID string
	Customer  string
	Price     decimal.Decimal
	Actor     string
}

type service struct {
	repo    *Repository
	tx      txRunner
	reactor dispatcher
	outbox  outbox.Emitter
	locks   vehiclelock.Locker
	now     func() time.Time
}

// NewService builds the sales service.
func NewService(repo *Repository, tx txRunner, reactor dispatcher, emitter outbox.Emitter, locks vehiclelock.Locker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
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
	return &service{
		repo:    repo,
		tx:      tx,
		reactor: reactor,
		outbox:  emitter,
		locks:   locks,
		now:     time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, saleID uuid.UUID) (*models.SaleRecord, error) {
	sale, err := s.repo.Find(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	if sale == nil {
		return nil, saleNotFound(saleID)
	}
	return sale, nil
}

func (s *service) CreateSale(ctx context.Context, input CreateSaleInput) (*models.SaleRecord, error) {
	id := lifecycle.NormalizeVehicleID(input.VehicleID)
	customer := strings.TrimSpace(input.Customer)
	if id == "" || customer == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id and customer are required")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive").
			WithDetails(map[string]any{"price": input.Price.String()})
	}
	actor := actorOrSystem(input.Actor)

	var sale *models.SaleRecord
	err := vehiclelock.With(ctx, s.locks, id, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			facts, err := lifecycle.LoadFacts(ctx, tx, id)
			if err != nil {
				return err
			}
			if _, err := lifecycle.Guard(facts, lifecycle.ActionCreateSale); err != nil {
				return err
			}
			sale = &models.SaleRecord{
				VehicleID: id,
				Customer:  customer,
				Price:     input.Price,
				CreatedBy: actor,
			}
			if err := s.repo.WithTx(tx).Create(ctx, sale); err != nil {
				return err
			}
			if err := s.reactor.Dispatch(ctx, tx, reactor.Event{
				Type:      reactor.EventSaleCreated,
				VehicleID: id,
				SaleID:    sale.ID,
				Actor:     actor,
				At:        s.now().UTC(),
			}); err != nil {
				return err
			}
			return s.emit(ctx, tx, enums.EventSaleCreated, sale, actor)
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create sale")
	}
	return sale, nil
}

// DeleteSale cancels a sale before delivery. The vehicle returns to unsold;
// any validated order stays as history.
func (s *service) DeleteSale(ctx context.Context, saleID uuid.UUID, actor string) error {
	sale, err := s.Get(ctx, saleID)
	if err != nil {
		return err
	}
	actor = actorOrSystem(actor)
	err = vehiclelock.With(ctx, s.locks, sale.VehicleID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.repo.WithTx(tx)
			current, err := records.Find(ctx, saleID)
			if err != nil {
				return err
			}
			if current == nil {
				return saleNotFound(saleID)
			}
			facts, err := lifecycle.LoadFacts(ctx, tx, current.VehicleID)
			if err != nil {
				return err
			}
			if _, err := lifecycle.Guard(facts, lifecycle.ActionDeleteSale); err != nil {
				return err
			}
			if err := records.Delete(ctx, current); err != nil {
				return err
			}
			if err := s.reactor.Dispatch(ctx, tx, reactor.Event{
				Type:      reactor.EventSaleDeleted,
				VehicleID: current.VehicleID,
				SaleID:    current.ID,
				Actor:     actor,
				At:        s.now().UTC(),
			}); err != nil {
				return err
			}
			return s.emit(ctx, tx, enums.EventSaleDeleted, current, actor)
		})
	})
	return pkgerrors.Ensure(err, pkgerrors.CodeDependency, "delete sale")
}

// ValidateSale freezes the sale into a ValidatedOrder. Validating twice
// returns the original order.
func (s *service) ValidateSale(ctx context.Context, saleID uuid.UUID, actor string) (*models.ValidatedOrder, error) {
	sale, err := s.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	actor = actorOrSystem(actor)
	var order *models.ValidatedOrder
	err = vehiclelock.With(ctx, s.locks, sale.VehicleID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.repo.WithTx(tx)
			current, err := records.Find(ctx, saleID)
			if err != nil {
				return err
			}
			if current == nil {
				return saleNotFound(saleID)
			}
			if current.Validated {
				order, err = records.FindOrderBySale(ctx, saleID)
				if err == nil && order == nil {
					err = pkgerrors.New(pkgerrors.CodeInternal, "validated sale has no order")
				}
				return err
			}
			facts, err := lifecycle.LoadFacts(ctx, tx, current.VehicleID)
			if err != nil {
				return err
			}
			if _, err := lifecycle.Guard(facts, lifecycle.ActionValidateSale); err != nil {
				return err
			}
			now := s.now().UTC()
			if err := records.Update(ctx, current, map[string]any{
				"validated":    true,
				"validated_at": now,
			}); err != nil {
				return err
			}
			order = &models.ValidatedOrder{
				SaleID:        current.ID,
				VehicleID:     current.VehicleID,
				Customer:      current.Customer,
				Price:         current.Price,
				SaleCreatedAt: current.CreatedAt,
				ValidatedBy:   actor,
				ValidatedAt:   now,
			}
			if err := records.CreateOrder(ctx, order); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSaleValidated,
				AggregateType: enums.AggregateSale,
				AggregateID:   current.ID.String(),
				Actor:         actor,
				OccurredAt:    now,
				Data: payloads.SaleValidatedEvent{
					SaleID:      current.ID,
					OrderID:     order.ID,
					VehicleID:   current.VehicleID,
					ValidatedAt: now,
				},
			})
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "validate sale")
	}
	return order, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, sale *models.SaleRecord, actor string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID.String(),
		Actor:         actor,
		Data: payloads.SaleEvent{
			SaleID:    sale.ID,
			VehicleID: sale.VehicleID,
			Customer:  sale.Customer,
			Price:     sale.Price,
		},
	})
}

func saleNotFound(saleID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found").
		WithDetails(map[string]any{"sale_id": saleID.String()})
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return outbox.SystemActor
	}
	return strings.TrimSpace(actor)
}
