package incidents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes delivery incidents.
type Service interface {
	ListByDelivery(ctx context.Context, deliveryID uuid.UUID) (*DeliveryIncidents, error)
	OpenIncident(ctx context.Context, input OpenInput) (*DeliveryIncidents, error)
}

// OpenInput raises an incident by hand.
type OpenInput struct {
	DeliveryID uuid.UUID
	Type       string
	Actor      string
}

// DeliveryIncidents is a delivery's open set with its full incident history.
type DeliveryIncidents struct {
	DeliveryID   uuid.UUID               `json:"delivery_id"`
	VehicleID    string                  `json:"vehicle_id"`
	OpenTypes    []string                `json:"open_types"`
	HasIncidents bool                    `json:"has_incidents"`
	History      []models.IncidentRecord `json:"history"`
}

type service struct {
	repo     *Repository
	tx       txRunner
	resolver *Resolver
	locks    vehiclelock.Locker
}

func NewService(repo *Repository, tx txRunner, resolver *Resolver, locks vehiclelock.Locker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("incident repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("incident resolver required")
	}
	if locks == nil {
		return nil, fmt.Errorf("vehicle locker required")
	}
	return &service{repo: repo, tx: tx, resolver: resolver, locks: locks}, nil
}

func (s *service) ListByDelivery(ctx context.Context, deliveryID uuid.UUID) (*DeliveryIncidents, error) {
	delivery, err := s.loadDelivery(ctx, s.repo, deliveryID)
	if err != nil {
		return nil, err
	}
	view, err := s.view(ctx, s.repo, delivery)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list incidents")
	}
	return view, nil
}

// OpenIncident adds a manual incident. Opening a type that is already open
// changes nothing.
func (s *service) OpenIncident(ctx context.Context, input OpenInput) (*DeliveryIncidents, error) {
	incidentType := strings.TrimSpace(input.Type)
	if incidentType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "incident type is required")
	}
	delivery, err := s.loadDelivery(ctx, s.repo, input.DeliveryID)
	if err != nil {
		return nil, err
	}
	var view *DeliveryIncidents
	err = vehiclelock.With(ctx, s.locks, delivery.VehicleID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			records := s.repo.WithTx(tx)
			current, err := s.loadDelivery(ctx, records, input.DeliveryID)
			if err != nil {
				return err
			}
			if _, err := s.resolver.Open(ctx, tx, current, enums.IncidentSourceManual, input.Actor, incidentType); err != nil {
				return err
			}
			view, err = s.view(ctx, records, current)
			return err
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "open incident")
	}
	return view, nil
}

func (s *service) loadDelivery(ctx context.Context, records *Repository, deliveryID uuid.UUID) (*models.DeliveryRecord, error) {
	delivery, err := records.FindDelivery(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if delivery == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found").
			WithDetails(map[string]any{"delivery_id": deliveryID.String()})
	}
	return delivery, nil
}

func (s *service) view(ctx context.Context, records *Repository, delivery *models.DeliveryRecord) (*DeliveryIncidents, error) {
	history, err := records.ListByDelivery(ctx, delivery.ID)
	if err != nil {
		return nil, err
	}
	return &DeliveryIncidents{
		DeliveryID:   delivery.ID,
		VehicleID:    delivery.VehicleID,
		OpenTypes:    append([]string{}, delivery.OpenIncidentTypes...),
		HasIncidents: delivery.HasIncidents,
		History:      history,
	}, nil
}
