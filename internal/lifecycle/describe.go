package lifecycle

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

// View is the read model returned for a single vehicle.
type View struct {
	VehicleID string                 `json:"vehicle_id"`
	State     enums.LifecycleState   `json:"state"`
	Actions   []Action               `json:"actions"`
	Battery   BatteryOverlay         `json:"battery"`
	Listed    bool                   `json:"listed"`
	Reserved  bool                   `json:"reserved"`
	Stock     *models.StockEntry     `json:"stock,omitempty"`
	Photo     *models.PhotoRecord    `json:"photo,omitempty"`
	Sale      *models.SaleRecord     `json:"sale,omitempty"`
	Delivery  *models.DeliveryRecord `json:"delivery,omitempty"`
}

// Describer builds vehicle views.
type Describer struct {
	db      *gorm.DB
	battery config.BatteryConfig
	now     func() time.Time
}

func NewDescriber(db *gorm.DB, battery config.BatteryConfig) *Describer {
	return &Describer{db: db, battery: battery, now: time.Now}
}

// Describe returns the derived state and battery overlay of one vehicle.
func (d *Describer) Describe(ctx context.Context, vehicleID string) (*View, error) {
	facts, err := LoadFacts(ctx, d.db, vehicleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	state, ok := Derive(facts)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found").
			WithDetails(map[string]any{"vehicle_id": facts.VehicleID})
	}
	view := &View{
		VehicleID: facts.VehicleID,
		State:     state,
		Actions:   AllowedActions(state),
		Battery:   EvaluateBattery(facts.Battery, d.battery, d.now().UTC()),
		Listed:    facts.Scraped != nil,
		Stock:     facts.Stock,
		Photo:     facts.Photo,
		Sale:      facts.Sale,
		Delivery:  facts.Delivery,
	}
	if facts.Scraped != nil {
		view.Reserved = facts.Scraped.Reserved
	}
	return view, nil
}
