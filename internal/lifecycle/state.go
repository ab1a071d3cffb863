package lifecycle

import (
	"strings"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

// Derive computes the main-chain state from the stored rows. The highest
// reached stage wins; ok is false when the vehicle is unknown. The pre-sale
// stages need a stock row, so a vehicle that left the listing derives to
// ScrapedOnly or Delisted whatever its photo history says.
func Derive(f *Facts) (enums.LifecycleState, bool) {
	switch {
	case f.Delivery != nil && f.Delivery.IsCompleted():
		return enums.LifecycleDelivered, true
	case f.Delivery != nil:
		return enums.LifecycleDeliveryScheduled, true
	case f.Sale != nil && f.Sale.Validated:
		return enums.LifecycleSold, true
	case f.Sale != nil:
		return enums.LifecycleSaleValidated, true
	case f.Stock == nil && f.Scraped != nil:
		return enums.LifecycleScrapedOnly, true
	case f.Stock == nil && f.Known():
		return enums.LifecycleDelisted, true
	case f.Stock == nil:
		return "", false
	case f.Photo != nil && f.Photo.Completed:
		return enums.LifecyclePhotographyComplete, true
	case f.Stock.IsReceived() && f.Photo != nil:
		return enums.LifecyclePhotographyPending, true
	case f.Stock.IsReceived():
		return enums.LifecycleReceived, true
	}
	return enums.LifecyclePendingReception, true
}

// Action is an operator mutation guarded by the state machine.
type Action string

const (
	ActionMarkReceived     Action = "mark_received"
	ActionCreateSale       Action = "create_sale"
	ActionValidateSale     Action = "validate_sale"
	ActionDeleteSale       Action = "delete_sale"
	ActionScheduleDelivery Action = "schedule_delivery"
	ActionCompleteDelivery Action = "complete_delivery"
)

var allowedFrom = map[Action][]enums.LifecycleState{
	ActionMarkReceived: {
		enums.LifecycleScrapedOnly,
		enums.LifecyclePendingReception,
		enums.LifecycleDelisted,
	},
	ActionCreateSale: {
		enums.LifecyclePendingReception,
		enums.LifecycleReceived,
		enums.LifecyclePhotographyPending,
		enums.LifecyclePhotographyComplete,
	},
	ActionValidateSale: {
		enums.LifecycleSaleValidated,
	},
	ActionDeleteSale: {
		enums.LifecycleSaleValidated,
		enums.LifecycleSold,
	},
	ActionScheduleDelivery: {
		enums.LifecycleSold,
	},
	ActionCompleteDelivery: {
		enums.LifecycleDeliveryScheduled,
	},
}

var actionOrder = []Action{
	ActionMarkReceived,
	ActionCreateSale,
	ActionValidateSale,
	ActionDeleteSale,
	ActionScheduleDelivery,
	ActionCompleteDelivery,
}

// AllowedActions lists the operator actions the state permits.
func AllowedActions(state enums.LifecycleState) []Action {
	actions := []Action{}
	for _, action := range actionOrder {
		for _, allowed := range allowedFrom[action] {
			if allowed == state {
				actions = append(actions, action)
				break
			}
		}
	}
	return actions
}

// Guard rejects action unless the vehicle's derived state allows it.
// Delivered vehicles refuse everything. A sale also needs the stock row it
// marks sold.
func Guard(f *Facts, action Action) (enums.LifecycleState, error) {
	state, ok := Derive(f)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found").
			WithDetails(map[string]any{"vehicle_id": f.VehicleID})
	}
	if action == ActionCreateSale && f.Stock == nil {
		return state, Disallowed(f.VehicleID, action, state)
	}
	for _, allowed := range allowedFrom[action] {
		if allowed == state {
			return state, nil
		}
	}
	return state, Disallowed(f.VehicleID, action, state)
}

// Disallowed builds the invariant-violation error for an action.
func Disallowed(vehicleID string, action Action, state enums.LifecycleState) error {
	message := strings.ReplaceAll(string(action), "_", " ") + " not allowed in state " + string(state)
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).WithDetails(map[string]any{
		"vehicle_id": vehicleID,
		"action":     string(action),
		"state":      string(state),
	})
}
