package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateVehicle     OutboxAggregateType = "vehicle"
	AggregateSale        OutboxAggregateType = "sale"
	AggregateDelivery    OutboxAggregateType = "delivery"
	AggregateCustodyItem OutboxAggregateType = "custody_item"
	AggregateSnapshot    OutboxAggregateType = "snapshot"
	AggregatePhotography OutboxAggregateType = "photography"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateVehicle,
	AggregateSale,
	AggregateDelivery,
	AggregateCustodyItem,
	AggregateSnapshot,
	AggregatePhotography,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a lifecycle event published downstream.
type OutboxEventType string

const (
	EventSnapshotIngested     OutboxEventType = "snapshot_ingested"
	EventVehicleListed        OutboxEventType = "vehicle_listed"
	EventVehicleDelisted      OutboxEventType = "vehicle_delisted"
	EventVehicleReceived      OutboxEventType = "vehicle_received"
	EventSaleCreated          OutboxEventType = "sale_created"
	EventSaleDeleted          OutboxEventType = "sale_deleted"
	EventSaleValidated        OutboxEventType = "sale_validated"
	EventDeliveryScheduled    OutboxEventType = "delivery_scheduled"
	EventDeliveryCompleted    OutboxEventType = "delivery_completed"
	EventIncidentOpened       OutboxEventType = "incident_opened"
	EventIncidentResolved     OutboxEventType = "incident_resolved"
	EventCustodyMoved         OutboxEventType = "custody_moved"
	EventBatteryChargeAlert   OutboxEventType = "battery_charge_alert"
	EventPhotographyRebalance OutboxEventType = "photography_rebalanced"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSnapshotIngested,
	EventVehicleListed,
	EventVehicleDelisted,
	EventVehicleReceived,
	EventSaleCreated,
	EventSaleDeleted,
	EventSaleValidated,
	EventDeliveryScheduled,
	EventDeliveryCompleted,
	EventIncidentOpened,
	EventIncidentResolved,
	EventCustodyMoved,
	EventBatteryChargeAlert,
	EventPhotographyRebalance,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
