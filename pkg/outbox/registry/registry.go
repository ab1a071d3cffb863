package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/payloads"
)

// EventDescriptor binds an event type to the aggregate it must carry, the
// topic it is published on and the payload schema it decodes into.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// VehicleID returns the vehicle the payload refers to, or "" for events that
// are not about a single vehicle (snapshot runs, photographer rebalances).
func (r *ResolvedEvent) VehicleID() string {
	if r == nil || len(r.Envelope.Data) == 0 {
		return ""
	}
	var scoped struct {
		VehicleID string `json:"vehicle_id"`
	}
	if err := json.Unmarshal(r.Envelope.Data, &scoped); err != nil {
		return ""
	}
	return scoped.VehicleID
}

// EventRegistry is the closed set of event types the publisher will ship.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		PayloadFactory: func() any { return new(T) },
	}
}

func lifecycleEvents() []EventDescriptor {
	return []EventDescriptor{
		describe[payloads.SnapshotIngestedEvent](enums.EventSnapshotIngested, enums.AggregateSnapshot),
		describe[payloads.VehicleListedEvent](enums.EventVehicleListed, enums.AggregateVehicle),
		describe[payloads.VehicleDelistedEvent](enums.EventVehicleDelisted, enums.AggregateVehicle),
		describe[payloads.VehicleReceivedEvent](enums.EventVehicleReceived, enums.AggregateVehicle),
		describe[payloads.BatteryChargeAlertEvent](enums.EventBatteryChargeAlert, enums.AggregateVehicle),

		describe[payloads.SaleEvent](enums.EventSaleCreated, enums.AggregateSale),
		describe[payloads.SaleEvent](enums.EventSaleDeleted, enums.AggregateSale),
		describe[payloads.SaleValidatedEvent](enums.EventSaleValidated, enums.AggregateSale),

		describe[payloads.DeliveryScheduledEvent](enums.EventDeliveryScheduled, enums.AggregateDelivery),
		describe[payloads.DeliveryCompletedEvent](enums.EventDeliveryCompleted, enums.AggregateDelivery),
		describe[payloads.IncidentEvent](enums.EventIncidentOpened, enums.AggregateDelivery),
		describe[payloads.IncidentEvent](enums.EventIncidentResolved, enums.AggregateDelivery),

		describe[payloads.CustodyMovedEvent](enums.EventCustodyMoved, enums.AggregateCustodyItem),
		describe[payloads.PhotographyRebalancedEvent](enums.EventPhotographyRebalance, enums.AggregatePhotography),
	}
}

// NewEventRegistry routes every lifecycle event to the lifecycle topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.LifecycleTopic)
	if topic == "" {
		return nil, fmt.Errorf("lifecycle topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range lifecycleEvents() {
		desc.Topic = topic
		if _, dup := reg.entries[desc.EventType]; dup {
			return nil, fmt.Errorf("event type %s registered twice", desc.EventType)
		}
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Descriptors lists registered descriptors ordered by event type.
func (r *EventRegistry) Descriptors() []EventDescriptor {
	out := make([]EventDescriptor, 0, len(r.entries))
	for _, desc := range r.entries {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventType < out[j].EventType })
	return out
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row itself is malformed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("event %s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, NewNonRetryableError(fmt.Errorf("event %s has no aggregate id", event.EventType))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
