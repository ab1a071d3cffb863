package reactor

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
)

// EventType names a mutation rules can react to.
type EventType string

const (
	EventSnapshotAdded        EventType = "snapshot.added"
	EventSnapshotChanged      EventType = "snapshot.changed"
	EventSnapshotRemoved      EventType = "snapshot.removed"
	EventVehicleReceived      EventType = "vehicle.received"
	EventBodyReadinessChanged EventType = "stock.body_readiness_changed"
	EventSaleCreated          EventType = "sale.created"
	EventSaleDeleted          EventType = "sale.deleted"
	EventDeliveryCompleted    EventType = "delivery.completed"
	EventCustodyDelivered     EventType = "custody.delivered"
)

// Event is one mutation flowing through the dispatcher. Only the fields that
// matter for Type are populated.
type Event struct {
	Type      EventType
	VehicleID string
	Actor     string
	At        time.Time

	// snapshot.*
	Record *models.ScrapedRecord

	// vehicle.received
	PhotosPresent bool
	Backdated     bool

	// stock.body_readiness_changed
	BodyReady bool

	// sale.*, delivery.*
	SaleID     uuid.UUID
	DeliveryID uuid.UUID

	// custody.delivered
	Movement *models.MovementEvent
}

// Emit queues a follow-up event from inside a rule.
type Emit func(Event)
