package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// SnapshotIngestedEvent summarises a committed ingestion run.
type SnapshotIngestedEvent struct {
	RunID           uuid.UUID `json:"run_id"`
	SnapshotVersion int64     `json:"snapshot_version"`
	RecordCount     int       `json:"record_count"`
	Added           int       `json:"added"`
	Removed         int       `json:"removed"`
	Changed         int       `json:"changed"`
	ArchiveURI      string    `json:"archive_uri,omitempty"`
}

// VehicleListedEvent is emitted when a vehicle appears in the listing.
type VehicleListedEvent struct {
	VehicleID       string                `json:"vehicle_id"`
	SnapshotVersion int64                 `json:"snapshot_version"`
	Available       bool                  `json:"available"`
	Powertrain      enums.PowertrainClass `json:"powertrain"`
}

// VehicleDelistedEvent is emitted when a vehicle drops out of the listing.
type VehicleDelistedEvent struct {
	VehicleID       string `json:"vehicle_id"`
	SnapshotVersion int64  `json:"snapshot_version"`
	Retired         bool   `json:"retired"`
}

type VehicleReceivedEvent struct {
	VehicleID  string    `json:"vehicle_id"`
	ReceivedAt time.Time `json:"received_at"`
	Backdated  bool      `json:"backdated"`
}

type SaleEvent struct {
	SaleID    uuid.UUID       `json:"sale_id"`
	VehicleID string          `json:"vehicle_id"`
	Customer  string          `json:"customer"`
	Price     decimal.Decimal `json:"price"`
}

type SaleValidatedEvent struct {
	SaleID      uuid.UUID `json:"sale_id"`
	OrderID     uuid.UUID `json:"order_id"`
	VehicleID   string    `json:"vehicle_id"`
	ValidatedAt time.Time `json:"validated_at"`
}

type DeliveryScheduledEvent struct {
	DeliveryID   uuid.UUID `json:"delivery_id"`
	SaleID       uuid.UUID `json:"sale_id"`
	VehicleID    string    `json:"vehicle_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

type DeliveryCompletedEvent struct {
	DeliveryID        uuid.UUID `json:"delivery_id"`
	SaleID            uuid.UUID `json:"sale_id"`
	VehicleID         string    `json:"vehicle_id"`
	DeliveredAt       time.Time `json:"delivered_at"`
	OpenIncidentTypes []string  `json:"open_incident_types"`
}

type IncidentEvent struct {
	IncidentID uuid.UUID `json:"incident_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	VehicleID  string    `json:"vehicle_id"`
	Type       string    `json:"type"`
	Remaining  []string  `json:"remaining,omitempty"`
}

type CustodyMovedEvent struct {
	MovementID   uuid.UUID             `json:"movement_id"`
	ItemID       uuid.UUID             `json:"item_id"`
	Kind         enums.CustodyItemKind `json:"kind"`
	ItemType     string                `json:"item_type"`
	VehicleID    string                `json:"vehicle_id"`
	FromLocation string                `json:"from_location"`
	ToLocation   string                `json:"to_location"`
	MovementType enums.MovementType    `json:"movement_type"`
}

type BatteryChargeAlertEvent struct {
	VehicleID      string                `json:"vehicle_id"`
	Powertrain     enums.PowertrainClass `json:"powertrain"`
	LastChargedAt  *time.Time            `json:"last_charged_at,omitempty"`
	ChargeLevel    *int                  `json:"charge_level,omitempty"`
	ThresholdHours int                   `json:"threshold_hours"`
	ElapsedHours   int                   `json:"elapsed_hours"`
}

type PhotographyRebalancedEvent struct {
	Assigned    int            `json:"assigned"`
	Reassigned  bool           `json:"reassigned"`
	Assignments map[string]int `json:"assignments"`
}
