package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// MovementEvent is an append-only custody log entry. Rows are never updated
// or deleted.
type MovementEvent struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	VehicleID    string                `gorm:"column:vehicle_id;not null;size:32;index:ix_movement_events_vehicle,priority:1"`
	EntityType   enums.CustodyItemKind `gorm:"column:entity_type;type:text;not null;index:ix_movement_events_entity,priority:1"`
	EntityID     uuid.UUID             `gorm:"column:entity_id;type:uuid;not null;index:ix_movement_events_entity,priority:2"`
	ItemType     string                `gorm:"column:item_type;not null"`
	MovementType enums.MovementType    `gorm:"column:movement_type;type:text;not null"`
	FromLocation string                `gorm:"column:from_location;not null;default:''"`
	ToLocation   string                `gorm:"column:to_location;not null"`
	Actor        string                `gorm:"column:actor;not null"`
	OccurredAt   time.Time             `gorm:"column:occurred_at;not null;index:ix_movement_events_entity,priority:3;index:ix_movement_events_vehicle,priority:2"`
}

func (m *MovementEvent) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
