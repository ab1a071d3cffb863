package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// IncidentRecord is additive history: opening and resolving an incident are
// two separate rows.
type IncidentRecord struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	DeliveryID           uuid.UUID            `gorm:"column:delivery_id;type:uuid;not null;index"`
	VehicleID            string               `gorm:"column:vehicle_id;not null;size:32;index"`
	Type                 string               `gorm:"column:type;not null"`
	Status               enums.IncidentStatus `gorm:"column:status;type:text;not null"`
	Source               enums.IncidentSource `gorm:"column:source;type:text;not null"`
	Resolved             bool                 `gorm:"column:resolved;not null;default:false"`
	ResolvedAt           *time.Time           `gorm:"column:resolved_at"`
	ResolvedByMovementID *uuid.UUID           `gorm:"column:resolved_by_movement_id;type:uuid"`
	Actor                string               `gorm:"column:actor;not null;default:'system'"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (i *IncidentRecord) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
