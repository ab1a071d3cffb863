package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeliveryRecord is the handover of a sold vehicle. DeliveredAt being set marks
// completion, which permanently retires the vehicle from stock.
type DeliveryRecord struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	SaleID            uuid.UUID                   `gorm:"column:sale_id;type:uuid;not null;uniqueIndex"`
	VehicleID         string                      `gorm:"column:vehicle_id;not null;size:32;index"`
	ScheduledFor      time.Time                   `gorm:"column:scheduled_for;not null"`
	DeliveredAt       *time.Time                  `gorm:"column:delivered_at;index"`
	OpenIncidentTypes datatypes.JSONSlice[string] `gorm:"column:open_incident_types"`
	HasIncidents      bool                        `gorm:"column:has_incidents;not null;default:false"`
	Version           int                         `gorm:"column:version;not null;default:1"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DeliveryRecord) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// IsCompleted reports whether the vehicle has been handed over.
func (d DeliveryRecord) IsCompleted() bool {
	return d.DeliveredAt != nil
}

// HasOpenIncident reports whether incidentType is in the open set. Matching is exact.
func (d DeliveryRecord) HasOpenIncident(incidentType string) bool {
	for _, open := range d.OpenIncidentTypes {
		if open == incidentType {
			return true
		}
	}
	return false
}
