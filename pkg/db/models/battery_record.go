package models

import (
	"time"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// BatteryRecord monitors charge for battery-relevant powertrains.
type BatteryRecord struct {
	VehicleID     string                `gorm:"column:vehicle_id;primaryKey;size:32"`
	Powertrain    enums.PowertrainClass `gorm:"column:powertrain;type:text;not null"`
	ChargeLevel   *int                  `gorm:"column:charge_level"`
	LastChargedAt *time.Time            `gorm:"column:last_charged_at"`
	AlertedAt     *time.Time            `gorm:"column:alerted_at"`
	Version       int                   `gorm:"column:version;not null;default:1"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// ChargeReference is the instant the charge clock runs from.
func (b BatteryRecord) ChargeReference() time.Time {
	if b.LastChargedAt != nil {
		return *b.LastChargedAt
	}
	return b.CreatedAt
}
