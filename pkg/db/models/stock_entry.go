package models

import (
	"time"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// StockSource records how a stock row came to exist.
type StockSource string

const (
	StockSourceSnapshot StockSource = "snapshot"
	StockSourceIntake   StockSource = "intake"
)

// StockEntry is the live inventory row for a vehicle. Version backs optimistic
// concurrency on every write.
type StockEntry struct {
	VehicleID  string                `gorm:"column:vehicle_id;primaryKey;size:32"`
	Available  bool                  `gorm:"column:available;not null;default:false"`
	BodyReady  bool                  `gorm:"column:body_ready;not null;default:false"`
	Sold       bool                  `gorm:"column:sold;not null;default:false"`
	Powertrain enums.PowertrainClass `gorm:"column:powertrain;type:text;not null;default:'unknown'"`
	Source     StockSource           `gorm:"column:source;type:text;not null;default:'snapshot'"`
	ReceivedAt *time.Time            `gorm:"column:received_at"`
	Backdated  bool                  `gorm:"column:backdated;not null;default:false"`
	Version    int                   `gorm:"column:version;not null;default:1"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// IsReceived reports whether a reception timestamp has been recorded.
func (s StockEntry) IsReceived() bool {
	return s.ReceivedAt != nil
}
