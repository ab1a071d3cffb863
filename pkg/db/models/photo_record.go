package models

import "time"

// PhotoRecord tracks the photography job of a vehicle. It is created once and
// survives the sale (Sold flags it out of pending views).
type PhotoRecord struct {
	VehicleID      string     `gorm:"column:vehicle_id;primaryKey;size:32"`
	PaintReady     bool       `gorm:"column:paint_ready;not null;default:false"`
	Completed      bool       `gorm:"column:completed;not null;default:false;index"`
	CompletedAt    *time.Time `gorm:"column:completed_at;index"`
	PhotographerID *string    `gorm:"column:photographer_id;index"`
	AssignedAt     *time.Time `gorm:"column:assigned_at"`
	ErrorCount     int        `gorm:"column:error_count;not null;default:0"`
	Sold           bool       `gorm:"column:sold;not null;default:false"`
	Version        int        `gorm:"column:version;not null;default:1"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
