package models

import "time"

// PhotographerAllocation is the configured share of photography work for a user.
type PhotographerAllocation struct {
	UserID      string    `gorm:"column:user_id;primaryKey"`
	DisplayName string    `gorm:"column:display_name;not null;default:''"`
	Percentage  int       `gorm:"column:percentage;not null;default:0"`
	Active      bool      `gorm:"column:active;not null"`
	Hidden      bool      `gorm:"column:hidden;not null;default:false"`
	Locked      bool      `gorm:"column:locked;not null;default:false"`
	Version     int       `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Counts reports whether the row takes part in the sum-to-100 law.
func (a PhotographerAllocation) Counts() bool {
	return a.Active && !a.Hidden
}
