package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleRecord struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VehicleID   string          `gorm:"column:vehicle_id;not null;size:32;index"`
	Customer    string          `gorm:"column:customer;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Validated   bool            `gorm:"column:validated;not null;default:false"`
	ValidatedAt *time.Time      `gorm:"column:validated_at"`
	CreatedBy   string          `gorm:"column:created_by;not null;default:'system'"`
	Version     int             `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *SaleRecord) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ValidatedOrder is a point-in-time copy of a sale taken when it was validated.
// Rows are inserted once and never updated.
type ValidatedOrder struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID        uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;uniqueIndex"`
	VehicleID     string          `gorm:"column:vehicle_id;not null;size:32;index"`
	Customer      string          `gorm:"column:customer;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	SaleCreatedAt time.Time       `gorm:"column:sale_created_at;not null"`
	ValidatedBy   string          `gorm:"column:validated_by;not null"`
	ValidatedAt   time.Time       `gorm:"column:validated_at;not null"`
}

func (o *ValidatedOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
