package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// KeyRecord is a physical key of a vehicle. ItemType is the slot label
// (e.g. "key-1") that incidents are matched against.
type KeyRecord struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	VehicleID string                  `gorm:"column:vehicle_id;not null;size:32;uniqueIndex:ux_keys_vehicle_type"`
	ItemType  string                  `gorm:"column:item_type;not null;uniqueIndex:ux_keys_vehicle_type"`
	Status    enums.CustodyItemStatus `gorm:"column:status;type:text;not null;default:'stored'"`
	Location  string                  `gorm:"column:location;not null"`
	Version   int                     `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (KeyRecord) TableName() string { return "key_records" }

func (k *KeyRecord) BeforeCreate(*gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}

// DocumentRecord is a paper document of a vehicle (circulation permit,
// technical sheet, ...).
type DocumentRecord struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	VehicleID string                  `gorm:"column:vehicle_id;not null;size:32;uniqueIndex:ux_documents_vehicle_type"`
	ItemType  string                  `gorm:"column:item_type;not null;uniqueIndex:ux_documents_vehicle_type"`
	Status    enums.CustodyItemStatus `gorm:"column:status;type:text;not null;default:'stored'"`
	Location  string                  `gorm:"column:location;not null"`
	Version   int                     `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (DocumentRecord) TableName() string { return "document_records" }

func (d *DocumentRecord) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
