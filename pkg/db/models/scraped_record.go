package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// ScrapedRecord is one vehicle row of an ingested listing. Rows belong to a
// snapshot version and are never patched; a run inserts a full new version
// and prunes the old ones.
type ScrapedRecord struct {
	SnapshotVersion int64                 `gorm:"column:snapshot_version;primaryKey"`
	VehicleID       string                `gorm:"column:vehicle_id;primaryKey;size:32"`
	StatusMarker    string                `gorm:"column:status_marker;not null;default:''"`
	Available       bool                  `gorm:"column:available;not null;default:false"`
	Reserved        bool                  `gorm:"column:reserved;not null;default:false"`
	Powertrain      enums.PowertrainClass `gorm:"column:powertrain;type:text;not null;default:'unknown'"`
	PhotoCount      int                   `gorm:"column:photo_count;not null;default:0"`
	Attributes      datatypes.JSONMap     `gorm:"column:attributes"`
	Fingerprint     string                `gorm:"column:fingerprint;not null;size:64"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// HasPhotos reports whether the listing already carries photo references.
func (r ScrapedRecord) HasPhotos() bool {
	return r.PhotoCount > 0
}
