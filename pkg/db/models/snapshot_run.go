package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// SnapshotRun records one ingestion attempt. The current snapshot is the
// version of the latest succeeded run.
type SnapshotRun struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	SnapshotVersion int64                   `gorm:"column:snapshot_version;not null;uniqueIndex"`
	Status          enums.SnapshotRunStatus `gorm:"column:status;type:text;not null;default:'running'"`
	Trigger         enums.SnapshotTrigger   `gorm:"column:triggered_by;type:text;not null;default:'cron'"`
	RecordCount     int                     `gorm:"column:record_count;not null;default:0"`
	AddedCount      int                     `gorm:"column:added_count;not null;default:0"`
	RemovedCount    int                     `gorm:"column:removed_count;not null;default:0"`
	ChangedCount    int                     `gorm:"column:changed_count;not null;default:0"`
	SkippedCount    int                     `gorm:"column:skipped_count;not null;default:0"`
	ArchiveURI      *string                 `gorm:"column:archive_uri"`
	Error           *string                 `gorm:"column:error"`
	StartedAt       time.Time               `gorm:"column:started_at;not null"`
	FinishedAt      *time.Time              `gorm:"column:finished_at"`
}

func (r *SnapshotRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
