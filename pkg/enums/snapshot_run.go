package enums

import "fmt"

// SnapshotRunStatus tracks an ingestion run.
type SnapshotRunStatus string

const (
	SnapshotRunRunning   SnapshotRunStatus = "running"
	SnapshotRunSucceeded SnapshotRunStatus = "succeeded"
	SnapshotRunFailed    SnapshotRunStatus = "failed"
)

var validSnapshotRunStatuses = []SnapshotRunStatus{
	SnapshotRunRunning,
	SnapshotRunSucceeded,
	SnapshotRunFailed,
}

// IsValid reports whether the status is known.
func (s SnapshotRunStatus) IsValid() bool {
	for _, candidate := range validSnapshotRunStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSnapshotRunStatus converts raw input into a SnapshotRunStatus.
func ParseSnapshotRunStatus(value string) (SnapshotRunStatus, error) {
	for _, candidate := range validSnapshotRunStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid snapshot run status %q", value)
}

// SnapshotTrigger records who started an ingestion run.
type SnapshotTrigger string

const (
	SnapshotTriggerCron   SnapshotTrigger = "cron"
	SnapshotTriggerManual SnapshotTrigger = "manual"
)
