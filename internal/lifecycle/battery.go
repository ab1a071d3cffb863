package lifecycle

import (
	"time"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// BatteryOverlay is the battery state next to the main chain.
type BatteryOverlay struct {
	State     enums.BatteryState `json:"state"`
	Threshold time.Duration      `json:"-"`
	Elapsed   time.Duration      `json:"-"`
	DueAt     *time.Time         `json:"due_at,omitempty"`
}

// EvaluateBattery derives the overlay from the powertrain class and the time
// since the last charge. It never looks at the main chain.
func EvaluateBattery(record *models.BatteryRecord, cfg config.BatteryConfig, now time.Time) BatteryOverlay {
	if record == nil || !cfg.Monitors(string(record.Powertrain)) {
		return BatteryOverlay{State: enums.BatteryUnmonitored}
	}
	threshold := cfg.AlertThreshold(string(record.Powertrain))
	reference := record.ChargeReference()
	elapsed := now.Sub(reference)
	due := reference.Add(threshold)
	overlay := BatteryOverlay{
		State:     enums.BatteryMonitored,
		Threshold: threshold,
		Elapsed:   elapsed,
		DueAt:     &due,
	}
	if elapsed >= threshold {
		overlay.State = enums.BatteryChargeAlert
	}
	return overlay
}
