package lifecycle

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/repo"
	"github.com/angelmondragon/vehiclesync-backend/internal/snapshots"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
)

// NormalizeVehicleID canonicalises a plate so every collection joins on the same key.
func NormalizeVehicleID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Facts is everything known about one vehicle at a point in time. Nil fields
// mean the row does not exist.
type Facts struct {
	VehicleID string
	Scraped   *models.ScrapedRecord
	Stock     *models.StockEntry
	Photo     *models.PhotoRecord
	Battery   *models.BatteryRecord
	Sale      *models.SaleRecord
	Delivery  *models.DeliveryRecord
}

// Retired reports whether a completed delivery has permanently removed the
// vehicle from stock.
func (f *Facts) Retired() bool {
	return f.Delivery != nil && f.Delivery.IsCompleted()
}

// Known reports whether any collection mentions the vehicle.
func (f *Facts) Known() bool {
	return f.Scraped != nil || f.Stock != nil || f.Photo != nil || f.Sale != nil || f.Delivery != nil
}

// LoadFacts reads every row keyed by vehicleID through db, which is normally
// the caller's transaction.
func LoadFacts(ctx context.Context, db *gorm.DB, vehicleID string) (*Facts, error) {
	id := NormalizeVehicleID(vehicleID)
	conn := db.WithContext(ctx)
	facts := &Facts{VehicleID: id}

	scraped, err := snapshots.NewRepository(db).CurrentRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	facts.Scraped = scraped

	if facts.Stock, err = repo.FindOptional[models.StockEntry](conn, "vehicle_id = ?", id); err != nil {
		return nil, err
	}
	if facts.Photo, err = repo.FindOptional[models.PhotoRecord](conn, "vehicle_id = ?", id); err != nil {
		return nil, err
	}
	if facts.Battery, err = repo.FindOptional[models.BatteryRecord](conn, "vehicle_id = ?", id); err != nil {
		return nil, err
	}
	if facts.Sale, err = repo.FindOptional[models.SaleRecord](conn.Order("created_at DESC"), "vehicle_id = ?", id); err != nil {
		return nil, err
	}
	if facts.Delivery, err = repo.FindOptional[models.DeliveryRecord](conn.Order("created_at DESC"), "vehicle_id = ?", id); err != nil {
		return nil, err
	}
	return facts, nil
}

// IsRetired is the cheap form of LoadFacts(...).Retired() used by reactor rules.
func IsRetired(ctx context.Context, db *gorm.DB, vehicleID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&models.DeliveryRecord{}).
		Where("vehicle_id = ? AND delivered_at IS NOT NULL", NormalizeVehicleID(vehicleID)).
		Count(&count).Error
	return count > 0, err
}
