// Package rules is the propagation table: every derived write the engine
// performs in reaction to a snapshot diff or an operator mutation.
package rules

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/battery"
	"github.com/angelmondragon/vehiclesync-backend/internal/incidents"
	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/photos"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
	"github.com/angelmondragon/vehiclesync-backend/internal/repo"
	"github.com/angelmondragon/vehiclesync-backend/internal/stock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/payloads"
)

// Deps are the collaborators the rule handlers need.
type Deps struct {
	Ingestion config.IngestionConfig
	Battery   config.BatteryConfig
	Outbox    outbox.Emitter
	Resolver  *incidents.Resolver
}

type table struct {
	ingestion config.IngestionConfig
	battery   config.BatteryConfig
	outbox    outbox.Emitter
	resolver  *incidents.Resolver
}

// New returns the ordered rule table.
func New(deps Deps) ([]reactor.Rule, error) {
	if deps.Outbox == nil {
		return nil, errors.New("outbox emitter required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("incident resolver required")
	}
	t := &table{
		ingestion: deps.Ingestion,
		battery:   deps.Battery,
		outbox:    deps.Outbox,
		resolver:  deps.Resolver,
	}
	snapshotUpserts := []reactor.EventType{reactor.EventSnapshotAdded, reactor.EventSnapshotChanged}
	return []reactor.Rule{
		{
			Name:   "snapshot-upsert-stock",
			On:     snapshotUpserts,
			Emits:  []reactor.EventType{reactor.EventVehicleReceived},
			Handle: t.upsertStock,
		},
		{Name: "snapshot-ensure-photo", On: snapshotUpserts, Handle: t.ensurePhoto},
		{Name: "snapshot-ensure-battery", On: snapshotUpserts, Handle: t.ensureBattery},
		{Name: "snapshot-remove-stock", On: []reactor.EventType{reactor.EventSnapshotRemoved}, Handle: t.removeStock},
		{Name: "reception-mark-stock", On: []reactor.EventType{reactor.EventVehicleReceived}, Handle: t.markReceived},
		{Name: "reception-complete-photo", On: []reactor.EventType{reactor.EventVehicleReceived}, Handle: t.completePhotoOnReception},
		{Name: "body-readiness-mirror", On: []reactor.EventType{reactor.EventBodyReadinessChanged}, Handle: t.mirrorBodyReadiness},
		{Name: "sale-created-mark-sold", On: []reactor.EventType{reactor.EventSaleCreated}, Handle: t.markStockSold},
		{Name: "sale-created-flag-photo", On: []reactor.EventType{reactor.EventSaleCreated}, Handle: t.flagPhotoSold},
		{Name: "sale-deleted-revert", On: []reactor.EventType{reactor.EventSaleDeleted}, Handle: t.revertSold},
		{Name: "delivery-completed-retire-stock", On: []reactor.EventType{reactor.EventDeliveryCompleted}, Handle: t.retireStock},
		{Name: "custody-delivered-resolve-incidents", On: []reactor.EventType{reactor.EventCustodyDelivered}, Handle: t.resolveIncidents},
	}, nil
}

// available maps the listing's status marker to availability. Only the
// configured sentinel counts; a missing marker is unavailable.
func (t *table) available(record *models.ScrapedRecord) bool {
	marker := strings.TrimSpace(record.StatusMarker)
	return marker != "" && strings.EqualFold(marker, t.ingestion.AvailableMarker)
}

func (t *table) backdateOffset() time.Duration {
	if t.ingestion.BackdateOffset > 0 {
		return t.ingestion.BackdateOffset
	}
	return 48 * time.Hour
}

func requireRecord(ev reactor.Event) (*models.ScrapedRecord, error) {
	if ev.Record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot event without record").
			WithDetails(map[string]any{"vehicle_id": ev.VehicleID, "event": string(ev.Type)})
	}
	return ev.Record, nil
}

func (t *table) upsertStock(ctx context.Context, tx *gorm.DB, ev reactor.Event, emit reactor.Emit) error {
	record, err := requireRecord(ev)
	if err != nil {
		return err
	}
	retired, err := lifecycle.IsRetired(ctx, tx, ev.VehicleID)
	if err != nil || retired {
		return err
	}
	entries := stock.NewRepository(tx)
	entry, err := entries.Find(ctx, ev.VehicleID)
	if err != nil {
		return err
	}
	available := t.available(record)
	if entry == nil {
		if entry, err = relistedEntry(ctx, tx, ev.VehicleID); err != nil {
			return err
		}
		entry.Powertrain = record.Powertrain
		if !entry.IsReceived() {
			entry.Available = available
		}
		if err := entries.Create(ctx, entry); err != nil {
			return err
		}
	} else {
		updates := map[string]any{}
		// a received vehicle stays available until sold; the listing only refines it before intake
		if !entry.IsReceived() && entry.Available != available {
			updates["available"] = available
		}
		if entry.Powertrain != record.Powertrain {
			updates["powertrain"] = record.Powertrain
		}
		if len(updates) > 0 {
			if err := entries.Update(ctx, entry, updates); err != nil {
				return err
			}
		}
	}
	if record.HasPhotos() && !entry.IsReceived() {
		emit(reactor.Event{
			Type:          reactor.EventVehicleReceived,
			VehicleID:     ev.VehicleID,
			Actor:         ev.Actor,
			At:            ev.At.Add(-t.backdateOffset()),
			PhotosPresent: true,
			Backdated:     true,
		})
	}
	return nil
}

// relistedEntry seeds the stock row of a vehicle entering the listing. A
// vehicle coming back after a delisting keeps what its other rows say: a live
// sale keeps it sold, and a completed photo job means it was already received,
// so reception is restored from the completion time instead of backdated again.
func relistedEntry(ctx context.Context, tx *gorm.DB, vehicleID string) (*models.StockEntry, error) {
	entry := &models.StockEntry{VehicleID: vehicleID, Source: models.StockSourceSnapshot}
	conn := tx.WithContext(ctx)
	sale, err := repo.FindOptional[models.SaleRecord](conn, "vehicle_id = ?", vehicleID)
	if err != nil {
		return nil, err
	}
	entry.Sold = sale != nil
	photo, err := repo.FindOptional[models.PhotoRecord](conn, "vehicle_id = ?", vehicleID)
	if err != nil {
		return nil, err
	}
	if photo != nil && photo.Completed && photo.CompletedAt != nil {
		receivedAt := photo.CompletedAt.UTC()
		entry.ReceivedAt = &receivedAt
		entry.Available = true
	}
	return entry, nil
}

func (t *table) ensurePhoto(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	retired, err := lifecycle.IsRetired(ctx, tx, ev.VehicleID)
	if err != nil || retired {
		return err
	}
	_, err = ensurePhotoRecord(ctx, photos.NewRepository(tx), ev.VehicleID)
	return err
}

func ensurePhotoRecord(ctx context.Context, records *photos.Repository, vehicleID string) (*models.PhotoRecord, error) {
	record, err := records.Find(ctx, vehicleID)
	if err != nil || record != nil {
		return record, err
	}
	record = &models.PhotoRecord{VehicleID: vehicleID}
	if err := records.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (t *table) ensureBattery(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	record, err := requireRecord(ev)
	if err != nil {
		return err
	}
	if !t.battery.Monitors(string(record.Powertrain)) {
		return nil
	}
	retired, err := lifecycle.IsRetired(ctx, tx, ev.VehicleID)
	if err != nil || retired {
		return err
	}
	records := battery.NewRepository(tx)
	existing, err := records.Find(ctx, ev.VehicleID)
	if err != nil || existing != nil {
		return err
	}
	return records.Create(ctx, &models.BatteryRecord{
		VehicleID:  ev.VehicleID,
		Powertrain: record.Powertrain,
	})
}

func (t *table) removeStock(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	retired, err := lifecycle.IsRetired(ctx, tx, ev.VehicleID)
	if err != nil || retired {
		return err
	}
	entries := stock.NewRepository(tx)
	entry, err := entries.Find(ctx, ev.VehicleID)
	if err != nil || entry == nil {
		return err
	}
	return entries.Delete(ctx, entry)
}

func (t *table) markReceived(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	entries := stock.NewRepository(tx)
	entry, err := entries.Find(ctx, ev.VehicleID)
	if err != nil {
		return err
	}
	if entry == nil || entry.IsReceived() {
		return nil
	}
	receivedAt := ev.At.UTC()
	if err := entries.Update(ctx, entry, map[string]any{
		"received_at": receivedAt,
		"available":   true,
		"backdated":   ev.Backdated,
	}); err != nil {
		return err
	}
	return t.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventVehicleReceived,
		AggregateType: enums.AggregateVehicle,
		AggregateID:   ev.VehicleID,
		Actor:         ev.Actor,
		Data: payloads.VehicleReceivedEvent{
			VehicleID:  ev.VehicleID,
			ReceivedAt: receivedAt,
			Backdated:  ev.Backdated,
		},
	})
}

func (t *table) completePhotoOnReception(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	records := photos.NewRepository(tx)
	record, err := ensurePhotoRecord(ctx, records, ev.VehicleID)
	if err != nil {
		return err
	}
	if !ev.PhotosPresent || record.Completed {
		return nil
	}
	return records.Update(ctx, record, map[string]any{
		"completed":    true,
		"completed_at": ev.At.UTC(),
	})
}

func (t *table) mirrorBodyReadiness(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	records := photos.NewRepository(tx)
	record, err := records.Find(ctx, ev.VehicleID)
	if err != nil || record == nil || record.PaintReady == ev.BodyReady {
		return err
	}
	return records.Update(ctx, record, map[string]any{"paint_ready": ev.BodyReady})
}

func (t *table) markStockSold(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	return setStockSold(ctx, tx, ev.VehicleID, true)
}

func (t *table) flagPhotoSold(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	return setPhotoSold(ctx, tx, ev.VehicleID, true)
}

func (t *table) revertSold(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	if err := setStockSold(ctx, tx, ev.VehicleID, false); err != nil {
		return err
	}
	return setPhotoSold(ctx, tx, ev.VehicleID, false)
}

func setStockSold(ctx context.Context, tx *gorm.DB, vehicleID string, sold bool) error {
	entries := stock.NewRepository(tx)
	entry, err := entries.Find(ctx, vehicleID)
	if err != nil || entry == nil || entry.Sold == sold {
		return err
	}
	return entries.Update(ctx, entry, map[string]any{"sold": sold})
}

func setPhotoSold(ctx context.Context, tx *gorm.DB, vehicleID string, sold bool) error {
	records := photos.NewRepository(tx)
	record, err := records.Find(ctx, vehicleID)
	if err != nil || record == nil || record.Sold == sold {
		return err
	}
	return records.Update(ctx, record, map[string]any{"sold": sold})
}

func (t *table) retireStock(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	entries := stock.NewRepository(tx)
	entry, err := entries.Find(ctx, ev.VehicleID)
	if err != nil || entry == nil {
		return err
	}
	return entries.Delete(ctx, entry)
}

func (t *table) resolveIncidents(ctx context.Context, tx *gorm.DB, ev reactor.Event, _ reactor.Emit) error {
	if ev.Movement == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "custody event without movement").
			WithDetails(map[string]any{"vehicle_id": ev.VehicleID})
	}
	_, err := t.resolver.ResolveMovement(ctx, tx, ev.Movement)
	return err
}
