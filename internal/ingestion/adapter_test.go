package ingestion

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/incidents"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor/rules"
	"github.com/angelmondragon/vehiclesync-backend/internal/snapshots"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
)

type switchSource struct {
	listings []Listing
	err      error
}

func (s *switchSource) Fetch(context.Context) ([]Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.listings, nil
}

type recordingDispatcher struct {
	inner  dispatcher
	events []reactor.Event
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, tx *gorm.DB, events ...reactor.Event) error {
	r.events = append(r.events, events...)
	return r.inner.Dispatch(ctx, tx, events...)
}

type adapterFixture struct {
	db       *gorm.DB
	source   *switchSource
	reactor  *recordingDispatcher
	adapter  *Adapter
	snapshot *snapshots.Repository
	now      time.Time
}

func newAdapterFixture(t *testing.T) *adapterFixture {
	t.Helper()
	client := dbtest.Client(t)
	db := client.DB()
	logg := logger.New(logger.Options{ServiceName: "ingestion-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(db), nil)
	resolver, err := incidents.NewResolver(emitter)
	require.NoError(t, err)
	cfg := config.IngestionConfig{AvailableMarker: "AVAILABLE", ReservedMarker: "RESERVED", BackdateOffset: 48 * time.Hour}
	table, err := rules.New(rules.Deps{
		Ingestion: cfg,
		Battery:   config.BatteryConfig{Classes: []string{"electric"}},
		Outbox:    emitter,
		Resolver:  resolver,
	})
	require.NoError(t, err)
	engine, err := reactor.New(logg, nil, table...)
	require.NoError(t, err)

	source := &switchSource{}
	recorder := &recordingDispatcher{inner: engine}
	repo := snapshots.NewRepository(db)
	adapter, err := NewAdapter(AdapterParams{
		Repo:    repo,
		Tx:      client,
		Source:  source,
		Reactor: recorder,
		Outbox:  emitter,
		Config:  cfg,
		Logger:  logg,
	})
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return now }
	return &adapterFixture{db: db, source: source, reactor: recorder, adapter: adapter, snapshot: repo, now: now}
}

func (f *adapterFixture) stock(t *testing.T, id string) *models.StockEntry {
	t.Helper()
	var rows []models.StockEntry
	require.NoError(t, f.db.Where("vehicle_id = ?", id).Find(&rows).Error)
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}

func TestFirstRunBackdatesListedVehicleWithPhotos(t *testing.T) {
	f := newAdapterFixture(t)
	f.source.listings = []Listing{{VehicleID: "1234abc", Status: "available", Powertrain: "gasoline", PhotoCount: 8}}

	result, err := f.adapter.Run(context.Background(), enums.SnapshotTriggerManual, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"1234ABC"}, result.Added)

	entry := f.stock(t, "1234ABC")
	require.NotNil(t, entry)
	assert.True(t, entry.Available)
	require.NotNil(t, entry.ReceivedAt)
	assert.True(t, entry.ReceivedAt.Equal(f.now.Add(-48*time.Hour)))

	var photo models.PhotoRecord
	require.NoError(t, f.db.Where("vehicle_id = ?", "1234ABC").First(&photo).Error)
	assert.True(t, photo.Completed)

	version, ok, err := f.snapshot.CurrentVersion(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.Version, version)
}

func TestReingestingSameListingEmitsNothing(t *testing.T) {
	f := newAdapterFixture(t)
	f.source.listings = []Listing{
		{VehicleID: "1234ABC", Status: "AVAILABLE", PhotoCount: 3, Attributes: map[string]any{"km": 1200, "color": "red"}},
		{VehicleID: "5678DEF", Status: "RESERVED", Powertrain: "ev"},
	}

	_, err := f.adapter.Run(context.Background(), enums.SnapshotTriggerCron, "")
	require.NoError(t, err)
	first := len(f.reactor.events)
	assert.Equal(t, 2, first)

	result, err := f.adapter.Run(context.Background(), enums.SnapshotTriggerCron, "")
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Changed)
	assert.Len(t, f.reactor.events, first)

	var versions []int64
	require.NoError(t, f.db.Model(&models.ScrapedRecord{}).Distinct("snapshot_version").Pluck("snapshot_version", &versions).Error)
	assert.Equal(t, []int64{result.Version}, versions)
}

func TestDiffClassifiesChangesAndRemovals(t *testing.T) {
	f := newAdapterFixture(t)
	f.source.listings = []Listing{
		{VehicleID: "AAA111", Status: "AVAILABLE"},
		{VehicleID: "BBB222", Status: "AVAILABLE"},
	}
	_, err := f.adapter.Run(context.Background(), enums.SnapshotTriggerCron, "")
	require.NoError(t, err)

	f.source.listings = []Listing{
		{VehicleID: "BBB222", Status: "RESERVED"},
		{VehicleID: "CCC333", Status: "AVAILABLE"},
	}
	result, err := f.adapter.Run(context.Background(), enums.SnapshotTriggerCron, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CCC333"}, result.Added)
	assert.Equal(t, []string{"AAA111"}, result.Removed)
	assert.Equal(t, []string{"BBB222"}, result.Changed)

	assert.Nil(t, f.stock(t, "AAA111"))
	require.NotNil(t, f.stock(t, "CCC333"))
}

func TestDeliveredVehicleStaysRetiredAcrossRuns(t *testing.T) {
	f := newAdapterFixture(t)
	delivered := f.now.Add(-time.Hour)
	require.NoError(t, f.db.Create(&models.DeliveryRecord{
		SaleID:       uuid.New(),
		VehicleID:    "1234ABC",
		ScheduledFor: delivered,
		DeliveredAt:  &delivered,
		Version:      1,
	}).Error)
	f.source.listings = []Listing{{VehicleID: "1234ABC", Status: "AVAILABLE", PhotoCount: 2}}

	_, err := f.adapter.Run(context.Background(), enums.SnapshotTriggerCron, "")
	require.NoError(t, err)
	assert.Nil(t, f.stock(t, "1234ABC"))
}

func TestFailedFetchKeepsPreviousSnapshot(t *testing.T) {
	f := newAdapterFixture(t)
	f.source.listings = []Listing{{VehicleID: "1234ABC", Status: "AVAILABLE"}}
	first, err := f.adapter.Run(context.Background(), enums.SnapshotTriggerCron, "")
	require.NoError(t, err)

	f.source.err = errors.New("listing unreachable")
	_, err = f.adapter.Run(context.Background(), enums.SnapshotTriggerCron, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	version, ok, err := f.snapshot.CurrentVersion(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Version, version)
	require.NotNil(t, f.stock(t, "1234ABC"))

	runs, err := f.adapter.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, enums.SnapshotRunFailed, runs[0].Status)
	require.NotNil(t, runs[0].Error)
	assert.Contains(t, *runs[0].Error, "listing unreachable")
}

func TestOverlappingRunIsRefused(t *testing.T) {
	f := newAdapterFixture(t)
	held, err := f.adapter.lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, held)

	_, err = f.adapter.Run(context.Background(), enums.SnapshotTriggerManual, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIngestionInProgress))

	require.NoError(t, f.adapter.lock.Release(context.Background()))
	f.source.listings = []Listing{}
	_, err = f.adapter.Run(context.Background(), enums.SnapshotTriggerManual, "")
	require.NoError(t, err)
}
