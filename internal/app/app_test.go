package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vehiclesync-backend/internal/custody"
	"github.com/angelmondragon/vehiclesync-backend/internal/deliveries"
	"github.com/angelmondragon/vehiclesync-backend/internal/ingestion"
	"github.com/angelmondragon/vehiclesync-backend/internal/sales"
	"github.com/angelmondragon/vehiclesync-backend/internal/stock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

type listing struct {
	rows []ingestion.Listing
}

func (l *listing) Fetch(context.Context) ([]ingestion.Listing, error) {
	return l.rows, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Ingestion: config.IngestionConfig{
			AvailableMarker: "AVAILABLE",
			ReservedMarker:  "RESERVED",
			BackdateOffset:  48 * time.Hour,
			Timeout:         time.Minute,
		},
		Battery: config.BatteryConfig{Classes: []string{"electric", "plug_in_hybrid"}, DefaultAlertDays: 30},
		Custody: config.CustodyConfig{
			RecipientLocation:     "customer",
			RequiredDeliveryItems: []string{"key-1", "key-2", "circulation-permit", "technical-sheet"},
		},
		Photographers: config.PhotographersConfig{StatsWindow: 720 * time.Hour},
	}
}

func newTestEngine(t *testing.T, source ingestion.Source) *Engine {
	t.Helper()
	engine, err := New(Params{
		Config: testConfig(),
		DB:     dbtest.Client(t),
		Logger: logger.New(logger.Options{ServiceName: "app-test", Output: io.Discard}),
		Source: source,
	})
	require.NoError(t, err)
	return engine
}

func TestVehicleLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	feed := &listing{rows: []ingestion.Listing{
		{VehicleID: "1234ABC", Status: "AVAILABLE", Powertrain: "electric", PhotoCount: 6},
	}}
	e := newTestEngine(t, feed)

	_, err := e.Ingestion.Run(ctx, enums.SnapshotTriggerManual, "ops")
	require.NoError(t, err)

	view, err := e.Describer.Describe(ctx, "1234abc")
	require.NoError(t, err)
	assert.Equal(t, enums.LifecyclePhotographyComplete, view.State)
	assert.Equal(t, enums.BatteryMonitored, view.Battery.State)

	sale, err := e.Sales.CreateSale(ctx, sales.CreateSaleInput{
		VehicleID: "1234ABC",
		Customer:  "Lucia Ortega",
		Price:     decimal.RequireFromString("18450.00"),
		Actor:     "seller@example.com",
	})
	require.NoError(t, err)

	entry, err := e.Stock.Get(ctx, "1234ABC")
	require.NoError(t, err)
	assert.True(t, entry.Sold)

	_, err = e.Deliveries.ScheduleDelivery(ctx, deliveries.ScheduleInput{SaleID: sale.ID, ScheduledFor: time.Now().Add(24 * time.Hour)})
	require.Error(t, err, "an unvalidated sale cannot be scheduled")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = e.Sales.ValidateSale(ctx, sale.ID, "manager@example.com")
	require.NoError(t, err)
	delivery, err := e.Deliveries.ScheduleDelivery(ctx, deliveries.ScheduleInput{SaleID: sale.ID, ScheduledFor: time.Now().Add(24 * time.Hour)})
	require.NoError(t, err)

	for _, item := range []struct {
		kind     enums.CustodyItemKind
		itemType string
		location string
	}{
		{enums.CustodyItemKey, "key-1", "customer"},
		{enums.CustodyItemKey, "key-2", "customer"},
		{enums.CustodyItemDocument, "circulation-permit", "office"},
	} {
		_, err := e.Custody.RegisterItem(ctx, custody.RegisterInput{
			VehicleID: "1234ABC",
			Kind:      item.kind,
			ItemType:  item.itemType,
			Location:  item.location,
		})
		require.NoError(t, err)
	}

	delivery, err = e.Deliveries.CompleteDelivery(ctx, delivery.ID, "driver@example.com")
	require.NoError(t, err)
	require.NotNil(t, delivery.DeliveredAt)

	open, err := e.Incidents.ListByDelivery(ctx, delivery.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"circulation-permit", "technical-sheet"}, open.OpenTypes)
	assert.True(t, open.HasIncidents)

	_, err = e.Stock.Get(ctx, "1234ABC")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "delivery retires the stock row")

	items, err := e.Custody.Items(ctx, "1234ABC")
	require.NoError(t, err)
	var permit custody.Item
	for _, item := range items {
		if item.ItemType == "circulation-permit" {
			permit = item
		}
	}
	require.NotEmpty(t, permit.ID)
	_, err = e.Custody.RecordMovement(ctx, custody.MovementInput{ItemID: permit.ID, From: "office", To: "customer", Actor: "driver@example.com"})
	require.NoError(t, err)

	open, err = e.Incidents.ListByDelivery(ctx, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"technical-sheet"}, open.OpenTypes)
	assert.True(t, open.HasIncidents)

	_, err = e.Ingestion.Run(ctx, enums.SnapshotTriggerCron, "")
	require.NoError(t, err)
	_, err = e.Stock.Get(ctx, "1234ABC")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "a delivered vehicle is never listed back into stock")

	view, err = e.Describer.Describe(ctx, "1234ABC")
	require.NoError(t, err)
	assert.Equal(t, enums.LifecycleDelivered, view.State)
	assert.Empty(t, view.Actions)
}

func TestDeletingSaleRevertsSoldFlags(t *testing.T) {
	ctx := context.Background()
	feed := &listing{rows: []ingestion.Listing{{VehicleID: "5678DEF", Status: "AVAILABLE"}}}
	e := newTestEngine(t, feed)
	_, err := e.Ingestion.Run(ctx, enums.SnapshotTriggerManual, "")
	require.NoError(t, err)
	_, err = e.Stock.MarkReceived(ctx, stock.MarkReceivedInput{VehicleID: "5678DEF", Actor: "ops"})
	require.NoError(t, err)

	sale, err := e.Sales.CreateSale(ctx, sales.CreateSaleInput{VehicleID: "5678DEF", Customer: "Marc Vidal", Price: decimal.NewFromInt(9900)})
	require.NoError(t, err)
	require.NoError(t, e.Sales.DeleteSale(ctx, sale.ID, "manager"))

	entry, err := e.Stock.Get(ctx, "5678DEF")
	require.NoError(t, err)
	assert.False(t, entry.Sold)

	pending, err := e.Photos.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Sold)

	events, err := e.Events.ListByAggregate(ctx, enums.AggregateSale, sale.ID.String())
	require.NoError(t, err)
	types := make([]enums.OutboxEventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	assert.Contains(t, types, enums.EventSaleCreated)
	assert.Contains(t, types, enums.EventSaleDeleted)
}

func TestRelistedVehicleStaysSold(t *testing.T) {
	ctx := context.Background()
	listed := []ingestion.Listing{{VehicleID: "1234ABC", Status: "AVAILABLE", Powertrain: "petrol", PhotoCount: 8}}
	feed := &listing{rows: listed}
	e := newTestEngine(t, feed)

	_, err := e.Ingestion.Run(ctx, enums.SnapshotTriggerManual, "")
	require.NoError(t, err)
	before, err := e.Stock.Get(ctx, "1234ABC")
	require.NoError(t, err)
	require.NotNil(t, before.ReceivedAt)

	sale, err := e.Sales.CreateSale(ctx, sales.CreateSaleInput{VehicleID: "1234ABC", Customer: "Ana Ruiz", Price: decimal.NewFromInt(14500)})
	require.NoError(t, err)

	feed.rows = nil
	_, err = e.Ingestion.Run(ctx, enums.SnapshotTriggerCron, "")
	require.NoError(t, err)
	_, err = e.Stock.Get(ctx, "1234ABC")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	feed.rows = listed
	_, err = e.Ingestion.Run(ctx, enums.SnapshotTriggerCron, "")
	require.NoError(t, err)

	after, err := e.Stock.Get(ctx, "1234ABC")
	require.NoError(t, err)
	assert.True(t, after.Sold)
	require.NotNil(t, after.ReceivedAt)
	assert.True(t, after.ReceivedAt.Equal(*before.ReceivedAt))

	view, err := e.Describer.Describe(ctx, "1234ABC")
	require.NoError(t, err)
	assert.Equal(t, enums.LifecycleSaleValidated, view.State)
	require.NotNil(t, view.Sale)
	assert.Equal(t, sale.ID, view.Sale.ID)
}

func TestDelistedVehicleCannotBeSold(t *testing.T) {
	ctx := context.Background()
	feed := &listing{rows: []ingestion.Listing{{VehicleID: "9999ZZZ", Status: "AVAILABLE", PhotoCount: 5}}}
	e := newTestEngine(t, feed)

	_, err := e.Ingestion.Run(ctx, enums.SnapshotTriggerManual, "")
	require.NoError(t, err)
	feed.rows = nil
	_, err = e.Ingestion.Run(ctx, enums.SnapshotTriggerCron, "")
	require.NoError(t, err)

	_, err = e.Sales.CreateSale(ctx, sales.CreateSaleInput{VehicleID: "9999ZZZ", Customer: "Marc Vidal", Price: decimal.NewFromInt(8000)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	view, err := e.Describer.Describe(ctx, "9999ZZZ")
	require.NoError(t, err)
	assert.Equal(t, enums.LifecycleDelisted, view.State)
	assert.Nil(t, view.Sale)
}
