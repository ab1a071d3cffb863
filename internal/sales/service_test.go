package sales

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
)

type recordingDispatcher struct {
	events []reactor.Event
	err    error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, _ *gorm.DB, events ...reactor.Event) error {
	r.events = append(r.events, events...)
	return r.err
}

func newTestService(t *testing.T) (*service, *recordingDispatcher, *gorm.DB) {
	t.Helper()
	client := dbtest.Client(t)
	recorder := &recordingDispatcher{}
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(NewRepository(client.DB()), client, recorder, emitter, vehiclelock.NewLocal(0))
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC) }
	return impl, recorder, client.DB()
}

func seedReceived(t *testing.T, db *gorm.DB, vehicleID string) {
	t.Helper()
	received := time.Now().UTC()
	require.NoError(t, db.Create(&models.StockEntry{VehicleID: vehicleID, Available: true, ReceivedAt: &received, Version: 1}).Error)
	require.NoError(t, db.Create(&models.PhotoRecord{VehicleID: vehicleID, Version: 1}).Error)
}

func countEvents(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestCreateSaleDispatchesAndEmits(t *testing.T) {
	svc, recorder, db := newTestService(t)
	seedReceived(t, db, "1234ABC")

	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{
		VehicleID: "1234abc",
		Customer:  " Ana ",
		Price:     decimal.RequireFromString("18999.90"),
		Actor:     "seller",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sale.ID)
	assert.Equal(t, "1234ABC", sale.VehicleID)
	assert.Equal(t, "Ana", sale.Customer)
	assert.Equal(t, "seller", sale.CreatedBy)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, reactor.EventSaleCreated, recorder.events[0].Type)
	assert.Equal(t, sale.ID, recorder.events[0].SaleID)
	assert.Equal(t, int64(1), countEvents(t, db, enums.EventSaleCreated))
}

func TestCreateSaleValidatesInput(t *testing.T) {
	svc, recorder, db := newTestService(t)
	seedReceived(t, db, "1234ABC")

	_, err := svc.CreateSale(context.Background(), CreateSaleInput{VehicleID: "1234ABC", Customer: "Ana", Price: decimal.Zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateSale(context.Background(), CreateSaleInput{VehicleID: " ", Customer: "Ana", Price: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, recorder.events)
}

func TestCreateSaleRejectsUnknownAndSoldVehicles(t *testing.T) {
	svc, _, db := newTestService(t)

	_, err := svc.CreateSale(context.Background(), CreateSaleInput{VehicleID: "0000ZZZ", Customer: "Ana", Price: decimal.NewFromInt(100)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	seedReceived(t, db, "1234ABC")
	_, err = svc.CreateSale(context.Background(), CreateSaleInput{VehicleID: "1234ABC", Customer: "Ana", Price: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, err = svc.CreateSale(context.Background(), CreateSaleInput{VehicleID: "1234ABC", Customer: "Luis", Price: decimal.NewFromInt(100)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCreateSaleRollsBackWhenPropagationFails(t *testing.T) {
	svc, recorder, db := newTestService(t)
	seedReceived(t, db, "1234ABC")
	recorder.err = pkgerrors.New(pkgerrors.CodeInternal, "rule failed")

	_, err := svc.CreateSale(context.Background(), CreateSaleInput{VehicleID: "1234ABC", Customer: "Ana", Price: decimal.NewFromInt(100)})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.SaleRecord{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, countEvents(t, db, enums.EventSaleCreated))
}

func TestValidateSaleIsIdempotent(t *testing.T) {
	svc, _, db := newTestService(t)
	seedReceived(t, db, "1234ABC")
	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{VehicleID: "1234ABC", Customer: "Ana", Price: decimal.NewFromInt(15000)})
	require.NoError(t, err)

	first, err := svc.ValidateSale(context.Background(), sale.ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, sale.ID, first.SaleID)
	assert.True(t, first.Price.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, "manager", first.ValidatedBy)

	second, err := svc.ValidateSale(context.Background(), sale.ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var orders int64
	require.NoError(t, db.Model(&models.ValidatedOrder{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
	assert.Equal(t, int64(1), countEvents(t, db, enums.EventSaleValidated))
}

func TestDeleteSaleKeepsValidatedOrder(t *testing.T) {
	svc, recorder, db := newTestService(t)
	seedReceived(t, db, "1234ABC")
	sale, err := svc.CreateSale(context.Background(), CreateSaleInput{VehicleID: "1234ABC", Customer: "Ana", Price: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = svc.ValidateSale(context.Background(), sale.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSale(context.Background(), sale.ID, "manager"))

	require.Len(t, recorder.events, 2)
	assert.Equal(t, reactor.EventSaleDeleted, recorder.events[1].Type)

	var sales, orders int64
	require.NoError(t, db.Model(&models.SaleRecord{}).Count(&sales).Error)
	require.NoError(t, db.Model(&models.ValidatedOrder{}).Count(&orders).Error)
	assert.Zero(t, sales)
	assert.Equal(t, int64(1), orders)

	err = svc.DeleteSale(context.Background(), sale.ID, "manager")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
