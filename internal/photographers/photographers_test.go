package photographers

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/photos"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Photos: photos.NewRepository(conn),
		Tx:     client,
		Locks:  vehiclelock.NewLocal(0),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		Logger: logger.New(logger.Options{ServiceName: "photographers-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, client
}

func seedJobs(t *testing.T, conn *gorm.DB, prefix string, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s%04d", prefix, i)
		require.NoError(t, conn.Create(&models.StockEntry{VehicleID: id, Version: 1}).Error)
		require.NoError(t, conn.Create(&models.PhotoRecord{
			VehicleID: id,
			Version:   1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}).Error)
	}
}

func completeAssigned(t *testing.T, conn *gorm.DB) {
	t.Helper()
	require.NoError(t, conn.Model(&models.PhotoRecord{}).
		Where("completed = ? AND photographer_id IS NOT NULL", false).
		Updates(map[string]any{"completed": true, "completed_at": time.Now().UTC()}).Error)
}

func shares(a, b, c int) []AllocationInput {
	return []AllocationInput{
		{UserID: "ana", Percentage: a, Active: true},
		{UserID: "ben", Percentage: b, Active: true},
		{UserID: "cruz", Percentage: c, Active: true},
	}
}

func TestSetAllocationsEnforcesSum(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.SetAllocations(ctx, shares(50, 30, 10))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]any{"sum": 90}, pkgerrors.As(err).Details())

	rows, err := svc.ListAllocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows, "rejected batch leaves nothing behind")

	rows, err = svc.SetAllocations(ctx, shares(50, 30, 20))
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = svc.SetAllocation(ctx, AllocationInput{UserID: "ben", Percentage: 40, Active: true})
	require.Error(t, err, "single edit breaking the sum is rejected")

	// hidden rows do not count toward the sum
	_, err = svc.SetAllocation(ctx, AllocationInput{UserID: "dora", Percentage: 35, Active: true, Hidden: true})
	require.NoError(t, err)
}

func TestDistributeEquallyKeepsLockedRows(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.SetAllocations(ctx, []AllocationInput{
		{UserID: "ana", Percentage: 25, Active: true, Locked: true},
		{UserID: "ben", Percentage: 50, Active: true},
		{UserID: "cruz", Percentage: 25, Active: true},
		{UserID: "dora", Percentage: 0, Active: true},
		{UserID: "eli", Percentage: 0, Active: false},
	})
	require.NoError(t, err)

	rows, err := svc.DistributeEqually(ctx)
	require.NoError(t, err)
	got := map[string]int{}
	for _, row := range rows {
		got[row.UserID] = row.Percentage
	}
	assert.Equal(t, map[string]int{"ana": 25, "ben": 25, "cruz": 25, "dora": 25, "eli": 0}, got)
}

func TestEqualSharesRemainderGoesToFirstRows(t *testing.T) {
	rows := []models.PhotographerAllocation{
		{UserID: "a", Active: true, Locked: true, Percentage: 10},
		{UserID: "b", Active: true},
		{UserID: "c", Active: true},
		{UserID: "d", Active: true},
		{UserID: "e", Active: true, Hidden: true},
	}
	got, err := equalShares(rows)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 30, "c": 30, "d": 30}, got)

	rows[0].Percentage = 11
	got, err = equalShares(rows)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 30, "c": 30, "d": 29}, got)

	rows[0].Percentage = 120
	_, err = equalShares(rows)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeficitCountsCompletedAndHeldWork(t *testing.T) {
	ana := candidate{userID: "ana", percentage: 50}
	ben := candidate{userID: "ben", percentage: 50}
	w := workload{
		pending:   10,
		completed: map[string]int64{"ana": 10},
		assigned:  map[string]int64{"ben": 2},
	}

	assert.InDelta(t, 0, w.deficit(ana), 1e-9)
	assert.InDelta(t, 8, w.deficit(ben), 1e-9)
	assert.Equal(t, ben, pick([]candidate{ana, ben}, w))

	w.pending = 14
	w.assigned["ben"] = 11
	assert.InDelta(t, 2, w.deficit(ana), 1e-9)
	assert.InDelta(t, 1, w.deficit(ben), 1e-9)
	assert.Equal(t, ana, pick([]candidate{ana, ben}, w), "held jobs count against the target")
}

func TestRebalanceConvergesToShares(t *testing.T) {
	ctx := context.Background()
	svc, client := newTestService(t)
	conn := client.DB()
	_, err := svc.SetAllocations(ctx, shares(50, 30, 20))
	require.NoError(t, err)

	for round := 0; round < 10; round++ {
		seedJobs(t, conn, fmt.Sprintf("R%02d", round), 7)
		result, err := svc.Rebalance(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 7, result.Assigned)
		completeAssigned(t, conn)
	}

	stats, err := svc.Stats(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	want := map[string]float64{"ana": 35, "ben": 21, "cruz": 14}
	for _, stat := range stats {
		assert.InDelta(t, want[stat.UserID], float64(stat.Completed), 1, stat.UserID)
		assert.Zero(t, stat.Pending)
	}
}

func TestRebalanceCompensatesHistoricalImbalance(t *testing.T) {
	ctx := context.Background()
	svc, client := newTestService(t)
	conn := client.DB()
	_, err := svc.SetAllocations(ctx, []AllocationInput{
		{UserID: "ana", Percentage: 50, Active: true},
		{UserID: "ben", Percentage: 50, Active: true},
	})
	require.NoError(t, err)

	// ana already shot ten vehicles in the window
	seedJobs(t, conn, "OLD", 10)
	require.NoError(t, conn.Model(&models.PhotoRecord{}).Where("vehicle_id LIKE ?", "OLD%").
		Updates(map[string]any{"photographer_id": "ana", "completed": true, "completed_at": time.Now().UTC()}).Error)

	seedJobs(t, conn, "NEW", 10)
	result, err := svc.Rebalance(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ben": 10}, result.Assignments)
}

func TestRebalanceReassignSkipsLockedPhotographers(t *testing.T) {
	ctx := context.Background()
	svc, client := newTestService(t)
	conn := client.DB()
	_, err := svc.SetAllocations(ctx, []AllocationInput{
		{UserID: "ana", Percentage: 50, Active: true},
		{UserID: "ben", Percentage: 30, Active: true},
		{UserID: "lux", Percentage: 20, Active: true, Locked: true},
	})
	require.NoError(t, err)

	seedJobs(t, conn, "JOB", 8)
	require.NoError(t, conn.Model(&models.PhotoRecord{}).Where("vehicle_id IN ?", []string{"JOB0000", "JOB0001", "JOB0002", "JOB0003"}).
		Update("photographer_id", "ana").Error)
	require.NoError(t, conn.Model(&models.PhotoRecord{}).Where("vehicle_id = ?", "JOB0004").
		Update("photographer_id", "lux").Error)

	result, err := svc.Rebalance(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Cleared)
	assert.Equal(t, 7, result.Assigned)
	assert.Zero(t, result.Assignments["lux"])

	var luxJobs int64
	require.NoError(t, conn.Model(&models.PhotoRecord{}).Where("photographer_id = ?", "lux").Count(&luxJobs).Error)
	assert.Equal(t, int64(1), luxJobs, "locked photographer keeps their job")
}

func TestStatsRejectsInvertedRange(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	earlier := now.Add(-time.Hour)
	_, err := svc.Stats(context.Background(), &now, &earlier)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
