package reactor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "reactor-test", Output: io.Discard})
}

type recordingObserver struct {
	calls map[string]int
}

func (r *recordingObserver) ObserveRule(rule string, err error) {
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[rule]++
}

func noop(context.Context, *gorm.DB, Event, Emit) error { return nil }

func TestNewRejectsCycles(t *testing.T) {
	rules := []Rule{
		{Name: "a", On: []EventType{EventSaleCreated}, Emits: []EventType{EventSaleDeleted}, Handle: noop},
		{Name: "b", On: []EventType{EventSaleDeleted}, Emits: []EventType{EventSaleCreated}, Handle: noop},
	}
	_, err := New(testLogger(), nil, rules...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a, b")
}

func TestNewRejectsSelfTrigger(t *testing.T) {
	rules := []Rule{
		{Name: "loop", On: []EventType{EventSaleCreated}, Emits: []EventType{EventSaleCreated}, Handle: noop},
	}
	_, err := New(testLogger(), nil, rules...)
	require.Error(t, err)
}

func TestNewRejectsDuplicateAndIncompleteRules(t *testing.T) {
	_, err := New(testLogger(), nil,
		Rule{Name: "x", On: []EventType{EventSaleCreated}, Handle: noop},
		Rule{Name: "x", On: []EventType{EventSaleDeleted}, Handle: noop},
	)
	require.Error(t, err)

	_, err = New(testLogger(), nil, Rule{Name: "y", On: []EventType{EventSaleCreated}})
	require.Error(t, err)

	_, err = New(testLogger(), nil, Rule{Name: "z", Handle: noop})
	require.Error(t, err)
}

func TestDispatchRunsInTableOrderBreadthFirst(t *testing.T) {
	db := dbtest.Open(t)
	var order []string
	record := func(name string, emits ...EventType) Handler {
		return func(_ context.Context, _ *gorm.DB, ev Event, emit Emit) error {
			order = append(order, name)
			for _, next := range emits {
				emit(Event{Type: next, VehicleID: ev.VehicleID})
			}
			return nil
		}
	}
	observer := &recordingObserver{}
	engine, err := New(testLogger(), observer,
		Rule{Name: "first", On: []EventType{EventSnapshotAdded}, Emits: []EventType{EventVehicleReceived}, Handle: record("first", EventVehicleReceived)},
		Rule{Name: "second", On: []EventType{EventSnapshotAdded}, Handle: record("second")},
		Rule{Name: "reception", On: []EventType{EventVehicleReceived}, Handle: record("reception")},
	)
	require.NoError(t, err)

	err = engine.Dispatch(context.Background(), db, Event{Type: EventSnapshotAdded, VehicleID: "1234ABC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "reception"}, order)
	assert.Equal(t, 1, observer.calls["reception"])
}

func TestDispatchStopsOnRuleError(t *testing.T) {
	db := dbtest.Open(t)
	boom := errors.New("boom")
	ran := false
	engine, err := New(testLogger(), nil,
		Rule{Name: "fails", On: []EventType{EventSaleCreated}, Handle: func(context.Context, *gorm.DB, Event, Emit) error {
			return boom
		}},
		Rule{Name: "after", On: []EventType{EventSaleCreated}, Handle: func(context.Context, *gorm.DB, Event, Emit) error {
			ran = true
			return nil
		}},
	)
	require.NoError(t, err)

	err = engine.Dispatch(context.Background(), db, Event{Type: EventSaleCreated})
	require.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestDispatchRejectsUndeclaredEmit(t *testing.T) {
	db := dbtest.Open(t)
	engine, err := New(testLogger(), nil,
		Rule{Name: "sneaky", On: []EventType{EventSaleCreated}, Handle: func(_ context.Context, _ *gorm.DB, _ Event, emit Emit) error {
			emit(Event{Type: EventSaleDeleted})
			return nil
		}},
	)
	require.NoError(t, err)

	err = engine.Dispatch(context.Background(), db, Event{Type: EventSaleCreated})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestDispatchRequiresTransaction(t *testing.T) {
	engine, err := New(testLogger(), nil)
	require.NoError(t, err)
	require.Error(t, engine.Dispatch(context.Background(), nil, Event{Type: EventSaleCreated}))
}
