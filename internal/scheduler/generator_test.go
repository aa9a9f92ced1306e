package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/maintenance-scheduler/internal/db"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

var today = time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return today }

type fixture struct {
	equipment *db.EquipmentRegistry
	programs  *db.ProgramStore
	calendar  *db.MaintenanceCalendar
	orders    *db.OrderStore
	generator *Generator
	hook      *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{
		equipment: db.NewEquipmentRegistry(),
		programs:  db.NewProgramStore(),
		calendar:  db.NewMaintenanceCalendar(),
		orders:    db.NewOrderStore(),
		hook:      hook,
	}
	f.generator = NewGenerator(f.equipment, f.programs, f.calendar, f.orders,
		WithClock(fixedClock), WithLogger(logger))
	return f
}

func (f *fixture) addEquipment(t *testing.T, id, programID int64) {
	t.Helper()
	require.NoError(t, f.equipment.AddEquipment(models.Equipment{
		ID:               id,
		Description:      "Boiler",
		AcquisitionDate:  time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		ServiceStartDate: time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC),
		UsefulLifeMonths: 240,
		Cost:             decimal.NewFromInt(90000),
		State:            models.EquipmentOperational,
		ProgramID:        programID,
	}))
}

func (f *fixture) addProgram(t *testing.T, id int64, phases ...int) {
	t.Helper()
	p := models.PreventiveProgram{ID: id, Name: "Boilers", CreatedAt: today}
	for _, n := range phases {
		require.NoError(t, p.AddPhase(models.Phase{Number: n, Description: "Phase", Frequency: models.FrequencyMonthly}))
	}
	require.NoError(t, f.programs.AddProgram(p))
}

func (f *fixture) schedule(t *testing.T, dates ...time.Time) {
	t.Helper()
	for _, d := range dates {
		_, err := f.calendar.AddDate(d)
		require.NoError(t, err)
	}
}

func TestGeneratePendingOrders_YesterdayScenario(t *testing.T) {
	f := newFixture(t)
	f.addProgram(t, 10, 1, 2)
	f.addEquipment(t, 1, 10)
	yesterday := today.AddDate(0, 0, -1)
	f.schedule(t, yesterday)

	created, err := f.generator.GeneratePendingOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 2)

	orders := f.orders.ListOrders()
	require.Len(t, orders, 2)
	for i, o := range orders {
		assert.Equal(t, models.OrderScheduled, o.State)
		assert.Equal(t, models.Day(yesterday), o.ScheduledDate)
		assert.Equal(t, int64(1), o.EquipmentID)
		assert.Equal(t, int64(10), o.ProgramID)
		assert.Equal(t, i+1, o.PhaseNumber, "phases follow stored order")
		assert.False(t, o.HasTechnician())
	}
}

func TestGeneratePendingOrders_SkipsEquipmentWithoutProgram(t *testing.T) {
	f := newFixture(t)
	f.addProgram(t, 10, 1, 2, 3)
	f.addEquipment(t, 1, 10)
	f.addEquipment(t, 2, 0)
	f.schedule(t, today, today.AddDate(0, 0, -7))

	created, err := f.generator.GeneratePendingOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 6, "2 due days x 3 phases for equipment 1")
	assert.Empty(t, f.orders.ListOrdersByEquipment(2))
}

func TestGeneratePendingOrders_IgnoresFutureDates(t *testing.T) {
	f := newFixture(t)
	f.addProgram(t, 10, 1)
	f.addEquipment(t, 1, 10)
	f.schedule(t, today.AddDate(0, 0, 1))

	created, err := f.generator.GeneratePendingOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, f.orders.ListOrders())
}

func TestGeneratePendingOrders_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addProgram(t, 10, 1, 2)
	f.addEquipment(t, 1, 10)
	f.addEquipment(t, 2, 10)
	f.schedule(t, today.AddDate(0, 0, -2))

	first, err := f.generator.GeneratePendingOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 4)

	second, err := f.generator.GeneratePendingOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, f.orders.ListOrders(), 4)

	f.schedule(t, today)
	third, err := f.generator.GeneratePendingOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, third, 4, "only the newly scheduled day is expanded")
	assert.Len(t, f.orders.ListOrders(), 8)
}

func TestGeneratePendingOrders_MissingProgramIsLogged(t *testing.T) {
	f := newFixture(t)
	f.addEquipment(t, 1, 77)
	f.schedule(t, today)

	created, err := f.generator.GeneratePendingOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, created)

	var warned bool
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, int64(77), entry.Data["program_id"])
		}
	}
	assert.True(t, warned)
}

func TestGeneratePendingOrders_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.addProgram(t, 10, 1)
	f.addEquipment(t, 1, 10)
	f.schedule(t, today)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.generator.GeneratePendingOrders(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.orders.ListOrders())
}

type mockOrderSink struct {
	mock.Mock
}

func (m *mockOrderSink) InsertOrder(order models.Order) (models.Order, error) {
	args := m.Called(order)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *mockOrderSink) FindPreventiveOrder(date time.Time, equipmentID, programID int64, phaseNumber int) (models.Order, bool) {
	args := m.Called(date, equipmentID, programID, phaseNumber)
	return args.Get(0).(models.Order), args.Bool(1)
}

func TestGeneratePendingOrders_InsertError(t *testing.T) {
	f := newFixture(t)
	f.addProgram(t, 10, 1)
	f.addEquipment(t, 1, 10)
	f.schedule(t, today)

	sink := new(mockOrderSink)
	sink.On("FindPreventiveOrder", mock.Anything, int64(1), int64(10), 1).Return(models.Order{}, false)
	sink.On("InsertOrder", mock.Anything).Return(models.Order{}, errors.New("store unavailable"))

	logger, _ := logtest.NewNullLogger()
	g := NewGenerator(f.equipment, f.programs, f.calendar, sink, WithClock(fixedClock), WithLogger(logger))
	created, err := g.GeneratePendingOrders(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Empty(t, created)
	sink.AssertExpectations(t)
}
