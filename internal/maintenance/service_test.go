package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/maintenance-scheduler/internal/audit"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	base := []Option{WithClock(func() time.Time { return testNow }), WithLogger(logger)}
	return New(append(base, opts...)...)
}

func pump(id int64) models.Equipment {
	return models.Equipment{
		ID:               id,
		Description:      "Centrifugal pump",
		Type:             "pump",
		Location:         "Plant 1",
		AcquisitionDate:  time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC),
		ServiceStartDate: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		UsefulLifeMonths: 60,
		Cost:             decimal.RequireFromString("8500.00"),
	}
}

func twoPhaseProgram(id int64) models.PreventiveProgram {
	return models.PreventiveProgram{
		ID:   id,
		Name: "Pump care",
		Phases: []models.Phase{
			{Number: 1, Description: "Inspect seals", Frequency: models.FrequencyMonthly},
			{Number: 2, Description: "Change oil", Frequency: models.FrequencyQuarterly},
		},
	}
}

// setupScenario registers equipment 1 with program 10 (phases 1 and 2) and
// schedules yesterday.
func setupScenario(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()
	_, err := s.AddProgram(ctx, twoPhaseProgram(10))
	require.NoError(t, err)
	e := pump(1)
	e.ProgramID = 10
	_, err = s.AddEquipment(ctx, e)
	require.NoError(t, err)
	_, err = s.ScheduleDate(ctx, testNow.AddDate(0, 0, -1))
	require.NoError(t, err)
}

func TestGeneratePendingOrders_YesterdayScenario(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)

	created, err := s.GeneratePendingOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, created, 2)

	orders := s.ListOrders(OrderFilter{})
	require.Len(t, orders, 2)
	yesterday := models.Day(testNow.AddDate(0, 0, -1))
	for i, o := range orders {
		assert.Equal(t, models.OrderScheduled, o.State)
		assert.True(t, yesterday.Equal(o.ScheduledDate))
		assert.Equal(t, int64(1), o.EquipmentID)
		assert.Equal(t, i+1, o.PhaseNumber)
		assert.False(t, o.HasTechnician())
	}
}

func TestGeneratePendingOrders_Idempotent(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()

	_, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	again, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, s.ListOrders(OrderFilter{}), 2)

	// A new due day only adds its own orders.
	_, err = s.ScheduleDate(ctx, testNow)
	require.NoError(t, err)
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, s.ListOrders(OrderFilter{}), 4)
}

func TestGeneratePendingOrders_EquipmentWithoutProgram(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	_, err := s.AddEquipment(context.Background(), pump(2))
	require.NoError(t, err)

	_, err = s.GeneratePendingOrders(context.Background())
	require.NoError(t, err)

	orders, err := s.OrdersForEquipment(2)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestAddEquipment_DuplicateID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	added, err := s.AddEquipment(ctx, pump(5))
	require.NoError(t, err)
	assert.Equal(t, models.EquipmentOperational, added.State)

	_, err = s.AddEquipment(ctx, pump(5))
	assert.ErrorIs(t, err, models.ErrConflict)

	list := s.ListEquipment()
	require.Len(t, list, 1)
	assert.Equal(t, int64(5), list[0].ID)
}

func TestAddEquipment_UnknownProgram(t *testing.T) {
	s := newTestService(t)
	e := pump(1)
	e.ProgramID = 99
	_, err := s.AddEquipment(context.Background(), e)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCompleteOrder_WithoutTechnician(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)

	done, err := s.CompleteOrder(ctx, created[0].ID, time.Time{}, 1.5, "seals ok", 0)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, done.State)
	assert.Equal(t, models.NoTechnicianSignature, done.Signature)
	require.NotNil(t, done.ExecutionDate)
	assert.True(t, testNow.Equal(*done.ExecutionDate))
}

func TestCompleteOrder_WithoutTechnicianClearsAssignment(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	_, err := s.AddTechnician(ctx, models.Technician{ID: 7, FirstName: "Ana", LastName: "Gómez"})
	require.NoError(t, err)
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)

	_, err = s.AssignTechnician(ctx, created[0].ID, 7)
	require.NoError(t, err)
	done, err := s.CompleteOrder(ctx, created[0].ID, testNow, 1, "", 0)
	require.NoError(t, err)
	assert.Equal(t, models.NoTechnicianSignature, done.Signature)
	assert.Zero(t, done.TechnicianID)

	stored, err := s.GetOrder(created[0].ID)
	require.NoError(t, err)
	assert.False(t, stored.HasTechnician())
}

func TestCompleteOrder_WithTechnician(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	_, err := s.AddTechnician(ctx, models.Technician{ID: 7, FirstName: "Ana", LastName: "Gómez", Active: true})
	require.NoError(t, err)
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)

	done, err := s.CompleteOrder(ctx, created[0].ID, testNow, 2, "replaced gasket", 7)
	require.NoError(t, err)
	assert.Equal(t, "Ana Gómez", done.Signature)
	assert.Equal(t, int64(7), done.TechnicianID)

	_, err = s.CompleteOrder(ctx, created[1].ID, testNow, 2, "", 42)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOrderLifecycle_TerminalStatesAreFinal(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	first, second := created[0].ID, created[1].ID

	_, err = s.StartOrder(ctx, first, time.Time{})
	require.NoError(t, err)
	_, err = s.CompleteOrder(ctx, first, testNow, 3, "done", 0)
	require.NoError(t, err)
	_, err = s.CancelOrder(ctx, first, "too late")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	o, err := s.GetOrder(first)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, o.State)

	_, err = s.CancelOrder(ctx, second, "equipment replaced")
	require.NoError(t, err)
	_, err = s.CompleteOrder(ctx, second, testNow, 1, "", 0)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = s.StartOrder(ctx, second, testNow)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	o, err = s.GetOrder(second)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, o.State)
	assert.Equal(t, "equipment replaced", o.Notes)
}

func TestAddMaterial_AnyState(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	id := created[0].ID

	_, err = s.CompleteOrder(ctx, id, testNow, 1, "", 0)
	require.NoError(t, err)
	o, err := s.AddMaterial(ctx, id, "gasket kit")
	require.NoError(t, err)
	assert.Equal(t, []string{"gasket kit"}, o.Materials)

	_, err = s.AddMaterial(ctx, id, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEquipmentStateFollowsOrders(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)

	_, err = s.StartOrder(ctx, created[0].ID, testNow)
	require.NoError(t, err)
	_, err = s.StartOrder(ctx, created[1].ID, testNow)
	require.NoError(t, err)
	e, _ := s.GetEquipment(1)
	assert.Equal(t, models.EquipmentInPreventive, e.State)

	corrective, err := s.CreateCorrectiveOrder(ctx, time.Time{}, 1, "bearing noise", models.PriorityHigh)
	require.NoError(t, err)
	_, err = s.StartOrder(ctx, corrective.ID, testNow)
	require.NoError(t, err)
	e, _ = s.GetEquipment(1)
	assert.Equal(t, models.EquipmentInCorrective, e.State)

	_, err = s.CompleteOrder(ctx, corrective.ID, testNow, 4, "bearing replaced", 0)
	require.NoError(t, err)
	e, _ = s.GetEquipment(1)
	assert.Equal(t, models.EquipmentInPreventive, e.State)

	_, err = s.CompleteOrder(ctx, created[0].ID, testNow, 1, "", 0)
	require.NoError(t, err)
	e, _ = s.GetEquipment(1)
	assert.Equal(t, models.EquipmentInPreventive, e.State, "another order is still in progress")

	_, err = s.CancelOrder(ctx, created[1].ID, "postponed")
	require.NoError(t, err)
	e, _ = s.GetEquipment(1)
	assert.Equal(t, models.EquipmentOperational, e.State)
}

func TestEquipmentStateFollowsOrders_ManualStateKept(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)

	_, err = s.ChangeEquipmentState(ctx, 1, models.EquipmentOutOfService)
	require.NoError(t, err)
	_, err = s.CancelOrder(ctx, created[0].ID, "unit out of service")
	require.NoError(t, err)

	e, _ := s.GetEquipment(1)
	assert.Equal(t, models.EquipmentOutOfService, e.State)

	_, err = s.ChangeEquipmentState(ctx, 1, "BROKEN")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestEquipmentStateFollowsOrders_DiscardedStaysDiscarded(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)

	_, err = s.ChangeEquipmentState(ctx, 1, models.EquipmentDiscarded)
	require.NoError(t, err)

	_, err = s.StartOrder(ctx, created[0].ID, testNow)
	require.NoError(t, err)
	e, _ := s.GetEquipment(1)
	assert.Equal(t, models.EquipmentDiscarded, e.State)

	_, err = s.CompleteOrder(ctx, created[0].ID, testNow, 1, "", 0)
	require.NoError(t, err)
	e, _ = s.GetEquipment(1)
	assert.Equal(t, models.EquipmentDiscarded, e.State)
}

func TestRemoveEquipment_ReferencedByOrders(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	_, err := s.CreateCorrectiveOrder(ctx, testNow, 1, "leak", models.PriorityLow)
	require.NoError(t, err)

	err = s.RemoveEquipment(ctx, 1)
	assert.ErrorIs(t, err, models.ErrReferentialIntegrity)
	_, err = s.GetEquipment(1)
	assert.NoError(t, err)

	_, err = s.AddEquipment(ctx, pump(3))
	require.NoError(t, err)
	assert.NoError(t, s.RemoveEquipment(ctx, 3))
	assert.ErrorIs(t, s.RemoveEquipment(ctx, 3), models.ErrNotFound)
}

func TestRemoveProgram_AssignedToEquipment(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()

	assert.ErrorIs(t, s.RemoveProgram(ctx, 10), models.ErrReferentialIntegrity)

	e, err := s.UnassignProgram(ctx, 1)
	require.NoError(t, err)
	assert.False(t, e.HasProgram())
	assert.NoError(t, s.RemoveProgram(ctx, 10))
	assert.Empty(t, s.ListPrograms())
}

func TestRemoveProgram_ReferencedByOpenOrders(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	_, err = s.UnassignProgram(ctx, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, s.RemoveProgram(ctx, 10), models.ErrReferentialIntegrity)

	_, err = s.CompleteOrder(ctx, created[0].ID, testNow, 1, "", 0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.RemoveProgram(ctx, 10), models.ErrReferentialIntegrity)

	_, err = s.CancelOrder(ctx, created[1].ID, "program retired")
	require.NoError(t, err)
	assert.NoError(t, s.RemoveProgram(ctx, 10))
}

func TestRemoveTechnician_AssignedToOpenOrder(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	_, err := s.AddTechnician(ctx, models.Technician{ID: 3, FirstName: "Luis", LastName: "Pérez"})
	require.NoError(t, err)
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)

	_, err = s.AssignTechnician(ctx, created[0].ID, 3)
	require.NoError(t, err)
	assert.ErrorIs(t, s.RemoveTechnician(ctx, 3), models.ErrReferentialIntegrity)

	_, err = s.CompleteOrder(ctx, created[0].ID, testNow, 1, "", 3)
	require.NoError(t, err)
	assert.NoError(t, s.RemoveTechnician(ctx, 3))

	_, err = s.AssignTechnician(ctx, created[1].ID, 3)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAssignProgram(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.AddEquipment(ctx, pump(1))
	require.NoError(t, err)

	_, err = s.AssignProgram(ctx, 1, 10)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.AddProgram(ctx, twoPhaseProgram(10))
	require.NoError(t, err)
	e, err := s.AssignProgram(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), e.ProgramID)

	_, err = s.AssignProgram(ctx, 1, 0)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAddPhase(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.AddProgram(ctx, twoPhaseProgram(10))
	require.NoError(t, err)

	p, err := s.AddPhase(ctx, 10, models.Phase{Number: 3, Description: "Align shaft", Frequency: models.FrequencyAnnual})
	require.NoError(t, err)
	require.Len(t, p.Phases, 3)
	assert.Equal(t, 365, p.Phases[2].IntervalDays)

	_, err = s.AddPhase(ctx, 10, models.Phase{Number: 1, Description: "Again", Frequency: models.FrequencyDaily})
	assert.ErrorIs(t, err, models.ErrConflict)
	_, err = s.AddPhase(ctx, 11, models.Phase{Number: 1, Description: "Orphan", Frequency: models.FrequencyDaily})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreatePreventiveOrder(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()

	o, err := s.CreatePreventiveOrder(ctx, testNow.AddDate(0, 0, 7), 1, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPreventive, o.Kind)

	_, err = s.CreatePreventiveOrder(ctx, testNow, 1, 10, 9)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.CreatePreventiveOrder(ctx, testNow, 2, 10, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOrderIDsStrictlyIncrease(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	_, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.CreateCorrectiveOrder(ctx, testNow, 1, "noise", models.PriorityMedium)
		require.NoError(t, err)
	}

	orders := s.ListOrders(OrderFilter{})
	require.Len(t, orders, 5)
	for i := 1; i < len(orders); i++ {
		assert.Greater(t, orders[i].ID, orders[i-1].ID)
	}
}

func TestListOrders_Filter(t *testing.T) {
	s := newTestService(t)
	setupScenario(t, s)
	ctx := context.Background()
	created, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	_, err = s.StartOrder(ctx, created[0].ID, testNow)
	require.NoError(t, err)
	_, err = s.CreateCorrectiveOrder(ctx, testNow, 1, "vibration", "")
	require.NoError(t, err)

	assert.Len(t, s.ListOrders(OrderFilter{State: models.OrderInProgress}), 1)
	assert.Len(t, s.ListOrders(OrderFilter{State: models.OrderScheduled}), 2)
	corrective := s.ListOrders(OrderFilter{Kind: models.OrderCorrective})
	require.Len(t, corrective, 1)
	assert.Equal(t, models.PriorityMedium, corrective[0].Priority)
	assert.Empty(t, s.ListOrders(OrderFilter{EquipmentID: 2}))

	_, err = s.OrdersForEquipment(2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCalendar(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	added, err := s.ScheduleDate(ctx, testNow)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.ScheduleDate(ctx, testNow.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.ScheduleDate(ctx, time.Time{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.ScheduleDate(ctx, testNow.AddDate(0, 0, -10))
	require.NoError(t, err)
	_, err = s.ScheduleDate(ctx, testNow.AddDate(0, 0, 10))
	require.NoError(t, err)

	due := s.DueDates()
	require.Len(t, due, 2)
	assert.True(t, due[0].Before(due[1]))
	assert.Len(t, s.CalendarDates(), 3)

	require.NoError(t, s.UnscheduleDate(ctx, testNow))
	assert.ErrorIs(t, s.UnscheduleDate(ctx, testNow), models.ErrNotFound)
}

func TestAuditTrail(t *testing.T) {
	s := newTestService(t)
	ctx := WithActor(context.Background(), "planner")
	setupScenario(t, s)
	_, err := s.ScheduleDate(ctx, testNow)
	require.NoError(t, err)
	_, err = s.GeneratePendingOrders(ctx)
	require.NoError(t, err)

	events, err := s.AuditEvents(ctx, audit.Filter{Actor: "planner"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.EntityCalendar, events[0].EntityType)
	assert.Equal(t, "generate", events[1].Action)

	system, err := s.AuditEvents(ctx, audit.Filter{Actor: SystemActor})
	require.NoError(t, err)
	assert.Len(t, system, 3)
}

type brokenSink struct{}

func (brokenSink) RecordEvent(context.Context, models.AuditEvent) error {
	return errors.New("broker unavailable")
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	s := New(WithClock(func() time.Time { return testNow }), WithLogger(logger), WithAuditSinks(brokenSink{}))

	_, err := s.AddEquipment(context.Background(), pump(1))
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "Failed to deliver audit event", hook.LastEntry().Message)
	events, err := s.AuditEvents(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

type gatedSink struct {
	release chan struct{}
	log     *audit.Log
}

func (g *gatedSink) RecordEvent(ctx context.Context, event models.AuditEvent) error {
	<-g.release
	return g.log.RecordEvent(ctx, event)
}

func TestSlowAuditSinkDoesNotBlockOperations(t *testing.T) {
	sink := &gatedSink{release: make(chan struct{}), log: audit.NewLog()}
	s := newTestService(t, WithAuditSinks(sink))
	ctx := context.Background()

	// Every call returns while the sink is still held back.
	setupScenario(t, s)
	_, err := s.GeneratePendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, sink.log.Events(audit.Filter{}))

	close(sink.release)
	require.NoError(t, s.Close(ctx))
	assert.Len(t, sink.log.Events(audit.Filter{}), 4)
}

type stubAuditStore struct {
	filter audit.Filter
	events []models.AuditEvent
	err    error
}

func (st *stubAuditStore) Events(_ context.Context, f audit.Filter) ([]models.AuditEvent, error) {
	st.filter = f
	return st.events, st.err
}

func TestAuditEvents_FromStore(t *testing.T) {
	stored := []models.AuditEvent{models.NewAuditEvent("archived", models.EntityOrder, "complete", "order 1", testNow)}
	store := &stubAuditStore{events: stored}
	s := newTestService(t, WithAuditStore(store))

	events, err := s.AuditEvents(context.Background(), audit.Filter{Action: "complete"})
	require.NoError(t, err)
	assert.Equal(t, stored, events)
	assert.Equal(t, "complete", store.filter.Action)

	store.err = errors.New("mongo down")
	_, err = s.AuditEvents(context.Background(), audit.Filter{})
	assert.Error(t, err)
}

func TestActorFromContext(t *testing.T) {
	assert.Equal(t, SystemActor, ActorFromContext(context.Background()))
	assert.Equal(t, SystemActor, ActorFromContext(WithActor(context.Background(), "  ")))
	assert.Equal(t, "maria", ActorFromContext(WithActor(context.Background(), "maria")))
}
