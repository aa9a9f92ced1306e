// Package maintenance is the application context of the scheduler: it owns
// the stores, guards cross-store references and records an audit trail.
package maintenance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-scheduler/internal/audit"
	"github.com/ukydev/maintenance-scheduler/internal/db"
	"github.com/ukydev/maintenance-scheduler/internal/models"
	"github.com/ukydev/maintenance-scheduler/internal/scheduler"
)

type actorKey struct{}

// SystemActor is recorded when a context carries no actor.
const SystemActor = "system"

// WithActor returns a context that attributes operations to actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && strings.TrimSpace(actor) != "" {
		return actor
	}
	return SystemActor
}

// Service is constructed once at startup and shared by every caller that
// needs cross-store access. Operations are serialized by a single mutex.
type Service struct {
	mu          sync.Mutex
	equipment   db.EquipmentCollection
	programs    db.ProgramCollection
	technicians db.TechnicianCollection
	orders      db.OrderCollection
	calendar    db.CalendarCollection
	generator   *scheduler.Generator
	auditLog    *audit.Log
	sinks       []audit.Recorder
	delivery    *audit.Buffered
	auditStore  AuditStore
	recorder    audit.Recorder
	now         func() time.Time
	log         logrus.FieldLogger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

// AuditStore answers audit queries from a durable sink.
type AuditStore interface {
	Events(ctx context.Context, f audit.Filter) ([]models.AuditEvent, error)
}

var _ AuditStore = (*audit.MongoRecorder)(nil)

// auditBufferSize bounds the events queued for external sinks.
const auditBufferSize = 1024

// WithAuditSinks adds recorders that receive every audit event besides the
// in-memory log. They are fed from a queue outside the service lock.
func WithAuditSinks(sinks ...audit.Recorder) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithAuditStore serves AuditEvents from store instead of the in-memory log.
func WithAuditStore(store AuditStore) Option {
	return func(s *Service) { s.auditStore = store }
}

// New creates a service over empty in-memory stores.
func New(opts ...Option) *Service {
	s := &Service{
		equipment:   db.NewEquipmentRegistry(),
		programs:    db.NewProgramStore(),
		technicians: db.NewTechnicianStore(),
		orders:      db.NewOrderStore(),
		calendar:    db.NewMaintenanceCalendar(),
		auditLog:    audit.NewLog(),
		now:         time.Now,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = s.auditLog
	if len(s.sinks) > 0 {
		s.delivery = audit.NewBuffered(audit.Multi(s.sinks), auditBufferSize, s.log.WithField("component", "audit"))
		s.recorder = audit.Multi{s.auditLog, s.delivery}
	}
	s.generator = scheduler.NewGenerator(s.equipment, s.programs, s.calendar, s.orders,
		scheduler.WithClock(s.now),
		scheduler.WithLogger(s.log.WithField("component", "generator")),
	)
	return s
}

func (s *Service) record(ctx context.Context, entityType, action, detail string) {
	event := models.NewAuditEvent(ActorFromContext(ctx), entityType, action, detail, s.now().UTC())
	if err := s.recorder.RecordEvent(ctx, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"entity_type": entityType,
			"action":      action,
		}).Warn("Failed to record audit event")
	}
}

// AuditEvents returns the audit trail matching f, from the durable store
// when one is configured.
func (s *Service) AuditEvents(ctx context.Context, f audit.Filter) ([]models.AuditEvent, error) {
	if s.auditStore != nil {
		return s.auditStore.Events(ctx, f)
	}
	return s.auditLog.Events(f), nil
}

// Close flushes queued audit events to the external sinks.
func (s *Service) Close(ctx context.Context) error {
	if s.delivery == nil {
		return nil
	}
	return s.delivery.Close(ctx)
}

// Equipment

// AddEquipment registers a new equipment unit. An empty state defaults to
// OPERATIONAL. A non-zero program id must reference an existing program.
func (s *Service) AddEquipment(ctx context.Context, equipment models.Equipment) (models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if equipment.State == "" {
		equipment.State = models.EquipmentOperational
	}
	if err := s.checkProgram(equipment.ProgramID); err != nil {
		return models.Equipment{}, err
	}
	if err := s.equipment.AddEquipment(equipment); err != nil {
		return models.Equipment{}, err
	}
	s.record(ctx, models.EntityEquipment, "create", fmt.Sprintf("equipment %d", equipment.ID))
	return s.equipment.FindEquipmentByID(equipment.ID)
}

// UpdateEquipment replaces the descriptive fields of an equipment unit.
// An empty state keeps the current one.
func (s *Service) UpdateEquipment(ctx context.Context, equipment models.Equipment) (models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.equipment.FindEquipmentByID(equipment.ID)
	if err != nil {
		return models.Equipment{}, err
	}
	if equipment.State == "" {
		equipment.State = current.State
	}
	if err := s.checkProgram(equipment.ProgramID); err != nil {
		return models.Equipment{}, err
	}
	if err := s.equipment.UpdateEquipment(equipment); err != nil {
		return models.Equipment{}, err
	}
	s.record(ctx, models.EntityEquipment, "update", fmt.Sprintf("equipment %d", equipment.ID))
	return s.equipment.FindEquipmentByID(equipment.ID)
}

// RemoveEquipment deletes an equipment unit that no order references.
func (s *Service) RemoveEquipment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.equipment.FindEquipmentByID(id); err != nil {
		return err
	}
	if n := len(s.orders.ListOrdersByEquipment(id)); n > 0 {
		return fmt.Errorf("%w: equipment %d is referenced by %d orders", models.ErrReferentialIntegrity, id, n)
	}
	if err := s.equipment.RemoveEquipment(id); err != nil {
		return err
	}
	s.record(ctx, models.EntityEquipment, "delete", fmt.Sprintf("equipment %d", id))
	return nil
}

// GetEquipment returns one equipment unit.
func (s *Service) GetEquipment(id int64) (models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equipment.FindEquipmentByID(id)
}

// ListEquipment returns all equipment ordered by id.
func (s *Service) ListEquipment() []models.Equipment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equipment.ListEquipment()
}

// AssignProgram attaches an existing program to an equipment unit,
// replacing any previous assignment.
func (s *Service) AssignProgram(ctx context.Context, equipmentID, programID int64) (models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if programID <= 0 {
		return models.Equipment{}, fmt.Errorf("%w: program id must be positive, got %d", models.ErrValidation, programID)
	}
	if err := s.checkProgram(programID); err != nil {
		return models.Equipment{}, err
	}
	equipment, err := s.equipment.FindEquipmentByID(equipmentID)
	if err != nil {
		return models.Equipment{}, err
	}
	equipment.ProgramID = programID
	if err := s.equipment.UpdateEquipment(equipment); err != nil {
		return models.Equipment{}, err
	}
	s.record(ctx, models.EntityEquipment, "assign_program", fmt.Sprintf("equipment %d program %d", equipmentID, programID))
	return equipment, nil
}

// UnassignProgram detaches the program of an equipment unit.
func (s *Service) UnassignProgram(ctx context.Context, equipmentID int64) (models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	equipment, err := s.equipment.FindEquipmentByID(equipmentID)
	if err != nil {
		return models.Equipment{}, err
	}
	if !equipment.HasProgram() {
		return equipment, nil
	}
	previous := equipment.ProgramID
	equipment.ProgramID = 0
	if err := s.equipment.UpdateEquipment(equipment); err != nil {
		return models.Equipment{}, err
	}
	s.record(ctx, models.EntityEquipment, "unassign_program", fmt.Sprintf("equipment %d program %d", equipmentID, previous))
	return equipment, nil
}

// ChangeEquipmentState sets the operational state of an equipment unit.
func (s *Service) ChangeEquipmentState(ctx context.Context, equipmentID int64, state models.EquipmentState) (models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !models.IsValidEquipmentState(state) {
		return models.Equipment{}, fmt.Errorf("%w: unknown equipment state %q", models.ErrValidation, state)
	}
	equipment, err := s.equipment.FindEquipmentByID(equipmentID)
	if err != nil {
		return models.Equipment{}, err
	}
	previous := equipment.State
	equipment.State = state
	if err := s.equipment.UpdateEquipment(equipment); err != nil {
		return models.Equipment{}, err
	}
	s.record(ctx, models.EntityEquipment, "change_state", fmt.Sprintf("equipment %d %s -> %s", equipmentID, previous, state))
	return equipment, nil
}

func (s *Service) checkProgram(programID int64) error {
	if programID == 0 {
		return nil
	}
	_, err := s.programs.FindProgramByID(programID)
	return err
}

// Programs

// AddProgram registers a new preventive program with its phases.
func (s *Service) AddProgram(ctx context.Context, program models.PreventiveProgram) (models.PreventiveProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if program.CreatedAt.IsZero() {
		program.CreatedAt = models.Day(s.now())
	}
	if err := s.programs.AddProgram(program); err != nil {
		return models.PreventiveProgram{}, err
	}
	s.record(ctx, models.EntityProgram, "create", fmt.Sprintf("program %d with %d phases", program.ID, len(program.Phases)))
	return s.programs.FindProgramByID(program.ID)
}

// AddPhase appends a phase to an existing program.
func (s *Service) AddPhase(ctx context.Context, programID int64, phase models.Phase) (models.PreventiveProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	program, err := s.programs.FindProgramByID(programID)
	if err != nil {
		return models.PreventiveProgram{}, err
	}
	if err := program.AddPhase(phase); err != nil {
		return models.PreventiveProgram{}, err
	}
	if err := s.programs.UpdateProgram(program); err != nil {
		return models.PreventiveProgram{}, err
	}
	s.record(ctx, models.EntityProgram, "add_phase", fmt.Sprintf("program %d phase %d", programID, phase.Number))
	return program, nil
}

// RemoveProgram deletes a program that no equipment is assigned to and no
// open order references.
func (s *Service) RemoveProgram(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.programs.FindProgramByID(id); err != nil {
		return err
	}
	for _, e := range s.equipment.ListEquipment() {
		if e.ProgramID == id {
			return fmt.Errorf("%w: program %d is assigned to equipment %d", models.ErrReferentialIntegrity, id, e.ID)
		}
	}
	for _, o := range s.orders.ListOrders() {
		if o.ProgramID == id && !o.State.IsTerminal() {
			return fmt.Errorf("%w: program %d is referenced by open order %d", models.ErrReferentialIntegrity, id, o.ID)
		}
	}
	if err := s.programs.RemoveProgram(id); err != nil {
		return err
	}
	s.record(ctx, models.EntityProgram, "delete", fmt.Sprintf("program %d", id))
	return nil
}

// GetProgram returns one program.
func (s *Service) GetProgram(id int64) (models.PreventiveProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.programs.FindProgramByID(id)
}

// ListPrograms returns all programs ordered by id.
func (s *Service) ListPrograms() []models.PreventiveProgram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.programs.ListPrograms()
}

// Technicians

// AddTechnician registers a technician.
func (s *Service) AddTechnician(ctx context.Context, technician models.Technician) (models.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.technicians.AddTechnician(technician); err != nil {
		return models.Technician{}, err
	}
	s.record(ctx, models.EntityTechnician, "create", fmt.Sprintf("technician %d %s", technician.ID, technician.FullName()))
	return technician, nil
}

// RemoveTechnician deletes a technician with no open order assigned.
func (s *Service) RemoveTechnician(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.technicians.FindTechnicianByID(id); err != nil {
		return err
	}
	for _, o := range s.orders.ListOrders() {
		if o.TechnicianID == id && !o.State.IsTerminal() {
			return fmt.Errorf("%w: technician %d is assigned to open order %d", models.ErrReferentialIntegrity, id, o.ID)
		}
	}
	if err := s.technicians.RemoveTechnician(id); err != nil {
		return err
	}
	s.record(ctx, models.EntityTechnician, "delete", fmt.Sprintf("technician %d", id))
	return nil
}

// GetTechnician returns one technician.
func (s *Service) GetTechnician(id int64) (models.Technician, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.technicians.FindTechnicianByID(id)
}

// ListTechnicians returns all technicians ordered by id.
func (s *Service) ListTechnicians() []models.Technician {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.technicians.ListTechnicians()
}

// Calendar

// ScheduleDate adds a maintenance day. It reports false when the day was
// already scheduled.
func (s *Service) ScheduleDate(ctx context.Context, date time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.calendar.AddDate(date)
	if err != nil {
		return false, err
	}
	if added {
		s.record(ctx, models.EntityCalendar, "schedule", models.Day(date).Format(models.DateLayout))
	}
	return added, nil
}

// UnscheduleDate removes a maintenance day.
func (s *Service) UnscheduleDate(ctx context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.calendar.RemoveDate(date); err != nil {
		return err
	}
	s.record(ctx, models.EntityCalendar, "unschedule", models.Day(date).Format(models.DateLayout))
	return nil
}

// DueDates returns the scheduled days that have arrived, ascending.
func (s *Service) DueDates() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calendar.DuePendingDates(s.now())
}

// CalendarDates returns every scheduled day, ascending.
func (s *Service) CalendarDates() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calendar.Dates()
}
