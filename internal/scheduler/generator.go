// Package scheduler expands due calendar days into preventive orders.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-scheduler/internal/db"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// EquipmentLister is the part of the equipment registry the generator reads.
type EquipmentLister interface {
	ListEquipment() []models.Equipment
}

// ProgramFinder resolves an equipment's assigned program.
type ProgramFinder interface {
	FindProgramByID(id int64) (models.PreventiveProgram, error)
}

// DueDateSource yields the calendar days that are due.
type DueDateSource interface {
	DuePendingDates(now time.Time) []time.Time
}

// OrderSink receives generated orders and answers whether a triple was already generated.
type OrderSink interface {
	InsertOrder(order models.Order) (models.Order, error)
	FindPreventiveOrder(date time.Time, equipmentID, programID int64, phaseNumber int) (models.Order, bool)
}

var (
	_ EquipmentLister = (*db.EquipmentRegistry)(nil)
	_ ProgramFinder   = (*db.ProgramStore)(nil)
	_ DueDateSource   = (*db.MaintenanceCalendar)(nil)
	_ OrderSink       = (*db.OrderStore)(nil)
)

// Generator creates one preventive order per (due day, equipment, phase).
type Generator struct {
	equipment EquipmentLister
	programs  ProgramFinder
	calendar  DueDateSource
	orders    OrderSink
	now       func() time.Time
	log       logrus.FieldLogger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the time source used to decide which days are due.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the generator's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(g *Generator) { g.log = log }
}

// NewGenerator wires a generator over the given stores.
func NewGenerator(equipment EquipmentLister, programs ProgramFinder, calendar DueDateSource, orders OrderSink, opts ...Option) *Generator {
	g := &Generator{
		equipment: equipment,
		programs:  programs,
		calendar:  calendar,
		orders:    orders,
		now:       time.Now,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GeneratePendingOrders inserts a SCHEDULED, unassigned preventive order for
// every due day, every equipment with a program, and every phase of that
// program in stored order. Triples that already have an order are skipped,
// so repeated runs do not duplicate work. The created orders are returned.
func (g *Generator) GeneratePendingOrders(ctx context.Context) ([]models.Order, error) {
	dueDates := g.calendar.DuePendingDates(g.now())
	if len(dueDates) == 0 {
		return nil, nil
	}

	// Programs are resolved once per run.
	type target struct {
		equipment models.Equipment
		program   models.PreventiveProgram
	}
	var targets []target
	for _, e := range g.equipment.ListEquipment() {
		if !e.HasProgram() {
			g.log.WithField("equipment_id", e.ID).Debug("No preventive program assigned, skipping")
			continue
		}
		program, err := g.programs.FindProgramByID(e.ProgramID)
		if err != nil {
			g.log.WithError(err).WithFields(logrus.Fields{
				"equipment_id": e.ID,
				"program_id":   e.ProgramID,
			}).Warn("Assigned program not found, skipping equipment")
			continue
		}
		targets = append(targets, target{equipment: e, program: program})
	}

	var created []models.Order
	skipped := 0
	for _, day := range dueDates {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		for _, t := range targets {
			for _, phase := range t.program.PhaseList() {
				if _, exists := g.orders.FindPreventiveOrder(day, t.equipment.ID, t.program.ID, phase.Number); exists {
					skipped++
					continue
				}
				order, err := models.NewPreventiveOrder(day, t.equipment.ID, t.program.ID, phase.Number)
				if err != nil {
					return created, fmt.Errorf("build order for equipment %d phase %d: %w", t.equipment.ID, phase.Number, err)
				}
				stored, err := g.orders.InsertOrder(*order)
				if err != nil {
					return created, fmt.Errorf("insert order for equipment %d phase %d: %w", t.equipment.ID, phase.Number, err)
				}
				created = append(created, stored)
			}
		}
	}

	g.log.WithFields(logrus.Fields{
		"due_dates": len(dueDates),
		"created":   len(created),
		"skipped":   skipped,
	}).Info("Generated preventive orders")
	return created, nil
}
