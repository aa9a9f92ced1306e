package db

import (
	"context"
	"time"

	"github.com/ukydev/maintenance-scheduler/internal/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EquipmentCollection defines the interface for equipment registry operations.
type EquipmentCollection interface {
	AddEquipment(equipment models.Equipment) error
	FindEquipmentByID(id int64) (models.Equipment, error)
	UpdateEquipment(equipment models.Equipment) error
	RemoveEquipment(id int64) error
	ListEquipment() []models.Equipment
}

// ProgramCollection defines the interface for preventive program operations.
type ProgramCollection interface {
	AddProgram(program models.PreventiveProgram) error
	FindProgramByID(id int64) (models.PreventiveProgram, error)
	UpdateProgram(program models.PreventiveProgram) error
	RemoveProgram(id int64) error
	ListPrograms() []models.PreventiveProgram
}

// TechnicianCollection defines the interface for technician operations.
type TechnicianCollection interface {
	AddTechnician(technician models.Technician) error
	FindTechnicianByID(id int64) (models.Technician, error)
	RemoveTechnician(id int64) error
	ListTechnicians() []models.Technician
}

// OrderCollection defines the interface for order operations. InsertOrder
// allocates the order id.
type OrderCollection interface {
	InsertOrder(order models.Order) (models.Order, error)
	FindOrderByID(id int64) (models.Order, error)
	UpdateOrder(order models.Order) error
	ListOrders() []models.Order
	ListOrdersByEquipment(equipmentID int64) []models.Order
	FindPreventiveOrder(date time.Time, equipmentID, programID int64, phaseNumber int) (models.Order, bool)
}

// CalendarCollection defines the interface for the maintenance calendar.
type CalendarCollection interface {
	AddDate(date time.Time) (bool, error)
	RemoveDate(date time.Time) error
	DuePendingDates(now time.Time) []time.Time
	Dates() []time.Time
}

// AuditCollection defines the interface for durable audit event storage.
type AuditCollection interface {
	InsertAuditEvent(ctx context.Context, event models.AuditEvent) error
	FindAuditEvents(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (AuditCursor, error)
}

// AuditCursor defines the interface for audit cursor operations.
type AuditCursor interface {
	All(ctx context.Context, out interface{}) error
	Close(ctx context.Context) error
}
