package models

import (
	"fmt"
	"strings"
	"time"
)

// NoTechnicianSignature signs orders completed without a recorded technician.
const NoTechnicianSignature = "NO TECHNICIAN RECORDED"

// OrderKind distinguishes planned work from failure repairs.
type OrderKind string

const (
	OrderPreventive OrderKind = "PREVENTIVE"
	OrderCorrective OrderKind = "CORRECTIVE"
)

// OrderState is the lifecycle position of an order.
type OrderState string

const (
	OrderScheduled  OrderState = "SCHEDULED"
	OrderInProgress OrderState = "IN_PROGRESS"
	OrderCompleted  OrderState = "COMPLETED"
	OrderCancelled  OrderState = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s OrderState) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// IsValidOrderState checks if a state is valid
func IsValidOrderState(s OrderState) bool {
	switch s {
	case OrderScheduled, OrderInProgress, OrderCompleted, OrderCancelled:
		return true
	default:
		return false
	}
}

// Priority ranks corrective orders.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// IsValidPriority checks if a priority is valid
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Order is a unit of maintenance work on one equipment. Equipment, phase and
// technician are referenced by id only. TechnicianID is zero while unassigned.
type Order struct {
	ID                 int64      `json:"id"`
	Kind               OrderKind  `json:"kind"`
	ScheduledDate      time.Time  `json:"scheduled_date"`
	ExecutionDate      *time.Time `json:"execution_date,omitempty"`
	CancellationDate   *time.Time `json:"cancellation_date,omitempty"`
	State              OrderState `json:"state"`
	EquipmentID        int64      `json:"equipment_id"`
	ProgramID          int64      `json:"program_id,omitempty"`
	PhaseNumber        int        `json:"phase_number,omitempty"`
	FailureDescription string     `json:"failure_description,omitempty"`
	Priority           Priority   `json:"priority,omitempty"`
	TechnicianID       int64      `json:"technician_id,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	Diagnosis          string     `json:"diagnosis,omitempty"`
	HoursWorked        float64    `json:"hours_worked"`
	Materials          []string   `json:"materials,omitempty"`
	Signature          string     `json:"signature,omitempty"`
}

// NewPreventiveOrder creates an unassigned, scheduled order for one program phase.
func NewPreventiveOrder(date time.Time, equipmentID, programID int64, phaseNumber int) (*Order, error) {
	o := &Order{
		Kind:          OrderPreventive,
		ScheduledDate: Day(date),
		State:         OrderScheduled,
		EquipmentID:   equipmentID,
		ProgramID:     programID,
		PhaseNumber:   phaseNumber,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewCorrectiveOrder creates a scheduled repair order for a reported failure.
func NewCorrectiveOrder(date time.Time, equipmentID int64, failure string, priority Priority) (*Order, error) {
	o := &Order{
		Kind:               OrderCorrective,
		ScheduledDate:      Day(date),
		State:              OrderScheduled,
		EquipmentID:        equipmentID,
		FailureDescription: strings.TrimSpace(failure),
		Priority:           priority,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the fields required for an order of its kind.
func (o *Order) Validate() error {
	if o.ScheduledDate.IsZero() {
		return fmt.Errorf("%w: scheduled date is required", ErrValidation)
	}
	if o.EquipmentID <= 0 {
		return fmt.Errorf("%w: equipment id must be positive, got %d", ErrValidation, o.EquipmentID)
	}
	if !IsValidOrderState(o.State) {
		return fmt.Errorf("%w: unknown order state %q", ErrValidation, o.State)
	}
	switch o.Kind {
	case OrderPreventive:
		if o.ProgramID <= 0 || o.PhaseNumber <= 0 {
			return fmt.Errorf("%w: preventive order needs a program and phase", ErrValidation)
		}
	case OrderCorrective:
		if isBlank(o.FailureDescription) {
			return fmt.Errorf("%w: corrective order needs a failure description", ErrValidation)
		}
		if !IsValidPriority(o.Priority) {
			return fmt.Errorf("%w: unknown priority %q", ErrValidation, o.Priority)
		}
	default:
		return fmt.Errorf("%w: unknown order kind %q", ErrValidation, o.Kind)
	}
	return nil
}

// HasTechnician reports whether a technician is assigned.
func (o *Order) HasTechnician() bool {
	return o.TechnicianID != 0
}

// Start moves a non-terminal order to IN_PROGRESS.
func (o *Order) Start(executionDate time.Time) error {
	if o.State.IsTerminal() {
		return o.transitionError("start")
	}
	if executionDate.IsZero() {
		return fmt.Errorf("%w: execution date is required", ErrValidation)
	}
	o.State = OrderInProgress
	o.ExecutionDate = &executionDate
	return nil
}

// Complete closes the order and signs it with the technician's full name.
// A nil technician clears any assignment and signs NoTechnicianSignature.
func (o *Order) Complete(realDate time.Time, hoursWorked float64, diagnosis string, technician *Technician) error {
	if o.State.IsTerminal() {
		return o.transitionError("complete")
	}
	if realDate.IsZero() {
		return fmt.Errorf("%w: completion date is required", ErrValidation)
	}
	if hoursWorked < 0 {
		return fmt.Errorf("%w: hours worked cannot be negative", ErrValidation)
	}
	o.State = OrderCompleted
	o.ExecutionDate = &realDate
	o.HoursWorked = hoursWorked
	o.Diagnosis = diagnosis
	if technician != nil {
		o.TechnicianID = technician.ID
		o.Signature = technician.FullName()
	} else {
		o.TechnicianID = 0
		o.Signature = NoTechnicianSignature
	}
	return nil
}

// Cancel moves a non-terminal order to CANCELLED, keeping the reason in Notes.
func (o *Order) Cancel(reason string, now time.Time) error {
	if o.State.IsTerminal() {
		return o.transitionError("cancel")
	}
	o.State = OrderCancelled
	o.CancellationDate = &now
	o.Notes = reason
	return nil
}

// AddMaterial records a material used. Terminal orders accept materials too.
func (o *Order) AddMaterial(material string) error {
	material = strings.TrimSpace(material)
	if material == "" {
		return fmt.Errorf("%w: material cannot be blank", ErrValidation)
	}
	o.Materials = append(o.Materials, material)
	return nil
}

// AssignTechnician sets the responsible technician on an open order.
func (o *Order) AssignTechnician(technicianID int64) error {
	if o.State.IsTerminal() {
		return o.transitionError("assign technician to")
	}
	if technicianID <= 0 {
		return fmt.Errorf("%w: technician id must be positive, got %d", ErrValidation, technicianID)
	}
	o.TechnicianID = technicianID
	return nil
}

// Clone returns a copy that shares no mutable state with o.
func (o Order) Clone() Order {
	if o.ExecutionDate != nil {
		t := *o.ExecutionDate
		o.ExecutionDate = &t
	}
	if o.CancellationDate != nil {
		t := *o.CancellationDate
		o.CancellationDate = &t
	}
	o.Materials = append([]string(nil), o.Materials...)
	return o
}

func (o *Order) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s order %d in state %s", ErrInvalidTransition, action, o.ID, o.State)
}
