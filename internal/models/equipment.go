package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EquipmentState represents the operating condition of a piece of equipment.
type EquipmentState string

const (
	EquipmentOperational    EquipmentState = "OPERATIONAL"
	EquipmentInPreventive   EquipmentState = "IN_PREVENTIVE_MAINTENANCE"
	EquipmentInCorrective   EquipmentState = "IN_CORRECTIVE_MAINTENANCE"
	EquipmentOutOfService   EquipmentState = "OUT_OF_SERVICE"
	EquipmentNonOperational EquipmentState = "NON_OPERATIONAL"
	EquipmentDiscarded      EquipmentState = "DISCARDED"
)

// IsValidEquipmentState checks if a state is one of the known equipment states
func IsValidEquipmentState(state EquipmentState) bool {
	switch state {
	case EquipmentOperational, EquipmentInPreventive, EquipmentInCorrective,
		EquipmentOutOfService, EquipmentNonOperational, EquipmentDiscarded:
		return true
	default:
		return false
	}
}

// Equipment represents a maintained asset. ProgramID is zero when no
// preventive program is assigned.
type Equipment struct {
	ID               int64           `json:"id"`
	Description      string          `json:"description"`
	Type             string          `json:"type"`
	Location         string          `json:"location"`
	Manufacturer     string          `json:"manufacturer"`
	Serial           string          `json:"serial"`
	AcquisitionDate  time.Time       `json:"acquisition_date"`
	ServiceStartDate time.Time       `json:"service_start_date"`
	UsefulLifeMonths int             `json:"useful_life_months"`
	Cost             decimal.Decimal `json:"cost"`
	State            EquipmentState  `json:"state"`
	ProgramID        int64           `json:"program_id,omitempty"`
	Components       []Equipment     `json:"components,omitempty"`
}

// Validate checks required fields and date/lifetime invariants, components included.
func (e *Equipment) Validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("%w: equipment id must be positive, got %d", ErrValidation, e.ID)
	}
	if isBlank(e.Description) {
		return fmt.Errorf("%w: equipment %d: description is required", ErrValidation, e.ID)
	}
	if e.AcquisitionDate.IsZero() || e.ServiceStartDate.IsZero() {
		return fmt.Errorf("%w: equipment %d: acquisition and service start dates are required", ErrValidation, e.ID)
	}
	if e.ServiceStartDate.Before(e.AcquisitionDate) {
		return fmt.Errorf("%w: equipment %d: service start %s is before acquisition %s",
			ErrValidation, e.ID, e.ServiceStartDate.Format(DateLayout), e.AcquisitionDate.Format(DateLayout))
	}
	if e.UsefulLifeMonths <= 0 {
		return fmt.Errorf("%w: equipment %d: useful life must be positive, got %d", ErrValidation, e.ID, e.UsefulLifeMonths)
	}
	if e.Cost.IsNegative() {
		return fmt.Errorf("%w: equipment %d: cost cannot be negative", ErrValidation, e.ID)
	}
	if !IsValidEquipmentState(e.State) {
		return fmt.Errorf("%w: equipment %d: unknown state %q", ErrValidation, e.ID, e.State)
	}
	if e.ProgramID < 0 {
		return fmt.Errorf("%w: equipment %d: program id cannot be negative", ErrValidation, e.ID)
	}
	for i := range e.Components {
		if err := e.Components[i].Validate(); err != nil {
			return fmt.Errorf("component of equipment %d: %w", e.ID, err)
		}
	}
	return nil
}

// HasProgram reports whether a preventive program is assigned.
func (e *Equipment) HasProgram() bool {
	return e.ProgramID != 0
}

// MonthlyDepreciation spreads the acquisition cost linearly over the useful life.
func (e *Equipment) MonthlyDepreciation() decimal.Decimal {
	if e.UsefulLifeMonths <= 0 {
		return decimal.Zero
	}
	return e.Cost.Div(decimal.NewFromInt(int64(e.UsefulLifeMonths))).Round(2)
}

// Clone returns a deep copy so callers cannot reach into a store's state.
func (e Equipment) Clone() Equipment {
	if e.Components != nil {
		components := make([]Equipment, len(e.Components))
		for i, c := range e.Components {
			components[i] = c.Clone()
		}
		e.Components = components
	}
	return e
}
