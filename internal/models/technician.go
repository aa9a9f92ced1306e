package models

import (
	"fmt"
	"strings"
)

// Technician is a person who carries out orders and signs them off.
type Technician struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty,omitempty"`
	Active    bool   `json:"active"`
}

// Validate checks required technician fields.
func (t *Technician) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: technician id must be positive, got %d", ErrValidation, t.ID)
	}
	if isBlank(t.FirstName) || isBlank(t.LastName) {
		return fmt.Errorf("%w: technician %d: first and last name are required", ErrValidation, t.ID)
	}
	return nil
}

// FullName is the name used to sign completed orders.
func (t *Technician) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(t.FirstName) + " " + strings.TrimSpace(t.LastName))
}
