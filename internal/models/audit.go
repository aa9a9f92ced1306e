package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity types recorded in the audit trail.
const (
	EntityEquipment  = "equipment"
	EntityProgram    = "program"
	EntityTechnician = "technician"
	EntityOrder      = "order"
	EntityCalendar   = "calendar"
)

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	ID         string    `bson:"_id" json:"id"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	Actor      string    `bson:"actor" json:"actor"`
	EntityType string    `bson:"entity_type" json:"entity_type"`
	Action     string    `bson:"action" json:"action"`
	Detail     string    `bson:"detail" json:"detail"`
}

// NewAuditEvent stamps a new event with a random id and the given time.
func NewAuditEvent(actor, entityType, action, detail string, at time.Time) AuditEvent {
	return AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  at,
		Actor:      actor,
		EntityType: entityType,
		Action:     action,
		Detail:     detail,
	}
}
