package audit

import (
	"context"
	"fmt"

	"github.com/ukydev/maintenance-scheduler/internal/db"
	"github.com/ukydev/maintenance-scheduler/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecorder stores audit events in a MongoDB collection.
type MongoRecorder struct {
	Collection db.AuditCollection
}

// NewMongoRecorder wraps an audit collection.
func NewMongoRecorder(collection db.AuditCollection) *MongoRecorder {
	return &MongoRecorder{Collection: collection}
}

// RecordEvent inserts the event.
func (r *MongoRecorder) RecordEvent(ctx context.Context, event models.AuditEvent) error {
	if err := r.Collection.InsertAuditEvent(ctx, event); err != nil {
		return fmt.Errorf("store audit event %s: %w", event.ID, err)
	}
	return nil
}

// Events queries stored events matching f, oldest first.
func (r *MongoRecorder) Events(ctx context.Context, f Filter) ([]models.AuditEvent, error) {
	filter := bson.M{}
	if f.Actor != "" {
		filter["actor"] = f.Actor
	}
	if f.EntityType != "" {
		filter["entity_type"] = f.EntityType
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	cursor, err := r.Collection.FindAuditEvents(ctx, filter, options.Find().SetSort(bson.M{"timestamp": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
