package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ukydev/maintenance-scheduler/internal/models"
)

// Publisher is the subset of mqtt.Client used to publish events.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes audit events as JSON under
// <prefix>/<entity type>/<action>, so technicians' terminals can subscribe
// to order transitions only.
type MQTTPublisher struct {
	client  Publisher
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher creates a publisher over a connected client.
func NewMQTTPublisher(client Publisher, prefix string) *MQTTPublisher {
	if prefix == "" {
		prefix = "maintenance/audit"
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: 1, timeout: 5 * time.Second}
}

// ConnectMQTT connects a paho client to broker.
func ConnectMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(event models.AuditEvent) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, event.EntityType, event.Action)
}

// RecordEvent publishes the event and waits for the broker acknowledgement.
func (p *MQTTPublisher) RecordEvent(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	token := p.client.Publish(p.Topic(event), p.qos, false, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish audit event %s: timed out", event.ID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish audit event %s: %w", event.ID, err)
	}
	return nil
}
