package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"betledger/events"
	"betledger/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const forwardTimeout = 5 * time.Second

// EventEnvelope wraps a committed ledger event for external consumers
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// EventForwarder republishes committed bus events to a message bus
type EventForwarder struct {
	publisher MessagePublisher
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewEventForwarder creates a forwarder; metrics may be nil
func NewEventForwarder(publisher MessagePublisher, metrics *observability.Metrics) *EventForwarder {
	return &EventForwarder{
		publisher: publisher,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Attach subscribes the forwarder to every event type on the bus
func (f *EventForwarder) Attach(bus *events.Bus) {
	bus.SubscribeAll(f.Handle)
	log.WithField("eventTypes", len(events.AllEventTypes)).Info("Forwarding ledger events to NATS")
}

// Handle forwards a single event. Failures are logged and counted, never retried.
func (f *EventForwarder) Handle(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()

	err := f.forward(ctx, event)
	f.metrics.RecordEventForward(string(event.Type()), err)
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to forward event")
	}
}

func (f *EventForwarder) forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     f.now(),
		SourceService: subjectPrefix,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := EventSubject(event.Type())
	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event to NATS")
	return nil
}
