package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Type string

const (
	OrderPlaced         Type = "order.placed"
	CheckoutCompensated Type = "checkout.compensated"
)

// Event is a domain fact. Key orders events of the same aggregate.
type Event struct {
	Type       Type
	Key        string
	Payload    any
	OccurredAt time.Time
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type envelope struct {
	Type       Type            `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

func encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.Type, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return json.Marshal(envelope{
		Type:       event.Type,
		Key:        event.Key,
		OccurredAt: occurred,
		Data:       data,
	})
}

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}
	p.log.Info("event published",
		zap.String("event_type", string(event.Type)),
		zap.String("key", event.Key),
		zap.ByteString("body", body))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
