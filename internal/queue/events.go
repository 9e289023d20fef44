package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types emitted on the call lifecycle topic.
const (
	EventCallCreated   = "call.created"
	EventCallCompleted = "call.completed"
	EventCallFailed    = "call.failed"
)

// CallEvent is the lifecycle record published per call. Delivery is
// at-least-once; consumers dedupe on EventID.
type CallEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	CallSID     string    `json:"call_sid,omitempty"`
	AgentID     string    `json:"agent_id,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	JoinURL     string    `json:"join_url,omitempty"`
	Step        string    `json:"step,omitempty"`
	Error       string    `json:"error,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// CallEventPublisher emits call lifecycle events.
type CallEventPublisher struct {
	writer *kafka.Writer
}

// NewCallEventPublisher constructs a publisher for the given topic.
func NewCallEventPublisher(k *Kafka, topic string) *CallEventPublisher {
	return &CallEventPublisher{writer: k.NewWriter(topic)}
}

// Publish emits one event, keyed by call SID so a call's events stay ordered
// within their partition.
func (p *CallEventPublisher) Publish(ctx context.Context, event CallEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("event publisher: marshal event: %w", err)
	}
	record := kafka.Message{
		Key:   []byte(event.CallSID),
		Value: value,
		Time:  event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("event publisher: write event: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *CallEventPublisher) Close() error {
	return p.writer.Close()
}
