package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes ledger events to a Kafka topic keyed by reference,
// so every event for one transaction lands on the same partition.
type KafkaNotifier struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaNotifier wraps a configured writer.
func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, now: time.Now}
}

type event struct {
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference"`
	Destination string    `json:"destination,omitempty"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Body        string    `json:"body,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Send encodes the message as JSON and writes it to the topic.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	at := n.now().UTC()
	payload, err := json.Marshal(event{
		Kind:        message.Kind,
		Reference:   message.Reference,
		Destination: message.Destination,
		Amount:      int64(message.Amount),
		Currency:    message.Currency.String(),
		Body:        message.Body,
		OccurredAt:  at,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(message.Reference),
		Value:   payload,
		Time:    at,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(message.Kind)}},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", message.Kind, err)
	}
	return nil
}
