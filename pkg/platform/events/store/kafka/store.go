// Package kafka publishes domain events to a Kafka topic. Redpanda works
// unchanged since it speaks the Kafka protocol.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/events"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultTopic = "libripal.events"

// Store implements events.Store by producing to a Kafka topic. Reads are not
// supported; a downstream consumer owns the query side.
type Store struct {
	client *kgo.Client
	topic  string
}

// Option configures the store.
type Option func(*Store)

// WithTopic overrides the default topic name.
func WithTopic(topic string) Option {
	return func(s *Store) { s.topic = topic }
}

// New opens a producer against the given brokers and ensures the topic
// exists. Topic creation is idempotent so concurrent startups are safe.
func New(ctx context.Context, brokers []string, opts ...Option) (*Store, error) {
	s := &Store{topic: defaultTopic}
	for _, opt := range opts {
		opt(s)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(s.topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s.client = client

	if err := s.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureTopic(ctx context.Context) error {
	admin := kadm.NewClient(s.client)

	resp, err := admin.CreateTopics(ctx, 3, 1, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, result := range resp {
		// Another instance getting there first is fine.
		if result.Err != nil && !errors.Is(result.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", result.Topic, result.Err)
		}
	}
	return nil
}

// wirePayload is the JSON structure produced to Kafka.
type wirePayload struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	PatronID  string `json:"patron_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Append produces the event, keyed by patron ID so per-patron ordering holds
// within a partition.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	payload := wirePayload{
		ID:        uuid.New().String(),
		Type:      string(event.Type),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	}
	if !event.PatronID.IsNil() {
		payload.PatronID = event.PatronID.String()
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(payload.PatronID),
		Value: value,
	}

	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// ListByPatron is not supported on the Kafka store.
func (s *Store) ListByPatron(_ context.Context, _ id.PatronID) ([]events.Event, error) {
	return nil, dErrors.New(dErrors.CodeBadRequest, "event history is not queryable from the kafka store")
}

// Close flushes any buffered records and closes the producer.
func (s *Store) Close() {
	s.client.Close()
}
