package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const DefaultTopic = "deathnote.registry.events"

// Kafka publishes registry events to a Kafka topic. Records are keyed by
// person id (falling back to note id) so per-record ordering survives
// partitioning.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type KafkaOption func(k *Kafka)

func WithTopic(topic string) KafkaOption {
	return func(k *Kafka) {
		k.topic = topic
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(k *Kafka) {
		k.logger = logger
	}
}

// NewKafka connects to the brokers and ensures the topic exists.
func NewKafka(ctx context.Context, brokers []string, opts ...KafkaOption) (*Kafka, error) {
	k := &Kafka{topic: DefaultTopic}
	for _, opt := range opts {
		opt(k)
	}
	if k.logger == nil {
		k.logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(k.topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	k.client = client

	if err := k.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return k, nil
}

func (k *Kafka) ensureTopic(ctx context.Context) error {
	admin := kadm.NewClient(k.client)
	resp, err := admin.CreateTopics(ctx, 3, 1, nil, k.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", k.topic, err)
	}
	for _, result := range resp.Sorted() {
		if result.Err != nil && !errors.Is(result.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", result.Topic, result.Err)
		}
	}
	return nil
}

// Emit publishes one event synchronously.
func (k *Kafka) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := event.PersonID
	if key == "" {
		key = event.NoteID
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "source_service", Value: []byte("deathnote-registry")},
			{Key: "schema_version", Value: []byte("v1")},
		},
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event %s: %w", event.Type, err)
	}
	return nil
}

func (k *Kafka) Close() {
	k.client.Close()
}
