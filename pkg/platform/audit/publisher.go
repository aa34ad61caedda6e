package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher is the sink for audit events. Implementations must be fail-open.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, Event) {}

// KafkaPublisher publishes audit events to a Kafka-compatible broker,
// asynchronously and fail-open: produce errors are counted and logged, never
// returned to the request path.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	sampler *Sampler
	logger  *slog.Logger
	metrics *Metrics
}

// KafkaOption configures the KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithLogger sets a logger for dropped events.
func WithLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) KafkaOption {
	return func(p *KafkaPublisher) {
		p.metrics = m
	}
}

// WithSampler sets the event sampler. Without one, every event is kept.
func WithSampler(s *Sampler) KafkaOption {
	return func(p *KafkaPublisher) {
		p.sampler = s
	}
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(3),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect audit brokers: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	p := &KafkaPublisher{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish hands the event to the broker asynchronously. Serialization or
// produce failures are counted and logged, nothing more.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if p.sampler != nil && !p.sampler.ShouldSample(event.Action) {
		p.metrics.IncSampled()
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.metrics.IncPublishFailure()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit event marshal failed", "action", event.Action, "error", err)
		}
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.SubjectID),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.metrics.IncPublishFailure()
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit publish dropped", "action", event.Action, "error", err)
			}
			return
		}
		p.metrics.IncPublished()
	})
}

// Close flushes buffered records and closes the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	defer p.client.Close()
	return p.client.Flush(ctx)
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	topics, err := admin.ListTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("list audit topics: %w", err)
	}
	if topics.Has(topic) {
		return nil
	}
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		return fmt.Errorf("create audit topic %s: %w", topic, err)
	}
	return nil
}
