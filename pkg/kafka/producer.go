// Package kafka publishes clover events.
package kafka

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Writer is the subset of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles Kafka event emission
type Producer struct {
	writer Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	var compression kafka.Compression
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
	default:
		compression = kafka.Snappy
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, logger)
}

// NewProducerWithWriter wraps an existing writer. Leave topic empty when the
// writer sets its own.
func NewProducerWithWriter(writer Writer, topic string, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, logger: logger, topic: topic}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Event is one message: Key selects the partition, Headers are copied as-is.
type Event struct {
	Key     string
	Headers map[string]string
	Payload any
}

// Publish serializes event as JSON and writes it with the trace context headers of ctx.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Publish")
	defer span.End()

	data, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:     []byte(event.Key),
		Value:   data,
		Headers: headers(ctx, event.Headers),
	}
	if p.topic != "" {
		msg.Topic = p.topic
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": p.topic,
		"key":   event.Key,
	})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("Failed to publish event")
		return err
	}

	log.Debug("Published event")
	return nil
}

func headers(ctx context.Context, fields map[string]string) []kafka.Header {
	out := make([]kafka.Header, 0, len(fields)+2)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		out = append(out, kafka.Header{Key: k, Value: []byte(fields[k])})
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		out = append(out, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}
	if tracestate := tracing.GetTraceState(ctx); tracestate != "" {
		out = append(out, kafka.Header{Key: "tracestate", Value: []byte(tracestate)})
	}
	return out
}
