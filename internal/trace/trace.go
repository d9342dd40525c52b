// Package trace publishes run spans to Kafka for external observability.
// Publishing is fire-and-forget: failures are logged and never affect the
// agent loop.
package trace

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Span is one observable unit of work within a run: a model call, a tool
// execution, or a terminal outcome.
type Span struct {
	RunID      string    `json:"run_id"`
	SpanType   string    `json:"span_type"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Span type constants.
const (
	SpanModel   = "MODEL"
	SpanTool    = "TOOL"
	SpanOutcome = "OUTCOME"
)

// Publisher emits spans to an external sink.
type Publisher interface {
	Publish(ctx context.Context, span Span)
	Close() error
}

// NoopPublisher discards all spans. Used when tracing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, span Span) {}
func (NoopPublisher) Close() error                           { return nil }

// KafkaPublisher writes spans as JSON messages keyed by run id.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
// Brokers is a comma-separated list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// Publish writes one span. Errors are logged, not returned: span delivery
// is never consulted for control flow.
func (p *KafkaPublisher) Publish(ctx context.Context, span Span) {
	payload, err := json.Marshal(span)
	if err != nil {
		slog.Warn("Failed to marshal trace span", "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(span.RunID),
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		slog.Warn("Failed to publish trace span", "run_id", span.RunID, "type", span.SpanType, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
