package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/yinsee/internal/models"
	"github.com/example/yinsee/internal/observability"
)

const (
	DefaultTopic = "marketplace-activity"

	publishBatchTimeout = 10 * time.Millisecond
	publishTimeout      = 2 * time.Second
)

// Event is the message body written to the activity topic.
type Event struct {
	Profile string                  `json:"profile"`
	Entry   models.ActivityLogEntry `json:"entry"`
}

// Decode parses a message value. Entries without a type are rejected.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, err
	}
	if ev.Profile == "" || !ev.Entry.Normalize() {
		return Event{}, fmt.Errorf("event missing profile or type")
	}
	return ev, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes activity entries keyed by profile, so one profile's
// entries stay ordered within a partition.
type Producer struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
}

func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		// one entry per write; the 1s default would hold every publish
		BatchTimeout: publishBatchTimeout,
	}
	return newProducer(w, logger)
}

func newProducer(w messageWriter, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{writer: w, timeout: publishTimeout, logger: logger}
}

func (p *Producer) PublishActivity(ctx context.Context, profile string, e models.ActivityLogEntry) error {
	b, err := json.Marshal(Event{Profile: profile, Entry: e})
	if err != nil {
		observability.EventsPublished.WithLabelValues("error").Inc()
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(profile), Value: b}); err != nil {
		observability.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	observability.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
