package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"todoflow/pkg/metrics"
)

// Kafka topics. Task lifecycle events and reminders travel separately so
// each consumer group reads only what it processes.
const (
	TopicTaskEvents = "task-events"
	TopicReminders  = "reminders"
)

// Consumer group IDs for the two worker services.
const (
	GroupRecurring = "recurring-task-service"
	GroupReminder  = "reminder-service"
)

// TopicFor maps an event type to its topic.
func TopicFor(t Type) string {
	if t == ReminderDue {
		return TopicReminders
	}
	return TopicTaskEvents
}

// KafkaProducer is the broker backend of Publisher. Writes wait for
// acknowledgment from all replicas with bounded retries; an event that
// still cannot be written is dropped with a logged warning, and the
// task mutation that produced it stands.
type KafkaProducer struct {
	writer     *kafka.Writer
	log        zerolog.Logger
	ackTimeout time.Duration
}

// NewKafkaProducer creates a producer for the given bootstrap brokers.
func NewKafkaProducer(brokers []string, logger zerolog.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            3,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
		log:        logger,
		ackTimeout: 10 * time.Second,
	}
}

// Publish writes the event as a UTF-8 JSON message, keyed by user so one
// user's events stay ordered within a partition.
func (p *KafkaProducer) Publish(ctx context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		p.log.Error().Err(err).Str("type", string(e.Type)).Msg("marshal event")
		metrics.EventsDropped.WithLabelValues(string(e.Type)).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.ackTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: TopicFor(e.Type),
		Key:   []byte(partitionKey(e)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn().Err(err).Str("type", string(e.Type)).Str("event_id", e.ID).Msg("event dropped after retries")
		metrics.EventsDropped.WithLabelValues(string(e.Type)).Inc()
		return
	}

	p.log.Info().Str("type", string(e.Type)).Str("event_id", e.ID).Str("topic", msg.Topic).Msg("event published")
	metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()
}

// Close flushes and closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

func partitionKey(e Event) string {
	if u := e.UserID(); u != "" {
		return u
	}
	return e.ID
}

// Source is a consumer-group poll loop over one topic. Offsets are
// committed after the handler runs, so a crash between handling and
// commit redelivers the event on restart: at-least-once, duplicates
// possible and not suppressed here.
type Source struct {
	reader *kafka.Reader
	log    zerolog.Logger
}

// NewKafkaSource creates a Source reading topic as part of groupID,
// starting from the earliest uncommitted offset.
func NewKafkaSource(brokers []string, topic, groupID string, logger zerolog.Logger) *Source {
	return &Source{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
		}),
		log: logger,
	}
}

// Run fetches and handles messages until ctx is cancelled. A malformed
// payload or handler failure is logged with the offending message and
// skipped; a single bad event never halts the loop.
func (s *Source) Run(ctx context.Context, h Handler) error {
	s.log.Info().Str("topic", s.reader.Config().Topic).Str("group", s.reader.Config().GroupID).Msg("consumer started")

	for {
		m, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		var e Event
		if err := json.Unmarshal(m.Value, &e); err != nil {
			s.log.Error().Err(err).Str("raw", string(m.Value)).Msg("malformed event, skipping")
		} else if err := dispatch(ctx, h, e); err != nil {
			s.log.Error().Err(err).Str("event_id", e.ID).Str("type", string(e.Type)).Str("raw", string(m.Value)).Msg("handler error, skipping")
			metrics.HandlerFailures.WithLabelValues(string(e.Type)).Inc()
		}

		if err := s.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error().Err(err).Int64("offset", m.Offset).Msg("commit failed, event may redeliver")
		}
	}
}

// Close closes the underlying reader and leaves the consumer group.
func (s *Source) Close() error {
	return s.reader.Close()
}
