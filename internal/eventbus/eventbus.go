package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrInvalidEvent = errors.New("invalid event")

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

type EventBus struct {
	writers map[string]*kafka.Writer
	brokers []string
	logger  *zap.Logger
}

func NewEventBus(brokers []string, logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	writers := make(map[string]*kafka.Writer)
	for _, topic := range PublishTopics {
		writers[topic] = &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}
	return &EventBus{
		writers: writers,
		brokers: brokers,
		logger:  logger,
	}
}

func (eb *EventBus) Publish(ctx context.Context, topic string, event Event) error {
	if event.EventID == "" || event.EventType == "" || event.WorldID == "" {
		return fmt.Errorf("%w: missing required fields: event_id=%q, event_type=%q, world_id=%q",
			ErrInvalidEvent, event.EventID, event.EventType, event.WorldID)
	}
	writer, ok := eb.writers[topic]
	if !ok {
		return fmt.Errorf("no writer for topic %s", topic)
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.WorldID),
		Value: msg,
	})
}

// pollInterval reads KAFKA_POLL_FREQUENCY_MS, defaulting to one second.
func pollInterval(logger *zap.Logger) time.Duration {
	raw := os.Getenv("KAFKA_POLL_FREQUENCY_MS")
	if raw == "" {
		return time.Second
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		logger.Warn("invalid KAFKA_POLL_FREQUENCY_MS, using 1000ms", zap.String("value", raw))
		return time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// Subscribe reads topic until ctx is cancelled, passing every decodable event
// to handler.
func (eb *EventBus) Subscribe(ctx context.Context, topic, groupID string, handler func(Event)) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  eb.brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		MaxWait:  pollInterval(eb.logger),
	})
	defer reader.Close()

	log := eb.logger.With(zap.String("topic", topic), zap.String("group", groupID))
	log.Info("subscribed")
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info("subscription stopped", zap.Error(ctx.Err()))
				return
			default:
				log.Warn("read error", zap.Error(err))
			}
			continue
		}
		var event Event
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Warn("parse error", zap.ByteString("key", m.Key), zap.Error(err))
			continue
		}
		handler(event)
	}
}

func (eb *EventBus) Close() error {
	var err error
	for topic, writer := range eb.writers {
		if cerr := writer.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close writer for topic %s: %w", topic, cerr))
		}
	}
	return err
}

func (eb *EventBus) PublishReasoningRecord(ctx context.Context, event Event) error {
	return eb.Publish(ctx, TopicSpatialReasoning, event)
}

func (eb *EventBus) PublishThreatReport(ctx context.Context, event Event) error {
	return eb.Publish(ctx, TopicThreatReports, event)
}
