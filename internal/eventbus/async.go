package eventbus

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultQueueSize is the buffer of an AsyncPublisher when none is given.
const DefaultQueueSize = 256

type queued struct {
	topic string
	event Event
}

// AsyncPublisher decouples producers from the broker. Enqueue never blocks:
// when the buffer is full the event is dropped and counted.
type AsyncPublisher struct {
	pub     Publisher
	queue   chan queued
	logger  *zap.Logger
	timeout time.Duration

	dropped   atomic.Uint64
	published atomic.Uint64
	failed    atomic.Uint64
}

func NewAsyncPublisher(pub Publisher, size int, logger *zap.Logger) *AsyncPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncPublisher{
		pub:     pub,
		queue:   make(chan queued, size),
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Enqueue schedules an event and reports whether it was accepted.
func (p *AsyncPublisher) Enqueue(topic string, event Event) bool {
	select {
	case p.queue <- queued{topic: topic, event: event}:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// already buffered.
func (p *AsyncPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case q := <-p.queue:
			p.publish(ctx, q)
		}
	}
}

func (p *AsyncPublisher) drain() {
	for {
		select {
		case q := <-p.queue:
			p.publish(context.Background(), q)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) publish(ctx context.Context, q queued) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.pub.Publish(ctx, q.topic, q.event); err != nil {
		p.failed.Add(1)
		p.logger.Warn("publish failed",
			zap.String("topic", q.topic), zap.String("event_type", q.event.EventType), zap.Error(err))
		return
	}
	p.published.Add(1)
}

// Stats reports published, failed and dropped event counts.
func (p *AsyncPublisher) Stats() (published, failed, dropped uint64) {
	return p.published.Load(), p.failed.Load(), p.dropped.Load()
}
