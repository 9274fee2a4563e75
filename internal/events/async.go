package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 2 * time.Second
)

var ErrQueueFull = errors.New("event queue full")

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// AsyncPublisher hands events to a background worker so callers never wait
// on the broker. When the queue is full the event is dropped.
type AsyncPublisher struct {
	next    Publisher
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queuedEvent
	done   chan struct{}
}

var _ Publisher = (*AsyncPublisher)(nil)

func NewAsyncPublisher(next Publisher, logger *zap.Logger, queueSize int, timeout time.Duration) *AsyncPublisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		timeout: timeout,
		queue:   make(chan queuedEvent, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event and returns immediately.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("publisher closed")
	}
	select {
	case p.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for q := range p.queue {
		ctx, cancel := context.WithTimeout(q.ctx, p.timeout)
		if err := p.next.Publish(ctx, q.event); err != nil {
			p.logger.Warn("publish campaign event failed",
				zap.String("event_type", q.event.Type),
				zap.String("campaign_id", q.event.CampaignID.String()),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close drains queued events, then closes the wrapped publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
	return p.next.Close()
}
