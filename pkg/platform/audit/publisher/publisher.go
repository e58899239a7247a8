// Package publisher fans audit events out to a store, either inline or via a
// bounded background buffer.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "checkin/pkg/platform/audit"
)

// Publisher stamps and persists audit events.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	clock  func() time.Time

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of size events.
// When the buffer is full Emit falls back to a synchronous write.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithLogger sets a logger for async write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithClock sets the clock used to stamp events missing a timestamp.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewPublisher constructs a Publisher. Call Close to drain an async buffer.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records event. In sync mode the store error is returned to the caller.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock()
	}
	if event.Category == "" {
		event.Category = audit.CategoryFor(audit.AuditEvent(event.Action), event.Reason)
	}

	if p.buffer != nil {
		select {
		case p.buffer <- event:
			return nil
		default:
		}
	}
	return p.store.Append(ctx, event)
}

// Close stops the background writer after draining buffered events. It is
// safe to call more than once and a no-op in sync mode.
func (p *Publisher) Close() {
	if p.buffer == nil {
		return
	}
	p.once.Do(func() {
		close(p.buffer)
		p.wg.Wait()
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"event_id", event.ID,
				"error", err,
			)
		}
	}
}
