// Package publisher emits domain events to a backing store, either
// synchronously or through a buffered channel drained by a background
// goroutine.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	id "libripal/pkg/domain"
	"libripal/pkg/platform/events"
)

// ErrBufferFull is returned in async mode when the buffer has no room and the
// caller's context expires before space frees up.
var ErrBufferFull = errors.New("event buffer full")

// ErrClosed is returned by Emit after Close has been called.
var ErrClosed = errors.New("event publisher closed")

// Publisher emits events to a store. In sync mode Emit blocks on the store
// write; in async mode Emit enqueues and a background goroutine persists.
type Publisher struct {
	store events.Store

	inbox chan events.Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given buffer
// size. Events are persisted by a background goroutine; Close drains the
// buffer before returning.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan events.Event, size)
	}
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store events.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}

	if p.inbox != nil {
		p.wg.Add(1)
		go p.run()
	}

	return p
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.inbox {
		// Persist with a background context: the emitting request may be
		// long gone by the time the event reaches the front of the queue.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = p.store.Append(ctx, event)
		cancel()
	}
}

// Emit records an event. A zero timestamp is stamped with the current time.
func (p *Publisher) Emit(ctx context.Context, event events.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	// The read lock excludes Close for the duration of the send, so the
	// inbox cannot be closed out from under a blocked select.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Buffer full: wait briefly for space rather than dropping immediately.
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return ErrBufferFull
	}
}

// List returns the stored events for a patron.
func (p *Publisher) List(ctx context.Context, patronID id.PatronID) ([]events.Event, error) {
	return p.store.ListByPatron(ctx, patronID)
}

// Close drains the async buffer and stops the background goroutine. Safe to
// call more than once.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if p.inbox != nil {
		close(p.inbox)
		p.wg.Wait()
	}
}
