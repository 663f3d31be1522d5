// Package dispatcher fans domain events out to in-process subscribers such
// as metrics. Durable delivery to people goes through the notification
// outbox instead.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/justifi/internal/domain/event"
)

var (
	// ErrClosed is returned once the bus stops accepting events.
	ErrClosed = errors.New("dispatcher is closed")

	// ErrDuplicateSubscriber is returned when a subscription name is reused.
	ErrDuplicateSubscriber = errors.New("subscriber already registered")
)

// Publisher is the side of the bus the workflow engine sees.
type Publisher interface {
	// Publish hands evt to every subscriber in the background.
	Publish(ctx context.Context, evt *event.Event)
}

// Bus routes events to named subscribers.
type Bus interface {
	Publisher

	// Subscribe registers handler under name for the given event types.
	Subscribe(name string, handler Handler, types ...event.Type) error

	// Unsubscribe removes a subscription and reports whether it existed.
	Unsubscribe(name string) bool

	// Deliver runs every subscriber for evt in registration order and
	// returns their joined errors.
	Deliver(ctx context.Context, evt *event.Event) error

	// Subscribers lists subscription names for an event type.
	Subscribers(eventType event.Type) []string

	Stats() []SubscriberStats
	Healthy() bool

	// Close stops accepting events and waits for in-flight handlers up
	// to the drain timeout.
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

const defaultDrainTimeout = 10 * time.Second

type bus struct {
	mu     sync.RWMutex
	order  []*subscriber
	byType map[event.Type][]*subscriber

	logger       Logger
	drainTimeout time.Duration

	inflight sync.WaitGroup
	closed   atomic.Bool
}

// Option configures the bus
type Option func(*bus)

// WithLogger sets a logger for the bus
func WithLogger(logger Logger) Option {
	return func(b *bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDrainTimeout bounds how long Close waits for background handlers.
func WithDrainTimeout(d time.Duration) Option {
	return func(b *bus) {
		if d > 0 {
			b.drainTimeout = d
		}
	}
}

// New creates an event bus.
func New(opts ...Option) Bus {
	b := &bus{
		byType:       make(map[event.Type][]*subscriber),
		logger:       nopLogger{},
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *bus) Subscribe(name string, handler Handler, types ...event.Type) error {
	if name == "" || handler == nil {
		return fmt.Errorf("subscriber needs a name and a handler")
	}
	if len(types) == 0 {
		return fmt.Errorf("subscriber %s: no event types", name)
	}
	for _, t := range types {
		if !t.IsValid() {
			return fmt.Errorf("subscriber %s: unknown event type %q", name, t)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.order {
		if s.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateSubscriber, name)
		}
	}

	s := &subscriber{name: name, types: append([]event.Type(nil), types...), handler: handler}
	b.order = append(b.order, s)
	for _, t := range s.types {
		b.byType[t] = append(b.byType[t], s)
	}

	b.logger.Info("Subscriber registered", "subscriber", name, "event_types", s.types)
	return nil
}

func (b *bus) Unsubscribe(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i, s := range b.order {
		if s.name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	removed := b.order[idx]
	b.order = append(b.order[:idx:idx], b.order[idx+1:]...)
	for _, t := range removed.types {
		b.byType[t] = without(b.byType[t], removed)
	}

	b.logger.Info("Subscriber removed", "subscriber", name)
	return true
}

func without(list []*subscriber, target *subscriber) []*subscriber {
	out := make([]*subscriber, 0, len(list))
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// targets copies the subscriber list so handlers run without the lock held.
func (b *bus) targets(t event.Type) []*subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*subscriber(nil), b.byType[t]...)
}

func (b *bus) Deliver(ctx context.Context, evt *event.Event) error {
	if b.closed.Load() {
		return ErrClosed
	}

	var errs []error
	for _, s := range b.targets(evt.Type) {
		if err := b.invoke(ctx, s, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *bus) Publish(ctx context.Context, evt *event.Event) {
	// closed check and inflight.Add happen under the same lock Close takes
	// before it waits
	b.mu.RLock()
	if b.closed.Load() {
		b.mu.RUnlock()
		b.logger.Error("Event dropped, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return
	}
	targets := append([]*subscriber(nil), b.byType[evt.Type]...)
	if len(targets) == 0 {
		b.mu.RUnlock()
		return
	}
	b.inflight.Add(1)
	b.mu.RUnlock()

	// handlers outlive the request that produced the event
	detached := context.WithoutCancel(ctx)

	go func() {
		defer b.inflight.Done()
		for _, s := range targets {
			_ = b.invoke(detached, s, evt)
		}
	}()
}

// invoke runs one handler, turning a panic into an error and updating stats.
func (b *bus) invoke(ctx context.Context, s *subscriber, evt *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			s.failed.Add(1)
			b.logger.Error("Subscriber failed",
				"subscriber", s.name,
				"event_type", evt.Type,
				"event_id", evt.ID,
				"justification_id", evt.JustificationID,
				"error", err,
			)
			return
		}
		s.delivered.Add(1)
	}()

	return s.handler(ctx, evt)
}

func (b *bus) Subscribers(eventType event.Type) []string {
	targets := b.targets(eventType)
	names := make([]string, len(targets))
	for i, s := range targets {
		names[i] = s.name
	}
	return names
}

// Stats returns one entry per subscription sorted by name.
func (b *bus) Stats() []SubscriberStats {
	b.mu.RLock()
	out := make([]SubscriberStats, len(b.order))
	for i, s := range b.order {
		out[i] = s.stats()
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *bus) Healthy() bool {
	return !b.closed.Load()
}

func (b *bus) Close() error {
	b.mu.Lock()
	swapped := b.closed.CompareAndSwap(false, true)
	b.mu.Unlock()
	if !swapped {
		return ErrClosed
	}

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Dispatcher closed")
		return nil
	case <-time.After(b.drainTimeout):
		return fmt.Errorf("dispatcher: handlers still running after %s", b.drainTimeout)
	}
}
