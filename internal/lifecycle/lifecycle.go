// Package lifecycle carries the cross-cutting operation events: every store
// operation publishes Started before it calls the backend and exactly one of
// Succeeded/Failed afterwards. Subscribers (the loading counter, metrics)
// need no per-resource wiring.
package lifecycle

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase is one stage of an asynchronous operation.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Event describes one lifecycle transition of a backend operation.
type Event struct {
	Resource      string
	Operation     string
	CorrelationID string
	Phase         Phase
	Err           error
	At            time.Time
}

// Bus fan-outs lifecycle events to all subscribers. Publishing never blocks
// and never panics into the publishing operation: a subscriber that cannot
// keep up is skipped, a panicking subscriber is recovered.
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler invoked for every published event.
func (b *Bus) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

// Publish delivers the event to all subscribers.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, fn := range subs {
		safeInvoke(fn, evt)
	}
}

func safeInvoke(fn func(Event), evt Event) {
	defer func() { _ = recover() }()
	fn(evt)
}

// Track publishes the Started phase and returns a completion func that
// publishes Succeeded or Failed with the same correlation id.
func (b *Bus) Track(resource, operation string) func(error) {
	id := uuid.NewString()
	b.Publish(Event{Resource: resource, Operation: operation, CorrelationID: id, Phase: PhaseStarted})
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			phase := PhaseSucceeded
			if err != nil {
				phase = PhaseFailed
			}
			b.Publish(Event{Resource: resource, Operation: operation, CorrelationID: id, Phase: phase, Err: err})
		})
	}
}

// Counter is the global in-flight counter behind the blocking overlay. It is
// mutated only through lifecycle events, never by the stores themselves.
type Counter struct {
	mu    sync.Mutex
	count int
	hook  func(int)
}

// NewCounter creates a counter and subscribes it to the bus. hook (optional)
// observes every new value, e.g. to publish a gauge.
func NewCounter(bus *Bus, hook func(int)) *Counter {
	c := &Counter{hook: hook}
	bus.Subscribe(c.observe)
	return c
}

func (c *Counter) observe(evt Event) {
	c.mu.Lock()
	switch evt.Phase {
	case PhaseStarted:
		c.count++
	case PhaseSucceeded, PhaseFailed:
		// Floor-clamp: a completion without a matching start must not
		// drive the counter negative.
		if c.count > 0 {
			c.count--
		}
	}
	n := c.count
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}

// InFlight returns the number of outstanding operations.
func (c *Counter) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
