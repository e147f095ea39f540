package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kelindar/event"
)

// drainPoll is how often Drain checks for outstanding deliveries.
const drainPoll = 2 * time.Millisecond

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous; handlers run on the dispatcher's goroutines.
// Drain waits for deliveries already published.
type Bus struct {
	dispatcher *event.Dispatcher

	// mu orders subscription changes against publishes so every
	// delivery is counted in pending.
	mu      sync.Mutex
	subs    map[uint32]int
	pending atomic.Int64
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
		subs:       make(map[uint32]int),
	}
}

// Publish publishes an event to all subscribers. A nil Bus drops the event.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case RecordingStartedEvent:
		publish(b, e)
	case RecordingStoppedEvent:
		publish(b, e)
	case RecordingFailedEvent:
		publish(b, e)
	}
}

// Subscribe registers handler for the event type named by its parameter
// and returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e RecordingStartedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(RecordingStartedEvent):
		return subscribe(b, TypeRecordingStarted, h)
	case func(RecordingStoppedEvent):
		return subscribe(b, TypeRecordingStopped, h)
	case func(RecordingFailedEvent):
		return subscribe(b, TypeRecordingFailed, h)
	default:
		return func() {}
	}
}

// Drain blocks until every handler has finished with the events published
// so far, or ctx is done.
func (b *Bus) Drain(ctx context.Context) error {
	if b == nil {
		return nil
	}
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for b.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Pending returns the number of deliveries not yet handled.
func (b *Bus) Pending() int64 {
	return b.pending.Load()
}

func publish[T event.Event](b *Bus, ev T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending.Add(int64(b.subs[ev.Type()]))
	event.Publish(b.dispatcher, ev)
}

func subscribe[T event.Event](b *Bus, typ uint32, h func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	cancel := event.Subscribe(b.dispatcher, func(ev T) {
		defer b.pending.Add(-1)
		h(ev)
	})
	b.subs[typ]++

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			cancel()
			b.subs[typ]--
		})
	}
}
