package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan RecordingStartedEvent, 1)

	unsub := bus.Subscribe(func(e RecordingStartedEvent) {
		received <- e
	})
	defer unsub()

	ev := RecordingStartedEvent{SessionID: "s1", OutputPath: "out.mp4", Pid: 42}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got.OutputPath != ev.OutputPath || got.Pid != ev.Pid {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_RoutesByType(t *testing.T) {
	bus := New()
	stopped := make(chan RecordingStoppedEvent, 1)
	failed := make(chan RecordingFailedEvent, 1)

	defer bus.Subscribe(func(e RecordingStoppedEvent) { stopped <- e })()
	defer bus.Subscribe(func(e RecordingFailedEvent) { failed <- e })()

	bus.Publish(RecordingFailedEvent{OutputPath: "a.mp4", ExitCode: 1})

	select {
	case e := <-failed:
		if e.ExitCode != 1 {
			t.Errorf("ExitCode = %d, want 1", e.ExitCode)
		}
	case <-time.After(time.Second):
		t.Fatal("failed event not delivered")
	}

	select {
	case <-stopped:
		t.Fatal("stopped handler received a failed event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan RecordingStoppedEvent, 1)

	unsub := bus.Subscribe(func(e RecordingStoppedEvent) {
		received <- e
	})

	bus.Publish(RecordingStoppedEvent{OutputPath: "a.mp4"})
	<-received

	unsub()

	bus.Publish(RecordingStoppedEvent{OutputPath: "b.mp4"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_NilPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(RecordingStartedEvent{})
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		ev   Event
		want uint32
	}{
		{RecordingStartedEvent{}, TypeRecordingStarted},
		{RecordingStoppedEvent{}, TypeRecordingStopped},
		{RecordingFailedEvent{}, TypeRecordingFailed},
	}
	seen := map[uint32]bool{}
	for _, tt := range tests {
		if got := tt.ev.Type(); got != tt.want {
			t.Errorf("%T.Type() = %d, want %d", tt.ev, got, tt.want)
		}
		if seen[tt.want] {
			t.Errorf("duplicate type id %d", tt.want)
		}
		seen[tt.want] = true
	}
}

func TestBus_DrainWaitsForHandlers(t *testing.T) {
	bus := New()
	var handled atomic.Int32

	defer bus.Subscribe(func(RecordingStoppedEvent) {
		time.Sleep(20 * time.Millisecond)
		handled.Add(1)
	})()
	defer bus.Subscribe(func(RecordingStoppedEvent) { handled.Add(1) })()

	bus.Publish(RecordingStoppedEvent{OutputPath: "a.mp4"})
	bus.Publish(RecordingStoppedEvent{OutputPath: "b.mp4"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := bus.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if got := handled.Load(); got != 4 {
		t.Errorf("handled = %d after Drain, want 4", got)
	}
	if bus.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", bus.Pending())
	}
}

func TestBus_DrainWithoutSubscribers(t *testing.T) {
	bus := New()
	bus.Publish(RecordingStartedEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := bus.Drain(ctx); err != nil {
		t.Errorf("Drain() error = %v, want nil with nothing to deliver", err)
	}
}

func TestBus_DrainTimesOut(t *testing.T) {
	bus := New()
	release := make(chan struct{})
	defer close(release)
	defer bus.Subscribe(func(RecordingFailedEvent) { <-release })()

	bus.Publish(RecordingFailedEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := bus.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() error = %v, want deadline exceeded", err)
	}
}

func TestBus_NilDrain(t *testing.T) {
	var bus *Bus
	if err := bus.Drain(context.Background()); err != nil {
		t.Errorf("nil Drain() error = %v", err)
	}
}
