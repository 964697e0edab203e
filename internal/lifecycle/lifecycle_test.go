package lifecycle

import (
	"errors"
	"testing"
)

func TestCounterMatchesOutstandingOperations(t *testing.T) {
	bus := NewBus()
	counter := NewCounter(bus, nil)

	doneA := bus.Track("parcels", "fetch")
	doneB := bus.Track("departments", "fetch")
	if got := counter.InFlight(); got != 2 {
		t.Fatalf("expected 2 in flight, got %d", got)
	}

	doneA(nil)
	if got := counter.InFlight(); got != 1 {
		t.Fatalf("expected 1 in flight, got %d", got)
	}

	doneB(errors.New("boom"))
	if got := counter.InFlight(); got != 0 {
		t.Fatalf("expected 0 in flight, got %d", got)
	}
}

func TestCounterNeverGoesNegative(t *testing.T) {
	bus := NewBus()
	counter := NewCounter(bus, nil)

	// Completion without a matching start.
	bus.Publish(Event{Resource: "parcels", Operation: "fetch", Phase: PhaseSucceeded})
	bus.Publish(Event{Resource: "parcels", Operation: "fetch", Phase: PhaseFailed})
	if got := counter.InFlight(); got != 0 {
		t.Fatalf("counter must clamp at zero, got %d", got)
	}

	done := bus.Track("rules", "fetch")
	done(nil)
	done(nil) // double completion is swallowed by Track
	if got := counter.InFlight(); got != 0 {
		t.Fatalf("expected 0 after double completion, got %d", got)
	}
}

func TestPanickingSubscriberDoesNotBlockDelivery(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(func(Event) { panic("bad subscriber") })
	var seen []Phase
	bus.Subscribe(func(evt Event) { seen = append(seen, evt.Phase) })

	done := bus.Track("users", "fetch")
	done(nil)

	if len(seen) != 2 || seen[0] != PhaseStarted || seen[1] != PhaseSucceeded {
		t.Fatalf("expected both phases delivered, got %v", seen)
	}
}

func TestTrackCorrelatesPhases(t *testing.T) {
	bus := NewBus()
	var events []Event
	bus.Subscribe(func(evt Event) { events = append(events, evt) })

	done := bus.Track("parcels", "delete")
	done(errors.New("denied"))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].CorrelationID == "" || events[0].CorrelationID != events[1].CorrelationID {
		t.Fatalf("correlation ids must match: %q vs %q", events[0].CorrelationID, events[1].CorrelationID)
	}
	if events[1].Phase != PhaseFailed || events[1].Err == nil {
		t.Fatalf("expected failed phase with error, got %+v", events[1])
	}
}
