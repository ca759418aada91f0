/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestBusDeliversToSubscribersOfType(t *testing.T) {
	bus := NewBus()
	minutes := bus.Subscribe(EventMinuteStart)
	ends := bus.Subscribe(EventSessionEnd)

	bus.Publish(EventMinuteStart, Payload{"minute": "2023-01-01T00:00:00Z"})

	select {
	case p := <-minutes:
		if p["minute"] != "2023-01-01T00:00:00Z" {
			t.Errorf("payload = %v", p)
		}
	default:
		t.Fatal("minute subscriber got nothing")
	}
	select {
	case p := <-ends:
		t.Errorf("session.end subscriber got %v", p)
	default:
	}
}

func TestBusPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventMinuteStart)

	for i := 0; i < cap(sub)+10; i++ {
		bus.Publish(EventMinuteStart, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Errorf("buffered %d, want %d", len(sub), cap(sub))
	}
}

func TestBusUnsubscribeClosesAndStopsDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventSessionStart)
	bus.Unsubscribe(EventSessionStart, sub)

	if _, ok := <-sub; ok {
		t.Error("expected closed channel")
	}
	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventSessionStart, Payload{})
	// Unsubscribing twice is a no-op.
	bus.Unsubscribe(EventSessionStart, sub)
}

func TestTypes(t *testing.T) {
	seen := map[EventType]bool{}
	for _, et := range Types() {
		if seen[et] {
			t.Errorf("duplicate type %s", et)
		}
		seen[et] = true
	}
	if len(seen) != 3 {
		t.Errorf("got %d types", len(seen))
	}
}
