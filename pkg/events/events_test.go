package events_test

import (
	"context"
	"testing"

	"github.com/trailhead/tours-api/pkg/events"
)

func TestNoopBusIsSafeWithoutBroker(t *testing.T) {
	bus := events.NewNoopBus()

	if err := bus.Publish(context.Background(), events.BookingCreated, events.BookingCreatedEvent{BookingID: "b1"}); err != nil {
		t.Errorf("publish must not fail without a broker: %v", err)
	}
	if err := bus.Subscribe(">", func(*events.Message) {}); err != nil {
		t.Errorf("subscribe must not fail without a broker: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("close must not fail: %v", err)
	}
}

func TestNoopBusSatisfiesEventBus(t *testing.T) {
	var _ events.EventBus = events.NewNoopBus()
}
