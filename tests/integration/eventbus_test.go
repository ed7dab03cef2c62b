package integration

import (
	"testing"
	"time"

	"github.com/systemd-swap/swapd/daemon/domain"
	"github.com/systemd-swap/swapd/daemon/services/meminfo"
)

func TestEventBusBasicFlow(t *testing.T) {
	hub := domain.NewEventBus(10)
	topic := domain.NewTopic[string]("test.topic")

	ch := domain.Subscribe(hub, topic)
	domain.Publish(hub, topic, "test message")

	select {
	case msg := <-ch:
		if msg != "test message" {
			t.Errorf("Received = %v, want %q", msg, "test message")
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for message")
	}

	hub.Unsubscribe(ch, topic.Name)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	hub := domain.NewEventBus(10)
	topic := domain.NewTopic[string]("broadcast")

	ch1 := domain.Subscribe(hub, topic)
	ch2 := domain.Subscribe(hub, topic)
	ch3 := domain.Subscribe(hub, topic)

	domain.Publish(hub, topic, "broadcast message")

	for i, ch := range []chan any{ch1, ch2, ch3} {
		select {
		case msg := <-ch:
			if msg != "broadcast message" {
				t.Errorf("Subscriber %d received %v, want %q", i, msg, "broadcast message")
			}
		case <-time.After(1 * time.Second):
			t.Errorf("Subscriber %d timeout", i)
		}
	}

	hub.Unsubscribe(ch1, topic.Name)
	hub.Unsubscribe(ch2, topic.Name)
	hub.Unsubscribe(ch3, topic.Name)
}

func TestEventBusTopicIsolation(t *testing.T) {
	hub := domain.NewEventBus(10)
	created := domain.NewTopic[int]("zram.created")
	removed := domain.NewTopic[int]("zram.removed")

	createdCh := domain.Subscribe(hub, created)
	removedCh := domain.Subscribe(hub, removed)

	domain.Publish(hub, created, 3)

	select {
	case msg := <-createdCh:
		if msg != 3 {
			t.Errorf("created subscriber received %v, want 3", msg)
		}
	case <-time.After(1 * time.Second):
		t.Error("created subscriber timeout")
	}

	select {
	case msg := <-removedCh:
		t.Errorf("removed subscriber should receive nothing, got %v", msg)
	case <-time.After(100 * time.Millisecond):
	}

	hub.Unsubscribe(createdCh, created.Name)
	hub.Unsubscribe(removedCh, removed.Name)
}

// The meminfo sampler's topic carries full Sample values; consumers
// type-assert on receive the way the supervisor's status aggregator does.
func TestEventBusTypedSamples(t *testing.T) {
	hub := domain.NewEventBus(10)

	ch := domain.Subscribe(hub, meminfo.Topic)
	domain.Publish(hub, meminfo.Topic, meminfo.Sample{MemTotal: 8 << 30, MemFree: 4 << 30})

	select {
	case msg := <-ch:
		sample, ok := msg.(meminfo.Sample)
		if !ok {
			t.Fatalf("message is %T, want meminfo.Sample", msg)
		}
		if sample.MemTotal != 8<<30 || sample.MemFree != 4<<30 {
			t.Errorf("sample = %+v", sample)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for sample")
	}

	hub.Unsubscribe(ch, meminfo.Topic.Name)
}

func TestEventBusShutdownClosesSubscribers(t *testing.T) {
	hub := domain.NewEventBus(10)
	topic := domain.NewTopic[string]("shutdown")

	ch := domain.Subscribe(hub, topic)
	hub.Shutdown()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel should be closed after Shutdown")
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for channel close")
	}
}
