package domain

import "github.com/cskr/pubsub"

// EventBus is a thin typed wrapper over cskr/pubsub.PubSub. The meminfo
// sampler publishes its samples, which the supervisor subscribes to, and the
// zram pool publishes device created/removed events. Status reporting and
// the Prometheus textfile exporter read controller state directly, not from
// the bus.
type EventBus struct {
	ps *pubsub.PubSub
}

// NewEventBus creates an EventBus with the given per-subscriber channel
// capacity (mirrors pubsub.New's constructor).
func NewEventBus(capacity int) *EventBus {
	return &EventBus{ps: pubsub.New(capacity)}
}

// Topic is a typed topic identifier. The type parameter T documents (and
// enforces at compile time via Publish/Subscribe) what Go type is published
// on this topic.
type Topic[T any] struct {
	Name string
}

// NewTopic creates a typed topic with the given name.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{Name: name}
}

// Publish sends typed data to every subscriber of topic.
func Publish[T any](bus *EventBus, topic Topic[T], data T) {
	bus.ps.Pub(data, topic.Name)
}

// Subscribe subscribes to topic and returns a channel carrying every
// message published to it. Callers type-assert to T when reading.
func Subscribe[T any](bus *EventBus, topic Topic[T]) chan any {
	return bus.ps.Sub(topic.Name)
}

// Unsubscribe removes ch from topic, closing it once it holds no
// subscriptions left.
func (bus *EventBus) Unsubscribe(ch chan any, topic string) {
	bus.ps.Unsub(ch, topic)
}

// Shutdown closes every subscriber channel, used when the supervisor tears
// the event bus down at the end of a clean stop.
func (bus *EventBus) Shutdown() {
	bus.ps.Shutdown()
}
