/*
Package events projects store mutations into topic-addressed `data`
vectors (spec.md §4.5), publishing them on pkg/bus the same way the
teacher's event broker fanned cluster events out to subscribers — but
here the payload is a self-describing value.Value vector rather than a
Go struct, so consumers that never link against this package's types
(including remote clone actors) can still decode what happened.
*/
package events

import (
	"time"

	"github.com/cuemby/storebroker/pkg/bus"
	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/metrics"
	"github.com/cuemby/storebroker/pkg/value"
)

// DefaultSeparator matches the command package's topic-hierarchy
// separator so a surrounding broker can plug in its own.
const DefaultSeparator = "/"

// Topic returns the well-known event topic for a store (spec.md §6
// "Event topic naming"): literally store_events/<store_name>.
func Topic(storeName, separator string) string {
	if separator == "" {
		separator = DefaultSeparator
	}
	return "store_events" + separator + storeName
}

// Publisher emits store-mutation events onto a bus for one store.
type Publisher struct {
	bus       *bus.Bus
	storeName string
	separator string
}

// NewPublisher binds a Publisher to storeName, publishing on bus.
func NewPublisher(b *bus.Bus, storeName, separator string) *Publisher {
	return &Publisher{bus: b, storeName: storeName, separator: separator}
}

// Insert publishes ["insert", store_name, key, value, optional<expiry>,
// endpoint_as_data, object_id].
func (p *Publisher) Insert(key, val value.Value, expiry *time.Time, publisher command.EntityID, now time.Time) {
	p.bus.Publish(p.topic(), Insert(p.storeName, key, val, expiry, publisher, now))
	metrics.EventsPublishedTotal.WithLabelValues(p.storeName, "insert").Inc()
}

// Update publishes ["update", store_name, key, old_value, new_value,
// optional<expiry>, endpoint_as_data, object_id].
func (p *Publisher) Update(key, oldVal, newVal value.Value, expiry *time.Time, publisher command.EntityID, now time.Time) {
	p.bus.Publish(p.topic(), Update(p.storeName, key, oldVal, newVal, expiry, publisher, now))
	metrics.EventsPublishedTotal.WithLabelValues(p.storeName, "update").Inc()
}

// Erase publishes ["erase", store_name, key, endpoint_as_data, object_id].
func (p *Publisher) Erase(key value.Value, publisher command.EntityID) {
	p.bus.Publish(p.topic(), Erase(p.storeName, key, publisher))
	metrics.EventsPublishedTotal.WithLabelValues(p.storeName, "erase").Inc()
}

// Expire publishes ["expire", store_name, key, endpoint_as_data, object_id].
func (p *Publisher) Expire(key value.Value, publisher command.EntityID) {
	p.bus.Publish(p.topic(), Expire(p.storeName, key, publisher))
	metrics.EventsPublishedTotal.WithLabelValues(p.storeName, "expire").Inc()
}

// Warning publishes ["warning", store_name, enum(kind), key] onto the
// same event topic, used to surface a stale_data warning when a clone's
// backend errors while applying a replicated command (spec.md §7
// "Propagation policy" — logged and not fatal, but surfaced as a
// warning event since the clone's local state has silently diverged).
func (p *Publisher) Warning(kind string, key value.Value) {
	p.bus.Publish(p.topic(), Warning(p.storeName, kind, key))
	metrics.EventsPublishedTotal.WithLabelValues(p.storeName, "warning").Inc()
}

func (p *Publisher) topic() string { return Topic(p.storeName, p.separator) }

// Insert builds the insert event vector without needing a Publisher,
// useful for tests and for clones replaying a command directly.
func Insert(storeName string, key, val value.Value, expiry *time.Time, publisher command.EntityID, now time.Time) value.Value {
	elems := []value.Value{value.String("insert"), value.String(storeName), key, val, expirySlot(expiry, now)}
	return value.Vector(append(elems, publisherSlots(publisher)...)...)
}

func Update(storeName string, key, oldVal, newVal value.Value, expiry *time.Time, publisher command.EntityID, now time.Time) value.Value {
	elems := []value.Value{value.String("update"), value.String(storeName), key, oldVal, newVal, expirySlot(expiry, now)}
	return value.Vector(append(elems, publisherSlots(publisher)...)...)
}

func Erase(storeName string, key value.Value, publisher command.EntityID) value.Value {
	elems := []value.Value{value.String("erase"), value.String(storeName), key}
	return value.Vector(append(elems, publisherSlots(publisher)...)...)
}

func Expire(storeName string, key value.Value, publisher command.EntityID) value.Value {
	elems := []value.Value{value.String("expire"), value.String(storeName), key}
	return value.Vector(append(elems, publisherSlots(publisher)...)...)
}

// Warning builds the warning event vector for a clone-side apply
// failure: ["warning", store_name, enum(kind), key].
func Warning(storeName, kind string, key value.Value) value.Value {
	return value.Vector(value.String("warning"), value.String(storeName), value.Enum(kind), key)
}

// expirySlot encodes spec.md §4.5's "optional<expiry>": one slot, the
// timespan remaining until expiry as observed at now, or none if the
// entry carries no expiry.
func expirySlot(expiry *time.Time, now time.Time) value.Value {
	if expiry == nil {
		return value.None()
	}
	return value.Timespan(expiry.Sub(now))
}

// publisherSlots encodes spec.md §4.5's publisher_entity_id: two slots,
// (endpoint_as_data, object_id); both none when the entity is nil.
func publisherSlots(publisher command.EntityID) []value.Value {
	if publisher.IsNil() {
		return []value.Value{value.None(), value.None()}
	}
	return []value.Value{value.String(publisher.Endpoint), value.String(publisher.Object)}
}
