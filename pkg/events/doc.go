/*
Package events projects successful store mutations into `data` vectors
and publishes them onto pkg/bus (spec.md §4.5).

# Vector layouts

	insert:  ["insert",  store_name, key, value, optional<expiry>, endpoint_as_data, object_id]
	update:  ["update",  store_name, key, old_value, new_value, optional<expiry>, endpoint_as_data, object_id]
	erase:   ["erase",   store_name, key, endpoint_as_data, object_id]
	expire:  ["expire",  store_name, key, endpoint_as_data, object_id]
	warning: ["warning", store_name, kind, key]

optional<expiry> is one slot: the remaining timespan until expiry observed
at the moment of mutation, or none if the entry carries no expiry.
publisher_entity_id occupies two slots (endpoint_as_data, object_id);
both are none when the publisher is the nil entity.

# Topic naming

Topic(storeName, separator) returns "store_events<separator>storeName",
defaulting the separator to "/" so a surrounding broker can substitute
its own topic-hierarchy separator.

# Usage

	pub := events.NewPublisher(bus, "S", "")
	pub.Insert(key, val, expiry, publisher, time.Now())

The store actor (pkg/storeactor) is the only caller: it consults the
backend's exists() immediately before applying a write to decide between
Insert and Update, matching the "no insert/update event unless the
mutation succeeded" invariant by only calling these after the backend
write returns nil.
*/
package events
