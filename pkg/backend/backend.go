/*
Package backend defines the abstract persistence contract store actors
drive (spec.md §4.2): put/add/subtract/erase/clear/get/exists/keys/expire
/snapshot/expiries. Concrete implementations live in the memory,
sqlitestore, and boltstore subpackages; clones always use memory.
*/
package backend

import (
	"context"
	"time"

	"github.com/cuemby/storebroker/pkg/value"
)

// Snapshot is a full point-in-time copy of a backend's contents, used to
// answer a clone's snapshot_request.
type Snapshot struct {
	Entries  []Entry
	Expiries []KeyExpiry
}

// Entry is one stored (key, value, expiry) triple.
type Entry struct {
	Key    value.Value
	Value  value.Value
	Expiry *time.Time
}

// KeyExpiry pairs a key with its expiry instant.
type KeyExpiry struct {
	Key    value.Value
	Expiry time.Time
}

// Backend is the single-threaded key-value engine a store actor owns.
// Implementations are accessed only by their owning actor (spec.md §5),
// so no implementation needs internal cross-call locking beyond what its
// own storage medium requires.
type Backend interface {
	// Put overwrites the value (and optional expiry) stored at k.
	Put(ctx context.Context, key, val value.Value, expiry *time.Time) error

	// Add applies the type-dispatched `add` augmentation at k, seeding
	// the zero value of initType if k is absent. When expiry is
	// non-nil it replaces any existing expiry (refresh-on-provided);
	// when nil, any existing expiry is preserved.
	Add(ctx context.Context, key, delta value.Value, initType value.Kind, expiry *time.Time) error

	// Subtract applies the type-dispatched `subtract` erosion at k.
	Subtract(ctx context.Context, key, delta value.Value, expiry *time.Time) error

	// Erase removes k if present; it is idempotent.
	Erase(ctx context.Context, key value.Value) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Expire removes k iff present and its expiry is <= now, reporting
	// whether a removal happened.
	Expire(ctx context.Context, key value.Value, now time.Time) (bool, error)

	// Get reads the value stored at k.
	Get(ctx context.Context, key value.Value) (value.Value, error)

	// Exists probes for k's presence.
	Exists(ctx context.Context, key value.Value) (bool, error)

	// Size reports the number of stored entries.
	Size(ctx context.Context) (uint64, error)

	// Keys returns the set of all stored keys.
	Keys(ctx context.Context) (value.Value, error)

	// Snapshot returns a full copy of the backend's contents.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Expiries lists every (key, expiry) pair with a set expiry.
	Expiries(ctx context.Context) ([]KeyExpiry, error)

	// Close releases any underlying resources (file handles, etc).
	Close() error
}

// PutUnique is not part of the Backend contract itself: it is
// implemented once at the store actor layer (serialized by the actor's
// single-threaded message loop) atop Exists+Put, since atomicity here is
// a property of "one actor processes one message at a time" rather than
// something each backend must separately guarantee.
