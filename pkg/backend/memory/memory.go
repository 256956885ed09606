/*
Package memory implements the in-memory Backend (spec.md §4.2): a hash
map keyed by a canonical encoding of the `data` key, plus an
expiry-ordered index used by the store actor's tick scan. Clones always
use this backend (spec.md §4.3).
*/
package memory

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/cuemby/storebroker/pkg/backend"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

type record struct {
	key    value.Value
	val    value.Value
	expiry *time.Time
	idx    int // position in the expiry heap, -1 when not present there
}

// Backend is the in-memory implementation of backend.Backend. Its owner
// is a single store actor (spec.md §5); every method still takes mu, so
// concurrent calls are serialized. Close releases nothing.
type Backend struct {
	mu      sync.Mutex
	entries map[string]*record
	expiry  expiryHeap
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{entries: make(map[string]*record)}
}

func (b *Backend) Put(_ context.Context, key, val value.Value, expiry *time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsert(key, val, expiry, true)
	return nil
}

func (b *Backend) Add(_ context.Context, key, delta value.Value, initType value.Kind, expiry *time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := value.CanonicalKey(key)
	rec, present := b.entries[k]
	target := value.Value{}
	if present {
		target = rec.val
	}
	next, err := value.Add(target, present, delta, initType)
	if err != nil {
		return translateValueErr(err)
	}
	eff := expiry
	if eff == nil && present {
		eff = rec.expiry
	}
	b.upsert(key, next, eff, true)
	return nil
}

func (b *Backend) Subtract(_ context.Context, key, delta value.Value, expiry *time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := value.CanonicalKey(key)
	rec, present := b.entries[k]
	if !present {
		return storeerr.New(storeerr.KindNoSuchKey)
	}
	next, err := value.Subtract(rec.val, delta)
	if err != nil {
		return translateValueErr(err)
	}
	eff := expiry
	if eff == nil {
		eff = rec.expiry
	}
	b.upsert(key, next, eff, true)
	return nil
}

func (b *Backend) Erase(_ context.Context, key value.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(value.CanonicalKey(key))
	return nil
}

func (b *Backend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]*record)
	b.expiry = nil
	return nil
}

func (b *Backend) Expire(_ context.Context, key value.Value, now time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := value.CanonicalKey(key)
	rec, present := b.entries[k]
	if !present || rec.expiry == nil || rec.expiry.After(now) {
		return false, nil
	}
	b.remove(k)
	return true, nil
}

func (b *Backend) Get(_ context.Context, key value.Value) (value.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.entries[value.CanonicalKey(key)]
	if !ok {
		return value.Value{}, storeerr.New(storeerr.KindNoSuchKey)
	}
	return rec.val, nil
}

func (b *Backend) Exists(_ context.Context, key value.Value) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[value.CanonicalKey(key)]
	return ok, nil
}

func (b *Backend) Size(_ context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.entries)), nil
}

func (b *Backend) Keys(_ context.Context) (value.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]value.Value, 0, len(b.entries))
	for _, rec := range b.entries {
		keys = append(keys, rec.key)
	}
	return value.Set(keys...), nil
}

func (b *Backend) Snapshot(_ context.Context) (backend.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := backend.Snapshot{
		Entries:  make([]backend.Entry, 0, len(b.entries)),
		Expiries: make([]backend.KeyExpiry, 0),
	}
	for _, rec := range b.entries {
		snap.Entries = append(snap.Entries, backend.Entry{Key: rec.key, Value: rec.val, Expiry: rec.expiry})
		if rec.expiry != nil {
			snap.Expiries = append(snap.Expiries, backend.KeyExpiry{Key: rec.key, Expiry: *rec.expiry})
		}
	}
	return snap, nil
}

func (b *Backend) Expiries(_ context.Context) ([]backend.KeyExpiry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]backend.KeyExpiry, 0, len(b.expiry))
	for _, rec := range b.expiry {
		out = append(out, backend.KeyExpiry{Key: rec.key, Expiry: *rec.expiry})
	}
	return out, nil
}

// Close is a no-op for the in-memory backend; it exists to satisfy
// backend.Backend.
func (b *Backend) Close() error { return nil }

// Restore replaces the backend's contents wholesale, used by a clone
// applying a snapshot_reply.
func (b *Backend) Restore(entries []backend.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]*record, len(entries))
	b.expiry = nil
	for _, e := range entries {
		b.upsert(e.Key, e.Value, e.Expiry, false)
	}
}

// upsert must be called with b.mu held.
func (b *Backend) upsert(key, val value.Value, expiry *time.Time, reuseExisting bool) {
	k := value.CanonicalKey(key)
	rec, existed := b.entries[k]
	if !existed || !reuseExisting {
		rec = &record{key: key, idx: -1}
		b.entries[k] = rec
	}
	if existed && rec.idx >= 0 {
		heap.Remove(&b.expiry, rec.idx)
		rec.idx = -1
	}
	rec.val = val
	rec.expiry = expiry
	if expiry != nil {
		heap.Push(&b.expiry, rec)
	}
}

// remove must be called with b.mu held.
func (b *Backend) remove(canonicalKey string) {
	rec, ok := b.entries[canonicalKey]
	if !ok {
		return
	}
	if rec.idx >= 0 {
		heap.Remove(&b.expiry, rec.idx)
	}
	delete(b.entries, canonicalKey)
}

func translateValueErr(err error) error {
	switch err {
	case value.ErrTypeClash:
		return storeerr.New(storeerr.KindTypeClash)
	case value.ErrNoSuchKey:
		return storeerr.New(storeerr.KindNoSuchKey)
	default:
		return storeerr.Newf(storeerr.KindBackendFailure, "%v", err)
	}
}
