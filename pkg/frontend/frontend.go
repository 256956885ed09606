/*
Package frontend implements the caller-facing handle over a store actor
(spec.md §4.4): a thin wrapper holding a reference to a pkg/storeactor
Actor and the store name, offering synchronous methods that block on a
per-request reply channel with a deadline, plus fire-and-forget modifiers
that enqueue and return immediately. Grounded on the teacher's client-side
wrapper style in pkg/client (a thin struct over a transport handle,
translating domain calls into request/response pairs) generalized to a
local actor reference instead of a network client.
*/
package frontend

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/log"
	"github.com/cuemby/storebroker/pkg/metrics"
	"github.com/cuemby/storebroker/pkg/storeactor"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

// DefaultRequestTimeout is used when Frontend is constructed with a
// non-positive timeout; it matches spec.md §6's configuration default
// for broker.store.request-timeout.
const DefaultRequestTimeout = 10 * time.Second

// Frontend is a caller-facing handle over one store actor.
type Frontend struct {
	actor          *storeactor.Actor
	storeName      string
	self           command.EntityID
	requestTimeout time.Duration
	nextReqID      atomic.Uint64
}

// New binds a Frontend to actor. self identifies this frontend's caller
// as the publisher recorded on every write it issues. requestTimeout
// falls back to DefaultRequestTimeout when non-positive.
func New(actor *storeactor.Actor, storeName string, self command.EntityID, requestTimeout time.Duration) *Frontend {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Frontend{
		actor:          actor,
		storeName:      storeName,
		self:           self,
		requestTimeout: requestTimeout,
	}
}

func (f *Frontend) nextID() uint64 { return f.nextReqID.Add(1) }

// request sends a request and blocks on its reply honoring both ctx and
// the frontend's configured timeout, whichever elapses first (spec.md
// §5 "Frontend↔actor", §4.4 synchronous methods).
func (f *Frontend) request(ctx context.Context, op storeactor.Op, payload command.Payload) storeactor.Response {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RequestDuration, string(op))

	deadline := time.Now().Add(f.requestTimeout)
	reqCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req := &storeactor.Request{
		Op:        op,
		Requester: f.self,
		ReqID:     f.nextID(),
		Payload:   payload,
		Deadline:  deadline,
		Reply:     make(chan storeactor.Response, 1),
	}
	if err := f.actor.Submit(reqCtx, req); err != nil {
		metrics.RequestTimeoutsTotal.WithLabelValues(f.storeName, string(op)).Inc()
		return storeactor.Response{Err: storeerr.New(storeerr.KindRequestTimeout)}
	}
	select {
	case resp := <-req.Reply:
		return resp
	case <-reqCtx.Done():
		metrics.RequestTimeoutsTotal.WithLabelValues(f.storeName, string(op)).Inc()
		return storeactor.Response{Err: storeerr.New(storeerr.KindRequestTimeout)}
	}
}

// fireAndForget submits a write and does not wait for it to be applied;
// failures are handled and logged at the store actor, never surfaced to
// the caller (spec.md §7 "Propagation policy").
func (f *Frontend) fireAndForget(op storeactor.Op, payload command.Payload) {
	req := &storeactor.Request{
		Op:        op,
		Requester: f.self,
		ReqID:     f.nextID(),
		Payload:   payload,
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.requestTimeout)
	defer cancel()
	if err := f.actor.Submit(ctx, req); err != nil {
		log.WithRequest(req.ReqID).Warn().Err(err).Str("store_name", f.storeName).
			Msg("fire-and-forget request dropped")
	}
}

// --- Synchronous methods (spec.md §4.4) ---

// Exists reports whether key is present.
func (f *Frontend) Exists(ctx context.Context, key value.Value) (bool, error) {
	resp := f.request(ctx, storeactor.OpExists, command.Payload{Key: key})
	if resp.Err != nil {
		return false, resp.Err
	}
	return resp.Value.AsBool(), nil
}

// Get reads key's current value.
func (f *Frontend) Get(ctx context.Context, key value.Value) (value.Value, error) {
	resp := f.request(ctx, storeactor.OpGet, command.Payload{Key: key})
	return resp.Value, resp.Err
}

// GetIndexFromValue reads container at key then indexes into it with
// index (table/vector lookup or set membership test, spec.md §4.1).
func (f *Frontend) GetIndexFromValue(ctx context.Context, key, index value.Value) (value.Value, error) {
	resp := f.request(ctx, storeactor.OpGetIndexFromValue, command.Payload{Key: key, Value: index})
	return resp.Value, resp.Err
}

// Keys enumerates the store's current key set.
func (f *Frontend) Keys(ctx context.Context) (value.Value, error) {
	resp := f.request(ctx, storeactor.OpKeys, command.Payload{})
	return resp.Value, resp.Err
}

// PutUnique atomically inserts (key, val) iff key is absent, returning
// true if inserted (spec.md §4.3 "put_unique").
func (f *Frontend) PutUnique(ctx context.Context, key, val value.Value, expiry *time.Time) (bool, error) {
	resp := f.request(ctx, storeactor.OpPutUnique, command.Payload{Key: key, Value: val, Expiry: expiry})
	if resp.Err != nil {
		return false, resp.Err
	}
	return resp.Bool, nil
}

// --- Fire-and-forget modifiers (spec.md §4.4), mapped to add/subtract/
// put/erase per spec.md §4.1. ---

// Put overwrites key with val.
func (f *Frontend) Put(key, val value.Value, expiry *time.Time) {
	f.fireAndForget(storeactor.OpPut, command.Payload{Key: key, Value: val, Expiry: expiry})
}

// Erase removes key if present.
func (f *Frontend) Erase(key value.Value) {
	f.fireAndForget(storeactor.OpErase, command.Payload{Key: key})
}

// Clear removes every entry in the store.
func (f *Frontend) Clear() {
	f.fireAndForget(storeactor.OpClear, command.Payload{})
}

// Increment adds delta to key, initializing as initType if absent.
func (f *Frontend) Increment(key, delta value.Value, initType value.Kind, expiry *time.Time) {
	f.fireAndForget(storeactor.OpAdd, command.Payload{Key: key, Value: delta, InitType: initType, Expiry: expiry})
}

// Decrement subtracts delta from key.
func (f *Frontend) Decrement(key, delta value.Value, expiry *time.Time) {
	f.fireAndForget(storeactor.OpSubtract, command.Payload{Key: key, Value: delta, Expiry: expiry})
}

// Append adds elem to the vector at key, initializing an empty vector
// if absent.
func (f *Frontend) Append(key, elem value.Value, expiry *time.Time) {
	f.fireAndForget(storeactor.OpAdd, command.Payload{Key: key, Value: elem, InitType: value.KindVector, Expiry: expiry})
}

// Push is an alias for Append (spec.md §4.4 lists both modifier names
// for the same vector-append operation).
func (f *Frontend) Push(key, elem value.Value, expiry *time.Time) {
	f.Append(key, elem, expiry)
}

// InsertInto binds [index, val] into the table at key, initializing an
// empty table if absent.
func (f *Frontend) InsertInto(key, index, val value.Value, expiry *time.Time) {
	binding := value.Vector(index, val)
	f.fireAndForget(storeactor.OpAdd, command.Payload{Key: key, Value: binding, InitType: value.KindTable, Expiry: expiry})
}

// Pop removes the last element of the vector at key, per the resolved
// Open Question in spec.md §9: pop ignores its delta argument entirely.
func (f *Frontend) Pop(key value.Value, expiry *time.Time) {
	f.fireAndForget(storeactor.OpSubtract, command.Payload{Key: key, Value: key, Expiry: expiry})
}

// RemoveFrom removes elemOrIndex from the set or table at key.
func (f *Frontend) RemoveFrom(key, elemOrIndex value.Value, expiry *time.Time) {
	f.fireAndForget(storeactor.OpSubtract, command.Payload{Key: key, Value: elemOrIndex, Expiry: expiry})
}
