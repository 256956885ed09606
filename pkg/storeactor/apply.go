package storeactor

import (
	"context"
	"time"

	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/log"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

// applyAndBroadcast performs a master-local write: apply to the
// backend, then (on success) increment seq, broadcast the replicated
// command, and emit the matching event (spec.md §4.3 "Command
// emission"). No command is broadcast and no event is emitted on
// failure (spec.md §7 "Propagation policy"). inserted is meaningful only
// for OpPutUnique.
func (a *Actor) applyAndBroadcast(op Op, payload command.Payload, publisher command.EntityID) (inserted bool, err error) {
	ctx := context.Background()
	now := time.Now()
	payload.Publisher = publisher

	switch op {
	case OpPut:
		existed, _ := a.store.Exists(ctx, payload.Key)
		var oldVal value.Value
		if existed {
			oldVal, _ = a.store.Get(ctx, payload.Key)
		}
		if err = a.store.Put(ctx, payload.Key, payload.Value, payload.Expiry); err != nil {
			return false, err
		}
		a.commitWrite(command.TypePut, payload)
		if existed {
			a.pub.Update(payload.Key, oldVal, payload.Value, payload.Expiry, publisher, now)
		} else {
			a.pub.Insert(payload.Key, payload.Value, payload.Expiry, publisher, now)
		}

	case OpPutUnique:
		existed, existsErr := a.store.Exists(ctx, payload.Key)
		if existsErr != nil {
			return false, existsErr
		}
		if existed {
			return false, nil
		}
		if err = a.store.Put(ctx, payload.Key, payload.Value, payload.Expiry); err != nil {
			return false, err
		}
		// Replicates as a plain put: clones don't need to know the
		// write originated from a put_unique check.
		a.commitWrite(command.TypePut, payload)
		a.pub.Insert(payload.Key, payload.Value, payload.Expiry, publisher, now)
		inserted = true

	case OpErase:
		if err = a.store.Erase(ctx, payload.Key); err != nil {
			return false, err
		}
		a.commitWrite(command.TypeErase, payload)
		a.pub.Erase(payload.Key, publisher)

	case OpClear:
		if err = a.store.Clear(ctx); err != nil {
			return false, err
		}
		a.commitWrite(command.TypeClear, payload)

	case OpAdd:
		existed, _ := a.store.Exists(ctx, payload.Key)
		var oldVal value.Value
		if existed {
			oldVal, _ = a.store.Get(ctx, payload.Key)
		}
		if err = a.store.Add(ctx, payload.Key, payload.Value, payload.InitType, payload.Expiry); err != nil {
			return false, err
		}
		newVal, _ := a.store.Get(ctx, payload.Key)
		a.commitWrite(command.TypeAdd, payload)
		if existed {
			a.pub.Update(payload.Key, oldVal, newVal, payload.Expiry, publisher, now)
		} else {
			a.pub.Insert(payload.Key, newVal, payload.Expiry, publisher, now)
		}

	case OpSubtract:
		oldVal, getErr := a.store.Get(ctx, payload.Key)
		if getErr != nil {
			return false, getErr
		}
		if err = a.store.Subtract(ctx, payload.Key, payload.Value, payload.Expiry); err != nil {
			return false, err
		}
		newVal, _ := a.store.Get(ctx, payload.Key)
		a.commitWrite(command.TypeSubtract, payload)
		a.pub.Update(payload.Key, oldVal, newVal, payload.Expiry, publisher, now)
	}

	a.refreshEntries()
	return inserted, nil
}

// commitWrite increments seq and broadcasts the replicated command to
// clones. Called only after the local backend write already succeeded.
func (a *Actor) commitWrite(t command.Type, payload command.Payload) {
	seq := a.seq.Add(1)
	cm := command.Message{Sender: a.self, Seq: seq, Type: t, Payload: payload}
	a.bus.Publish(command.CommandTopic(a.storeName, a.cfg.Separator), cm)
}

// applyReplicated applies a command a clone received in-order from its
// master. Backend errors here are logged and surfaced as a stale_data
// warning event rather than treated as fatal (spec.md §7 "Propagation
// policy"): the clone's local state has diverged from the master's, but
// the clone keeps running and stays in sequence.
func (a *Actor) applyReplicated(cm command.Message) {
	ctx := context.Background()
	now := time.Now()
	p := cm.Payload

	switch cm.Type {
	case command.TypePut:
		existed, _ := a.store.Exists(ctx, p.Key)
		var oldVal value.Value
		if existed {
			oldVal, _ = a.store.Get(ctx, p.Key)
		}
		if err := a.store.Put(ctx, p.Key, p.Value, p.Expiry); err != nil {
			a.warnStale("put", p.Key, err)
			return
		}
		if existed {
			a.pub.Update(p.Key, oldVal, p.Value, p.Expiry, p.Publisher, now)
		} else {
			a.pub.Insert(p.Key, p.Value, p.Expiry, p.Publisher, now)
		}

	case command.TypeErase:
		if err := a.store.Erase(ctx, p.Key); err != nil {
			a.warnStale("erase", p.Key, err)
			return
		}
		a.pub.Erase(p.Key, p.Publisher)

	case command.TypeExpire:
		removed, err := a.store.Expire(ctx, p.Key, now)
		if err != nil {
			a.warnStale("expire", p.Key, err)
			return
		}
		if removed {
			a.pub.Expire(p.Key, p.Publisher)
		}

	case command.TypeClear:
		if err := a.store.Clear(ctx); err != nil {
			a.warnStale("clear", value.None(), err)
		}

	case command.TypeAdd:
		existed, _ := a.store.Exists(ctx, p.Key)
		var oldVal value.Value
		if existed {
			oldVal, _ = a.store.Get(ctx, p.Key)
		}
		if err := a.store.Add(ctx, p.Key, p.Value, p.InitType, p.Expiry); err != nil {
			a.warnStale("add", p.Key, err)
			return
		}
		newVal, _ := a.store.Get(ctx, p.Key)
		if existed {
			a.pub.Update(p.Key, oldVal, newVal, p.Expiry, p.Publisher, now)
		} else {
			a.pub.Insert(p.Key, newVal, p.Expiry, p.Publisher, now)
		}

	case command.TypeSubtract:
		oldVal, getErr := a.store.Get(ctx, p.Key)
		if getErr != nil {
			a.warnStale("subtract", p.Key, getErr)
			return
		}
		if err := a.store.Subtract(ctx, p.Key, p.Value, p.Expiry); err != nil {
			a.warnStale("subtract", p.Key, err)
			return
		}
		newVal, _ := a.store.Get(ctx, p.Key)
		a.pub.Update(p.Key, oldVal, newVal, p.Expiry, p.Publisher, now)
	}

	a.refreshEntries()
}

func (a *Actor) warnStale(op string, key value.Value, err error) {
	log.WithClone(a.cfg.CloneID).Warn().Err(err).
		Str("store_name", a.storeName).Str("op", op).
		Msg("replicated apply failed, store has diverged")
	a.pub.Warning(string(storeerr.KindStaleData), key)
}
