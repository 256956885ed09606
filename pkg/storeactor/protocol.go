package storeactor

import (
	"context"
	"time"

	"github.com/cuemby/storebroker/pkg/backend"
	"github.com/cuemby/storebroker/pkg/backend/memory"
	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/metrics"
)

// handleCommand dispatches an inbound bus message: a master receives
// proposals (forwarded writes and snapshot_request) on its proposal
// topic, a clone receives replicated commands and addressed replies.
func (a *Actor) handleCommand(cm command.Message) {
	if a.role == RoleMaster {
		a.handleProposal(cm)
		return
	}
	a.handleReplicated(cm)
}

// handleProposal applies a write forwarded by a clone's frontend, or
// answers a clone's snapshot_request (spec.md §4.3).
func (a *Actor) handleProposal(cm command.Message) {
	if cm.Type == command.TypeSnapshotRequest {
		a.sendSnapshot(cm.Payload.CloneID)
		return
	}
	op := typeToOp(cm.Type)
	if op == "" {
		a.log.Warn().Str("type", string(cm.Type)).Msg("dropping unrecognized proposal")
		return
	}
	inserted, err := a.applyAndBroadcast(op, cm.Payload, cm.Sender)
	if err != nil {
		a.log.Warn().Err(err).Str("op", string(op)).Msg("proposal apply failed")
		metrics.MutationFailuresTotal.WithLabelValues(a.storeName, string(op), kindOf(err)).Inc()
		if cm.Type == command.TypePutUnique && cm.Payload.CloneID != "" {
			a.replyPutUniqueResult(cm.Payload.CloneID, cm.Payload.ReqID, false)
		}
		return
	}
	metrics.MutationsTotal.WithLabelValues(a.storeName, string(op)).Inc()
	if cm.Type == command.TypePutUnique && cm.Payload.CloneID != "" {
		a.replyPutUniqueResult(cm.Payload.CloneID, cm.Payload.ReqID, inserted)
	}
}

func (a *Actor) replyPutUniqueResult(cloneID string, reqID uint64, ok bool) {
	cm := command.Message{
		Sender:  a.self,
		Type:    command.TypePutUniqueResult,
		Payload: command.Payload{ReqID: reqID, Bool: ok},
	}
	a.bus.Publish(command.ReplyTopic(a.storeName, cloneID, a.cfg.Separator), cm)
}

// sendSnapshot answers a snapshot_request with the master's full backend
// contents and current seq (spec.md §4.3 "Snapshot protocol").
func (a *Actor) sendSnapshot(cloneID string) {
	ctx := context.Background()
	snap, err := a.store.Snapshot(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("snapshot failed")
		return
	}
	entries := make([]command.Entry, len(snap.Entries))
	for i, e := range snap.Entries {
		entries[i] = command.Entry{Key: e.Key, Value: e.Value, Expiry: e.Expiry}
	}
	expiries := make([]command.KeyExpiry, len(snap.Expiries))
	for i, e := range snap.Expiries {
		expiries[i] = command.KeyExpiry{Key: e.Key, Expiry: e.Expiry}
	}
	seq := a.seq.Load()
	cm := command.Message{
		Sender: a.self,
		Seq:    seq,
		Type:   command.TypeSnapshotReply,
		Payload: command.Payload{
			Seq:      seq,
			Entries:  entries,
			Expiries: expiries,
		},
	}
	a.bus.Publish(command.ReplyTopic(a.storeName, cloneID, a.cfg.Separator), cm)
}

// handleReplicated processes a command addressed to a clone: either a
// control message (snapshot_reply, ack_clone, put_unique_result) or a
// seq-ordered write to apply (spec.md §4.3 "Command application").
func (a *Actor) handleReplicated(cm command.Message) {
	switch cm.Type {
	case command.TypeSnapshotReply:
		a.applySnapshot(cm.Payload)
		return
	case command.TypeAckClone:
		a.log.Info().Msg("attach acknowledged by master")
		return
	case command.TypePutUniqueResult:
		a.resolvePutUnique(cm.Payload.ReqID, cm.Payload.Bool)
		return
	}

	if !cm.Sender.IsNil() && cm.Sender != a.cfg.MasterEntity {
		a.log.Warn().Str("sender", cm.Sender.Object).Msg("dropping command from unbound sender")
		return
	}

	if a.resyncing {
		a.bufferDuringResync(cm)
		return
	}

	expected := a.expectedSeq.Load()
	switch {
	case cm.Seq == expected:
		a.applyReplicated(cm)
		a.expectedSeq.Store(expected + 1)
	case cm.Seq > expected:
		metrics.CloneGapsTotal.WithLabelValues(a.storeName, a.cfg.CloneID).Inc()
		a.startResync()
		a.bufferDuringResync(cm)
	default:
		// duplicate: already applied, ignore (spec.md §4.3 step 4).
	}
}

func (a *Actor) resolvePutUnique(reqID uint64, ok bool) {
	req, found := a.pendingPutUnique[reqID]
	if !found {
		return
	}
	delete(a.pendingPutUnique, reqID)
	reply(req, Response{Bool: ok})
}

func (a *Actor) startResync() {
	if a.resyncing {
		return
	}
	a.resyncing = true
	a.resyncBuffer = a.resyncBuffer[:0]
	a.sendSnapshotRequest()
}

func (a *Actor) sendSnapshotRequest() {
	cm := command.Message{
		Sender: a.self,
		Type:   command.TypeSnapshotRequest,
		Payload: command.Payload{
			CloneID: a.cfg.CloneID,
		},
	}
	a.bus.Publish(command.ProposalTopic(a.storeName, a.cfg.Separator), cm)
}

// bufferDuringResync holds commands that arrive while a resync is in
// flight; overflow drops the oldest entry and forces a fresh resync
// since the dropped command can no longer be replayed (spec.md §4.3
// step 3).
func (a *Actor) bufferDuringResync(cm command.Message) {
	a.resyncBuffer = append(a.resyncBuffer, cm)
	if len(a.resyncBuffer) > resyncBufferCap {
		a.resyncBuffer = a.resyncBuffer[1:]
		a.sendSnapshotRequest()
	}
}

// applySnapshot replaces the clone's backend contents wholesale and
// replays whatever commands were buffered during the resync.
func (a *Actor) applySnapshot(p command.Payload) {
	mem, ok := a.store.(*memory.Backend)
	if !ok {
		a.log.Error().Msg("snapshot apply requires the in-memory backend")
		return
	}
	entries := make([]backend.Entry, len(p.Entries))
	for i, e := range p.Entries {
		entries[i] = backend.Entry{Key: e.Key, Value: e.Value, Expiry: e.Expiry}
	}
	mem.Restore(entries)
	a.expectedSeq.Store(p.Seq + 1)
	a.resyncing = false
	a.refreshEntries()
	metrics.CloneResyncsTotal.WithLabelValues(a.storeName, a.cfg.CloneID).Inc()

	buffered := a.resyncBuffer
	a.resyncBuffer = nil
	for _, cm := range buffered {
		a.handleReplicated(cm)
	}
}

// handleTick scans the expiry index for due entries (master only): it
// erases each, broadcasts an expire command, and emits an expire event
// (spec.md §4.3 "Expiry tick").
func (a *Actor) handleTick() {
	if a.role != RoleMaster {
		return
	}
	ctx := context.Background()
	timer := metrics.NewTimer()
	now := time.Now()

	expiries, err := a.store.Expiries(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("expiry scan failed")
		timer.ObserveDurationVec(metrics.TickScanDuration, a.storeName)
		return
	}
	for _, ke := range expiries {
		if ke.Expiry.After(now) {
			continue
		}
		removed, err := a.store.Expire(ctx, ke.Key, now)
		if err != nil {
			a.log.Error().Err(err).Msg("expire failed")
			continue
		}
		if !removed {
			continue
		}
		seq := a.seq.Add(1)
		cm := command.Message{
			Sender:  a.self,
			Seq:     seq,
			Type:    command.TypeExpire,
			Payload: command.Payload{Key: ke.Key},
		}
		a.bus.Publish(command.CommandTopic(a.storeName, a.cfg.Separator), cm)
		a.pub.Expire(ke.Key, command.NilEntity)
		metrics.ExpiredEntriesTotal.WithLabelValues(a.storeName).Inc()
	}
	a.refreshEntries()
	timer.ObserveDurationVec(metrics.TickScanDuration, a.storeName)
}
