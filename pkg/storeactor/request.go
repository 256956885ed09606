package storeactor

import (
	"context"

	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/metrics"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

// handleRequest dispatches a frontend/proxy request. Reads are always
// served from the local backend regardless of role (spec.md §4.3);
// writes branch on role.
func (a *Actor) handleRequest(req *Request) {
	ctx := context.Background()
	switch req.Op {
	case OpExists:
		ok, err := a.store.Exists(ctx, req.Payload.Key)
		reply(req, Response{Value: value.Bool(ok), Err: err})
	case OpGet:
		v, err := a.store.Get(ctx, req.Payload.Key)
		reply(req, Response{Value: v, Err: err})
	case OpGetIndexFromValue:
		container, err := a.store.Get(ctx, req.Payload.Key)
		if err != nil {
			reply(req, Response{Err: err})
			return
		}
		v, err := value.IndexInto(container, req.Payload.Value)
		reply(req, Response{Value: v, Err: translateValueErr(err)})
	case OpKeys:
		v, err := a.store.Keys(ctx)
		reply(req, Response{Value: v, Err: err})
	case OpPutUnique:
		a.handlePutUnique(req)
	default:
		if req.Op.isWrite() {
			a.handleWrite(req)
			return
		}
		reply(req, Response{Err: storeerr.Newf(storeerr.KindInvalidTag, "unknown op %s", req.Op)})
	}
}

func (a *Actor) handleWrite(req *Request) {
	if a.role == RoleClone {
		a.forwardToMaster(req)
		reply(req, Response{})
		return
	}
	_, err := a.applyAndBroadcast(req.Op, req.Payload, req.Requester)
	if err != nil {
		a.log.Error().Err(err).Str("op", string(req.Op)).Msg("write failed")
		metrics.MutationFailuresTotal.WithLabelValues(a.storeName, string(req.Op), kindOf(err)).Inc()
	} else {
		metrics.MutationsTotal.WithLabelValues(a.storeName, string(req.Op)).Inc()
	}
	reply(req, Response{Err: err})
}

func (a *Actor) handlePutUnique(req *Request) {
	if a.role == RoleClone {
		a.pendingPutUnique[req.ReqID] = req
		a.forwardToMaster(req)
		return
	}
	inserted, err := a.applyAndBroadcast(OpPutUnique, req.Payload, req.Requester)
	if err != nil {
		a.log.Error().Err(err).Msg("put_unique failed")
		metrics.MutationFailuresTotal.WithLabelValues(a.storeName, string(OpPutUnique), kindOf(err)).Inc()
		reply(req, Response{Err: err})
		return
	}
	if inserted {
		metrics.MutationsTotal.WithLabelValues(a.storeName, string(OpPutUnique)).Inc()
	}
	reply(req, Response{Bool: inserted})
}

// forwardToMaster publishes req as a pre-commit proposal on the store's
// proposal topic; the bound master applies it and, for put_unique,
// replies on this clone's reply topic (spec.md §4.3 "on a clone,
// forwarded as a command to the master").
func (a *Actor) forwardToMaster(req *Request) {
	payload := req.Payload
	payload.CloneID = a.cfg.CloneID
	payload.ReqID = req.ReqID
	cm := command.Message{Sender: a.self, Type: opToType(req.Op), Payload: payload}
	a.bus.Publish(command.ProposalTopic(a.storeName, a.cfg.Separator), cm)
}
