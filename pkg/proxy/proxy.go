/*
Package proxy implements the mailbox-based asynchronous request/response
handle over a store actor (spec.md §4.4 "Proxy"). Unlike pkg/frontend's
synchronous calls, a Proxy decouples issuing a request from collecting its
response: Issue returns a monotonically increasing request id immediately,
and Receive/ReceiveN later drain completed responses from the proxy's
mailbox in arrival order.
*/
package proxy

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/storeactor"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

// Proxy is a mailbox-buffered asynchronous handle over one store actor.
type Proxy struct {
	actor     *storeactor.Actor
	storeName string
	self      command.EntityID
	timeout   time.Duration
	nextReqID atomic.Uint64
	mailbox   *mailbox
}

// New constructs a Proxy over actor. storeName labels this proxy's
// ProxyMailboxDepth gauge; self identifies this proxy as the publisher
// recorded on every write it issues; timeout bounds how long a single
// in-flight request waits for the actor before the proxy records a
// request_timeout response for it.
func New(actor *storeactor.Actor, storeName string, self command.EntityID, timeout time.Duration) (*Proxy, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	mb, err := newMailbox(storeName)
	if err != nil {
		return nil, err
	}
	return &Proxy{actor: actor, storeName: storeName, self: self, timeout: timeout, mailbox: mb}, nil
}

// Close tears down the proxy's mailbox, waking any blocked Receive calls.
func (p *Proxy) Close() {
	p.mailbox.close()
}

// Fd returns the mailbox's pollable readiness handle (spec.md §6
// "Mailbox readiness"): readable whenever at least one response is
// queued, cleared once the queue is fully drained.
func (p *Proxy) Fd() int { return p.mailbox.fd() }

// Issue submits op against the store actor and returns a request id
// immediately (spec.md §4.4 "Issues requests that each return a
// request_id, monotonically increasing, per proxy"); the eventual
// response is delivered through Receive/ReceiveN, not through Issue's
// return value.
func (p *Proxy) Issue(op storeactor.Op, payload command.Payload) uint64 {
	reqID := p.nextReqID.Add(1)
	req := &storeactor.Request{
		Op:        op,
		Requester: p.self,
		ReqID:     reqID,
		Payload:   payload,
		Reply:     make(chan storeactor.Response, 1),
	}

	go p.await(reqID, req)
	return reqID
}

// await runs in its own goroutine per issued request so that multiple
// in-flight requests can complete and land on the mailbox out of order,
// exactly as spec.md §4.4 requires.
func (p *Proxy) await(reqID uint64, req *storeactor.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.actor.Submit(ctx, req); err != nil {
		p.mailbox.push(Response{RequestID: reqID, Err: storeerr.New(storeerr.KindRequestTimeout)})
		return
	}
	select {
	case resp := <-req.Reply:
		p.mailbox.push(Response{RequestID: reqID, Value: resp.Value, Bool: resp.Bool, Err: resp.Err})
	case <-ctx.Done():
		p.mailbox.push(Response{RequestID: reqID, Err: storeerr.New(storeerr.KindRequestTimeout)})
	}
}

// Receive blocks for exactly one response (spec.md §4.4 "receive()
// blocks for one response").
func (p *Proxy) Receive(ctx context.Context) (Response, error) {
	return p.mailbox.receiveOne(ctx)
}

// ReceiveN blocks until n responses have arrived (spec.md §4.4
// "receive(n) collects up to n responses, blocking until n arrive").
func (p *Proxy) ReceiveN(ctx context.Context, n int) ([]Response, error) {
	return p.mailbox.receiveN(ctx, n)
}

// --- convenience request builders mirroring pkg/frontend's operations ---

// Get issues a get request and returns its request id.
func (p *Proxy) Get(key value.Value) uint64 {
	return p.Issue(storeactor.OpGet, command.Payload{Key: key})
}

// Put issues a put request and returns its request id.
func (p *Proxy) Put(key, val value.Value, expiry *time.Time) uint64 {
	return p.Issue(storeactor.OpPut, command.Payload{Key: key, Value: val, Expiry: expiry})
}

// PutUnique issues a put_unique request and returns its request id.
func (p *Proxy) PutUnique(key, val value.Value, expiry *time.Time) uint64 {
	return p.Issue(storeactor.OpPutUnique, command.Payload{Key: key, Value: val, Expiry: expiry})
}

// Erase issues an erase request and returns its request id.
func (p *Proxy) Erase(key value.Value) uint64 {
	return p.Issue(storeactor.OpErase, command.Payload{Key: key})
}
