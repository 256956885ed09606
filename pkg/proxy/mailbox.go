package proxy

import (
	"context"
	"sync"

	"github.com/cuemby/storebroker/pkg/metrics"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

// Response pairs a proxy request id with its outcome (spec.md §4.4 "A
// response pairs request_id with expected<data>").
type Response struct {
	RequestID uint64
	Value     value.Value
	Bool      bool
	Err       error
}

// mailbox is the shared object a proxy's owner threads and its
// request-completion goroutines both touch (spec.md §5 "Shared
// resources"): a mutex-guarded deque plus a condition variable for
// waiters, and a flare so external event loops can poll readiness.
// Responses are appended in arrival order, not request order, because
// different operations may complete out of order (spec.md §4.4).
type mailbox struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []Response
	flare     *flare
	closed    bool
	storeName string
}

func newMailbox(storeName string) (*mailbox, error) {
	fl, err := newFlare()
	if err != nil {
		return nil, err
	}
	m := &mailbox{flare: fl, storeName: storeName}
	m.cond = sync.NewCond(&m.mu)
	return m, nil
}

func (m *mailbox) push(r Response) {
	m.mu.Lock()
	m.queue = append(m.queue, r)
	depth := len(m.queue)
	m.mu.Unlock()
	metrics.ProxyMailboxDepth.WithLabelValues(m.storeName).Set(float64(depth))
	m.flare.signal()
	m.cond.Broadcast()
}

// close wakes every blocked waiter so they return storeerr.KindRequestTimeout
// instead of hanging forever once the proxy is torn down.
func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
	m.flare.Close()
}

// fd exposes the flare's pollable read end (spec.md §6 "Mailbox readiness").
func (m *mailbox) fd() int { return m.flare.Fd() }

// receiveOne blocks until at least one response is queued, ctx is done,
// or the mailbox is closed, then dequeues and returns exactly one.
func (m *mailbox) receiveOne(ctx context.Context) (Response, error) {
	results, err := m.receiveN(ctx, 1)
	if err != nil {
		return Response{}, err
	}
	return results[0], nil
}

// receiveN blocks until n responses have been queued, ctx is done, or
// the mailbox is closed, then dequeues and returns up to n of them
// (spec.md §4.4 "receive(n) collects up to n responses, blocking until
// n arrive").
func (m *mailbox) receiveN(ctx context.Context, n int) ([]Response, error) {
	if n <= 0 {
		return nil, nil
	}

	// cond.Wait cannot itself observe ctx cancellation, so a watcher
	// goroutine translates ctx.Done() into a Broadcast the wait loop
	// below can notice.
	stop := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				m.cond.Broadcast()
			case <-stop:
			}
		}()
		defer close(stop)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) < n {
		if m.closed {
			return nil, storeerr.New(storeerr.KindRequestTimeout)
		}
		if ctx != nil && ctx.Err() != nil {
			return nil, storeerr.New(storeerr.KindRequestTimeout)
		}
		m.cond.Wait()
	}

	out := append([]Response(nil), m.queue[:n]...)
	m.queue = m.queue[n:]
	metrics.ProxyMailboxDepth.WithLabelValues(m.storeName).Set(float64(len(m.queue)))
	if len(m.queue) == 0 {
		m.flare.clear()
	}
	return out, nil
}
