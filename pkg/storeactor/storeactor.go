/*
Package storeactor implements the store actor (spec.md §4.3): the owned
message-processing task that hosts one store in master or clone role. It
re-architects the teacher's cooperative-actor-framework model as a plain
goroutine with a single inbound channel for requests and commands,
selected together with the tick and shutdown signals and handled one
message at a time (spec.md §9 "Actor model"), mutating a
pkg/backend instance, replicating writes over pkg/command on pkg/bus, and
publishing pkg/events on every successful mutation.
*/
package storeactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/storebroker/pkg/backend"
	"github.com/cuemby/storebroker/pkg/bus"
	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/events"
	"github.com/cuemby/storebroker/pkg/log"
	"github.com/cuemby/storebroker/pkg/metrics"
	"github.com/cuemby/storebroker/pkg/storeerr"
	"github.com/cuemby/storebroker/pkg/value"
)

// Role is a store actor's position in its replication topology.
type Role string

const (
	RoleMaster Role = "master"
	RoleClone  Role = "clone"
)

// Op names a frontend-issued request operation (spec.md §4.3).
type Op string

const (
	OpExists            Op = "exists"
	OpGet               Op = "get"
	OpGetIndexFromValue Op = "get_index_from_value"
	OpKeys              Op = "keys"
	OpPut               Op = "put"
	OpErase             Op = "erase"
	OpClear             Op = "clear"
	OpAdd               Op = "add"
	OpSubtract          Op = "subtract"
	OpPutUnique         Op = "put_unique"
)

func (o Op) isWrite() bool {
	switch o {
	case OpPut, OpErase, OpClear, OpAdd, OpSubtract, OpPutUnique:
		return true
	default:
		return false
	}
}

// Request is one operation issued against a store actor by a frontend
// or proxy. Reply must be buffered with capacity at least 1; the actor
// sends to it without blocking.
type Request struct {
	Op        Op
	Requester command.EntityID
	ReqID     uint64
	Payload   command.Payload
	Deadline  time.Time
	Reply     chan Response
}

// Response answers a Request. Bool carries the put_unique result; Value
// carries read results; Err is a *storeerr.Error on failure.
type Response struct {
	Value value.Value
	Bool  bool
	Err   error
}

// Config binds a new Actor to its backend, bus, and replication topology.
type Config struct {
	StoreName    string
	Role         Role
	Backend      backend.Backend
	Bus          *bus.Bus
	Separator    string
	TickInterval time.Duration
	Self         command.EntityID

	// MasterEntity and CloneID are meaningful only when Role is
	// RoleClone: MasterEntity is the sender this clone accepts
	// replicated commands from, CloneID addresses this clone's
	// snapshot/ack/put_unique_result reply topic.
	MasterEntity command.EntityID
	CloneID      string
}

type msgKind int

const (
	msgRequest msgKind = iota
	msgCommand
)

type inboundMsg struct {
	kind    msgKind
	request *Request
	command command.Message
}

const resyncBufferCap = 256

// Actor owns one store instance (spec.md §4.3). All backend access and
// state mutation happens on the goroutine running Run; every other
// method is safe to call concurrently because it only ever enqueues
// onto inbox or reads atomic fields.
type Actor struct {
	cfg       Config
	storeName string
	role      Role
	self      command.EntityID

	store backend.Backend
	bus   *bus.Bus
	pub   *events.Publisher

	seq         atomic.Uint64
	expectedSeq atomic.Uint64
	entries     atomic.Int64

	inbox chan inboundMsg

	cmdSub   *bus.Subscription
	replySub *bus.Subscription

	// clone-only state; touched only from the Run goroutine.
	pendingPutUnique map[uint64]*Request
	resyncBuffer     []command.Message
	resyncing        bool

	log      zerolog.Logger
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New constructs an Actor. Call Run to start its message loop.
func New(cfg Config) *Actor {
	if cfg.Separator == "" {
		cfg.Separator = command.DefaultSeparator
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	a := &Actor{
		cfg:       cfg,
		storeName: cfg.StoreName,
		role:      cfg.Role,
		self:      cfg.Self,
		store:     cfg.Backend,
		bus:       cfg.Bus,
		pub:       events.NewPublisher(cfg.Bus, cfg.StoreName, cfg.Separator),
		inbox:     make(chan inboundMsg, 256),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       log.WithStore(cfg.StoreName),
	}
	if cfg.Role == RoleClone {
		a.pendingPutUnique = make(map[uint64]*Request)
		a.cmdSub = cfg.Bus.Subscribe(command.CommandTopic(cfg.StoreName, cfg.Separator), 0)
		a.replySub = cfg.Bus.Subscribe(command.ReplyTopic(cfg.StoreName, cfg.CloneID, cfg.Separator), 0)
	} else {
		a.cmdSub = cfg.Bus.Subscribe(command.ProposalTopic(cfg.StoreName, cfg.Separator), 0)
	}
	return a
}

// Run executes the actor's message loop until ctx is cancelled or Stop
// is called. It must run in its own goroutine; it returns once shutdown
// has drained pending state.
func (a *Actor) Run(ctx context.Context) {
	defer close(a.done)

	go a.pump(a.cmdSub)
	if a.role == RoleClone {
		go a.pump(a.replySub)
		a.startResync()
	}

	var tickCh <-chan time.Time
	if a.role == RoleMaster {
		ticker := time.NewTicker(a.cfg.TickInterval)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	for {
		select {
		case in := <-a.inbox:
			a.handle(in)
		case <-tickCh:
			a.handleTick()
		case <-ctx.Done():
			a.shutdown()
			return
		case <-a.stop:
			a.shutdown()
			return
		}
	}
}

// Stop requests the actor's message loop to exit. On exit, put_unique
// requests still awaiting the master's result get a request_timeout
// reply; requests still queued in the inbox get no reply (spec.md §5
// "Cancellation and timeouts").
func (a *Actor) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// Submit enqueues req for processing. It blocks only long enough to hand
// off to the actor's inbox or until ctx is done; it never waits for req
// to be processed.
func (a *Actor) Submit(ctx context.Context, req *Request) error {
	select {
	case a.inbox <- inboundMsg{kind: msgRequest, request: req}:
		return nil
	case <-a.done:
		return storeerr.New(storeerr.KindRequestTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports this actor's current topology snapshot for
// metrics.Collector, implementing the shape of metrics.StatsProvider's
// per-store element.
func (a *Actor) Stats() metrics.StoreSnapshot {
	seq := a.seq.Load()
	if a.role == RoleClone {
		if e := a.expectedSeq.Load(); e > 0 {
			seq = e - 1
		} else {
			seq = 0
		}
	}
	return metrics.StoreSnapshot{
		Name:    a.storeName,
		Role:    string(a.role),
		Entries: uint64(a.entries.Load()),
		Seq:     seq,
	}
}

func (a *Actor) pump(sub *bus.Subscription) {
	for msg := range sub.C() {
		cm, ok := msg.Payload.(command.Message)
		if !ok {
			continue
		}
		select {
		case a.inbox <- inboundMsg{kind: msgCommand, command: cm}:
		case <-a.done:
			return
		}
	}
}

func (a *Actor) handle(in inboundMsg) {
	switch in.kind {
	case msgRequest:
		a.handleRequest(in.request)
	case msgCommand:
		a.handleCommand(in.command)
	}
}

func (a *Actor) shutdown() {
	for _, req := range a.pendingPutUnique {
		reply(req, Response{Err: storeerr.New(storeerr.KindRequestTimeout)})
	}
	a.pendingPutUnique = nil
	if a.cmdSub != nil {
		a.cmdSub.Unsubscribe()
	}
	if a.replySub != nil {
		a.replySub.Unsubscribe()
	}
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("backend close failed during shutdown")
	}
}

func reply(req *Request, resp Response) {
	if req == nil || req.Reply == nil {
		return
	}
	select {
	case req.Reply <- resp:
	default:
	}
}

func (a *Actor) refreshEntries() {
	n, err := a.store.Size(context.Background())
	if err != nil {
		return
	}
	a.entries.Store(int64(n))
}

func translateValueErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, value.ErrTypeClash):
		return storeerr.New(storeerr.KindTypeClash)
	case errors.Is(err, value.ErrNoSuchKey):
		return storeerr.New(storeerr.KindNoSuchKey)
	default:
		return storeerr.Newf(storeerr.KindBackendFailure, "%v", err)
	}
}

func kindOf(err error) string {
	var se *storeerr.Error
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return string(storeerr.KindUnspecified)
}

func opToType(op Op) command.Type {
	switch op {
	case OpPut:
		return command.TypePut
	case OpErase:
		return command.TypeErase
	case OpClear:
		return command.TypeClear
	case OpAdd:
		return command.TypeAdd
	case OpSubtract:
		return command.TypeSubtract
	case OpPutUnique:
		return command.TypePutUnique
	default:
		return ""
	}
}

func typeToOp(t command.Type) Op {
	switch t {
	case command.TypePut:
		return OpPut
	case command.TypeErase:
		return OpErase
	case command.TypeClear:
		return OpClear
	case command.TypeAdd:
		return OpAdd
	case command.TypeSubtract:
		return OpSubtract
	case command.TypePutUnique:
		return OpPutUnique
	default:
		return ""
	}
}
