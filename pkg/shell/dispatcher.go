// Package shell runs the effect loop between a front end and the core.
//
// Every core call happens on a single pump goroutine that drains a FIFO
// worklist. Events submitted by the front end and results produced by effect
// tasks are both queued there, so calls into the core are serialized and each
// chain observes its own results in causal order. Render requests are served
// on the pump; every other effect runs in its own goroutine and reports back
// through the worklist.
package shell

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/effectshell/pkg/conduit"
	"github.com/Mindburn-Labs/effectshell/pkg/view"
	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// inflight is the bookkeeping for one request whose result has not yet been
// delivered to the core.
type inflight struct {
	chain  string
	kind   wire.EffectKind
	cancel context.CancelFunc
	// retired is set, under Dispatcher.mu, once the entry leaves the
	// in-flight map.
	retired bool
}

func (e *inflight) stream() bool { return e.kind == wire.KindServerSentEvents }

// Dispatcher drives one core. V is the decoded view type.
type Dispatcher[V any] struct {
	core       conduit.Conduit
	decodeView func([]byte) (V, error)
	caps       Capabilities
	view       *view.Cell[V]

	logger          *slog.Logger
	tracker         Tracker
	onProtocolError func(error)

	work *worklist

	// taskCtx is the parent of every effect task; Close cancels it.
	taskCtx    context.Context
	cancelAll  context.CancelFunc
	tasks      sync.WaitGroup
	pumpDone   chan struct{}
	closedOnce sync.Once

	mu       sync.Mutex
	closed   bool
	inflight map[wire.RequestID]*inflight
	pending  int
	idle     chan struct{}
}

// New starts a dispatcher for core. decodeView turns the bytes of the core's
// view call into V.
func New[V any](core conduit.Conduit, decodeView func([]byte) (V, error), caps Capabilities, opts ...Option) *Dispatcher[V] {
	o := options{
		logger:  slog.Default().With("component", "shell"),
		tracker: noopTracker{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	d := &Dispatcher[V]{
		core:            core,
		decodeView:      decodeView,
		caps:            caps,
		view:            view.NewCell(*new(V)),
		logger:          o.logger,
		tracker:         o.tracker,
		onProtocolError: o.onProtocolError,
		work:            newWorklist(),
		taskCtx:         ctx,
		cancelAll:       cancel,
		pumpDone:        make(chan struct{}),
		inflight:        make(map[wire.RequestID]*inflight),
		idle:            idle,
	}
	go d.pump()
	return d
}

// Submit encodes event and queues it as the start of a new chain. It never
// waits for the core or for effects. Events submitted after Close are
// dropped.
func (d *Dispatcher[V]) Submit(event wire.Marshaler) {
	chain := uuid.NewString()
	if !d.enqueue(job{chain: chain, event: wire.Marshal(event)}) {
		d.logger.Warn("event submitted after close", "chain", chain)
	}
}

// Cancel abandons the in-flight request id. Its task is told to stop and any
// result it still produces is discarded. Cancel reports whether id was in
// flight.
func (d *Dispatcher[V]) Cancel(id wire.RequestID) bool {
	d.mu.Lock()
	e, ok := d.inflight[id]
	if ok {
		d.retire(id, e)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	e.cancel()
	d.logger.Debug("request cancelled", "chain", e.chain, "request_id", id, "effect", e.kind)
	return true
}

// View returns the most recent view snapshot.
func (d *Dispatcher[V]) View() V { return d.view.Load() }

// Subscribe calls fn with every new view snapshot, on the pump goroutine.
func (d *Dispatcher[V]) Subscribe(fn func(V)) (cancel func()) { return d.view.Subscribe(fn) }

// InFlight returns the number of requests awaiting a result.
func (d *Dispatcher[V]) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// WaitIdle blocks until no work is queued and no effect task is running, or
// ctx is done. A streaming subscription that stays open keeps the dispatcher
// busy.
func (d *Dispatcher[V]) WaitIdle(ctx context.Context) error {
	d.mu.Lock()
	ch := d.idle
	d.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every running task, stops the pump and waits for both, or
// until ctx is done. Work still queued is discarded.
func (d *Dispatcher[V]) Close(ctx context.Context) error {
	d.closedOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		d.cancelAll()
		d.work.Close()
	})

	done := make(chan struct{})
	go func() {
		d.tasks.Wait()
		<-d.pumpDone
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shell: close: %w", ctx.Err())
	}
}

// acquire and release count outstanding work for WaitIdle. Callers hold d.mu.
func (d *Dispatcher[V]) acquire() {
	if d.pending == 0 {
		d.idle = make(chan struct{})
	}
	d.pending++
}

func (d *Dispatcher[V]) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending--
	if d.pending == 0 {
		close(d.idle)
	}
}

func (d *Dispatcher[V]) enqueue(j job) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.acquire()
	d.mu.Unlock()

	if err := d.work.Push(j); err != nil {
		d.release()
		return false
	}
	return true
}

func (d *Dispatcher[V]) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dispatcher[V]) pump() {
	defer close(d.pumpDone)
	for {
		j, err := d.work.Next()
		if err != nil {
			return
		}
		if !d.isClosed() {
			d.step(j)
		}
		d.release()
	}
}

// coreCtx is used for calls into the core. It is never cancelled so that a
// closing dispatcher cannot interrupt the core mid-call.
var coreCtx = context.Background()

func (d *Dispatcher[V]) step(j job) {
	var (
		out []byte
		err error
	)
	if j.resolve {
		switch d.claim(j) {
		case claimStale:
			d.logger.Debug("discarding result for request no longer in flight",
				"chain", j.chain, "request_id", j.id, "seq", j.seq)
			return
		case claimUnknown:
			d.protocolError(&ProtocolError{Chain: j.chain, Op: "resolve", ID: j.id, HasID: true, Err: ErrUnknownRequest})
			return
		}
		out, err = d.core.Resolve(coreCtx, j.id, j.payload)
		if err != nil {
			d.protocolError(&ProtocolError{Chain: j.chain, Op: "resolve", ID: j.id, HasID: true, Err: err})
			return
		}
	} else {
		d.logger.Debug("processing event", "chain", j.chain, "seq", j.seq)
		out, err = d.core.Process(coreCtx, j.event)
		if err != nil {
			d.protocolError(&ProtocolError{Chain: j.chain, Op: "process", Err: err})
			return
		}
	}

	batch, err := wire.DecodeRequests(out)
	if err != nil {
		d.protocolError(&ProtocolError{Chain: j.chain, Op: "decode", Err: err})
		return
	}
	d.route(j.chain, batch)
}

type claimResult int

const (
	claimOK claimResult = iota
	// claimStale is a result for a request that was cancelled, abandoned or
	// already answered.
	claimStale
	// claimUnknown is a result for an id this dispatcher never issued.
	claimUnknown
)

// claim checks that the result in j belongs to the request currently in
// flight under j.id and retires the entry when no further results can follow.
func (d *Dispatcher[V]) claim(j job) claimResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.inflight[j.id]
	switch {
	case ok && e == j.entry:
	case j.entry != nil && j.entry.retired:
		return claimStale
	default:
		return claimUnknown
	}
	if !e.stream() || j.terminal {
		d.retire(j.id, e)
		e.cancel()
	}
	return claimOK
}

// retire removes id from the in-flight map. Callers hold d.mu.
func (d *Dispatcher[V]) retire(id wire.RequestID, e *inflight) {
	delete(d.inflight, id)
	e.retired = true
}

func (d *Dispatcher[V]) route(chain string, batch wire.Batch) {
	for _, req := range batch {
		if req.Effect.Kind() == wire.KindRender {
			if err := d.render(); err != nil {
				d.protocolError(&ProtocolError{Chain: chain, Op: "view", ID: req.ID, HasID: true, Err: err})
				return
			}
			continue
		}

		d.mu.Lock()
		if _, dup := d.inflight[req.ID]; dup {
			d.mu.Unlock()
			d.protocolError(&ProtocolError{Chain: chain, Op: "route", ID: req.ID, HasID: true, Err: ErrDuplicateRequest})
			return
		}
		ctx, cancel := context.WithCancel(d.taskCtx)
		e := &inflight{chain: chain, kind: req.Effect.Kind(), cancel: cancel}
		d.inflight[req.ID] = e
		d.acquire()
		d.tasks.Add(1)
		d.mu.Unlock()

		go d.runTask(ctx, chain, req, e)
	}
}

func (d *Dispatcher[V]) render() error {
	b, err := d.core.View(coreCtx)
	if err != nil {
		return err
	}
	v, err := d.decodeView(b)
	if err != nil {
		return err
	}
	d.view.Store(v)
	return nil
}

func (d *Dispatcher[V]) protocolError(err *ProtocolError) {
	d.abandon(err.Chain)
	d.logger.Error("protocol error, chain abandoned", "chain", err.Chain, "op", err.Op, "error", err.Err)
	if d.onProtocolError != nil {
		d.onProtocolError(err)
	}
}

// abandon cancels every request still in flight for chain.
func (d *Dispatcher[V]) abandon(chain string) {
	d.mu.Lock()
	var cancels []context.CancelFunc
	for id, e := range d.inflight {
		if e.chain == chain {
			d.retire(id, e)
			cancels = append(cancels, e.cancel)
		}
	}
	d.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// deliver queues a result for the pump unless the task has been cancelled.
func (d *Dispatcher[V]) deliver(ctx context.Context, chain string, id wire.RequestID, e *inflight, result wire.Marshaler, terminal bool) {
	if ctx.Err() != nil {
		return
	}
	d.enqueue(job{
		chain:    chain,
		resolve:  true,
		id:       id,
		entry:    e,
		payload:  wire.Marshal(result),
		terminal: terminal,
	})
}

func (d *Dispatcher[V]) runTask(ctx context.Context, chain string, req wire.Request, e *inflight) {
	defer d.tasks.Done()
	defer d.release()

	kind := req.Effect.Kind()
	ctx, finish := d.tracker.TrackOperation(ctx, "effect."+kind.String(),
		attribute.String("chain", chain),
		attribute.Int64("request_id", int64(req.ID)),
	)
	var taskErr error
	defer func() { finish(taskErr) }()

	log := d.logger.With("chain", chain, "request_id", req.ID, "effect", kind)

	switch eff := req.Effect.(type) {
	case wire.HTTPEffect:
		var res wire.HTTPResult
		if d.caps.HTTP == nil {
			log.Warn("no handler configured")
			res = wire.HTTPFailed(wire.HTTPErrorIO, "no http handler configured")
		} else {
			res = d.caps.HTTP.Do(ctx, eff.Request)
		}
		if res.Err != nil {
			taskErr = res.Err
		}
		d.deliver(ctx, chain, req.ID, e, res, true)

	case wire.SSEEffect:
		if d.caps.SSE == nil {
			log.Warn("no handler configured")
			se := wire.SSEError{Message: "no sse handler configured"}
			taskErr = se
			d.deliver(ctx, chain, req.ID, e, se, true)
			return
		}
		ended := false
		d.caps.SSE.Subscribe(ctx, eff.Request, func(r wire.SSEResponse) {
			if ended {
				return
			}
			if se, ok := r.(wire.SSEError); ok {
				taskErr = se
			}
			ended = r.Terminal()
			d.deliver(ctx, chain, req.ID, e, r, ended)
		})
		if !ended {
			d.deliver(ctx, chain, req.ID, e, wire.SSEDone{}, true)
		}

	case wire.StoreEffect:
		var res wire.StoreResult
		if d.caps.Store == nil {
			log.Warn("no handler configured")
			res = wire.StoreResult{Err: &wire.StoreError{Message: "no store handler configured"}}
		} else {
			res = d.caps.Store.Execute(ctx, eff.Operation)
		}
		if res.Err != nil {
			taskErr = res.Err
		}
		d.deliver(ctx, chain, req.ID, e, res, true)

	case wire.KeyValueEffect:
		var res wire.KeyValueResult
		if d.caps.KeyValue == nil {
			log.Warn("no handler configured")
			res = wire.KeyValueFailed(wire.KVErrorOther, "no key-value handler configured")
		} else {
			res = d.caps.KeyValue.Execute(ctx, eff.Operation)
		}
		if res.Err != nil {
			taskErr = res.Err
		}
		d.deliver(ctx, chain, req.ID, e, res, true)

	case wire.KeyStoreEffect:
		var res wire.KeyStoreResult
		if d.caps.KeyStore == nil {
			log.Warn("no handler configured")
			res = wire.KeyStoreFailed(wire.KSErrorInvalidRequest, "no key store handler configured")
		} else {
			res = d.caps.KeyStore.Execute(ctx, eff.Operation)
		}
		if res.Err != nil {
			taskErr = res.Err
		}
		d.deliver(ctx, chain, req.ID, e, res, true)

	default:
		// ReadEffect only produces the kinds above.
		taskErr = fmt.Errorf("unroutable effect %s", kind)
		log.Error("unroutable effect")
	}
}
