// Package matching is the centerpiece of the system: the single-
// threaded matching engine that owns the book, runs the top-level
// operation dispatch of spec.md §4.3, and hosts the deferred callback
// pipeline and market-maker participants.
package matching

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/book"
	"fenrir/internal/callback"
	"fenrir/internal/dispatch"
	"fenrir/internal/marketmaker"
	"fenrir/internal/tick"
	"fenrir/internal/tsales"
	"fenrir/internal/waker"
)

// Config bundles the construction parameters spec.md §6 lists:
// (tick_ratio, min_price, max_price, waker_interval_ms) plus the
// secondary knobs (memory ceiling, queue capacity, recursion limits,
// time-and-sales depth) a real deployment needs to pin down.
type Config struct {
	TickRatio tick.Ratio
	MinPrice  float64
	MaxPrice  float64

	MaxTicks       int64 // <=0 disables the memory ceiling check
	QueueCapacity  int   // <=0 means unbounded
	TimeSalesDepth int   // trade ring capacity

	WakerInterval time.Duration // <=0 disables the periodic waker

	RecursionSoftLimit int
	RecursionHardLimit int

	Logger zerolog.Logger
}

// Engine is the matching engine: one dedicated goroutine owns bk and
// runs every mutation spec.md §4.3 describes; every other goroutine
// reaches it only through queue.
type Engine struct {
	grid *tick.Grid
	bk   *book.Book

	mu     sync.RWMutex // guards bk; held for the whole top-level op
	cbq    callback.Queue
	tsales *tsales.Ring
	host   *marketmaker.Host

	queue *dispatch.Queue
	idCtr atomic.Uint64

	waker *waker.Waker

	draining bool
	running  atomic.Bool

	now func() time.Time
	log zerolog.Logger

	t tomb.Tomb
}

// New constructs an engine from cfg but does not start its goroutine;
// call Start.
func New(cfg Config) (*Engine, error) {
	grid, err := tick.NewGrid(cfg.TickRatio, cfg.MinPrice, cfg.MaxPrice, cfg.MaxTicks)
	if err != nil {
		if err == tick.ErrTooLarge {
			return nil, ErrAllocation
		}
		return nil, err
	}

	depth := cfg.TimeSalesDepth
	if depth <= 0 {
		depth = 1024
	}

	e := &Engine{
		grid:   grid,
		bk:     book.New(grid.TicksInRange(), grid.CenterTick()),
		tsales: tsales.New(depth),
		queue:  dispatch.NewQueue(cfg.QueueCapacity),
		now:    time.Now,
		log:    cfg.Logger,
	}
	e.host = marketmaker.NewHost(e, cfg.RecursionSoftLimit, cfg.RecursionHardLimit, cfg.Logger)
	e.waker = waker.New(cfg.WakerInterval, e, e, cfg.Logger)
	return e, nil
}

// Grid exposes the engine's tick grid read-only, e.g. for a caller that
// wants to pre-round a price before submitting.
func (e *Engine) Grid() *tick.Grid { return e.grid }

// Host exposes the market-maker host for the root facade to wire
// Attach/Detach through the same dispatcher queue.
func (e *Engine) Host() *marketmaker.Host { return e.host }

// Start launches the engine's dedicated matching goroutine and the
// periodic waker.
func (e *Engine) Start() {
	e.running.Store(true)
	e.t.Go(e.run)
	e.waker.Start()
}

// Stop signals the engine to drain and stop; it does not wait for
// in-flight producer promises to resolve on its own — callers already
// waiting on Submit/Pull will be released as their requests are
// popped, or left blocked if the queue is closed before they're
// reached (matching tomb.Tomb's usual shutdown contract).
func (e *Engine) Stop() error {
	e.running.Store(false)
	_ = e.waker.Stop()
	e.queue.Close()
	e.t.Kill(nil)
	return e.t.Wait()
}

func (e *Engine) run() error {
	e.log.Info().Msg("matching engine started")
	for {
		req, ok := e.queue.Pop()
		if !ok {
			select {
			case <-e.t.Dying():
				return nil
			default:
				continue
			}
		}
		e.handle(req)
	}
}

func (e *Engine) nextID() uint64 { return e.idCtr.Add(1) }

func (e *Engine) ctx() *mctx {
	return &mctx{bk: e.bk, grid: e.grid, cbq: &e.cbq, tsales: e.tsales, now: e.now}
}

// handle runs the top-level operation of spec.md §4.3 for one dequeued
// request: assign an id, dispatch to the specific inserter, drain
// triggered stops, drain the deferred callback queue, resolve the
// promise.
func (e *Engine) handle(r *dispatch.Request) {
	j := r.Payload.(*job)

	e.mu.Lock()
	defer e.mu.Unlock()
	ctx := e.ctx()

	switch j.kind {
	case jobPull:
		o, ok := e.bk.RemoveByID(j.pullID, j.searchLimitsFirst)
		if ok {
			ctx.queueCancel(o)
		}
		e.drainCallbacks(ctx)
		r.Resolve(dispatch.Result{Found: ok})
		return

	case jobAttach:
		h, err := e.host.Attach(j.participant, j.impliedPrice, j.tickSize)
		j.attachedHandle = h
		e.drainCallbacks(ctx)
		r.Resolve(dispatch.Result{Err: err})
		return

	case jobDetach:
		err := e.host.Detach(j.handle)
		e.drainCallbacks(ctx)
		r.Resolve(dispatch.Result{Err: err})
		return

	case jobWake:
		// spec.md §4.8: wake delivery respects the deferred-callback
		// discipline like everything else — it reaches the engine thread
		// through the same queue every other request does, and
		// Host.Wake's participant dispatch runs here, not on the waker's
		// own goroutine.
		e.host.Wake(j.wakePrice)
		e.drainCallbacks(ctx)
		r.Resolve(dispatch.Result{})
		return
	}

	// jobInsert, possibly a replace.
	if j.req.IsReplace {
		old, ok := e.bk.RemoveByID(j.req.ReplaceID, true)
		if !ok {
			// spec.md DESIGN NOTES "callback delivery on replace
			// failure": silently return id=0, no callback for the new
			// order, no synthesized cancel.
			e.drainCallbacks(ctx)
			r.Resolve(dispatch.Result{ID: 0})
			return
		}
		ctx.queueCancel(old)
	}

	id := j.req.PresetID
	if id == 0 {
		id = e.nextID()
	}

	err := e.dispatchInsert(ctx, j.req, id)
	if err == nil {
		triggerStops(ctx)
	}
	e.drainCallbacks(ctx)
	r.Resolve(dispatch.Result{ID: id, Err: err})
}

func (e *Engine) dispatchInsert(ctx *mctx, req Request, id uint64) error {
	switch req.Kind {
	case book.Limit:
		return insertLimit(ctx, req.Side, req.LimitTick, req.Size, id, req.OnExec, req.OnAdmin)
	case book.Market:
		return insertMarket(ctx, req.Side, req.Size, id, req.OnExec)
	case book.Stop:
		return insertStop(ctx, req.Side, req.StopTick, req.Size, id, req.OnExec, req.OnAdmin)
	case book.StopLimit:
		return insertStopLimit(ctx, req.Side, req.StopTick, req.LimitTick, req.Size, id, req.OnExec, req.OnAdmin)
	default:
		return ErrInvalidOrder
	}
}

// drainCallbacks drains the deferred callback queue exactly once per
// top-level operation, guarded against re-entrant drains (spec.md
// §4.5: "and only if no drain is already in progress").
func (e *Engine) drainCallbacks(ctx *mctx) {
	if e.draining {
		return
	}
	e.draining = true
	defer func() { e.draining = false }()

	for _, rec := range e.cbq.Drain() {
		rec.Invoke()
	}
}

// Submit is the external mutation entry point every producer thread
// uses. Validation and tick conversion (spec.md §7 InvalidOrder) happen
// synchronously, before the request ever reaches the queue; everything
// else resolves asynchronously through the promise.
func (e *Engine) Submit(in Input) (uint64, error) {
	if !e.running.Load() {
		return 0, ErrInvalidState
	}
	req, err := e.toRequest(in)
	if err != nil {
		return 0, err
	}

	r := dispatch.NewRequest(&job{kind: jobInsert, req: req})
	e.queue.Push(r)
	res := r.Wait()
	return res.ID, res.Err
}

// SubmitFor implements marketmaker.EngineAPI: a market maker's
// submission, made from inside a callback running on the engine
// thread itself. The id is minted immediately so the participant gets
// it back synchronously, but the actual insert is queued and only
// processed once the current drain completes (spec.md §4.5, §4.7).
func (e *Engine) SubmitFor(handle marketmaker.Handle, spec marketmaker.OrderSpec) (uint64, error) {
	if !e.running.Load() {
		return 0, ErrInvalidState
	}
	req := Request{
		Side: spec.Side, Kind: spec.Kind, Size: spec.Size,
		HasLimit: spec.HasLimit, HasStop: spec.HasStop,
		OnExec: func(orderID uint64, msg book.Message, price float64, size, remaining int64) {
			e.host.Deliver(handle, msg, orderID, price, size)
		},
	}
	if spec.HasLimit {
		t, err := e.grid.PriceToTick(spec.LimitPrice)
		if err != nil {
			return 0, ErrInvalidOrder
		}
		req.LimitTick = t
	}
	if spec.HasStop {
		t, err := e.grid.PriceToTick(spec.StopPrice)
		if err != nil {
			return 0, ErrInvalidOrder
		}
		req.StopTick = t
	}
	if req.Size <= 0 {
		return 0, ErrInvalidOrder
	}

	id := e.nextID()
	req.PresetID = id
	j := &job{kind: jobInsert, req: req}
	e.queue.PushInternal(dispatch.NewRequest(j))
	return id, nil
}

// Pull implements the pull_order mutation surface entry point: it is
// for producer threads only. It re-enters the dispatcher queue and
// blocks on the result, exactly like Submit — calling it from the
// engine thread itself would enqueue a request onto the queue only the
// engine thread ever pops, then block that same thread on its own
// promise forever. marketmaker.EngineAPI uses PullFor instead, which
// is safe to call from the engine thread.
func (e *Engine) Pull(id uint64) bool {
	return e.PullSearch(id, true)
}

// PullSearch is the full pull_order(id, search_limits_first) surface,
// for producer threads only (see Pull).
func (e *Engine) PullSearch(id uint64, searchLimitsFirst bool) bool {
	if !e.running.Load() {
		return false
	}
	j := &job{kind: jobPull, pullID: id, searchLimitsFirst: searchLimitsFirst}
	r := dispatch.NewRequest(j)
	e.queue.Push(r)
	return r.Wait().Found
}

// PullFor implements marketmaker.EngineAPI: both of its call sites
// (Host.Detach cancelling a participant's outstanding orders, and
// boundInserter.Pull reached from a participant's own OnMessage) only
// ever run on the engine thread, already inside Engine.handle with
// e.mu held and the current operation's callback queue live — so this
// removes the order directly against that state instead of re-entering
// the dispatcher queue the way Pull/PullSearch do for real producer
// threads.
func (e *Engine) PullFor(id uint64) bool {
	ctx := e.ctx()
	o, ok := e.bk.RemoveByID(id, true)
	if ok {
		ctx.queueCancel(o)
	}
	return ok
}

// Wake implements waker.Notifier: it never touches the host directly
// from the waker's own goroutine. Instead it enqueues a wake job that
// the engine thread processes like any other request, so participant
// dispatch always happens on the engine thread (spec.md §4.8, §5
// "Callbacks run on the engine thread").
func (e *Engine) Wake(lastPrice float64) {
	if !e.running.Load() {
		return
	}
	j := &job{kind: jobWake, wakePrice: lastPrice}
	e.queue.PushInternal(dispatch.NewRequest(j))
}

// Quiescent reports whether it is safe to attach a new participant. The
// single-consumer queue already serializes every request, so by the
// time a jobAttach request is the one being handled, nothing else is
// concurrently mutating the book — quiescence is structural, not
// something that needs a separate check.
func (e *Engine) Quiescent() bool { return true }

// AttachMarketMaker adds a participant through the same dispatcher
// queue every order uses (spec.md §4.7 "Adding/removing market-maker
// participants is a bulk operation").
func (e *Engine) AttachMarketMaker(p marketmaker.Participant, impliedPrice, tickSize float64) (marketmaker.Handle, error) {
	if !e.running.Load() {
		return marketmaker.Handle{}, ErrInvalidState
	}
	j := &job{kind: jobAttach, participant: p, impliedPrice: impliedPrice, tickSize: tickSize}
	r := dispatch.NewRequest(j)
	e.queue.Push(r)
	res := r.Wait()
	return j.attachedHandle, res.Err
}

// DetachMarketMaker removes a participant, cancelling its resting
// orders (producing cancel callbacks) via the usual pipeline.
func (e *Engine) DetachMarketMaker(h marketmaker.Handle) error {
	if !e.running.Load() {
		return ErrInvalidState
	}
	j := &job{kind: jobDetach, handle: h}
	r := dispatch.NewRequest(j)
	e.queue.Push(r)
	return r.Wait().Err
}

// toRequest performs the full spec.md §7 InvalidOrder validation (size
// positivity, kind/limit/stop presence rules, price range and grid
// alignment) and converts prices to ticks, producing the internal
// Request the dispatcher carries.
func (e *Engine) toRequest(in Input) (Request, error) {
	if in.Size <= 0 {
		return Request{}, ErrInvalidOrder
	}
	switch in.Kind {
	case book.Market:
		if in.HasLimit || in.HasStop {
			return Request{}, ErrInvalidOrder
		}
	case book.Limit:
		if !in.HasLimit || in.HasStop {
			return Request{}, ErrInvalidOrder
		}
	case book.Stop:
		if in.HasLimit || !in.HasStop {
			return Request{}, ErrInvalidOrder
		}
	case book.StopLimit:
		if !in.HasLimit || !in.HasStop {
			return Request{}, ErrInvalidOrder
		}
	default:
		return Request{}, ErrInvalidOrder
	}
	if in.IsReplace && in.ReplaceID == 0 {
		return Request{}, ErrInvalidOrder
	}

	req := Request{
		Side: in.Side, Kind: in.Kind, Size: in.Size,
		OnExec: in.OnExec, OnAdmin: in.OnAdmin,
		IsReplace: in.IsReplace, ReplaceID: in.ReplaceID,
	}
	if in.HasLimit {
		t, err := e.grid.PriceToTick(in.LimitPrice)
		if err != nil {
			return Request{}, ErrInvalidOrder
		}
		req.HasLimit = true
		req.LimitTick = t
	}
	if in.HasStop {
		t, err := e.grid.PriceToTick(in.StopPrice)
		if err != nil {
			return Request{}, ErrInvalidOrder
		}
		req.HasStop = true
		req.StopTick = t
	}
	return req, nil
}
