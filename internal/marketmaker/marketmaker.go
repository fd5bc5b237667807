// Package marketmaker hosts autonomous participants that react to
// engine callbacks by submitting further orders (spec.md §4.7). The
// package defines only the interface participants consume and the
// host's attach/detach/recursion-bound lifecycle; participant policy
// bodies are out of scope (spec.md §1) and live in cmd/fenrir as
// illustrative examples.
package marketmaker

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fenrir/internal/book"
)

var (
	// ErrCallbackOverflow is raised into a participant's own callback
	// when its per-chain recursion counter exceeds the soft limit
	// (spec.md §4.5, §7 CallbackOverflow).
	ErrCallbackOverflow = errors.New("marketmaker: callback recursion overflow")
	ErrNotQuiescent     = errors.New("marketmaker: book is not quiescent")
	ErrUnknownHandle    = errors.New("marketmaker: unknown participant handle")
)

const (
	DefaultSoftLimit = 5
	DefaultHardLimit = 50
)

// Handle is the stable identity a participant is referenced by once
// attached. Go has no pointer-rebinding-on-move to imitate directly, so
// the host never hands out a raw pointer to a participant's state:
// every callback resolves through this opaque key, which is exactly
// the "arena slot + generation, or heap allocation referenced by
// stable handle" DESIGN NOTES calls for.
type Handle uuid.UUID

func (h Handle) String() string { return uuid.UUID(h).String() }

// Participant is the interface a market maker implements. Start is
// called once, at attach time, with the submission surface it must use
// for every order it ever places — the same dispatcher queue external
// callers use (spec.md §4.7).
type Participant interface {
	Start(api LimitInserter, impliedPrice float64, tickSize float64)
	OnMessage(msg book.Message, orderID uint64, price float64, size int64)
}

// LimitInserter is the submission surface handed to a participant.
// Every method serializes through the same order queue real producers
// use; a participant must never touch the book directly.
type LimitInserter interface {
	SubmitLimit(side book.Side, limitPrice float64, size int64) (uint64, error)
	SubmitMarket(side book.Side, size int64) (uint64, error)
	SubmitStop(side book.Side, stopPrice float64, size int64) (uint64, error)
	SubmitStopLimit(side book.Side, stopPrice, limitPrice float64, size int64) (uint64, error)
	Pull(id uint64) bool
}

// EngineAPI is what the host needs from the matching engine: a way to
// submit on a participant's behalf that never blocks the engine thread
// on its own queue, and a way to cancel on detach — PullFor, not Pull,
// because both EngineAPI call sites (Host.Detach, boundInserter.Pull)
// always run on the engine thread itself, and Pull's queue round-trip
// would deadlock it against its own Pop loop. matching.Engine
// implements this.
type EngineAPI interface {
	SubmitFor(handle Handle, spec OrderSpec) (uint64, error)
	PullFor(id uint64) bool
	Quiescent() bool
}

// OrderSpec is a side-agnostic description of an order a participant
// wants to place, passed from LimitInserter through to EngineAPI.
type OrderSpec struct {
	Side       book.Side
	Kind       book.Kind
	Size       int64
	LimitPrice float64
	HasLimit   bool
	StopPrice  float64
	HasStop    bool
}

type entry struct {
	mu          sync.Mutex
	participant Participant
	depth       int
	pendingWake bool
	outstanding map[uint64]struct{}
}

// Host manages the lifecycle of attached participants: attach-at-
// quiescence, recursion-bounded re-entry from callbacks, and cancel-
// on-detach.
type Host struct {
	mu           sync.Mutex
	engine       EngineAPI
	participants map[Handle]*entry
	softLimit    int
	hardLimit    int
	log          zerolog.Logger
}

func NewHost(engine EngineAPI, softLimit, hardLimit int, logger zerolog.Logger) *Host {
	if softLimit <= 0 {
		softLimit = DefaultSoftLimit
	}
	if hardLimit <= 0 {
		hardLimit = DefaultHardLimit
	}
	return &Host{
		engine:       engine,
		participants: make(map[Handle]*entry),
		softLimit:    softLimit,
		hardLimit:    hardLimit,
		log:          logger,
	}
}

// Attach binds a participant under a fresh handle and calls its Start
// hook. The caller (matching.Engine) is responsible for only invoking
// Attach when the book is quiescent, per spec.md §4.7.
func (h *Host) Attach(p Participant, impliedPrice, tickSize float64) (Handle, error) {
	if !h.engine.Quiescent() {
		return Handle{}, ErrNotQuiescent
	}

	id := Handle(uuid.New())
	e := &entry{participant: p, outstanding: make(map[uint64]struct{})}

	h.mu.Lock()
	h.participants[id] = e
	h.mu.Unlock()

	p.Start(&boundInserter{host: h, handle: id}, impliedPrice, tickSize)
	h.log.Info().Str("participant", id.String()).Msg("market maker attached")
	return id, nil
}

// Detach cancels every outstanding order the participant placed
// (producing cancel callbacks through the normal pipeline) and removes
// it from the host.
func (h *Host) Detach(handle Handle) error {
	h.mu.Lock()
	e, ok := h.participants[handle]
	if ok {
		delete(h.participants, handle)
	}
	h.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}

	e.mu.Lock()
	ids := make([]uint64, 0, len(e.outstanding))
	for id := range e.outstanding {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		h.engine.PullFor(id)
	}
	h.log.Info().Str("participant", handle.String()).Msg("market maker detached")
	return nil
}

// Deliver dispatches one callback message to a participant. It tracks
// the per-participant recursion depth around the call (spec.md §4.5);
// the depth itself is enforced at the submission boundary, in
// boundInserter.submit, which is where the overflow error must
// surface so the participant — not the host — is the one expected to
// catch it (spec.md §4.5, §7 CallbackOverflow). A hard-limit depth
// suppresses dispatch entirely instead.
func (h *Host) Deliver(handle Handle, msg book.Message, orderID uint64, price float64, size int64) {
	h.mu.Lock()
	e, ok := h.participants[handle]
	h.mu.Unlock()
	if !ok {
		return
	}

	if msg == book.MsgFill || msg == book.MsgCancel {
		e.mu.Lock()
		delete(e.outstanding, orderID)
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.depth++
	depth := e.depth
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.depth--
		e.mu.Unlock()
		if r := recover(); r != nil {
			// Errors raised inside a participant's callback are caught
			// at the callback boundary and logged; they never corrupt
			// the engine (spec.md §7).
			h.log.Error().Interface("panic", r).Str("participant", handle.String()).Msg("market maker callback panicked")
		}
	}()

	if depth > h.hardLimit {
		// A larger hard limit suppresses further nested dispatch
		// entirely until unwound (spec.md §4.5).
		h.log.Warn().Str("participant", handle.String()).Int("depth", depth).Msg("market maker hard recursion limit hit, dispatch suppressed")
		return
	}

	e.participant.OnMessage(msg, orderID, price, size)
}

// Wake delivers one synthetic wake message to every attached
// participant, immediately, on the calling (engine) thread. Wake jobs
// already waiting in the engine's queue are not merged: each one that
// is handled produces its own delivery.
func (h *Host) Wake(lastPrice float64) {
	h.mu.Lock()
	handles := make([]Handle, 0, len(h.participants))
	for id, e := range h.participants {
		e.mu.Lock()
		already := e.pendingWake
		e.pendingWake = true
		e.mu.Unlock()
		if !already {
			handles = append(handles, id)
		}
	}
	h.mu.Unlock()

	for _, id := range handles {
		h.mu.Lock()
		e, ok := h.participants[id]
		h.mu.Unlock()
		if !ok {
			continue
		}
		e.mu.Lock()
		e.pendingWake = false
		e.mu.Unlock()
		h.Deliver(id, wakeMessage, 0, lastPrice, 0)
	}
}

// wakeMessage is a book.Message value reserved for wake notifications;
// it never appears on a resting order's own ExecCallback, only here.
const wakeMessage book.Message = -1

// boundInserter is the per-participant LimitInserter the host hands
// out from Start; it tags every submission with the owning handle so
// Deliver can track outstanding orders for Detach.
type boundInserter struct {
	host   *Host
	handle Handle
}

func (b *boundInserter) submit(spec OrderSpec) (uint64, error) {
	b.host.mu.Lock()
	e, ok := b.host.participants[b.handle]
	b.host.mu.Unlock()
	if !ok {
		return 0, ErrUnknownHandle
	}

	e.mu.Lock()
	depth := e.depth
	if depth > b.host.softLimit {
		// Further inserts from this participant, within this single
		// submit chain, raise CallbackOverflow; the counter resets
		// immediately so the participant can recover on its next
		// top-level callback (spec.md §4.5).
		e.depth = 0
	}
	e.mu.Unlock()
	if depth > b.host.softLimit {
		b.host.log.Warn().Str("participant", b.handle.String()).Int("depth", depth).Msg("market maker soft recursion limit exceeded")
		return 0, ErrCallbackOverflow
	}

	id, err := b.host.engine.SubmitFor(b.handle, spec)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.outstanding[id] = struct{}{}
	e.mu.Unlock()
	return id, nil
}

func (b *boundInserter) SubmitLimit(side book.Side, limitPrice float64, size int64) (uint64, error) {
	return b.submit(OrderSpec{Side: side, Kind: book.Limit, Size: size, LimitPrice: limitPrice, HasLimit: true})
}

func (b *boundInserter) SubmitMarket(side book.Side, size int64) (uint64, error) {
	return b.submit(OrderSpec{Side: side, Kind: book.Market, Size: size})
}

func (b *boundInserter) SubmitStop(side book.Side, stopPrice float64, size int64) (uint64, error) {
	return b.submit(OrderSpec{Side: side, Kind: book.Stop, Size: size, StopPrice: stopPrice, HasStop: true})
}

func (b *boundInserter) SubmitStopLimit(side book.Side, stopPrice, limitPrice float64, size int64) (uint64, error) {
	return b.submit(OrderSpec{
		Side: side, Kind: book.StopLimit, Size: size,
		StopPrice: stopPrice, HasStop: true,
		LimitPrice: limitPrice, HasLimit: true,
	})
}

func (b *boundInserter) Pull(id uint64) bool {
	return b.host.engine.PullFor(id)
}
