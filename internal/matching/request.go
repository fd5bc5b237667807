package matching

import (
	"fenrir/internal/book"
	"fenrir/internal/marketmaker"
)

// Input is the external, price-denominated description of a single
// insert or replace that Engine.Submit accepts; it is validated and
// converted to ticks synchronously, before anything is ever queued
// (spec.md §7: InvalidOrder errors surface before the request reaches
// the dispatcher).
type Input struct {
	Side book.Side
	Kind book.Kind
	Size int64

	HasLimit   bool
	LimitPrice float64
	HasStop    bool
	StopPrice  float64

	OnExec  book.ExecCallback
	OnAdmin book.AdminCallback

	IsReplace bool
	ReplaceID uint64
}

// Request is a side-agnostic description of a single insert or replace,
// already validated and tick-converted by the caller (spec.md §7:
// InvalidOrder errors are returned synchronously, before the request
// ever reaches the queue).
type Request struct {
	Side book.Side
	Kind book.Kind
	Size int64

	HasLimit  bool
	LimitTick int64
	HasStop   bool
	StopTick  int64

	OnExec  book.ExecCallback
	OnAdmin book.AdminCallback

	// PresetID, when non-zero, is used instead of minting a fresh id —
	// set only for orders a market maker places from inside a callback,
	// where the id must be known to the participant synchronously
	// (spec.md DESIGN NOTES "re-entrant callbacks without direct
	// recursion").
	PresetID uint64

	// ReplaceID, when IsReplace, names the resting order this request
	// should atomically replace.
	IsReplace bool
	ReplaceID uint64
}

type jobKind int

const (
	jobInsert jobKind = iota
	jobPull
	jobAttach
	jobDetach
	jobWake
)

// job is the payload carried by every dispatch.Request; the engine
// thread type-asserts it back out after Pop.
type job struct {
	kind jobKind

	req Request

	pullID            uint64
	searchLimitsFirst bool

	participant  marketmaker.Participant
	impliedPrice float64
	tickSize     float64
	handle       marketmaker.Handle

	attachedHandle marketmaker.Handle

	wakePrice float64
}
