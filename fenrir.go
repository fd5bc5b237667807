// Package fenrir is the public facade of the limit order book and
// matching engine: construction, the query surface, and the mutation
// surface (buy/sell × limit/market/stop/stop-limit, replace, pull,
// market-maker attach/detach). Everything here is a thin, synchronous
// wrapper around internal/matching.Engine — the package exists so
// callers depend on stable types instead of reaching into internal/.
package fenrir

import (
	"time"

	"github.com/rs/zerolog"

	"fenrir/internal/book"
	"fenrir/internal/marketmaker"
	"fenrir/internal/matching"
	"fenrir/internal/tick"
	"fenrir/internal/tsales"
)

// Re-exported domain vocabulary so callers never import internal/book
// directly.
type (
	Side  = book.Side
	Kind  = book.Kind
	Ratio = tick.Ratio

	ExecCallback  = book.ExecCallback
	AdminCallback = book.AdminCallback

	Participant    = marketmaker.Participant
	LimitInserter  = marketmaker.LimitInserter
	MarketMakerKey = marketmaker.Handle

	DepthLevel = matching.DepthLevel
	OrderInfo  = matching.OrderInfo
	Trade      = tsales.Trade
)

const (
	Buy  = book.Buy
	Sell = book.Sell
)

const (
	Market    = book.Market
	Limit     = book.Limit
	Stop      = book.Stop
	StopLimit = book.StopLimit
)

const (
	MsgFill        = book.MsgFill
	MsgCancel      = book.MsgCancel
	MsgStopToLimit = book.MsgStopToLimit
)

// The enumerated construction tick ratios (spec.md §6).
var (
	Quarter       = tick.Quarter
	Tenth         = tick.Tenth
	ThirtySecond  = tick.ThirtySecond
	Hundredth     = tick.Hundredth
	Thousandth    = tick.Thousandth
	TenThousandth = tick.TenThousandth
)

// Error values re-exported from internal/matching, spec.md §7.
var (
	ErrInvalidOrder     = matching.ErrInvalidOrder
	ErrInvalidState     = matching.ErrInvalidState
	ErrLiquidity        = matching.ErrLiquidity
	ErrAllocation       = matching.ErrAllocation
	ErrNotFound         = matching.ErrNotFound
	ErrCallbackOverflow = matching.ErrCallbackOverflow
)

// Options adjusts the secondary knobs beyond spec.md §6's four
// construction parameters; the zero value is a reasonable default for
// every field.
type Options struct {
	MaxTicks           int64
	QueueCapacity      int
	TimeSalesDepth     int
	RecursionSoftLimit int
	RecursionHardLimit int
	Logger             zerolog.Logger
}

// Book is the constructed engine instance: one tradable instrument, one
// matching thread, one waker thread.
type Book struct {
	eng *matching.Engine
}

// New constructs and starts a Book over [minPrice, maxPrice] at the
// given tick ratio, with a periodic waker every wakerInterval (<=0
// disables it) — spec.md §6 "Construction parameters".
func New(ratio Ratio, minPrice, maxPrice float64, wakerInterval time.Duration, opts Options) (*Book, error) {
	eng, err := matching.New(matching.Config{
		TickRatio:          ratio,
		MinPrice:           minPrice,
		MaxPrice:           maxPrice,
		MaxTicks:           opts.MaxTicks,
		QueueCapacity:      opts.QueueCapacity,
		TimeSalesDepth:     opts.TimeSalesDepth,
		WakerInterval:      wakerInterval,
		RecursionSoftLimit: opts.RecursionSoftLimit,
		RecursionHardLimit: opts.RecursionHardLimit,
		Logger:             opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	eng.Start()
	return &Book{eng: eng}, nil
}

// Close stops the engine's matching and waker goroutines.
func (b *Book) Close() error { return b.eng.Stop() }

// Grid exposes the tick grid, e.g. for rounding a price before
// submission.
func (b *Book) Grid() *tick.Grid { return b.eng.Grid() }

// Engine exposes the underlying matching engine for callers that need
// the lower-level surface (e.g. marketmaker.EngineAPI wiring);
// external importers should prefer the Book methods.
func (b *Book) Engine() *matching.Engine { return b.eng }

// AttachMarketMaker adds p at quiescence, spec.md §4.7.
func (b *Book) AttachMarketMaker(p Participant, impliedPrice, tickSize float64) (MarketMakerKey, error) {
	return b.eng.AttachMarketMaker(p, impliedPrice, tickSize)
}

// DetachMarketMaker removes p, cancelling its outstanding orders.
func (b *Book) DetachMarketMaker(h MarketMakerKey) error {
	return b.eng.DetachMarketMaker(h)
}
