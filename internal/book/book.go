package book

// location records where a resting order lives, so RemoveByID can go
// straight to its level instead of scanning the array — the book-wide
// analogue of the O(log n)-or-better per-level lookup spec.md §4.2
// requires for the chain itself.
type location struct {
	tick   int64
	isStop bool
}

// Book is the contiguous array of price levels for one instrument,
// indexed by tick, plus the cached pointers spec.md §3 "Order book"
// describes. All cache pointers are tick indices in [0, N) except
// where a sentinel below Min or above Max marks "none".
type Book struct {
	Levels []*Level
	index  map[uint64]location

	Min, Max int64 // valid tick index bounds, inclusive
	size     int64 // len(Levels), cached for sentinel arithmetic

	Bid, Ask, Last int64

	LowBuyLimit, HighSellLimit int64

	LowBuyStop, HighBuyStop   int64
	LowSellStop, HighSellStop int64

	TotalBidSize, TotalAskSize int64
	Volume                     int64
}

// New builds an empty book over ticks [0, n) with last initialized at
// center (the construction-time center of the range, per spec.md §3).
func New(n int64, center int64) *Book {
	levels := make([]*Level, n)
	for i := range levels {
		levels[i] = newLevel()
	}
	b := &Book{
		Levels: levels,
		index:  make(map[uint64]location),
		Min:    0,
		Max:    n - 1,
		size:   n,
		Bid:    -1,
		Ask:    n,
		Last:   center,

		LowBuyLimit:   n,
		HighSellLimit: -1,

		LowBuyStop:   n,
		HighBuyStop:  -1,
		LowSellStop:  n,
		HighSellStop: -1,
	}
	return b
}

func (b *Book) Level(i int64) *Level { return b.Levels[i] }

// BelowMin and AboveMax are the sentinel values for "no resting order
// on this side" — below the grid's minimum tick and above its maximum
// tick respectively.
func (b *Book) BelowMin() int64 { return b.Min - 1 }
func (b *Book) AboveMax() int64 { return b.size }

// HasBid/HasAsk report whether the respective side carries any resting
// limit liquidity at all.
func (b *Book) HasBid() bool { return b.Bid >= b.Min }
func (b *Book) HasAsk() bool { return b.Ask <= b.Max }

// InsertLimit rests a limit order at tick i and maintains Bid/Ask and
// LowBuyLimit/HighSellLimit.
func (b *Book) InsertLimit(o *Order, i int64) {
	b.Level(i).Limits(o.Side).PushBack(o)
	b.index[o.ID] = location{tick: i}

	switch o.Side {
	case Buy:
		b.TotalBidSize += o.Size
		if i > b.Bid {
			b.Bid = i
		}
		if i < b.LowBuyLimit {
			b.LowBuyLimit = i
		}
	case Sell:
		b.TotalAskSize += o.Size
		if i < b.Ask {
			b.Ask = i
		}
		if i > b.HighSellLimit {
			b.HighSellLimit = i
		}
	}
}

// InsertStop rests a stop (or stop-limit) order at its trigger tick i
// and maintains the extremal stop caches.
func (b *Book) InsertStop(o *Order, i int64) {
	b.Level(i).Stops(o.Side).Add(o)
	b.index[o.ID] = location{tick: i, isStop: true}

	switch o.Side {
	case Buy:
		if i < b.LowBuyStop {
			b.LowBuyStop = i
		}
		if i > b.HighBuyStop {
			b.HighBuyStop = i
		}
	case Sell:
		if i < b.LowSellStop {
			b.LowSellStop = i
		}
		if i > b.HighSellStop {
			b.HighSellStop = i
		}
	}
}

// DrainStops extracts the whole stop chain at tick i for side out of
// the book, per spec.md §4.4 step 1, and repairs the extremal cache for
// that side.
func (b *Book) DrainStops(i int64, side Side) []*Order {
	lvl := b.Level(i)
	drained := lvl.Stops(side).Drain()
	for _, o := range drained {
		delete(b.index, o.ID)
	}

	switch side {
	case Buy:
		if i == b.LowBuyStop {
			b.LowBuyStop = b.nextStopTick(i+1, b.HighBuyStop, Buy)
		}
		if drained != nil && i == b.HighBuyStop && lvl.BuyStops.Len() == 0 {
			b.HighBuyStop = b.prevStopTick(i-1, b.LowBuyStop, Buy)
		}
	case Sell:
		if i == b.HighSellStop {
			b.HighSellStop = b.prevStopTick(i-1, b.LowSellStop, Sell)
		}
		if drained != nil && i == b.LowSellStop && lvl.SellStops.Len() == 0 {
			b.LowSellStop = b.nextStopTick(i+1, b.HighSellStop, Sell)
		}
	}
	return drained
}

func (b *Book) nextStopTick(from, bound int64, side Side) int64 {
	hi := b.Max
	if bound < hi && bound >= b.Min {
		hi = bound
	}
	for i := from; i <= hi; i++ {
		if b.Level(i).Stops(side).Len() > 0 {
			return i
		}
	}
	return b.AboveMax()
}

func (b *Book) prevStopTick(from, bound int64, side Side) int64 {
	lo := b.Min
	if bound > lo && bound <= b.Max {
		lo = bound
	}
	for i := from; i >= lo; i-- {
		if b.Level(i).Stops(side).Len() > 0 {
			return i
		}
	}
	return b.BelowMin()
}

// RecalcBid scans downward from at (inclusive) for the next tick with a
// non-empty buy limit chain, bounded below by LowBuyLimit. Used after a
// sweep or a cancel empties the current inside bid.
func (b *Book) RecalcBid(at int64) int64 {
	for i := at; i >= b.LowBuyLimit && i >= b.Min; i-- {
		if b.Levels[i].BuyLimits.Len() > 0 {
			return i
		}
	}
	return b.BelowMin()
}

// RecalcAsk is the ask-side mirror of RecalcBid.
func (b *Book) RecalcAsk(at int64) int64 {
	for i := at; i <= b.HighSellLimit && i <= b.Max; i++ {
		if b.Levels[i].SellLimits.Len() > 0 {
			return i
		}
	}
	return b.AboveMax()
}

// RemoveByID finds a resting order anywhere in the book and splices it
// out, preferring its own side/kind chain directly via the book-wide
// location index (O(1) average) rather than scanning every level. This
// is the single exit path shared by pull_order and replace (spec.md
// §4.2 "remove(id)").
func (b *Book) RemoveByID(id uint64, searchLimitsFirst bool) (*Order, bool) {
	loc, ok := b.index[id]
	if !ok {
		return nil, false
	}
	_ = searchLimitsFirst // location index already knows which chain; kept for API parity with spec.md §6
	delete(b.index, id)

	lvl := b.Level(loc.tick)
	if loc.isStop {
		if o, ok := lvl.BuyStops.Remove(id); ok {
			return o, true
		}
		if o, ok := lvl.SellStops.Remove(id); ok {
			return o, true
		}
		return nil, false
	}

	if o, ok := lvl.BuyLimits.Remove(id); ok {
		b.TotalBidSize -= o.Size
		if loc.tick == b.Bid && lvl.BuyLimits.Len() == 0 {
			b.Bid = b.RecalcBid(loc.tick - 1)
		}
		return o, true
	}
	if o, ok := lvl.SellLimits.Remove(id); ok {
		b.TotalAskSize -= o.Size
		if loc.tick == b.Ask && lvl.SellLimits.Len() == 0 {
			b.Ask = b.RecalcAsk(loc.tick + 1)
		}
		return o, true
	}
	return nil, false
}

// Peek returns a resting order by id without removing it, used by the
// read-only get_order_info query surface.
func (b *Book) Peek(id uint64) (*Order, bool) {
	loc, ok := b.index[id]
	if !ok {
		return nil, false
	}
	lvl := b.Level(loc.tick)
	if loc.isStop {
		if o, ok := lvl.BuyStops.Peek(id); ok {
			return o, true
		}
		return lvl.SellStops.Peek(id)
	}
	if o, ok := lvl.BuyLimits.Peek(id); ok {
		return o, true
	}
	return lvl.SellLimits.Peek(id)
}

// ForgetIndex drops the location entry for id without touching any
// chain; used once an order has already been removed from its chain
// directly by the matcher (e.g. a fully filled resting order).
func (b *Book) ForgetIndex(id uint64) {
	delete(b.index, id)
}

// DecBidSize/DecAskSize adjust the aggregate resting size caches when
// the matcher shrinks a resting order's size in place without removing
// it from its chain.
func (b *Book) DecBidSize(delta int64) { b.TotalBidSize -= delta }
func (b *Book) DecAskSize(delta int64) { b.TotalAskSize -= delta }
