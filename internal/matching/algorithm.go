package matching

import (
	"time"

	"fenrir/internal/book"
	"fenrir/internal/callback"
	"fenrir/internal/tick"
	"fenrir/internal/tsales"
)

// mctx bundles everything the pure matching functions need so they
// never reach back into the Engine for anything but the book, grid,
// callback queue, and trade log — the matcher itself owns no
// concurrency state.
type mctx struct {
	bk     *book.Book
	grid   *tick.Grid
	cbq    *callback.Queue
	tsales *tsales.Ring
	now    func() time.Time
}

func (c *mctx) queueFill(o *book.Order, price float64, size, remaining int64) {
	if o.OnExec == nil {
		return
	}
	cb := o.OnExec
	id := o.ID
	c.cbq.Push(callback.Record{
		OrderID: id, Price: price, Size: size, Remaining: remaining,
		Invoke: func() { cb(id, book.MsgFill, price, size, remaining) },
	})
}

func (c *mctx) queueCancel(o *book.Order) {
	if o == nil || o.OnExec == nil {
		return
	}
	cb := o.OnExec
	id := o.ID
	size := o.Size
	c.cbq.Push(callback.Record{
		OrderID: id, Size: size,
		Invoke: func() { cb(id, book.MsgCancel, 0, size, 0) },
	})
}

func (c *mctx) queueStopToLimit(o *book.Order, price float64) {
	if o.OnExec == nil {
		return
	}
	cb := o.OnExec
	id := o.ID
	size := o.Size
	c.cbq.Push(callback.Record{
		OrderID: id, Price: price, Size: size, Remaining: size,
		Invoke: func() { cb(id, book.MsgStopToLimit, price, size, size) },
	})
}

func (c *mctx) queueAdmin(o *book.Order) {
	if o.OnAdmin == nil {
		return
	}
	cb := o.OnAdmin
	id := o.ID
	c.cbq.Push(callback.Record{
		OrderID: id,
		Invoke:  func() { cb(id) },
	})
}

func oppositeSide(s book.Side) book.Side {
	if s == book.Buy {
		return book.Sell
	}
	return book.Buy
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// sweepInto walks the opposite side's resting limit chains in price-
// time priority, trading the aggressor against them up to boundTick,
// and returns the aggressor's unfilled remainder (spec.md §4.3 "Limit
// order insertion" / "Market order insertion").
func sweepInto(ctx *mctx, aggressorID uint64, side book.Side, size int64, onExec book.ExecCallback, boundTick int64) int64 {
	remaining := size

	for remaining > 0 {
		var oppTick int64
		var crosses bool
		switch side {
		case book.Buy:
			oppTick = ctx.bk.Ask
			crosses = ctx.bk.HasAsk() && oppTick <= boundTick
		case book.Sell:
			oppTick = ctx.bk.Bid
			crosses = ctx.bk.HasBid() && oppTick >= boundTick
		}
		if !crosses {
			break
		}

		chain := ctx.bk.Level(oppTick).Limits(oppositeSide(side))
		price := ctx.grid.TickToPrice(oppTick)

		for remaining > 0 && chain.Len() > 0 {
			resting := chain.Front()
			qty := min64(remaining, resting.Size)
			now := ctx.now()

			ctx.tsales.Append(price, qty, now)
			ctx.bk.Volume += qty
			ctx.bk.Last = oppTick

			resting.Size -= qty
			remaining -= qty
			chain.DecSize(qty)
			switch side {
			case book.Buy:
				ctx.bk.DecAskSize(qty)
			case book.Sell:
				ctx.bk.DecBidSize(qty)
			}

			if resting.Size == 0 {
				chain.PopFront()
				ctx.bk.ForgetIndex(resting.ID)
				ctx.queueFill(resting, price, qty, 0)
			} else {
				ctx.queueFill(resting, price, qty, resting.Size)
			}

			if onExec != nil {
				cb := onExec
				rem := remaining
				ctx.cbq.Push(callback.Record{
					OrderID: aggressorID, Price: price, Size: qty, Remaining: rem,
					Invoke: func() { cb(aggressorID, book.MsgFill, price, qty, rem) },
				})
			}
		}

		if chain.Len() == 0 {
			switch side {
			case book.Buy:
				ctx.bk.Ask = ctx.bk.RecalcAsk(oppTick + 1)
			case book.Sell:
				ctx.bk.Bid = ctx.bk.RecalcBid(oppTick - 1)
			}
		}
	}

	return remaining
}

// insertLimit implements spec.md §4.3 "Limit order insertion" (and its
// sell-side mirror).
func insertLimit(ctx *mctx, side book.Side, limitTick int64, size int64, id uint64, onExec book.ExecCallback, onAdmin book.AdminCallback) error {
	remaining := sweepInto(ctx, id, side, size, onExec, limitTick)
	if remaining > 0 {
		o := &book.Order{
			ID: id, Side: side, Kind: book.Limit, Size: remaining,
			HasLimit: true, LimitTick: limitTick,
			OnExec: onExec, OnAdmin: onAdmin,
		}
		ctx.bk.InsertLimit(o, limitTick)
		ctx.queueAdmin(o)
	}
	return nil
}

// insertMarket implements spec.md §4.3 "Market order insertion": an
// all-or-nothing sweep bounded by the far end of the grid. Liquidity is
// checked against the aggregate resting size on the far side before any
// mutation happens, so a failing market order leaves the book and the
// time-and-sales log untouched (spec.md §8 scenario 3).
func insertMarket(ctx *mctx, side book.Side, size int64, id uint64, onExec book.ExecCallback) error {
	var available int64
	var bound int64
	switch side {
	case book.Buy:
		available = ctx.bk.TotalAskSize
		bound = ctx.bk.Max
	case book.Sell:
		available = ctx.bk.TotalBidSize
		bound = ctx.bk.Min
	}
	if available < size {
		return ErrLiquidity
	}

	remaining := sweepInto(ctx, id, side, size, onExec, bound)
	if remaining > 0 {
		return ErrLiquidity
	}
	return nil
}

// insertStop and insertStopLimit implement spec.md §4.3 "Stop and
// stop-limit insertion": the order is filed directly into the target
// tick's stop chain. No fill attempt happens at insertion time, even if
// the last trade already sits beyond the stop price.
func insertStop(ctx *mctx, side book.Side, stopTick int64, size int64, id uint64, onExec book.ExecCallback, onAdmin book.AdminCallback) error {
	o := &book.Order{
		ID: id, Side: side, Kind: book.Stop, Size: size,
		HasStop: true, StopTick: stopTick,
		OnExec: onExec, OnAdmin: onAdmin,
	}
	ctx.bk.InsertStop(o, stopTick)
	ctx.queueAdmin(o)
	return nil
}

func insertStopLimit(ctx *mctx, side book.Side, stopTick, limitTick int64, size int64, id uint64, onExec book.ExecCallback, onAdmin book.AdminCallback) error {
	o := &book.Order{
		ID: id, Side: side, Kind: book.StopLimit, Size: size,
		HasStop: true, StopTick: stopTick,
		HasLimit: true, LimitTick: limitTick,
		OnExec: onExec, OnAdmin: onAdmin,
	}
	ctx.bk.InsertStop(o, stopTick)
	ctx.queueAdmin(o)
	return nil
}

// triggerStops implements spec.md §4.4: after every top-level operation
// that may have moved Last, scan buy stops (low to high) then sell
// stops (high to low), re-running the whole scan until a full pass
// triggers nothing.
func triggerStops(ctx *mctx) {
	for {
		firedAny := false

		for ctx.bk.LowBuyStop <= ctx.bk.Last && ctx.bk.LowBuyStop <= ctx.bk.Max {
			drained := ctx.bk.DrainStops(ctx.bk.LowBuyStop, book.Buy)
			if len(drained) == 0 {
				// A pulled stop can leave the cache on an empty tick;
				// DrainStops has moved it on, so keep scanning.
				continue
			}
			firedAny = true
			for _, o := range drained {
				fireTriggered(ctx, o)
			}
		}

		for ctx.bk.HighSellStop >= ctx.bk.Last && ctx.bk.HighSellStop >= ctx.bk.Min {
			drained := ctx.bk.DrainStops(ctx.bk.HighSellStop, book.Sell)
			if len(drained) == 0 {
				continue
			}
			firedAny = true
			for _, o := range drained {
				fireTriggered(ctx, o)
			}
		}

		if !firedAny {
			return
		}
	}
}

func fireTriggered(ctx *mctx, o *book.Order) {
	if o.HasLimit {
		ctx.queueStopToLimit(o, ctx.grid.TickToPrice(o.LimitTick))
		// The admin callback already fired when the stop first rested.
		_ = insertLimit(ctx, o.Side, o.LimitTick, o.Size, o.ID, o.OnExec, nil)
		return
	}
	// Triggered stop with no limit becomes a market order with the same
	// id; a liquidity failure here is not a cancel, it simply fails
	// (spec.md §8 scenario 4).
	_ = insertMarket(ctx, o.Side, o.Size, o.ID, o.OnExec)
}
