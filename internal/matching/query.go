package matching

import (
	"fenrir/internal/book"
	"fenrir/internal/tsales"
)

// DepthLevel is one aggregated price level in a depth snapshot.
type DepthLevel struct {
	Price float64
	Size  int64
}

// OrderInfo is what get_order_info returns for a resting order.
type OrderInfo struct {
	Kind     book.Kind
	Side     book.Side
	Limit    float64
	HasLimit bool
	Stop     float64
	HasStop  bool
	Size     int64
}

// The query surface, spec.md §6: read-only, callable from any thread,
// returning the most recently committed engine state. Book queries take
// mu's read lock; LastSize and TimeAndSales read the trade ring under
// its own lock, and LastID reads the atomic id counter.

func (e *Engine) BidPrice() (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.bk.HasBid() {
		return 0, false
	}
	return e.grid.TickToPrice(e.bk.Bid), true
}

func (e *Engine) AskPrice() (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.bk.HasAsk() {
		return 0, false
	}
	return e.grid.TickToPrice(e.bk.Ask), true
}

// LastPrice implements waker.LastPricer, and is also the last_price
// query entry point.
func (e *Engine) LastPrice() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.grid.TickToPrice(e.bk.Last)
}

func (e *Engine) BidSize() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.bk.HasBid() {
		return 0
	}
	return e.bk.Level(e.bk.Bid).BuyLimits.TotalSize()
}

func (e *Engine) AskSize() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.bk.HasAsk() {
		return 0
	}
	return e.bk.Level(e.bk.Ask).SellLimits.TotalSize()
}

// LastSize is the size of the most recent recorded trade.
func (e *Engine) LastSize() int64 {
	recent := e.tsales.Recent(1)
	if len(recent) == 0 {
		return 0
	}
	return recent[0].Size
}

func (e *Engine) TotalBidSize() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bk.TotalBidSize
}

func (e *Engine) TotalAskSize() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bk.TotalAskSize
}

func (e *Engine) TotalSize() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bk.TotalBidSize + e.bk.TotalAskSize
}

func (e *Engine) Volume() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bk.Volume
}

// LastID is the most recently assigned order id; zero before the first
// order is ever accepted.
func (e *Engine) LastID() uint64 {
	return e.idCtr.Load()
}

// BidDepth returns up to n aggregated levels, inside outward, starting
// at the current bid and walking toward lower ticks.
func (e *Engine) BidDepth(n int) []DepthLevel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []DepthLevel
	if !e.bk.HasBid() || n <= 0 {
		return out
	}
	for i := e.bk.Bid; i >= e.bk.Min && len(out) < n; i-- {
		sz := e.bk.Level(i).BuyLimits.TotalSize()
		if sz > 0 {
			out = append(out, DepthLevel{Price: e.grid.TickToPrice(i), Size: sz})
		}
	}
	return out
}

// AskDepth is the ask-side mirror of BidDepth.
func (e *Engine) AskDepth(n int) []DepthLevel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []DepthLevel
	if !e.bk.HasAsk() || n <= 0 {
		return out
	}
	for i := e.bk.Ask; i <= e.bk.Max && len(out) < n; i++ {
		sz := e.bk.Level(i).SellLimits.TotalSize()
		if sz > 0 {
			out = append(out, DepthLevel{Price: e.grid.TickToPrice(i), Size: sz})
		}
	}
	return out
}

// MarketDepth interleaves BidDepth and AskDepth outward from the
// inside, bid levels first at each rung, up to n total entries.
func (e *Engine) MarketDepth(n int) []DepthLevel {
	bids := e.BidDepth(n)
	asks := e.AskDepth(n)
	out := make([]DepthLevel, 0, len(bids)+len(asks))
	for i := 0; i < len(bids) || i < len(asks); i++ {
		if i < len(bids) {
			out = append(out, bids[i])
		}
		if i < len(asks) {
			out = append(out, asks[i])
		}
		if len(out) >= n {
			break
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// TimeAndSales returns the most recent k trades, or all of them if
// k <= 0.
func (e *Engine) TimeAndSales(k int) []tsales.Trade {
	return e.tsales.Recent(k)
}

// GetOrderInfo returns the resting order's static fields without
// removing it.
func (e *Engine) GetOrderInfo(id uint64) (OrderInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.bk.Peek(id)
	if !ok {
		return OrderInfo{}, false
	}
	info := OrderInfo{Kind: o.Kind, Side: o.Side, Size: o.Size}
	if o.HasLimit {
		info.HasLimit = true
		info.Limit = e.grid.TickToPrice(o.LimitTick)
	}
	if o.HasStop {
		info.HasStop = true
		info.Stop = e.grid.TickToPrice(o.StopTick)
	}
	return info, true
}
