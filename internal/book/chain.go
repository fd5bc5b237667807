package book

import (
	"container/list"

	"github.com/tidwall/btree"
)

// chainNode is the container/list element a resting order lives at;
// aliased for readability at the Order.elem call sites.
type chainNode = list.Element

// LimitChain is the FIFO queue of resting limit orders at one tick,
// ordered by insertion time. Lookup by id is O(log n) via a btree
// index into the list, as spec.md §4.2 requires for cancel-by-id.
type LimitChain struct {
	order *list.List
	index *btree.Map[uint64, *list.Element]
	size  int64 // aggregate resting size, maintained incrementally
}

func newLimitChain() *LimitChain {
	idx := btree.NewMap[uint64, *list.Element](32)
	return &LimitChain{order: list.New(), index: &idx}
}

func (c *LimitChain) Len() int { return c.order.Len() }

func (c *LimitChain) TotalSize() int64 { return c.size }

// PushBack rests an order at the tail of the FIFO queue.
func (c *LimitChain) PushBack(o *Order) {
	e := c.order.PushBack(o)
	o.elem = e
	c.index.Set(o.ID, e)
	c.size += o.Size
}

// Front returns the oldest resting order, or nil if the chain is empty.
func (c *LimitChain) Front() *Order {
	e := c.order.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Order)
}

// DecSize lowers the chain's cached aggregate size by delta; callers
// shrink the individual resting Order.Size themselves and use this to
// keep the chain-level total in sync without a full re-sum.
func (c *LimitChain) DecSize(delta int64) {
	c.size -= delta
}

// PopFront removes and returns the oldest resting order.
func (c *LimitChain) PopFront() *Order {
	e := c.order.Front()
	if e == nil {
		return nil
	}
	o := e.Value.(*Order)
	c.order.Remove(e)
	c.index.Delete(o.ID)
	o.elem = nil
	return o
}

// Peek returns a resting order by id without removing it.
func (c *LimitChain) Peek(id uint64) (*Order, bool) {
	e, ok := c.index.Get(id)
	if !ok {
		return nil, false
	}
	return e.Value.(*Order), true
}

// Remove splices a resting order out of the chain by id, wherever it
// sits in the FIFO queue (used by pull_order and by replace).
func (c *LimitChain) Remove(id uint64) (*Order, bool) {
	e, ok := c.index.Get(id)
	if !ok {
		return nil, false
	}
	o := e.Value.(*Order)
	c.order.Remove(e)
	c.index.Delete(id)
	o.elem = nil
	c.size -= o.Size
	return o, true
}

// StopChain is the unordered bag of stop/stop-limit orders resting at
// one trigger tick, keyed by id. Buy and sell stops coexist in
// separate chains per tick (see Level).
type StopChain struct {
	orders map[uint64]*Order
}

func newStopChain() *StopChain {
	return &StopChain{orders: make(map[uint64]*Order)}
}

func (c *StopChain) Len() int { return len(c.orders) }

func (c *StopChain) Add(o *Order) { c.orders[o.ID] = o }

func (c *StopChain) Peek(id uint64) (*Order, bool) {
	o, ok := c.orders[id]
	return o, ok
}

func (c *StopChain) Remove(id uint64) (*Order, bool) {
	o, ok := c.orders[id]
	if ok {
		delete(c.orders, id)
	}
	return o, ok
}

// Drain removes the chain out of the book atomically: it returns every
// resting stop order and empties the chain, so orders re-submitted from
// the drained batch cannot re-enter this same scan (spec.md §4.4 step 1).
func (c *StopChain) Drain() []*Order {
	out := make([]*Order, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, o)
	}
	c.orders = make(map[uint64]*Order)
	return out
}
