package fenrir

// The read-only query surface, spec.md §6: callable from any thread,
// each a thin pass-through to internal/matching.Engine's RWMutex-
// guarded snapshot accessors.

func (b *Book) BidPrice() (float64, bool) { return b.eng.BidPrice() }
func (b *Book) AskPrice() (float64, bool) { return b.eng.AskPrice() }
func (b *Book) LastPrice() float64        { return b.eng.LastPrice() }

func (b *Book) BidSize() int64  { return b.eng.BidSize() }
func (b *Book) AskSize() int64  { return b.eng.AskSize() }
func (b *Book) LastSize() int64 { return b.eng.LastSize() }

func (b *Book) TotalBidSize() int64 { return b.eng.TotalBidSize() }
func (b *Book) TotalAskSize() int64 { return b.eng.TotalAskSize() }
func (b *Book) TotalSize() int64    { return b.eng.TotalSize() }

func (b *Book) Volume() int64 { return b.eng.Volume() }
func (b *Book) LastID() uint64 { return b.eng.LastID() }

func (b *Book) BidDepth(n int) []DepthLevel    { return b.eng.BidDepth(n) }
func (b *Book) AskDepth(n int) []DepthLevel    { return b.eng.AskDepth(n) }
func (b *Book) MarketDepth(n int) []DepthLevel { return b.eng.MarketDepth(n) }

// TimeAndSales returns the most recent k trades (oldest first), or all
// of them if k <= 0, each as (timestamp, price, size).
func (b *Book) TimeAndSales(k int) []Trade {
	return b.eng.TimeAndSales(k)
}

func (b *Book) GetOrderInfo(id uint64) (OrderInfo, bool) { return b.eng.GetOrderInfo(id) }
