package fenrir

import "fenrir/internal/matching"

// The eight insert entry points, spec.md §6 "Eight insert entry
// points ({buy,sell} × {limit, market, stop, stop_limit})".

func (b *Book) BuyLimit(price float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.submit(matching.Input{Side: Buy, Kind: Limit, Size: size, HasLimit: true, LimitPrice: price, OnExec: onExec, OnAdmin: onAdmin})
}

func (b *Book) SellLimit(price float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.submit(matching.Input{Side: Sell, Kind: Limit, Size: size, HasLimit: true, LimitPrice: price, OnExec: onExec, OnAdmin: onAdmin})
}

func (b *Book) BuyMarket(size int64, onExec ExecCallback) (uint64, error) {
	return b.submit(matching.Input{Side: Buy, Kind: Market, Size: size, OnExec: onExec})
}

func (b *Book) SellMarket(size int64, onExec ExecCallback) (uint64, error) {
	return b.submit(matching.Input{Side: Sell, Kind: Market, Size: size, OnExec: onExec})
}

func (b *Book) BuyStop(stopPrice float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.submit(matching.Input{Side: Buy, Kind: Stop, Size: size, HasStop: true, StopPrice: stopPrice, OnExec: onExec, OnAdmin: onAdmin})
}

func (b *Book) SellStop(stopPrice float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.submit(matching.Input{Side: Sell, Kind: Stop, Size: size, HasStop: true, StopPrice: stopPrice, OnExec: onExec, OnAdmin: onAdmin})
}

func (b *Book) BuyStopLimit(stopPrice, limitPrice float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.submit(matching.Input{
		Side: Buy, Kind: StopLimit, Size: size,
		HasStop: true, StopPrice: stopPrice,
		HasLimit: true, LimitPrice: limitPrice,
		OnExec: onExec, OnAdmin: onAdmin,
	})
}

func (b *Book) SellStopLimit(stopPrice, limitPrice float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.submit(matching.Input{
		Side: Sell, Kind: StopLimit, Size: size,
		HasStop: true, StopPrice: stopPrice,
		HasLimit: true, LimitPrice: limitPrice,
		OnExec: onExec, OnAdmin: onAdmin,
	})
}

// The eight replace_with_* entry points, spec.md §6: pull oldID, and on
// success insert the new order with a freshly generated id; on failure
// return id=0 with no error (spec.md §4.3 step 2, §7 NotFound).

func (b *Book) ReplaceWithBuyLimit(oldID uint64, price float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.replace(oldID, matching.Input{Side: Buy, Kind: Limit, Size: size, HasLimit: true, LimitPrice: price, OnExec: onExec, OnAdmin: onAdmin})
}

func (b *Book) ReplaceWithSellLimit(oldID uint64, price float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.replace(oldID, matching.Input{Side: Sell, Kind: Limit, Size: size, HasLimit: true, LimitPrice: price, OnExec: onExec, OnAdmin: onAdmin})
}

func (b *Book) ReplaceWithBuyMarket(oldID uint64, size int64, onExec ExecCallback) (uint64, error) {
	return b.replace(oldID, matching.Input{Side: Buy, Kind: Market, Size: size, OnExec: onExec})
}

func (b *Book) ReplaceWithSellMarket(oldID uint64, size int64, onExec ExecCallback) (uint64, error) {
	return b.replace(oldID, matching.Input{Side: Sell, Kind: Market, Size: size, OnExec: onExec})
}

func (b *Book) ReplaceWithBuyStop(oldID uint64, stopPrice float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.replace(oldID, matching.Input{Side: Buy, Kind: Stop, Size: size, HasStop: true, StopPrice: stopPrice, OnExec: onExec, OnAdmin: onAdmin})
}

func (b *Book) ReplaceWithSellStop(oldID uint64, stopPrice float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.replace(oldID, matching.Input{Side: Sell, Kind: Stop, Size: size, HasStop: true, StopPrice: stopPrice, OnExec: onExec, OnAdmin: onAdmin})
}

func (b *Book) ReplaceWithBuyStopLimit(oldID uint64, stopPrice, limitPrice float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.replace(oldID, matching.Input{
		Side: Buy, Kind: StopLimit, Size: size,
		HasStop: true, StopPrice: stopPrice,
		HasLimit: true, LimitPrice: limitPrice,
		OnExec: onExec, OnAdmin: onAdmin,
	})
}

func (b *Book) ReplaceWithSellStopLimit(oldID uint64, stopPrice, limitPrice float64, size int64, onExec ExecCallback, onAdmin AdminCallback) (uint64, error) {
	return b.replace(oldID, matching.Input{
		Side: Sell, Kind: StopLimit, Size: size,
		HasStop: true, StopPrice: stopPrice,
		HasLimit: true, LimitPrice: limitPrice,
		OnExec: onExec, OnAdmin: onAdmin,
	})
}

// PullOrder cancels a resting order by id (spec.md §6 "pull_order(id,
// search_limits_first=true)"). searchLimitsFirst is accepted for API
// parity but has no effect: the book's id index already records which
// chain holds the order.
func (b *Book) PullOrder(id uint64, searchLimitsFirst bool) bool {
	return b.eng.PullSearch(id, searchLimitsFirst)
}

func (b *Book) submit(in matching.Input) (uint64, error) {
	return b.eng.Submit(in)
}

func (b *Book) replace(oldID uint64, in matching.Input) (uint64, error) {
	in.IsReplace = true
	in.ReplaceID = oldID
	return b.eng.Submit(in)
}
