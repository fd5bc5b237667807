package book

// Level holds the four chains resting at one tick index: buy and sell
// limit orders, and buy and sell stop orders. A tick can carry resting
// liquidity on both sides only transiently (a quiescent book never has
// crossed limit chains, but stop chains on both sides at the same tick
// are entirely normal).
type Level struct {
	BuyLimits  *LimitChain
	SellLimits *LimitChain
	BuyStops   *StopChain
	SellStops  *StopChain
}

func newLevel() *Level {
	return &Level{
		BuyLimits:  newLimitChain(),
		SellLimits: newLimitChain(),
		BuyStops:   newStopChain(),
		SellStops:  newStopChain(),
	}
}

// Limits returns the limit chain for side.
func (l *Level) Limits(side Side) *LimitChain {
	if side == Buy {
		return l.BuyLimits
	}
	return l.SellLimits
}

// Stops returns the stop chain for side.
func (l *Level) Stops(side Side) *StopChain {
	if side == Buy {
		return l.BuyStops
	}
	return l.SellStops
}
