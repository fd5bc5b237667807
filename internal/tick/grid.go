// Package tick implements the exact mapping between a price and an
// integer tick index over a fixed, closed price range.
package tick

import (
	"errors"
	"math"
)

var (
	ErrInvalidRange = errors.New("tick: min/max price invalid")
	ErrOutOfRange   = errors.New("tick: price outside grid range")
	ErrMisaligned   = errors.New("tick: price not aligned to tick size")
	ErrTooLarge     = errors.New("tick: tick range exceeds memory ceiling")
)

// RoundDigits is the fixed digit count used when rounding a tick index
// back to an external price, so repeated round-trips stay stable.
const RoundDigits = 5

// alignTolerance absorbs binary floating point noise when checking that
// a caller-supplied price lands on a tick boundary.
const alignTolerance = 1e-6

// Ratio is a compile-time rational tick size, num/den, with 0 < tick <= 1.
type Ratio struct {
	Num, Den int64
}

func (r Ratio) Float() float64 { return float64(r.Num) / float64(r.Den) }

func (r Ratio) valid() bool {
	return r.Num > 0 && r.Den > 0 && r.Num <= r.Den
}

// The enumerated tick ratios spec.md §6 names as the construction choice.
var (
	Quarter       = Ratio{1, 4}
	Tenth         = Ratio{1, 10}
	ThirtySecond  = Ratio{1, 32}
	Hundredth     = Ratio{1, 100}
	Thousandth    = Ratio{1, 1000}
	TenThousandth = Ratio{1, 10000}
)

// Grid is a fixed tick grid over [min, max] at a fixed tick size.
type Grid struct {
	ratio    Ratio
	tickSize float64
	min, max float64
	count    int64
}

// NewGrid builds a grid. maxTicks <= 0 disables the memory ceiling check.
func NewGrid(ratio Ratio, min, max float64, maxTicks int64) (*Grid, error) {
	if !ratio.valid() {
		return nil, ErrInvalidRange
	}
	if !(min > 0) || !(min < max) {
		return nil, ErrInvalidRange
	}
	tickSize := ratio.Float()
	span := (max - min) / tickSize
	count := int64(math.Round(span)) + 1
	if count < 2 {
		return nil, ErrInvalidRange
	}
	if maxTicks > 0 && count > maxTicks {
		return nil, ErrTooLarge
	}

	g := &Grid{ratio: ratio, tickSize: tickSize, min: min, max: max, count: count}
	if _, err := g.PriceToTick(max); err != nil {
		return nil, ErrInvalidRange
	}
	return g, nil
}

func (g *Grid) TickSize() float64    { return g.tickSize }
func (g *Grid) Min() float64         { return g.min }
func (g *Grid) Max() float64         { return g.max }
func (g *Grid) TicksInRange() int64  { return g.count }
func (g *Grid) CenterTick() int64    { return g.count / 2 }

// PriceToTick maps a price to its tick index, failing if it is out of
// range or not aligned to the grid within tolerance.
func (g *Grid) PriceToTick(p float64) (int64, error) {
	if p < g.min-alignTolerance || p > g.max+alignTolerance {
		return 0, ErrOutOfRange
	}
	raw := (p - g.min) / g.tickSize
	idx := math.Round(raw)
	if math.Abs(raw-idx) > alignTolerance {
		return 0, ErrMisaligned
	}
	if idx < 0 {
		idx = 0
	}
	if idx > float64(g.count-1) {
		idx = float64(g.count - 1)
	}
	return int64(idx), nil
}

// TickToPrice is the exact inverse of PriceToTick, rounded half-to-even
// at RoundDigits to keep external prices stable under repeated round-trips.
func (g *Grid) TickToPrice(i int64) float64 {
	p := g.min + float64(i)*g.tickSize
	return roundHalfEven(p, RoundDigits)
}

func (g *Grid) IsValidPrice(p float64) bool {
	_, err := g.PriceToTick(p)
	return err == nil
}

func roundHalfEven(x float64, digits int) float64 {
	mul := math.Pow10(digits)
	v := x * mul
	floor := math.Floor(v)
	diff := v - floor
	var r float64
	switch {
	case diff < 0.5:
		r = floor
	case diff > 0.5:
		r = floor + 1
	default:
		if math.Mod(floor, 2) == 0 {
			r = floor
		} else {
			r = floor + 1
		}
	}
	return r / mul
}
