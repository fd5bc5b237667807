package tick_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/tick"
)

func TestRoundTrip(t *testing.T) {
	g, err := tick.NewGrid(tick.Quarter, 0.25, 100.00, 0)
	require.NoError(t, err)

	for _, p := range []float64{0.25, 50.00, 99.75, 100.00} {
		idx, err := g.PriceToTick(p)
		require.NoError(t, err)
		assert.InDelta(t, p, g.TickToPrice(idx), 1e-9)
	}
}

func TestOutOfRange(t *testing.T) {
	g, err := tick.NewGrid(tick.Quarter, 0.25, 100.00, 0)
	require.NoError(t, err)

	_, err = g.PriceToTick(0.10)
	assert.ErrorIs(t, err, tick.ErrOutOfRange)

	_, err = g.PriceToTick(100.10)
	assert.ErrorIs(t, err, tick.ErrOutOfRange)
}

func TestMisaligned(t *testing.T) {
	g, err := tick.NewGrid(tick.Quarter, 0.25, 100.00, 0)
	require.NoError(t, err)

	_, err = g.PriceToTick(50.10)
	assert.ErrorIs(t, err, tick.ErrMisaligned)
}

func TestMemoryCeiling(t *testing.T) {
	_, err := tick.NewGrid(tick.TenThousandth, 0.0001, 100.0, 1000)
	assert.ErrorIs(t, err, tick.ErrTooLarge)
}

func TestInvalidConstruction(t *testing.T) {
	_, err := tick.NewGrid(tick.Quarter, 0, 100, 0)
	assert.ErrorIs(t, err, tick.ErrInvalidRange)

	_, err = tick.NewGrid(tick.Quarter, 100, 10, 0)
	assert.ErrorIs(t, err, tick.ErrInvalidRange)
}
