package matching

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/book"
	"fenrir/internal/marketmaker"
	"fenrir/internal/tick"
)

// recordingWakeParticipant is a minimal marketmaker.Participant used
// only to observe that a wake notification is actually delivered.
type recordingWakeParticipant struct {
	onWake func()
}

func (p *recordingWakeParticipant) Start(api marketmaker.LimitInserter, impliedPrice, tickSize float64) {
}

func (p *recordingWakeParticipant) OnMessage(msg book.Message, orderID uint64, price float64, size int64) {
	switch msg {
	case book.MsgFill, book.MsgCancel, book.MsgStopToLimit:
	default:
		p.onWake()
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{
		TickRatio: tick.Quarter,
		MinPrice:  0.25,
		MaxPrice:  100.00,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	e.Start()
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

// Scenario 1: a crossing limit order produces one trade and leaves the
// remainder resting at the expected inside price.
func TestScenarioOneCrossingLimitOrder(t *testing.T) {
	e := newTestEngine(t)

	buyID, err := e.Submit(Input{Side: book.Buy, Kind: book.Limit, Size: 10, HasLimit: true, LimitPrice: 50.00})
	require.NoError(t, err)
	assert.NotZero(t, buyID)

	sellID, err := e.Submit(Input{Side: book.Sell, Kind: book.Limit, Size: 4, HasLimit: true, LimitPrice: 50.00})
	require.NoError(t, err)
	assert.NotZero(t, sellID)

	assert.Equal(t, int64(4), e.Volume())
	price, ok := e.BidPrice()
	require.True(t, ok)
	assert.Equal(t, 50.00, price)
	assert.Equal(t, int64(6), e.BidSize())

	trades := e.TimeAndSales(0)
	require.Len(t, trades, 1)
	assert.Equal(t, 50.00, trades[0].Price)
	assert.Equal(t, int64(4), trades[0].Size)
}

// Scenario 2: a market order sweeps two price levels in price priority.
func TestScenarioTwoMarketSweepsMultipleLevels(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Submit(Input{Side: book.Sell, Kind: book.Limit, Size: 3, HasLimit: true, LimitPrice: 49.75})
	require.NoError(t, err)
	_, err = e.Submit(Input{Side: book.Sell, Kind: book.Limit, Size: 2, HasLimit: true, LimitPrice: 50.00})
	require.NoError(t, err)

	_, err = e.Submit(Input{Side: book.Buy, Kind: book.Market, Size: 4})
	require.NoError(t, err)

	trades := e.TimeAndSales(0)
	require.Len(t, trades, 2)
	assert.Equal(t, 49.75, trades[0].Price)
	assert.Equal(t, int64(3), trades[0].Size)
	assert.Equal(t, 50.00, trades[1].Price)
	assert.Equal(t, int64(1), trades[1].Size)

	price, ok := e.AskPrice()
	require.True(t, ok)
	assert.Equal(t, 50.00, price)
	assert.Equal(t, int64(1), e.AskSize())
}

// Scenario 3: a market order that cannot be fully filled leaves the
// book entirely untouched (all-or-nothing).
func TestScenarioThreeMarketLiquidityFailureLeavesBookUntouched(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Submit(Input{Side: book.Sell, Kind: book.Limit, Size: 5, HasLimit: true, LimitPrice: 50.00})
	require.NoError(t, err)

	_, err = e.Submit(Input{Side: book.Buy, Kind: book.Market, Size: 6})
	assert.ErrorIs(t, err, ErrLiquidity)

	assert.Empty(t, e.TimeAndSales(0))
	assert.Equal(t, int64(0), e.Volume())
	assert.Equal(t, int64(5), e.TotalAskSize())
}

// Scenario 4: a triggered stop that becomes an unfillable market order
// fails with a liquidity error; no cancel is implied.
func TestScenarioFourTriggeredStopFailsLiquidity(t *testing.T) {
	e := newTestEngine(t)

	stopID, err := e.Submit(Input{Side: book.Sell, Kind: book.Stop, Size: 10, HasStop: true, StopPrice: 49.50})
	require.NoError(t, err)

	_, err = e.Submit(Input{Side: book.Sell, Kind: book.Limit, Size: 1, HasLimit: true, LimitPrice: 49.50})
	require.NoError(t, err)
	_, err = e.Submit(Input{Side: book.Buy, Kind: book.Market, Size: 1})
	require.NoError(t, err)

	assert.Equal(t, 49.50, e.LastPrice())
	_, stillResting := e.GetOrderInfo(stopID)
	assert.False(t, stillResting, "the stop order was consumed by the trigger attempt even though it failed to fill")
}

// Scenario 5: a triggered stop-limit emits stop_to_limit strictly
// before the resulting limit's fill callback.
func TestScenarioFiveStopToLimitOrdering(t *testing.T) {
	e := newTestEngine(t)

	var mu sync.Mutex
	var events []string
	record := func(msg book.Message) {
		mu.Lock()
		defer mu.Unlock()
		switch msg {
		case book.MsgStopToLimit:
			events = append(events, "stop_to_limit")
		case book.MsgFill:
			events = append(events, "fill")
		case book.MsgCancel:
			events = append(events, "cancel")
		}
	}

	_, err := e.Submit(Input{
		Side: book.Buy, Kind: book.StopLimit, Size: 5,
		HasStop: true, StopPrice: 51.00, HasLimit: true, LimitPrice: 51.00,
		OnExec: func(id uint64, msg book.Message, price float64, size, remaining int64) { record(msg) },
	})
	require.NoError(t, err)

	_, err = e.Submit(Input{Side: book.Sell, Kind: book.Limit, Size: 5, HasLimit: true, LimitPrice: 51.00})
	require.NoError(t, err)
	// This trade prints at 51.00, moves last, and triggers the stop.
	_, err = e.Submit(Input{Side: book.Buy, Kind: book.Market, Size: 1})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, "stop_to_limit", events[0])
}

// Scenario 6: two producer goroutines submitting concurrently land in
// a consistent total without lost updates.
func TestScenarioSixConcurrentProducers(t *testing.T) {
	e := newTestEngine(t)

	const perProducer = 1000
	var wg sync.WaitGroup
	ids := make([][]uint64, 2)
	for p := 0; p < 2; p++ {
		p := p
		ids[p] = make([]uint64, perProducer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				id, err := e.Submit(Input{Side: book.Buy, Kind: book.Limit, Size: 1, HasLimit: true, LimitPrice: 50.00})
				require.NoError(t, err)
				ids[p][i] = id
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(2*perProducer), e.BidSize())

	seen := make(map[uint64]bool, 2*perProducer)
	var all []uint64
	for _, batch := range ids {
		for _, id := range batch {
			assert.False(t, seen[id], "ids must be unique")
			seen[id] = true
			all = append(all, id)
		}
	}
	assert.Len(t, all, 2*perProducer)
}

func TestInvalidOrderRejectedSynchronously(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Submit(Input{Side: book.Buy, Kind: book.Limit, Size: 0, HasLimit: true, LimitPrice: 50.00})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = e.Submit(Input{Side: book.Buy, Kind: book.Limit, Size: 1, HasLimit: true, LimitPrice: 1000.00})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = e.Submit(Input{Side: book.Buy, Kind: book.Market, Size: 1, HasLimit: true, LimitPrice: 50.00})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestPullOrderRemovesRestingOrder(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.Submit(Input{Side: book.Buy, Kind: book.Limit, Size: 5, HasLimit: true, LimitPrice: 50.00})
	require.NoError(t, err)

	assert.True(t, e.PullSearch(id, true))
	assert.False(t, e.PullSearch(id, true), "a second pull on the same id finds nothing")
	assert.Equal(t, int64(0), e.BidSize())
}

// Wake notifications reach participants through the ordinary dispatch
// queue, not via a direct call on the waker's own goroutine (spec.md
// §4.8).
func TestWakeDeliversOnEngineThreadThroughQueue(t *testing.T) {
	e := newTestEngine(t)

	var mu sync.Mutex
	var woke bool
	part := &recordingWakeParticipant{onWake: func() {
		mu.Lock()
		woke = true
		mu.Unlock()
	}}
	_, err := e.AttachMarketMaker(part, 50.00, 0.25)
	require.NoError(t, err)

	e.Wake(50.00)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return woke
	}, time.Second, time.Millisecond)
}

// restingOrderParticipant rests one order on attach and never reacts to
// anything else — used to give DetachMarketMaker something outstanding
// to cancel.
type restingOrderParticipant struct {
	orderID uint64
}

func (p *restingOrderParticipant) Start(api marketmaker.LimitInserter, impliedPrice, tickSize float64) {
	id, err := api.SubmitLimit(book.Buy, impliedPrice-tickSize, 5)
	if err == nil {
		p.orderID = id
	}
}

func (p *restingOrderParticipant) OnMessage(msg book.Message, orderID uint64, price float64, size int64) {
}

// Detaching a participant with an outstanding resting order must not
// hang the engine: Host.Detach cancels that order via
// marketmaker.EngineAPI.PullFor, called while the engine thread is
// already inside Engine.handle for the jobDetach request — it must
// never re-enter the dispatcher queue and wait on itself.
func TestDetachMarketMakerWithOutstandingOrderDoesNotDeadlock(t *testing.T) {
	e := newTestEngine(t)

	p := &restingOrderParticipant{}
	handle, err := e.AttachMarketMaker(p, 50.00, 0.25)
	require.NoError(t, err)
	require.NotZero(t, p.orderID)

	done := make(chan error, 1)
	go func() { done <- e.DetachMarketMaker(handle) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("DetachMarketMaker deadlocked cancelling the participant's outstanding order")
	}

	_, stillResting := e.GetOrderInfo(p.orderID)
	assert.False(t, stillResting)
}

// selfCancelingParticipant rests a guard order on attach, plus a sell
// quote that some other submission is expected to fill; on its own
// fill it pulls the guard order from inside OnMessage — a normal
// cancel-and-replace pattern.
type selfCancelingParticipant struct {
	api     marketmaker.LimitInserter
	guardID uint64
}

func (p *selfCancelingParticipant) Start(api marketmaker.LimitInserter, impliedPrice, tickSize float64) {
	p.api = api
	id, _ := api.SubmitLimit(book.Buy, impliedPrice-10*tickSize, 1)
	p.guardID = id
	_, _ = api.SubmitLimit(book.Sell, impliedPrice, 5)
}

func (p *selfCancelingParticipant) OnMessage(msg book.Message, orderID uint64, price float64, size int64) {
	if msg == book.MsgFill {
		p.api.Pull(p.guardID)
	}
}

// A participant calling Pull from its own OnMessage callback must not
// hang the engine either: boundInserter.Pull reaches
// marketmaker.EngineAPI.PullFor from inside Host.Deliver, itself
// called from drainCallbacks while Engine.handle (processing the
// external market order below) still holds e.mu.
func TestParticipantPullFromOnMessageDoesNotDeadlock(t *testing.T) {
	e := newTestEngine(t)

	p := &selfCancelingParticipant{}
	_, err := e.AttachMarketMaker(p, 50.00, 0.25)
	require.NoError(t, err)
	require.NotZero(t, p.guardID)

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(Input{Side: book.Buy, Kind: book.Market, Size: 5})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine deadlocked when a participant called Pull from its own OnMessage callback")
	}

	_, stillResting := e.GetOrderInfo(p.guardID)
	assert.False(t, stillResting, "the guard order should have been cancelled via Pull from OnMessage")
}

func TestReplaceWithUnknownIDReturnsZero(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.Submit(Input{
		Side: book.Buy, Kind: book.Limit, Size: 5, HasLimit: true, LimitPrice: 50.00,
		IsReplace: true, ReplaceID: 999,
	})
	require.NoError(t, err)
	assert.Zero(t, id)
}
