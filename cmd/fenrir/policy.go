package main

import (
	"github.com/rs/zerolog/log"

	"fenrir/internal/book"
	"fenrir/internal/marketmaker"
)

// quoteMaker is a minimal illustrative market-maker policy (spec.md §1
// "market-maker policies... are specified only via the interface they
// consume"): on attach it rests a buy and a sell offset either side
// of the implied price (offset is at least one tick); every fill
// re-quotes the same side one offset beyond the fill price, giving a bounded, self-sustaining stream of
// recursive order flow that exercises the callback pipeline.
type quoteMaker struct {
	api    marketmaker.LimitInserter
	mid    float64
	offset float64
	size   int64
}

func newQuoteMaker(offset float64, size int64) *quoteMaker {
	return &quoteMaker{offset: offset, size: size}
}

func (q *quoteMaker) Start(api marketmaker.LimitInserter, impliedPrice, tickSize float64) {
	q.api = api
	q.mid = impliedPrice
	if q.offset < tickSize {
		q.offset = tickSize
	}
	if _, err := q.api.SubmitLimit(book.Buy, q.mid-q.offset, q.size); err != nil {
		log.Warn().Err(err).Msg("quoteMaker: initial buy quote rejected")
	}
	if _, err := q.api.SubmitLimit(book.Sell, q.mid+q.offset, q.size); err != nil {
		log.Warn().Err(err).Msg("quoteMaker: initial sell quote rejected")
	}
}

func (q *quoteMaker) OnMessage(msg book.Message, orderID uint64, price float64, size int64) {
	switch msg {
	case book.MsgFill:
		// Re-quote the side that just traded, one offset further out,
		// so the participant never immediately trades against itself.
		side := book.Buy
		target := price - q.offset
		if price > q.mid {
			side = book.Sell
			target = price + q.offset
		}
		if _, err := q.api.SubmitLimit(side, target, size); err != nil {
			log.Warn().Err(err).Uint64("orderID", orderID).Msg("quoteMaker: re-quote rejected")
		}
	default:
	}
}

// sweepReactor is a second illustrative policy: it ignores its own
// fills and only acts on wake notifications, periodically refreshing a
// single resting sell clipped to a fixed size — a simple example of a
// participant that reacts to the waker rather than to fills (spec.md
// §4.8).
type sweepReactor struct {
	api       marketmaker.LimitInserter
	offset    float64
	size      int64
	restingID uint64
}

func newSweepReactor(offset float64, size int64) *sweepReactor {
	return &sweepReactor{offset: offset, size: size}
}

func (s *sweepReactor) Start(api marketmaker.LimitInserter, impliedPrice, tickSize float64) {
	s.api = api
	if s.offset < tickSize {
		s.offset = tickSize
	}
}

func (s *sweepReactor) OnMessage(msg book.Message, orderID uint64, price float64, size int64) {
	switch msg {
	case book.MsgFill, book.MsgCancel:
		if orderID == s.restingID {
			s.restingID = 0
		}
	default:
		// wake: refresh the standing offer if it was consumed.
		if s.restingID != 0 {
			return
		}
		id, err := s.api.SubmitLimit(book.Sell, price+s.offset, s.size)
		if err != nil {
			log.Warn().Err(err).Msg("sweepReactor: refresh rejected")
			return
		}
		s.restingID = id
	}
}
