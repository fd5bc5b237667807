// Package waker injects periodic wake notifications to every attached
// market-maker participant (spec.md §4.8).
package waker

import (
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

// Notifier is implemented by the matching engine: Wake must only ever
// enqueue work for the engine thread, never dispatch to a participant
// directly from the waker's own goroutine (spec.md §4.8).
type Notifier interface {
	Wake(lastPrice float64)
}

// LastPricer gives the waker the current last-trade price without
// going through the dispatcher — this is a pure read of already-
// committed state, just like the rest of the query surface (spec.md
// §6).
type LastPricer interface {
	LastPrice() float64
}

// Waker sleeps for a configured interval, then injects a wake message
// for every attached participant, supervised by a tomb.Tomb the same
// way the teacher's worker pool supervises its goroutines.
type Waker struct {
	interval time.Duration
	notifier Notifier
	prices   LastPricer
	log      zerolog.Logger
	t        tomb.Tomb
}

func New(interval time.Duration, notifier Notifier, prices LastPricer, logger zerolog.Logger) *Waker {
	return &Waker{interval: interval, notifier: notifier, prices: prices, log: logger}
}

// Start launches the waker loop under its tomb; call Stop to tear it
// down.
func (w *Waker) Start() {
	w.t.Go(w.run)
}

// Stop signals the waker to die and blocks until it has.
func (w *Waker) Stop() error {
	w.t.Kill(nil)
	return w.t.Wait()
}

func (w *Waker) run() error {
	if w.interval <= 0 {
		<-w.t.Dying()
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Debug().Dur("interval", w.interval).Msg("waker started")
	for {
		select {
		case <-w.t.Dying():
			return nil
		case <-ticker.C:
			w.notifier.Wake(w.prices.LastPrice())
		}
	}
}
