// Command fenrir runs a standalone demo of the matching engine: it
// constructs a book, attaches two illustrative market-maker policies,
// and logs periodic book snapshots until interrupted — adapted from the
// teacher's cmd/main.go engine-wiring, with the teacher's own network
// front end left out since network transport is explicitly out of
// scope for this system (spec.md §1 Non-goals).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fenrir"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	b, err := fenrir.New(fenrir.Hundredth, 50.0, 150.0, 2*time.Second, fenrir.Options{
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to construct book")
	}
	defer b.Close()

	if _, err := b.AttachMarketMaker(newQuoteMaker(0.25, 10), 100.0, 0.01); err != nil {
		logger.Error().Err(err).Msg("unable to attach quoteMaker")
	}
	if _, err := b.AttachMarketMaker(newSweepReactor(0.5, 5), 100.0, 0.01); err != nil {
		logger.Error().Err(err).Msg("unable to attach sweepReactor")
	}

	log.Info().Msg("fenrir demo running")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := b.LastPrice()
			bid, hasBid := b.BidPrice()
			ask, hasAsk := b.AskPrice()
			log.Info().Float64("last", last).Bool("hasBid", hasBid).Float64("bid", bid).
				Bool("hasAsk", hasAsk).Float64("ask", ask).Int64("volume", b.Volume()).
				Msg("book snapshot")
		}
	}
}
