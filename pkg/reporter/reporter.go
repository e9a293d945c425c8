package reporter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/piwi3910/gpustatsd/pkg/gpustats"
)

// Sink receives pulled global statistics batches for upstream delivery.
// The sink owns cumulative aggregation across pulls; the store is reset as
// part of every pull.
type Sink interface {
	Report(ctx context.Context, batchID string, records []gpustats.GlobalRecord) error
}

// Options configures a Reporter.
type Options struct {
	// Store is the statistics store to pull from.
	Store *gpustats.Store

	// Sink receives each pulled batch. Nil means LogSink.
	Sink Sink

	// Interval is the pull cadence.
	Interval time.Duration

	// Logger receives reporter instrumentation.
	Logger zerolog.Logger
}

// Reporter periodically pulls accumulated global statistics from the store
// and hands them to a sink. Pulls are destructive reads, so each record
// batch leaves the store exactly once.
type Reporter struct {
	store    *gpustats.Store
	sink     Sink
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a reporter.
func New(opts Options) *Reporter {
	logger := opts.Logger.With().Str("component", "reporter").Logger()
	sink := opts.Sink
	if sink == nil {
		sink = &LogSink{Logger: logger}
	}
	return &Reporter{
		store:    opts.Store,
		sink:     sink,
		interval: opts.Interval,
		logger:   logger,
	}
}

// Run pulls on every interval tick until ctx is cancelled, then performs a
// final flush pull so nothing accumulated is stranded in the store.
func (r *Reporter) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Msg("Reporter started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The run context is gone; flush with a fresh one.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			r.pull(flushCtx)
			cancel()
			r.logger.Info().Msg("Reporter stopped")
			return nil
		case <-ticker.C:
			r.pull(ctx)
		}
	}
}

// pull drains the global table and reports the batch.
func (r *Reporter) pull(ctx context.Context) {
	records := r.store.PullGlobalStats(ctx)
	if len(records) == 0 {
		r.logger.Debug().Msg("Nothing to report")
		return
	}

	batchID := uuid.NewString()
	if err := r.sink.Report(ctx, batchID, records); err != nil {
		// Best-effort telemetry: the batch is dropped, not retried.
		r.logger.Error().
			Err(err).
			Str("batch_id", batchID).
			Int("records", len(records)).
			Msg("Failed to report stats batch")
		return
	}

	r.logger.Debug().
		Str("batch_id", batchID).
		Int("records", len(records)).
		Msg("Reported stats batch")
}
