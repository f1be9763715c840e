package matcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

// MetadataSink persists donor metadata at the origin.
type MetadataSink interface {
	PersistMetadata(ctx context.Context, e domain.Enrichment) error
}

// PersistResult is the outcome of one persist task.
type PersistResult struct {
	Enrichment domain.Enrichment
	Err        error
}

// PersistWorker runs metadata writes in the background. Submitting never
// blocks the poll loop; failures are logged and counted, never retried.
type PersistWorker struct {
	sink    MetadataSink
	log     zerolog.Logger
	timeout time.Duration
	jobs    chan domain.Enrichment
	results chan PersistResult
}

// NewPersistWorker returns a worker with room for buffer queued tasks.
func NewPersistWorker(sink MetadataSink, log zerolog.Logger, buffer int, timeout time.Duration) *PersistWorker {
	if buffer <= 0 {
		buffer = 16
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PersistWorker{
		sink:    sink,
		log:     log,
		timeout: timeout,
		jobs:    make(chan domain.Enrichment, buffer),
		results: make(chan PersistResult, buffer),
	}
}

// Submit queues e. It returns false, and counts a failure, when the queue
// is full.
func (w *PersistWorker) Submit(e domain.Enrichment) bool {
	select {
	case w.jobs <- e:
		return true
	default:
		persistFailuresTotal.Inc()
		w.log.Warn().Int64("donation_id", e.ID).Msg("persist queue full, dropping metadata write")
		return false
	}
}

// Results delivers task outcomes. Results are dropped when nobody reads.
func (w *PersistWorker) Results() <-chan PersistResult { return w.results }

// Run processes tasks until ctx is done.
func (w *PersistWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-w.jobs:
			w.handle(ctx, e)
		}
	}
}

func (w *PersistWorker) handle(ctx context.Context, e domain.Enrichment) {
	tctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.sink.PersistMetadata(tctx, e)
	cancel()

	if err != nil {
		persistFailuresTotal.Inc()
		w.log.Error().Err(err).Int64("donation_id", e.ID).Msg("persist donor metadata failed")
	} else {
		w.log.Debug().Int64("donation_id", e.ID).Msg("donor metadata persisted")
	}

	select {
	case w.results <- PersistResult{Enrichment: e, Err: err}:
	default:
	}
}
