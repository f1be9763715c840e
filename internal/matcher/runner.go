package matcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

// DefaultInterval and DefaultLimit mirror the poll cadence and page size the
// feed is designed for.
const (
	DefaultInterval = 5 * time.Second
	DefaultLimit    = 10
)

// Source yields the most recent feed records.
type Source interface {
	Recent(ctx context.Context, limit int) ([]domain.Donation, error)
}

// SessionStore is the durable client state the runner reads and updates.
type SessionStore interface {
	Session(ctx context.Context) (*domain.Session, error)
	ClearSessionIf(ctx context.Context, id string) (bool, error)
	Metadata(ctx context.Context) (map[int64]domain.Enrichment, error)
	PutMetadata(ctx context.Context, e domain.Enrichment) error
}

// Runner polls the feed on a fixed interval and evaluates each poll against
// the stored session. Polls never overlap: the next one is scheduled only
// after the previous one returns.
type Runner struct {
	Source   Source
	Store    SessionStore
	Persist  *PersistWorker
	Filter   *PhraseFilter
	Options  Options
	Interval time.Duration
	Limit    int
	Log      zerolog.Logger

	// OnMatch, when set, is called synchronously for every match.
	OnMatch func(Match)
	// Now defaults to time.Now.
	Now func() time.Time

	mu       sync.Mutex
	lastSeen int64
}

// Watermark returns the highest record id evaluated so far.
func (r *Runner) Watermark() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// Run polls until ctx is done. The first poll happens immediately.
func (r *Runner) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	r.Log.Info().
		Dur("interval", interval).
		Str("mode", r.Options.Mode.String()).
		Msg("donation matcher started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Log.Info().Msg("donation matcher stopped")
			return ctx.Err()
		case <-timer.C:
			_, _ = r.Tick(ctx)
			timer.Reset(interval)
		}
	}
}

// Tick runs one poll. Errors are logged here; they are returned for tests
// and callers that poll by hand.
func (r *Runner) Tick(ctx context.Context) (*Match, error) {
	pollsTotal.Inc()

	limit := r.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	records, err := r.Source.Recent(ctx, limit)
	if err != nil {
		feedErrorsTotal.Inc()
		r.Log.Warn().Err(err).Msg("feed poll failed")
		return nil, err
	}

	if r.Filter != nil {
		records = r.Filter.Filter(records)
	}
	SortNewestFirst(records)

	cache, err := r.Store.Metadata(ctx)
	if err != nil {
		r.Log.Warn().Err(err).Msg("load metadata cache failed")
	}
	records = MergeMetadata(records, cache)

	sess, err := r.Store.Session(ctx)
	if err != nil {
		r.Log.Error().Err(err).Msg("load session failed")
		return nil, err
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	r.mu.Lock()
	next, m := Evaluate(State{LastSeenID: r.lastSeen, Session: sess}, records, now(), r.Options)
	r.lastSeen = next.LastSeenID
	r.mu.Unlock()
	watermarkGauge.Set(float64(next.LastSeenID))

	if m == nil {
		return nil, nil
	}
	r.apply(ctx, *m)
	return m, nil
}

func (r *Runner) apply(ctx context.Context, m Match) {
	matchesTotal.Inc()
	e := m.Enrichment()
	r.Log.Info().
		Int64("donation_id", m.Record.ID).
		Int64("amount", m.Session.Amount).
		Str("session_id", m.Session.ID).
		Msg("donation matched")

	if !e.Empty() {
		if err := r.Store.PutMetadata(ctx, e); err != nil {
			r.Log.Warn().Err(err).Int64("donation_id", e.ID).Msg("cache donor metadata failed")
		}
	}
	if _, err := r.Store.ClearSessionIf(ctx, m.Session.ID); err != nil {
		r.Log.Warn().Err(err).Msg("clear session failed")
	}
	if r.OnMatch != nil {
		r.OnMatch(m)
	}
	if r.Persist != nil && !e.Empty() {
		r.Persist.Submit(e)
	}
}
