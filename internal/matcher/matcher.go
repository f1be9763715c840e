// Package matcher correlates payment notifications from the donation feed
// with the client's active QRIS session.
//
// The decision step is the pure function Evaluate: it takes the current
// State and one poll's worth of records and returns the next State plus an
// optional Match. Runner drives Evaluate on a fixed interval and applies its
// side effects (session clearing, metadata cache, persistence, publishing).
//
// A record can only match when its id is above the watermark (the highest id
// already seen). The first observation after startup only sets the
// watermark, so history that predates the process never matches.
package matcher

import (
	"fmt"
	"sort"
	"time"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

// DefaultSkew is how far before session generation a payment may be
// timestamped and still match.
const DefaultSkew = 5 * time.Minute

// Mode selects which unseen records are checked against the session.
type Mode int

const (
	// ModeScanAll checks every record above the watermark, oldest first.
	ModeScanAll Mode = iota
	// ModeNewestOnly checks only the newest record of each poll.
	ModeNewestOnly
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "scan_all":
		return ModeScanAll, nil
	case "newest_only":
		return ModeNewestOnly, nil
	default:
		return 0, fmt.Errorf("matcher: unknown mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeNewestOnly {
		return "newest_only"
	}
	return "scan_all"
}

// Options tunes Evaluate.
type Options struct {
	Mode Mode
	// Skew is the tolerated lead of a payment over session generation.
	// Zero means DefaultSkew.
	Skew time.Duration
}

func (o Options) skew() time.Duration {
	if o.Skew <= 0 {
		return DefaultSkew
	}
	return o.Skew
}

// State is the matcher's whole mutable state. A nil Session is IDLE.
type State struct {
	LastSeenID int64
	Session    *domain.Session
}

// Match is an emitted correlation between a record and a session. Record
// already carries the session's donor metadata.
type Match struct {
	Record  domain.Donation `json:"record"`
	Session domain.Session  `json:"session"`
}

// Enrichment returns the metadata to persist for the matched record.
func (m Match) Enrichment() domain.Enrichment {
	return m.Session.Enrichment(m.Record.ID)
}

// Evaluate runs one matching step. records must be filtered and sorted by id
// descending. The returned State has Session set to nil after a match.
func Evaluate(st State, records []domain.Donation, now time.Time, opts Options) (State, *Match) {
	if len(records) == 0 {
		return st, nil
	}
	newest := records[0].ID

	sess := st.Session
	if sess == nil || !sess.Active(now) {
		if st.LastSeenID == 0 {
			st.LastSeenID = newest
		}
		return st, nil
	}
	if st.LastSeenID == 0 {
		st.LastSeenID = newest
		return st, nil
	}
	if newest <= st.LastSeenID {
		return st, nil
	}

	var match *Match
	for _, rec := range candidates(records, st.LastSeenID, opts.Mode) {
		if Matches(*sess, rec, opts.skew()) {
			match = &Match{
				Record:  rec.Enrich(sess.Enrichment(rec.ID)),
				Session: *sess,
			}
			st.Session = nil
			break
		}
	}
	st.LastSeenID = newest
	return st, match
}

// candidates returns the records to check, in check order.
func candidates(records []domain.Donation, lastSeen int64, mode Mode) []domain.Donation {
	if mode == ModeNewestOnly {
		return records[:1]
	}
	out := make([]domain.Donation, 0, len(records))
	for _, r := range records {
		if r.ID > lastSeen {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Matches reports whether rec pays for sess: the amount must be equal and
// the record must be created before expiry and no more than skew before
// generation.
func Matches(sess domain.Session, rec domain.Donation, skew time.Duration) bool {
	if rec.Amount() != sess.Amount {
		return false
	}
	if !rec.CreatedAt.Before(sess.ExpiresAt) {
		return false
	}
	return rec.CreatedAt.Sub(sess.GeneratedAt) > -skew
}
