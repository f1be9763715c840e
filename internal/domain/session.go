package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a generated payload stays eligible for matching.
const DefaultSessionTTL = 10 * time.Minute

// Session is an open donation request awaiting a matching payment
// notification. Exactly one session is active per client; creating a new one
// supersedes the previous.
type Session struct {
	ID           string    `json:"id"`
	Amount       int64     `json:"amount"`
	GeneratedAt  time.Time `json:"generatedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	DonorName    string    `json:"donorName,omitempty"`
	DonorMessage string    `json:"donorMessage,omitempty"`
	GifURL       string    `json:"gifUrl,omitempty"`
}

// NewSession opens a session for amount at now. A ttl <= 0 falls back to
// DefaultSessionTTL.
func NewSession(amount int64, now time.Time, ttl time.Duration) Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now = now.UTC()
	return Session{
		ID:          uuid.NewString(),
		Amount:      amount,
		GeneratedAt: now,
		ExpiresAt:   now.Add(ttl),
	}
}

// Active reports whether the session can still be matched at now.
func (s Session) Active(now time.Time) bool { return now.Before(s.ExpiresAt) }

// Remaining returns the time left before expiry, never negative.
func (s Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Enrichment returns the donor metadata to attach to a matched record.
func (s Session) Enrichment(id int64) Enrichment {
	return Enrichment{
		ID:        id,
		DonorName: s.DonorName,
		Message:   s.DonorMessage,
		GifURL:    s.GifURL,
	}
}
