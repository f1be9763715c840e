package services

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Column limits for donor metadata.
const (
	MaxDonorNameRunes = 100
	MaxMessageRunes   = 400
	MaxGifURLLen      = 1024
)

// Sanitizer cleans donor-supplied text before it is stored or shown on an
// overlay. Markup is stripped; the result is HTML-safe.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer using bluemonday's strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text strips markup, trims, and clips s to max runes (max <= 0 disables).
func (s *Sanitizer) Text(in string, max int) string {
	out := strings.TrimSpace(s.policy.Sanitize(in))
	if max > 0 && utf8.RuneCountInString(out) > max {
		out = string([]rune(out)[:max])
	}
	return out
}

// GifURL validates a GIF reference. Empty input is allowed and returned as is.
func (s *Sanitizer) GifURL(in string) (string, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return "", nil
	}
	if len(in) > MaxGifURLLen {
		return "", ErrInvalidGifURL
	}
	u, err := url.Parse(in)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidGifURL
	}
	return u.String(), nil
}
