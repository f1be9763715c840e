package domain

import (
	"strconv"
	"strings"
	"time"
)

// Donation is one record of the public donation feed. The donor fields are
// not part of the origin record; they are merged in from the metadata cache
// or attached after a session match.
type Donation struct {
	ID             int64     `json:"id"`
	AppName        string    `json:"app_name"`
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	AmountDetected string    `json:"amount_detected"`
	CreatedAt      time.Time `json:"created_at"`

	DonorName string `json:"donorName,omitempty"`
	Message   string `json:"message,omitempty"`
	GifURL    string `json:"gifUrl,omitempty"`
}

// Amount parses AmountDetected the lenient way: leading whitespace and sign
// are accepted and parsing stops at the first non-digit, so "25000.00"
// yields 25000. Anything without leading digits yields 0, which never
// matches a positive session amount.
func (d Donation) Amount() int64 {
	s := strings.TrimSpace(d.AmountDetected)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	if neg {
		return -n
	}
	return n
}

// Enrich returns a copy of d carrying the given donor metadata. Empty fields
// in e leave the existing values untouched.
func (d Donation) Enrich(e Enrichment) Donation {
	if e.DonorName != "" {
		d.DonorName = e.DonorName
	}
	if e.Message != "" {
		d.Message = e.Message
	}
	if e.GifURL != "" {
		d.GifURL = e.GifURL
	}
	return d
}

// Enrichment is donor-supplied metadata attached to a feed record by id.
// It doubles as the body of the metadata persistence request.
type Enrichment struct {
	ID        int64  `json:"id"`
	DonorName string `json:"donorName,omitempty"`
	Message   string `json:"message,omitempty"`
	GifURL    string `json:"gifUrl,omitempty"`
}

// Empty reports whether e carries no donor metadata at all.
func (e Enrichment) Empty() bool {
	return e.DonorName == "" && e.Message == "" && e.GifURL == ""
}

// FeedResponse is the wire envelope of the public donation feed.
type FeedResponse struct {
	Success bool       `json:"success"`
	Data    []Donation `json:"data"`
	Count   int        `json:"count"`
	Error   string     `json:"error,omitempty"`
}

// DonationFromNotification projects a stored notification onto the public
// feed shape, dropping device identifiers and raw extras.
func DonationFromNotification(n Notification) Donation {
	return Donation{
		ID:             n.ID,
		AppName:        deref(n.AppName),
		Title:          deref(n.Title),
		Text:           deref(n.Text),
		AmountDetected: deref(n.AmountDetected),
		CreatedAt:      n.CreatedAt,
		DonorName:      deref(n.DonorName),
		Message:        deref(n.Message),
		GifURL:         deref(n.GifURL),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
