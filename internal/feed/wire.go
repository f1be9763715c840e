package feed

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

type wireResponse struct {
	Success bool         `json:"success"`
	Data    []wireRecord `json:"data"`
	Error   string       `json:"error"`
}

// wireRecord accepts both this service's JSON and the looser shapes other
// origins emit (numeric amounts, SQL-style timestamps, snake_case metadata).
type wireRecord struct {
	ID             int64     `json:"id"`
	AppName        *string   `json:"app_name"`
	Title          *string   `json:"title"`
	Text           *string   `json:"text"`
	AmountDetected looseText `json:"amount_detected"`
	CreatedAt      string    `json:"created_at"`

	DonorName  string `json:"donorName"`
	Message    string `json:"message"`
	GifURL     string `json:"gifUrl"`
	DonorName2 string `json:"donor_name"`
	GifURL2    string `json:"gif_url"`
}

func (w wireRecord) donation() domain.Donation {
	d := domain.Donation{
		ID:             w.ID,
		AppName:        str(w.AppName),
		Title:          str(w.Title),
		Text:           str(w.Text),
		AmountDetected: string(w.AmountDetected),
		CreatedAt:      ParseTime(w.CreatedAt),
		DonorName:      firstNonEmpty(w.DonorName, w.DonorName2),
		Message:        w.Message,
		GifURL:         firstNonEmpty(w.GifURL, w.GifURL2),
	}
	return d
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTime parses a feed timestamp. Timestamps without a zone are UTC.
// Unparseable input yields the zero time, which never satisfies a session
// time window.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// looseText decodes a JSON string or number into its textual form.
type looseText string

func (l *looseText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = looseText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*l = looseText(n.String())
	return nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
