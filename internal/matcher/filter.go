package matcher

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

// DefaultPhrases are the notification prefixes that announce an incoming
// payment.
var DefaultPhrases = []string{"kamu berhasil menerima"}

// PhraseFilter keeps records whose text starts with a payment phrase,
// compared after locale-aware lower-casing.
type PhraseFilter struct {
	caser   cases.Caser
	phrases []string
}

// NewPhraseFilter builds a filter for phrases under the given BCP 47 locale.
// An unknown locale falls back to language.Indonesian; empty phrases are
// ignored and an empty list falls back to DefaultPhrases.
func NewPhraseFilter(locale string, phrases []string) *PhraseFilter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Indonesian
	}
	f := &PhraseFilter{caser: cases.Lower(tag)}
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			f.phrases = append(f.phrases, f.caser.String(p))
		}
	}
	if len(f.phrases) == 0 {
		for _, p := range DefaultPhrases {
			f.phrases = append(f.phrases, f.caser.String(p))
		}
	}
	return f
}

// Keep reports whether text starts with one of the phrases.
func (f *PhraseFilter) Keep(text string) bool {
	low := f.caser.String(text)
	for _, p := range f.phrases {
		if strings.HasPrefix(low, p) {
			return true
		}
	}
	return false
}

// Filter returns the records f keeps, in their original order.
func (f *PhraseFilter) Filter(records []domain.Donation) []domain.Donation {
	out := make([]domain.Donation, 0, len(records))
	for _, r := range records {
		if f.Keep(r.Text) {
			out = append(out, r)
		}
	}
	return out
}

// SortNewestFirst sorts records by id descending in place.
func SortNewestFirst(records []domain.Donation) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID > records[j].ID })
}

// MergeMetadata overlays cached donor metadata onto records by id.
func MergeMetadata(records []domain.Donation, cache map[int64]domain.Enrichment) []domain.Donation {
	if len(cache) == 0 {
		return records
	}
	for i, r := range records {
		if e, ok := cache[r.ID]; ok {
			records[i] = r.Enrich(e)
		}
	}
	return records
}
