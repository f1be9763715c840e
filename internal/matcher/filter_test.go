package matcher

import (
	"testing"

	"github.com/tbourn/qris-donation-backend/internal/domain"
)

func TestPhraseFilter_DefaultPhraseCaseInsensitivePrefix(t *testing.T) {
	f := NewPhraseFilter("id", nil)
	cases := map[string]bool{
		"Kamu berhasil menerima Rp25.000 dari BUDI": true,
		"KAMU BERHASIL MENERIMA Rp10.000":           true,
		"kamu berhasil menerima":                    true,
		"Selamat! kamu berhasil menerima Rp1":       false,
		" kamu berhasil menerima Rp1":               false,
		"Kamu berhasil mengirim Rp25.000":           false,
		"":                                          false,
	}
	for text, want := range cases {
		if got := f.Keep(text); got != want {
			t.Errorf("Keep(%q)=%v want %v", text, got, want)
		}
	}
}

func TestPhraseFilter_CustomPhrasesAndLocale(t *testing.T) {
	f := NewPhraseFilter("tr", []string{"  ", "İşlem Başarılı"})
	if !f.Keep("işlem başarılı: 500 TL") {
		t.Fatalf("expected Turkish-aware lowering to match")
	}
	if f.Keep("kamu berhasil menerima Rp1") {
		t.Fatalf("custom list should replace the default phrase")
	}

	// Unknown locale falls back instead of failing.
	if !NewPhraseFilter("??", nil).Keep("Kamu berhasil menerima Rp1") {
		t.Fatalf("fallback locale should keep default phrase")
	}
}

func TestFilterSortMerge(t *testing.T) {
	records := []domain.Donation{
		{ID: 3, Text: "Kamu berhasil menerima Rp1"},
		{ID: 5, Text: "Promo hari ini"},
		{ID: 9, Text: "kamu berhasil menerima Rp2"},
		{ID: 4, Text: "Kamu berhasil menerima Rp3"},
	}
	got := NewPhraseFilter("id", nil).Filter(records)
	if len(got) != 3 {
		t.Fatalf("expected 3 kept, got %d", len(got))
	}

	SortNewestFirst(got)
	if got[0].ID != 9 || got[1].ID != 4 || got[2].ID != 3 {
		t.Fatalf("unexpected order: %d %d %d", got[0].ID, got[1].ID, got[2].ID)
	}

	cache := map[int64]domain.Enrichment{4: {ID: 4, DonorName: "Ani"}}
	got = MergeMetadata(got, cache)
	if got[1].DonorName != "Ani" || got[0].DonorName != "" {
		t.Fatalf("metadata not merged by id: %+v", got)
	}
	if same := MergeMetadata(got, nil); len(same) != 3 {
		t.Fatalf("nil cache should be a no-op")
	}
}
