package qris

import (
	"github.com/dustin/go-humanize"
)

// FormatRupiah renders an amount in minor units as "Rp 1.000.000".
func FormatRupiah(amount int64) string {
	return "Rp " + humanize.FormatInteger("#.###,", int(amount))
}
