package qris

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Well-known root tags.
const (
	TagAmount   = "54"
	TagChecksum = "63"

	// checksumAnchor is the tag + length prefix of the checksum record.
	checksumAnchor = TagChecksum + "04"
	// anchorWindow bounds how far from the end the checksum anchor may sit
	// for it to be treated as the trailing checksum record.
	anchorWindow = 10
	// maxAmountDigits is the largest value a 2-digit length field can carry.
	maxAmountDigits = 99
)

// Amount validation errors returned by ValidateAmount and BuildChecked.
var (
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrAmountTooLarge    = errors.New("amount does not fit in a tlv record")
	ErrAmountBelowMin    = errors.New("amount below minimum")
)

// Build derives a dynamic payload carrying amount from a static base payload.
//
// The trailing checksum record (if its anchor lies within the last ten
// characters) is discarded, existing amount (54) and checksum (63) records are
// removed, a fresh amount record is appended, and a new checksum is computed
// over everything including the "6304" prefix.
//
// Build is pure and deterministic. It does not validate amount; callers must
// use ValidateAmount (or BuildChecked) first. Unparseable trailing data in
// base is dropped, see Decode.
func Build(base string, amount int64) string {
	recs := Decode(stripChecksum(base)).Records
	return assemble(recs, amount)
}

// BuildChecked is Build for callers that want bad input rejected instead of
// silently truncated: it validates amount against minAmount and refuses a
// base payload that does not decode completely.
func BuildChecked(base string, amount, minAmount int64) (string, error) {
	if err := ValidateAmount(amount, minAmount); err != nil {
		return "", err
	}
	recs, err := DecodeStrict(stripChecksum(base))
	if err != nil {
		return "", err
	}
	return assemble(recs, amount), nil
}

// ValidateAmount checks that amount is positive, at least minAmount and
// representable in a 2-digit TLV length field.
func ValidateAmount(amount, minAmount int64) error {
	if amount <= 0 {
		return ErrAmountNotPositive
	}
	if amount < minAmount {
		return fmt.Errorf("%w: %d < %d", ErrAmountBelowMin, amount, minAmount)
	}
	if len(strconv.FormatInt(amount, 10)) > maxAmountDigits {
		return ErrAmountTooLarge
	}
	return nil
}

func assemble(recs []Record, amount int64) string {
	kept := make([]Record, 0, len(recs)+1)
	for _, r := range recs {
		if r.Tag == TagAmount || r.Tag == TagChecksum {
			continue
		}
		kept = append(kept, r)
	}
	kept = append(kept, Record{Tag: TagAmount, Value: strconv.FormatInt(amount, 10)})

	body := Encode(kept) + checksumAnchor
	return body + Checksum(body)
}

// stripChecksum cuts base at its checksum record. The standard position,
// an anchor followed by exactly four checksum characters, is tried first so
// a checksum value that itself reads "6304" is not mistaken for the anchor.
// Otherwise base is cut at the last anchor within the final anchorWindow
// characters.
func stripChecksum(base string) string {
	runes := []rune(base)
	if n := len(runes); n >= 8 && string(runes[n-8:n-4]) == checksumAnchor {
		return string(runes[:n-8])
	}
	i := strings.LastIndex(base, checksumAnchor)
	if i < 0 {
		return base
	}
	if utf8.RuneCountInString(base[:i]) > utf8.RuneCountInString(base)-anchorWindow {
		return base[:i]
	}
	return base
}

// Inspection reports how a payload decodes and whether its checksum holds.
type Inspection struct {
	Records       []Record `json:"records"`
	Remainder     string   `json:"remainder,omitempty"`
	Checksum      string   `json:"checksum,omitempty"`
	Expected      string   `json:"expected_checksum,omitempty"`
	ChecksumValid bool     `json:"checksum_valid"`
	HasAmount     bool     `json:"has_amount"`
}

// Inspect decodes payload and verifies its trailing checksum record.
func Inspect(payload string) Inspection {
	res := Decode(payload)
	in := Inspection{Records: res.Records, Remainder: res.Remainder}
	for _, r := range res.Records {
		if r.Tag == TagAmount {
			in.HasAmount = true
		}
	}
	if n := len(res.Records); n > 0 && res.Complete() {
		last := res.Records[n-1]
		if last.Tag == TagChecksum && last.Length() == 4 {
			body := strings.TrimSuffix(payload, last.Value)
			in.Checksum = last.Value
			in.Expected = Checksum(body)
			in.ChecksumValid = strings.EqualFold(in.Checksum, in.Expected)
		}
	}
	return in
}
