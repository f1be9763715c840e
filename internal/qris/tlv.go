package qris

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMalformed is returned by DecodeStrict when part of the payload could not
// be parsed as a tag-length-value record.
var ErrMalformed = errors.New("malformed tlv payload")

// Record is a single flat tag-length-value field. The length is not stored:
// it is always derived from the value, so a Record can never disagree with
// its own length prefix.
type Record struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// Length returns the number of characters in Value.
func (r Record) Length() int { return utf8.RuneCountInString(r.Value) }

// String renders the record in wire form: tag + 2-digit length + value.
func (r Record) String() string {
	return r.Tag + pad2(r.Length()) + r.Value
}

// DecodeResult is the outcome of Decode.
//
// Records holds every record parsed from the start of the payload, in order
// of appearance. Remainder holds the unparsed tail (empty when the whole
// payload was consumed) and Offset the character position where parsing
// stopped.
type DecodeResult struct {
	Records   []Record
	Remainder string
	Offset    int
}

// Complete reports whether the whole payload was consumed.
func (d DecodeResult) Complete() bool { return d.Remainder == "" }

// Decode parses a flat TLV string. It never fails: decoding stops at the first
// record whose header is truncated, whose length field is not two decimal
// digits, or whose value would run past the end of the input. Everything
// from that point on is reported in Remainder.
func Decode(payload string) DecodeResult {
	rs := []rune(payload)
	var out []Record
	i := 0
	for i < len(rs) {
		if len(rs)-i < 4 {
			break
		}
		n, ok := parseLength(rs[i+2 : i+4])
		if !ok {
			break
		}
		if i+4+n > len(rs) {
			break
		}
		out = append(out, Record{
			Tag:   string(rs[i : i+2]),
			Value: string(rs[i+4 : i+4+n]),
		})
		i += 4 + n
	}
	return DecodeResult{Records: out, Remainder: string(rs[i:]), Offset: i}
}

// DecodeStrict is Decode for callers that prefer to reject bad input. It
// returns ErrMalformed (wrapped with the failing offset) when any part of
// the payload was left unparsed.
func DecodeStrict(payload string) ([]Record, error) {
	res := Decode(payload)
	if !res.Complete() {
		return res.Records, fmt.Errorf("%w: unparsed data at offset %d (%d chars)",
			ErrMalformed, res.Offset, utf8.RuneCountInString(res.Remainder))
	}
	return res.Records, nil
}

// Encode serializes records back into a flat TLV string with no separators.
func Encode(records []Record) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.String())
	}
	return b.String()
}

// parseLength accepts exactly two ASCII decimal digits.
func parseLength(rs []rune) (int, bool) {
	if len(rs) != 2 {
		return 0, false
	}
	for _, r := range rs {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	return int(rs[0]-'0')*10 + int(rs[1]-'0'), true
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
