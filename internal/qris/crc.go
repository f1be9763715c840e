// Package qris implements the flat EMV-style (QRIS) payload codec used to turn
// a merchant's static payment payload into a one-time payload carrying a
// specific amount.
//
// The package is pure: no I/O, no globals, no logging. It contains:
//   - Checksum: CRC-16/CCITT-FALSE rendered as 4 uppercase hex digits
//   - Decode / Encode: a flat tag-length-value codec (no nested templates)
//   - Build: the dynamic payload builder (strip → decode → replace amount → checksum)
//   - Inspect: a read-only report used by the settings endpoint
package qris

const (
	crcPoly = 0x1021
	crcInit = 0xFFFF
)

// Checksum computes the CRC-16/CCITT-FALSE of s and returns it as four
// zero-padded uppercase hex digits.
//
// Each character's code point is fed as a single byte (low 8 bits), MSB
// first, with no input/output reflection and no final XOR. The standard
// check value holds: Checksum("123456789") == "29B1".
func Checksum(s string) string {
	crc := uint16(crcInit)
	for _, r := range s {
		crc ^= uint16(byte(r)) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
	}
	return hex4(crc)
}

const hexDigits = "0123456789ABCDEF"

// hex4 renders v as exactly four uppercase hex digits.
func hex4(v uint16) string {
	return string([]byte{
		hexDigits[v>>12&0xF],
		hexDigits[v>>8&0xF],
		hexDigits[v>>4&0xF],
		hexDigits[v&0xF],
	})
}
