package domain

import (
	"hash/crc32"
	"strings"

	"github.com/shopspring/decimal"
)

// checksumDepth is how many levels per side the exchange covers with its
// book checksum.
const checksumDepth = 100

// Checksum serializes the top levels of both sides the way the exchange
// does internally and hashes the result with CRC32 (IEEE).
//
// Canonical form: for each of the first 100 rows, the bid level (when
// present) followed by the ask level (when present), every level
// rendered as price:size, all joined with ':'. A side shorter than 100
// contributes only what it has; an empty side contributes nothing.
func (ob *OrderBook) Checksum() uint32 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	return crc32.ChecksumIEEE([]byte(ob.checksumInput()))
}

// VerifyChecksum recomputes the book checksum and compares it against
// the exchange-published value. A mismatch is reported, never thrown:
// the remediation (usually a resync) belongs to the caller.
func (ob *OrderBook) VerifyChecksum(expected uint32) bool {
	return ob.Checksum() == expected
}

func (ob *OrderBook) checksumInput() string {
	parts := make([]string, 0, 2*checksumDepth)

	for i := 0; i < checksumDepth; i++ {
		if i < ob.bids.len() {
			level := ob.bids.levels[i]
			parts = append(parts, encodeChecksumValue(level.Price)+":"+encodeChecksumValue(level.Size))
		}
		if i < ob.asks.len() {
			level := ob.asks.levels[i]
			parts = append(parts, encodeChecksumValue(level.Price)+":"+encodeChecksumValue(level.Size))
		}
	}

	return strings.Join(parts, ":")
}

// encodeChecksumValue renders a price or size the way the exchange
// serializes its own ladder: digits as received on the wire, whole
// numbers padded to one decimal place ("5" -> "5.0").
func encodeChecksumValue(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.StringFixed(1)
	}
	return d.String()
}
