// Package integrity implements the artifact integrity check.
//
// The check used here treats the final byte of an artifact as a checksum equal
// to the sum, modulo 256, of all preceding bytes. A production checker swaps
// in a digest and signature check behind the same Verify contract.
package integrity

import "log/slog"

// Sum8 verifies artifacts sealed with a trailing sum-8 checksum byte.
type Sum8 struct{}

// NewSum8 returns the sum-8 checker.
func NewSum8() Sum8 {
	return Sum8{}
}

// Verify reports whether the last byte of data equals the sum (mod 256) of
// all bytes before it. An empty sequence never verifies.
func (Sum8) Verify(data []byte) bool {
	if len(data) == 0 {
		slog.Warn("integrity_check_failed", "reason", "empty_artifact")
		return false
	}

	payload, want := data[:len(data)-1], data[len(data)-1]
	got := Sum(payload)
	if got != want {
		slog.Warn("integrity_check_failed",
			"reason", "checksum_mismatch",
			"size_bytes", len(data),
			"expected", want,
			"computed", got)
		return false
	}

	slog.Debug("integrity_check_passed", "size_bytes", len(data), "checksum", want)
	return true
}

// Sum returns the sum of payload modulo 256.
func Sum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return sum
}

// Seal returns a copy of payload with its checksum byte appended.
func Seal(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, payload...)
	return append(out, Sum(payload))
}
