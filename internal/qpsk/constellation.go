// Package qpsk implements the 1200-baud (2400 bit/s) QPSK physical layer carried over
// an audio channel (spec §4.6-§4.7): constellation mapping, the RRC
// pulse-shaping filter, a Costas carrier-recovery loop, and a Gardner
// symbol-timing error detector, grounded on
// original_source/src/constellation.c, rrc_fir.c, costas_loop.c and
// ted.c -- the one part of the original that is pure DSP math rather
// than cgo plumbing, so it translates almost directly.
package qpsk

// Constellation holds the four Gray-coded QPSK symbol points, indexed by
// 2-bit dibit value, matching createQPSKConstellation's d_qpsk table.
var Constellation = [4]complex128{
	0: complex(1, 0),
	1: complex(0, 1),
	2: complex(0, -1),
	3: complex(-1, 0),
}

// DibitToSymbol maps a 2-bit value (0-3) to its constellation point.
func DibitToSymbol(dibit uint8) complex128 {
	return Constellation[dibit&0x3]
}

// SymbolToDibit slices a received (derotated) symbol by the sign of each
// axis: a positive real part sets the low bit, a positive imaginary part
// the high bit, exactly as qpskToDiBit does. A component of exactly zero
// slices as 0, so the on-axis Constellation points themselves do not slice
// back to their own dibit; the Costas loop settles received samples on
// the diagonals, and at the lock point 135 degrees behind the transmitted
// phase each dibit slices back to itself.
func SymbolToDibit(sample complex128) uint8 {
	var lo, hi uint8
	if real(sample) > 0 {
		lo = 1
	}
	if imag(sample) > 0 {
		hi = 1
	}
	return hi<<1 | lo
}
