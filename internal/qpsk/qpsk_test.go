package qpsk_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9xyz/packetnode/internal/ax25"
	"github.com/kb9xyz/packetnode/internal/il2p"
	"github.com/kb9xyz/packetnode/internal/qpsk"
)

func TestConstellationRoundTrip(t *testing.T) {
	// The slicer works on Costas-derotated samples, which sit on the
	// diagonals; at the lock point 135 degrees behind the transmitted
	// phase every dibit slices back to itself.
	for dibit := uint8(0); dibit < 4; dibit++ {
		sym := qpsk.DibitToSymbol(dibit) * complexExp(-3*math.Pi/4)
		assert.Equal(t, dibit, qpsk.SymbolToDibit(sym))
	}
}

func TestCostasPhaseDetectorZeroOnAxis(t *testing.T) {
	assert.Equal(t, 0.0, qpsk.PhaseDetector(complex(0, 1)))
	assert.Equal(t, 0.0, qpsk.PhaseDetector(complex(1, 0)))
}

func TestCostasLoopConvergesToStableSymbol(t *testing.T) {
	loop := qpsk.NewCostasLoop(0.01, -0.2, 0.2)
	offset := 0.3
	var last, prev uint8
	for i := 0; i < 2000; i++ {
		sample := qpsk.DibitToSymbol(1) * complexExp(offset)
		derotated, _ := loop.Step(sample)
		prev = last
		last = qpsk.SymbolToDibit(derotated)
	}
	// A repeated single-symbol input should settle on one constellation
	// point once the loop has converged (up to the usual QPSK quadrant
	// ambiguity, resolved elsewhere by the framing layer's sync word).
	assert.Equal(t, prev, last)
}

func complexExp(theta float64) complex128 {
	return complex(math.Cos(theta), math.Sin(theta))
}

func TestTimingErrorDetectorZeroOnPerfectSymbols(t *testing.T) {
	ted := qpsk.NewTimingErrorDetector()
	for i := 0; i < 10; i++ {
		ted.Input(complex(1, 0))
	}
	assert.InDelta(t, 0.0, ted.Error(), 1e-9)
}

func TestRRCTapsAreSymmetric(t *testing.T) {
	taps := qpsk.RRCTaps(qpsk.SampleRate, qpsk.SymbolRate, 0.35)
	for i := 0; i < qpsk.NTaps/2; i++ {
		assert.InDelta(t, taps[i], taps[qpsk.NTaps-1-i], 1e-4)
	}
}

func TestModulatorProducesNonZeroAudio(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL"), mustAddr(t, "N0CALL-1")
	p := ax25.NewUA(dest, src, true)
	encoded, err := il2p.Encode(p)
	require.NoError(t, err)

	sink := &captureSink{}
	mod := qpsk.NewModulator(qpsk.Config{}, sink)
	mod.SendFrame(encoded)
	mod.Flush()

	require.NotEmpty(t, sink.samples)
	nonZero := false
	for _, s := range sink.samples {
		if s != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero)
}

type captureSink struct{ samples []float64 }

func (c *captureSink) WriteSample(s float64) { c.samples = append(c.samples, s) }

func mustAddr(t *testing.T, s string) ax25.Address {
	t.Helper()
	a, err := ax25.ParseAddress(s)
	require.NoError(t, err)
	return a
}
