package qpsk

import (
	"math"

	"github.com/kb9xyz/packetnode/internal/il2p"
)

// AudioSink receives one modulated audio sample at a time, written by the
// transmitter (spec §4.6: 1200 Bd QPSK, 2400 bits/sec, over an audio
// passband centered at 1 kHz, sampled at 9600 Hz).
type AudioSink interface {
	WriteSample(s float64)
}

// Fixed physical-layer parameters (spec §4.6, matching ipnode.h's
// FS/RS/CYCLES/CENTER #defines): sample rate, symbol rate, carrier
// frequency, and cycles (audio samples) per symbol are not configurable --
// every channel modulates and demodulates at this one profile.
const (
	SampleRate      = 9600.0
	SymbolRate      = 1200.0
	CarrierFreq     = 1000.0
	CyclesPerSymbol = int(SampleRate / SymbolRate)
)

// Config holds the one modem parameter the spec leaves open: the RRC
// filter's rolloff factor.
type Config struct {
	RolloffA float64
}

func (c Config) withDefaults() Config {
	if c.RolloffA <= 0 {
		c.RolloffA = 0.35
	}
	return c
}

// Modulator turns IL2P frame bytes into a QPSK passband audio stream. It
// implements internal/xmit.Modulator.
type Modulator struct {
	fir     *FIR
	sink    AudioSink
	txPhase float64
}

func NewModulator(cfg Config, sink AudioSink) *Modulator {
	cfg = cfg.withDefaults()
	taps := RRCTaps(SampleRate, SymbolRate, cfg.RolloffA)
	return &Modulator{fir: NewFIR(taps), sink: sink}
}

// idleAmplitude is the 75% scaling spec §4.6 ("Idle transmission") and the
// original's Mode_SYNC (`transmit_thread.c`'s `tx_frame_bits`, `* .75f`)
// apply to the idle preamble/trailer so a receiver's AGC can lock onto a
// recognizable low-energy pattern before the sync word arrives.
const idleAmplitude = 0.75

// SendIdleFlags emits octets worth of the idle byte (0x00) as BPSK symbols
// at 75% amplitude -- spec §4.6's idle preamble/trailer, matching the
// original's Mode_SYNC path: one bit per symbol period, mapped onto the
// BPSK subset of the QPSK constellation (dibit 0 for a 0 bit, dibit 3 for
// a 1 bit) rather than the full QPSK two-bits-per-symbol mapping.
func (m *Modulator) SendIdleFlags(octets int) {
	const idleByte = 0x00
	for i := 0; i < octets; i++ {
		for shift := 7; shift >= 0; shift-- {
			var dibit uint8
			if (idleByte>>uint(shift))&0x1 != 0 {
				dibit = 3
			}
			m.emitSymbol(DibitToSymbol(dibit) * complex(idleAmplitude, 0))
		}
	}
}

// SendFrame modulates one encoded IL2P frame and returns the number of
// bits transmitted, matching internal/xmit.Modulator.
func (m *Modulator) SendFrame(encoded []byte) int {
	m.sendBytes(encoded)
	return len(encoded) * 8
}

// Flush pushes any filter tail through the FIR so the final symbol's
// energy reaches the sink before PTT drops.
func (m *Modulator) Flush() {
	for i := 0; i < NTaps; i++ {
		m.emitSymbol(0)
	}
}

func (m *Modulator) sendBytes(b []byte) {
	// Walk bits MSB-first in pairs, mapping each pair to a dibit symbol.
	for _, octet := range b {
		for shift := 6; shift >= 0; shift -= 2 {
			dibit := (octet >> uint(shift)) & 0x3
			m.emitSymbol(DibitToSymbol(dibit))
		}
	}
}

func (m *Modulator) emitSymbol(symbol complex128) {
	for i := 0; i < CyclesPerSymbol; i++ {
		var pulse complex128
		if i == 0 {
			pulse = symbol
		}
		shaped := m.fir.Filter(pulse)
		m.sink.WriteSample(m.upconvert(shaped))
	}
}

func (m *Modulator) upconvert(baseband complex128) float64 {
	c := math.Cos(m.txPhase)
	s := math.Sin(m.txPhase)
	m.txPhase += 2 * math.Pi * CarrierFreq / SampleRate
	if m.txPhase > 2*math.Pi {
		m.txPhase -= 2 * math.Pi
	}
	return real(baseband)*c - imag(baseband)*s
}

// Demodulator recovers QPSK bits from a passband audio stream, handing
// each recovered bit to the attached IL2P receiver.
type Demodulator struct {
	fir   *FIR
	ted   *TimingErrorDetector
	costa *CostasLoop

	rxPhase   float64
	sampleIdx int

	recv *il2p.Receiver
}

func NewDemodulator(cfg Config, recv *il2p.Receiver) *Demodulator {
	cfg = cfg.withDefaults()
	taps := RRCTaps(SampleRate, SymbolRate, cfg.RolloffA)
	return &Demodulator{
		fir:   NewFIR(taps),
		ted:   NewTimingErrorDetector(),
		costa: NewCostasLoop(2*math.Pi/180, -1.0, 1.0),
		recv:  recv,
	}
}

// ProcessSample feeds one audio sample (typically PCM16 scaled to
// +/-1.0) through downconversion and matched filtering, and, every 8
// samples (one symbol period, spec §4.6 steps 1-8), feeds samples 0
// and 4 of that period to the timing-error detector, slices the
// middle TED sample through the Costas loop, and, only when the
// resulting phase-detector error is within +/- pi/4 (step 8), hands
// the recovered dibit's two bits to the attached IL2P bit state
// machine. A larger error means the loop is unlocked, so the sample is
// dropped rather than feeding garbage bits into the sync search.
func (d *Demodulator) ProcessSample(sample float64) {
	baseband := d.downconvert(sample)
	filtered := d.fir.Filter(baseband)

	idxInSymbol := d.sampleIdx % CyclesPerSymbol
	if idxInSymbol == 0 || idxInSymbol == CyclesPerSymbol/2 {
		d.ted.Input(filtered)
	}

	d.sampleIdx++
	if d.sampleIdx < CyclesPerSymbol {
		return
	}
	d.sampleIdx = 0

	symbol := d.ted.MiddleSample()
	derotated, phaseErr := d.costa.Step(symbol)
	if math.Abs(phaseErr) > math.Pi/4 {
		return
	}
	dibit := SymbolToDibit(derotated)

	d.recv.ProcessBit(int((dibit >> 1) & 1))
	d.recv.ProcessBit(int(dibit & 1))
}

func (d *Demodulator) downconvert(sample float64) complex128 {
	c := math.Cos(d.rxPhase)
	s := math.Sin(d.rxPhase)
	d.rxPhase += 2 * math.Pi * CarrierFreq / SampleRate
	if d.rxPhase > 2*math.Pi {
		d.rxPhase -= 2 * math.Pi
	}
	return complex(sample*c, -sample*s)
}
