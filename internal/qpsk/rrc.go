package qpsk

import "math"

// NTaps is the root-raised-cosine filter length. The original's comment
// ("lower bauds need more taps") still applies; 127 covers 1200 baud at
// the fixed 9600 Hz sample rate with margin.
const NTaps = 127

// Gain compensates for the RRC filter's passband attenuation, matching
// the original's GAIN constant.
const Gain = 1.85

// RRCTaps builds a root-raised-cosine filter kernel for the given sample
// rate, symbol rate, and roll-off factor, a direct translation of
// rrc_make.
func RRCTaps(sampleRate, symbolRate, alpha float64) [NTaps]float64 {
	var coeffs [NTaps]float64
	spb := sampleRate / symbolRate
	scale := 0.0

	for i := 0; i < NTaps; i++ {
		xindex := float64(i - NTaps/2)
		x1 := math.Pi * xindex / spb
		x2 := 4 * alpha * xindex / spb
		x3 := x2*x2 - 1

		var num, den float64
		if math.Abs(x3) >= 0.000001 {
			if i != NTaps/2 {
				num = math.Cos((1+alpha)*x1) + math.Sin((1-alpha)*x1)/(4*alpha*xindex/spb)
			} else {
				num = math.Cos((1+alpha)*x1) + (1-alpha)*math.Pi/(4*alpha)
			}
			den = x3 * math.Pi
		} else {
			if alpha == 1 {
				coeffs[i] = -1
				scale += coeffs[i]
				continue
			}

			x3 = (1 - alpha) * x1
			x2 = (1 + alpha) * x1

			num = math.Sin(x2)*(1+alpha)*math.Pi -
				math.Cos(x3)*((1-alpha)*math.Pi*spb)/(4*alpha*xindex) +
				math.Sin(x3)*spb*spb/(4*alpha*xindex*xindex)

			den = -32 * math.Pi * alpha * alpha * xindex / spb
		}

		coeffs[i] = 4 * alpha * num / den
		scale += coeffs[i]
	}

	for i := range coeffs {
		coeffs[i] = coeffs[i] * Gain / scale
	}

	return coeffs
}

// FIR is a complex-valued tapped-delay-line FIR filter, the Go
// equivalent of rrc_fir's shift-and-convolve memory array.
type FIR struct {
	coeffs [NTaps]float64
	memory [NTaps]complex128
}

func NewFIR(coeffs [NTaps]float64) *FIR {
	return &FIR{coeffs: coeffs}
}

// Filter pushes one sample through the delay line and returns the
// filtered output.
func (f *FIR) Filter(sample complex128) complex128 {
	copy(f.memory[0:NTaps-1], f.memory[1:NTaps])
	f.memory[NTaps-1] = sample

	var y complex128
	for i, c := range f.coeffs {
		y += f.memory[i] * complex(c, 0)
	}
	return y
}
