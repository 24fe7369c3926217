package qpsk

import "math"

// TimingErrorDetector is a Gardner-style symbol timing error detector
// operating at two input samples per symbol, translated from ted.c. The
// original's deque of three complex samples is replaced by a fixed
// 3-element ring since the depth never changes.
type TimingErrorDetector struct {
	error     float64
	prevError float64

	inputsPerSymbol int
	inputClock      int

	// window holds the 3 most recent inputs: window[0] is the newest
	// (current), window[1] the middle, window[2] the oldest (previous).
	window [3]complex128
}

func NewTimingErrorDetector() *TimingErrorDetector {
	t := &TimingErrorDetector{inputsPerSymbol: 2}
	t.SyncResetInputClock()
	return t
}

// SyncReset clears the error state and sample history, matching
// sync_reset.
func (t *TimingErrorDetector) SyncReset() {
	t.error = 0
	t.prevError = 0
	t.window = [3]complex128{}
	t.SyncResetInputClock()
}

// SyncResetInputClock aligns the next Input call with a symbol-sampling
// instant, matching sync_reset_input_clock.
func (t *TimingErrorDetector) SyncResetInputClock() {
	t.inputClock = t.inputsPerSymbol - 1
}

// RevertInputClock steps the input clock backward one tick, matching
// revert_input_clock.
func (t *TimingErrorDetector) RevertInputClock() {
	if t.inputClock == 0 {
		t.inputClock = t.inputsPerSymbol - 1
	} else {
		t.inputClock--
	}
}

func (t *TimingErrorDetector) advanceInputClock() {
	t.inputClock = (t.inputClock + 1) % t.inputsPerSymbol
}

// Input feeds one complex baseband sample to the detector, matching
// ted_input: push, discard the oldest, advance the clock, and recompute
// the error at the symbol boundary.
func (t *TimingErrorDetector) Input(x complex128) {
	t.window[2] = t.window[1]
	t.window[1] = t.window[0]
	t.window[0] = x

	t.advanceInputClock()

	if t.inputClock == 0 {
		t.prevError = t.error
		t.error = t.computeError()
	}
}

// Revert undoes the effect of the most recent Input call, matching
// revert: if preserveError is false and we're at a symbol boundary, the
// error estimate is rolled back too.
func (t *TimingErrorDetector) Revert(preserveError bool) {
	if t.inputClock == 0 && !preserveError {
		t.error = t.prevError
	}
	t.RevertInputClock()

	t.window[0] = t.window[1]
	t.window[1] = t.window[2]
}

func (t *TimingErrorDetector) computeError() float64 {
	current := t.window[0]
	middle := t.window[1]
	previous := t.window[2]

	errInphase := (real(previous) - real(current)) * real(middle)
	errQuadrature := (imag(previous) - imag(current)) * imag(middle)

	return enormalize(errInphase+errQuadrature, 0.3)
}

func enormalize(err, max float64) float64 {
	if math.IsNaN(err) || math.IsInf(err, 0) {
		return 0
	}
	if err > max {
		return max
	}
	if err < -max {
		return -max
	}
	return err
}

// MiddleSample returns the middle (most recently symbol-centered) sample
// in the window, matching getMiddleSample.
func (t *TimingErrorDetector) MiddleSample() complex128 { return t.window[1] }

// Error returns the current symbol timing error estimate.
func (t *TimingErrorDetector) Error() float64 { return t.error }

// InputsPerSymbol returns how many input samples this detector consumes
// per symbol.
func (t *TimingErrorDetector) InputsPerSymbol() int { return t.inputsPerSymbol }
