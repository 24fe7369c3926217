// Package gpio drives the PTT/DCD/CON/SYN hardware control lines (spec
// §4.9) over a Linux GPIO character device, grounded on
// original_source/src/ptt.c's output-control-type model (OCTYPE_PTT,
// OCTYPE_DCD, OCTYPE_CON, OCTYPE_SYN, each with an invert flag) but
// modernized from the original's /sys/class/gpio sysfs file trick to
// github.com/warthog618/go-gpiocdev's character-device API, which is
// what current Linux kernels actually expose.
package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Line identifies one of the station's control signals, matching the
// original's OCTYPE_*/ICTYPE_* enumeration. PTT, DCD, CON and SYN are
// outputs the node drives to announce its own state to external gear;
// TXInhibit is the one input type (ICTYPE_TXINH), letting external
// hardware (e.g. a repeater controller) hold off keying.
type Line int

const (
	LinePTT Line = iota
	LineDCD
	LineCON
	LineSYN
	LineTXInhibit
)

func (l Line) String() string {
	switch l {
	case LinePTT:
		return "PTT"
	case LineDCD:
		return "DCD"
	case LineCON:
		return "CON"
	case LineSYN:
		return "SYN"
	case LineTXInhibit:
		return "TXINH"
	default:
		return "UNKNOWN"
	}
}

// LineConfig describes one GPIO offset on a chip and whether its sense
// is inverted, matching ptt_invert/inh_invert in the original.
type LineConfig struct {
	Offset int
	Invert bool
}

// Controller owns the open output and input lines for one radio
// channel's hardware control signals.
type Controller struct {
	chip    *gpiocdev.Chip
	outputs map[Line]*gpiocdev.Line
	inputs  map[Line]*gpiocdev.Line
	invert  map[Line]bool
}

// Open requests the configured output and input lines from the named
// GPIO chip (e.g. "gpiochip0"), matching ptt_init's per-control-type
// export loop.
func Open(chipName string, outputs, inputs map[Line]LineConfig) (*Controller, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("opening gpio chip %s: %w", chipName, err)
	}

	c := &Controller{
		chip:    chip,
		outputs: map[Line]*gpiocdev.Line{},
		inputs:  map[Line]*gpiocdev.Line{},
		invert:  map[Line]bool{},
	}

	for line, cfg := range outputs {
		l, err := chip.RequestLine(cfg.Offset, gpiocdev.AsOutput(0))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("requesting %s output line: %w", line, err)
		}
		c.outputs[line] = l
		c.invert[line] = cfg.Invert
	}

	for line, cfg := range inputs {
		l, err := chip.RequestLine(cfg.Offset, gpiocdev.AsInput)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("requesting %s input line: %w", line, err)
		}
		c.inputs[line] = l
		c.invert[line] = cfg.Invert
	}

	return c, nil
}

// outputValue computes the physical line level for a logical assertion,
// applying ptt_invert's sense-inversion.
func outputValue(asserted, invert bool) int {
	if asserted != invert {
		return 1
	}
	return 0
}

// inputAsserted computes the logical assertion for a physical line
// level, applying inh_invert's sense-inversion.
func inputAsserted(raw int, invert bool) bool {
	asserted := raw != 0
	if invert {
		asserted = !asserted
	}
	return asserted
}

// Set drives an output line high or low, applying its invert flag,
// matching ptt_set's sense-inversion logic.
func (c *Controller) Set(line Line, asserted bool) error {
	l, ok := c.outputs[line]
	if !ok {
		return nil
	}
	return l.SetValue(outputValue(asserted, c.invert[line]))
}

// Get reads an input line, applying its invert flag, matching
// get_input's comparison against inh_invert.
func (c *Controller) Get(line Line) (bool, error) {
	l, ok := c.inputs[line]
	if !ok {
		return false, nil
	}
	v, err := l.Value()
	if err != nil {
		return false, err
	}
	return inputAsserted(v, c.invert[line]), nil
}

// PTT adapts Controller to internal/xmit.PTT.
type PTT struct{ c *Controller }

func (c *Controller) PTT() PTT { return PTT{c} }

func (p PTT) Set(on bool) { p.c.Set(LinePTT, on) }

// SetDCD drives the DCD output line to announce carrier-detect state
// to external gear (e.g. a squelch indicator), matching ptt_set called
// with OCTYPE_DCD. Software carrier sensing for channel access
// (internal/csma.DCDSource) comes from the demodulator, not this pin.
func (c *Controller) SetDCD(asserted bool) error { return c.Set(LineDCD, asserted) }

// SetCON drives the connected-indicator output line.
func (c *Controller) SetCON(asserted bool) error { return c.Set(LineCON, asserted) }

// SetSYN drives the sync-indicator output line.
func (c *Controller) SetSYN(asserted bool) error { return c.Set(LineSYN, asserted) }

// TXInhibited reports whether external hardware is currently holding
// off transmission, matching get_input(ICTYPE_TXINH).
func (c *Controller) TXInhibited() (bool, error) { return c.Get(LineTXInhibit) }

// Close releases every requested line and the chip handle, matching
// ptt_term's unwind-and-close sequence.
func (c *Controller) Close() error {
	for _, l := range c.outputs {
		l.Close()
	}
	for _, l := range c.inputs {
		l.Close()
	}
	if c.chip != nil {
		return c.chip.Close()
	}
	return nil
}
