// Package config reads the line-oriented directive configuration file
// format (spec §6), grounded on the teacher's src/config.go: one
// directive keyword per non-blank, non-comment line, case-insensitive,
// with whitespace-or-quote-aware tokenizing via a small stateful
// splitter modeled on the teacher's split().
package config

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ChannelConfig holds the per-radio-channel directives: CSMA timing,
// AX.25 link parameters, and modem parameters.
type ChannelConfig struct {
	MyCall string

	Baud int

	TXDelay    time.Duration
	TXTail     time.Duration
	SlotTime   time.Duration
	Persist    int
	DWait      time.Duration
	FullDuplex bool

	Paclen         int
	MaxFrameBasic  int
	Retry          int
	FrackSec       time.Duration
	FX25AutoEnable int
}

func defaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		MyCall:         "N0CALL",
		Baud:           1200,
		TXDelay:        300 * time.Millisecond,
		TXTail:         100 * time.Millisecond,
		SlotTime:       100 * time.Millisecond,
		Persist:        63,
		DWait:          0,
		FullDuplex:     false,
		Paclen:         256,
		MaxFrameBasic:  4,
		Retry:          10,
		FrackSec:       3 * time.Second,
		FX25AutoEnable: 5,
	}
}

// Config is the full parsed configuration: one ChannelConfig per radio
// channel (index = channel number) plus global settings.
type Config struct {
	Channels  map[int]*ChannelConfig
	AudioDev  string
	SampleRate int
	KISSPort  int
	AGWPort   int
	KISSSerialPort string
	PTTDevice string

	currentChannel int
}

// New returns a Config with channel 0 pre-populated with defaults,
// matching config_init's "first channel is always valid" behavior.
func New() *Config {
	c := &Config{
		Channels: map[int]*ChannelConfig{},
		// The modem runs at the fixed FS=9600Hz the physical layer requires
		// (spec §4.6); ARATE only exists to match an audio interface that
		// natively captures at that rate.
		SampleRate: 9600,
		KISSPort:   8001,
		AGWPort:    8000,
	}
	ch := defaultChannelConfig()
	c.Channels[0] = &ch
	return c
}

func (c *Config) channel(n int) *ChannelConfig {
	ch, ok := c.Channels[n]
	if !ok {
		def := defaultChannelConfig()
		ch = &def
		c.Channels[n] = ch
	}
	return ch
}

// ParseError reports a problem on a specific config line, matching the
// original's "Line %d: ..." message style without aborting the whole
// parse.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Load reads directives from r, returning the parsed Config and any
// line-level errors encountered (parsing continues past errors, mirroring
// the original's "display message, keep default" philosophy).
func Load(r io.Reader) (*Config, []error) {
	cfg := New()
	var errs []error

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "*") {
			continue
		}

		fields := tokenize(text)
		if len(fields) == 0 {
			continue
		}

		if err := cfg.applyDirective(fields, line); err != nil {
			errs = append(errs, err)
		}
	}
	return cfg, errs
}

// LoadFile opens fname and parses it, resolving to an absolute path
// first so error messages are unambiguous (matching the original's
// filepath.Abs diagnostic).
func LoadFile(open func(string) (io.ReadCloser, error), fname string) (*Config, []error, error) {
	abs, err := filepath.Abs(fname)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving config path %q: %w", fname, err)
	}
	f, err := open(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config file %q: %w", abs, err)
	}
	defer f.Close()
	cfg, errs := Load(f)
	return cfg, errs, nil
}

// tokenize splits a line on whitespace, honoring double-quoted fields
// with doubled-quote escaping for an embedded quote, matching split()'s
// quoting rules.
func tokenize(line string) []string {
	line = strings.ReplaceAll(line, "\t", " ")
	var fields []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
				hasToken = true
			}
		case ch == ' ' && !inQuotes:
			if hasToken {
				fields = append(fields, cur.String())
				cur.Reset()
				hasToken = false
			}
		default:
			cur.WriteRune(ch)
			hasToken = true
		}
	}
	if hasToken {
		fields = append(fields, cur.String())
	}
	return fields
}

func (c *Config) applyDirective(fields []string, line int) error {
	kw := strings.ToUpper(fields[0])
	args := fields[1:]

	switch kw {
	case "CHANNEL":
		n, err := requireInt(args, 0, line, "CHANNEL")
		if err != nil {
			return err
		}
		c.currentChannel = n
		c.channel(n)

	case "MYCALL":
		if len(args) < 1 {
			return &ParseError{line, "MYCALL requires a callsign"}
		}
		c.channel(c.currentChannel).MyCall = strings.ToUpper(args[0])

	case "MODEM":
		n, err := requireInt(args, 0, line, "MODEM")
		if err != nil {
			return err
		}
		c.channel(c.currentChannel).Baud = n

	case "TXDELAY":
		return c.setDuration(args, line, "TXDELAY", func(ch *ChannelConfig, d time.Duration) { ch.TXDelay = d })
	case "TXTAIL":
		return c.setDuration(args, line, "TXTAIL", func(ch *ChannelConfig, d time.Duration) { ch.TXTail = d })
	case "SLOTTIME":
		return c.setDuration(args, line, "SLOTTIME", func(ch *ChannelConfig, d time.Duration) { ch.SlotTime = d })
	case "DWAIT":
		return c.setDuration(args, line, "DWAIT", func(ch *ChannelConfig, d time.Duration) { ch.DWait = d })

	case "PERSIST":
		n, err := requireInt(args, 0, line, "PERSIST")
		if err != nil {
			return err
		}
		if n < 0 || n > 255 {
			return &ParseError{line, "PERSIST must be 0-255"}
		}
		c.channel(c.currentChannel).Persist = n

	case "FULLDUP":
		if len(args) < 1 {
			return &ParseError{line, "FULLDUP requires on/off"}
		}
		c.channel(c.currentChannel).FullDuplex = strings.EqualFold(args[0], "on")

	case "PACLEN":
		n, err := requireInt(args, 0, line, "PACLEN")
		if err != nil {
			return err
		}
		c.channel(c.currentChannel).Paclen = n

	case "MAXFRAME":
		n, err := requireInt(args, 0, line, "MAXFRAME")
		if err != nil {
			return err
		}
		c.channel(c.currentChannel).MaxFrameBasic = n

	case "FRACK":
		n, err := requireInt(args, 0, line, "FRACK")
		if err != nil {
			return err
		}
		c.channel(c.currentChannel).FrackSec = time.Duration(n) * time.Second

	case "RETRY":
		n, err := requireInt(args, 0, line, "RETRY")
		if err != nil {
			return err
		}
		c.channel(c.currentChannel).Retry = n

	case "ARATE":
		n, err := requireInt(args, 0, line, "ARATE")
		if err != nil {
			return err
		}
		c.SampleRate = n

	case "ADEVICE":
		if len(args) < 1 {
			return &ParseError{line, "ADEVICE requires a device name"}
		}
		c.AudioDev = args[0]

	case "KISSPORT":
		n, err := requireInt(args, 0, line, "KISSPORT")
		if err != nil {
			return err
		}
		c.KISSPort = n

	case "AGWPORT":
		n, err := requireInt(args, 0, line, "AGWPORT")
		if err != nil {
			return err
		}
		c.AGWPort = n

	case "KISSSERIALPORT":
		if len(args) < 1 {
			return &ParseError{line, "KISSSERIALPORT requires a device path"}
		}
		c.KISSSerialPort = args[0]

	case "PTTDEVICE":
		if len(args) < 1 {
			return &ParseError{line, "PTTDEVICE requires a device path"}
		}
		c.PTTDevice = args[0]

	default:
		return &ParseError{line, fmt.Sprintf("unrecognized directive %q", fields[0])}
	}
	return nil
}

func (c *Config) setDuration(args []string, line int, name string, set func(*ChannelConfig, time.Duration)) error {
	n, err := requireInt(args, 0, line, name)
	if err != nil {
		return err
	}
	set(c.channel(c.currentChannel), time.Duration(n)*10*time.Millisecond)
	return nil
}

func requireInt(args []string, idx int, line int, name string) (int, error) {
	if idx >= len(args) {
		return 0, &ParseError{line, fmt.Sprintf("%s requires a numeric argument", name)}
	}
	n, err := strconv.Atoi(args[idx])
	if err != nil {
		return 0, &ParseError{line, fmt.Sprintf("%s: invalid number %q", name, args[idx])}
	}
	return n, nil
}
