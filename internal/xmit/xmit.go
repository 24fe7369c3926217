// Package xmit drives one PTT transmit cycle: key up, lead-in flags,
// frame(s), trailing flags, key down (spec §4.10), grounded on
// original_source/src/transmit_thread.c's tx_frames/send_one_frame.
package xmit

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9xyz/packetnode/internal/ax25"
	"github.com/kb9xyz/packetnode/internal/il2p"
	"github.com/kb9xyz/packetnode/internal/queue"
)

// PTT keys and unkeys the transmitter (GPIO-backed in production, see
// internal/gpio).
type PTT interface {
	Set(on bool)
}

// Modulator turns an encoded IL2P frame (or a run of idle/sync bytes) into
// baud-clocked bit counts for duration accounting, and actually writes
// samples to the audio output. Implemented by internal/qpsk in production.
type Modulator interface {
	SendIdleFlags(octets int)
	SendFrame(encoded []byte) (bitsSent int)
	Flush()
}

// Config holds the station timing directives (spec §6: TXDELAY, TXTAIL).
type Config struct {
	Baud       int
	TXDelay    time.Duration
	TXTail     time.Duration
	MaxPerKey  int // cap on frames sent per channel-access, matching the original's 256
}

func (c Config) withDefaults() Config {
	if c.Baud <= 0 {
		c.Baud = 1200
	}
	if c.MaxPerKey <= 0 {
		c.MaxPerKey = 256
	}
	return c
}

// Cycle runs one transmit burst once the caller has gained a clear channel:
// it keys PTT, sends lead-in flags, drains the queue (bounded by
// Config.MaxPerKey), sends trailing flags, then unkeys.
type Cycle struct {
	cfg       Config
	ptt       PTT
	modulator Modulator
	q         *queue.TransmitQueue
	log       *log.Logger
	now       func() time.Time
}

func NewCycle(cfg Config, ptt PTT, mod Modulator, q *queue.TransmitQueue) *Cycle {
	return &Cycle{cfg: cfg.withDefaults(), ptt: ptt, modulator: mod, q: q, log: log.With("component", "xmit"), now: time.Now}
}

func (c *Cycle) bitsToOctets(d time.Duration) int {
	ms := d.Milliseconds()
	bits := int(ms) * c.cfg.Baud / 1000
	return bits / 8
}

// Run pops one frame (already removed from the queue by the caller) and
// transmits it plus any further already-queued frames up to MaxPerKey,
// then unkeys. The caller is expected to have already confirmed clear
// channel via internal/csma.
func (c *Cycle) Run(first queue.Item) {
	start := c.now()
	c.ptt.Set(true)

	c.modulator.SendIdleFlags(c.bitsToOctets(c.cfg.TXDelay))

	totalBits := 0
	numFrames := 0

	totalBits += c.sendOne(first.Packet)
	numFrames++

	for numFrames < c.cfg.MaxPerKey {
		item, ok := c.q.TryWait()
		if !ok {
			break
		}
		totalBits += c.sendOne(item.Packet)
		numFrames++
	}

	c.modulator.SendIdleFlags(c.bitsToOctets(c.cfg.TXTail))
	c.modulator.Flush()

	c.waitOutKeyDownTime(start, totalBits)
	c.ptt.Set(false)
}

func (c *Cycle) sendOne(p *ax25.Packet) int {
	encoded, err := il2p.Encode(p)
	if err != nil {
		c.log.Warnf("dropping frame that failed to encode: %v", err)
		return 0
	}
	return c.modulator.SendFrame(encoded)
}

func (c *Cycle) waitOutKeyDownTime(start time.Time, totalBits int) {
	durationMs := totalBits * 1000 / c.cfg.Baud
	elapsed := c.now().Sub(start)
	remaining := time.Duration(durationMs)*time.Millisecond - elapsed
	if remaining > 0 {
		time.Sleep(remaining)
	}
}
