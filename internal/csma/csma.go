// Package csma implements the p-persistent CSMA channel-access algorithm
// used before keying the transmitter (spec §4.8), grounded on
// original_source/src/transmit_thread.c's wait_for_clear_channel.
package csma

import (
	"context"
	"math/rand"
	"time"
)

// DCDSource reports whether the receiver currently detects a signal on the
// channel (carrier/data detect).
type DCDSource interface {
	Detected() bool
}

// Config holds the AX.25-standard CSMA parameters (spec §6 config
// directives: SLOTTIME, PERSIST, DWAIT, FULLDUP).
type Config struct {
	SlotTime time.Duration // p-persistence poll interval
	// Persist is the p-persist threshold, 0-255; higher transmits sooner.
	// 0 is a valid configured value (spec §6, §8 scenario 6: persist=0
	// must mean "never transmit on its own") and is passed through as-is
	// -- callers are expected to have already applied the PERSIST default
	// of 63 (internal/config does this when the directive is absent), so
	// this package never second-guesses a zero value.
	Persist      int
	DWait        time.Duration // extra wait after DCD clears, before first persistence check
	FullDuplex   bool
	PollInterval time.Duration // granularity of the DCD busy-wait poll
	Timeout      time.Duration // give up and report not-clear after this long
}

func (c Config) withDefaults() Config {
	if c.SlotTime <= 0 {
		c.SlotTime = 100 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// HasPriorityWork reports whether there is a higher-priority frame
// already waiting, matching the original's check of TQ_PRIO_0_HI before
// rolling more persistence dice -- an expedited frame short-circuits the
// random backoff.
type HasPriorityWork func() bool

// WaitForClearChannel blocks (subject to ctx) until the channel looks
// clear to transmit, using DCD-wait plus p-persistence. It returns false
// if ctx is cancelled or the internal timeout elapses first.
func WaitForClearChannel(ctx context.Context, cfg Config, dcd DCDSource, hasPriorityWork HasPriorityWork, rng *rand.Rand) bool {
	cfg = cfg.withDefaults()
	if cfg.FullDuplex {
		return true
	}

	deadline := time.Now().Add(cfg.Timeout)

restart:
	for dcd.Detected() {
		if !sleepOrDone(ctx, cfg.PollInterval, deadline) {
			return false
		}
	}

	if cfg.DWait > 0 {
		if !sleepOrDone(ctx, cfg.DWait, deadline) {
			return false
		}
	}

	if dcd.Detected() {
		goto restart
	}

	for !hasPriorityWork() {
		if !sleepOrDone(ctx, cfg.SlotTime, deadline) {
			return false
		}
		if dcd.Detected() {
			goto restart
		}
		if cfg.Persist > 0 && rng.Intn(256) <= cfg.Persist {
			break
		}
	}

	return true
}

func sleepOrDone(ctx context.Context, d time.Duration, deadline time.Time) bool {
	if time.Now().After(deadline) {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
