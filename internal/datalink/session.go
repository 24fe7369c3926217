// Package datalink implements the AX.25 v2.0 connected-mode data-link
// state machine (spec §4.9), grounded on
// original_source/src/ax25_link.c -- the IPNode fork of Dire Wolf's
// dlsm (data link state machine). Timer and retry semantics, the N(R)/N(S)
// bookkeeping, and the REJ/SREJ recovery paths follow that source closely;
// only the bookkeeping differs, since this port keeps its Sessions in a
// per-channel Manager map instead of a global linked list walked by a
// single thread.
package datalink

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/kb9xyz/packetnode/internal/ax25"
)

// State is one of the five states of the AX.25 v2.0 connected-mode data
// link state machine (spec §4.9).
type State int

const (
	StateDisconnected State = iota
	StateAwaitingConnection
	StateAwaitingRelease
	StateConnected
	StateTimerRecovery
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingConnection:
		return "awaiting-connection"
	case StateAwaitingRelease:
		return "awaiting-release"
	case StateConnected:
		return "connected"
	case StateTimerRecovery:
		return "timer-recovery"
	default:
		return "unknown"
	}
}

// Config holds the per-link tunables the original sources out of the
// station's misc_config (PACLEN, MAXFRAME, RETRY, FRACK).
type Config struct {
	Paclen   int           // N1: max info bytes per I frame; SendData neither splits nor checks against it
	MaxFrame int           // k: window size
	Retry    int           // N2: retransmission limit
	FrackSec time.Duration // initial T1 value
	T3       time.Duration // idle-link probe interval
}

func (c Config) withDefaults() Config {
	if c.Paclen <= 0 {
		c.Paclen = 256
	}
	if c.MaxFrame <= 0 {
		c.MaxFrame = 4
	}
	if c.Retry <= 0 {
		c.Retry = 10
	}
	if c.FrackSec <= 0 {
		c.FrackSec = 3 * time.Second
	}
	if c.T3 <= 0 {
		c.T3 = 300 * time.Second
	}
	return c
}

// txItem is a queued or already-sent I-frame payload, addressed by N(S)
// (corresponds to the original's cdata_t held in i_frame_queue and
// txdata_by_ns).
type txItem struct {
	pid  byte
	data []byte
}

// Hooks wires a Session to its surroundings: frame transmission, delivered
// application data, and state-change notification (e.g. to drive a PTT/CON
// indicator, spec §6 KISS client interface).
type Hooks struct {
	Send      func(p *ax25.Packet)
	Deliver   func(pid byte, data []byte)
	StateChanged func(old, new State)
}

// Session is one AX.25 connection's data-link state machine, keyed by the
// (own, peer) callsign pair. Not safe for concurrent use without external
// locking -- callers own a single goroutine (or serialize through a
// Manager) per session, matching the original's single-threaded dlsm list
// walk.
type Session struct {
	Own, Peer ax25.Address

	cfg   Config
	hooks Hooks
	now   func() time.Time
	log   *log.Logger

	state State

	vs, va, vr uint8
	rc         int

	layer3Initiated   bool
	peerReceiverBusy  bool
	ownReceiverBusy   bool
	rejectException   bool
	acknowledgePending bool

	srt time.Duration
	t1v time.Duration

	radioChannelBusy bool

	t1Exp                   time.Time
	t1PausedAt              time.Time
	t1RemainingWhenLastStop time.Duration
	t1HadExpired            bool
	t1RemainingValid        bool

	t3Exp time.Time

	peakRC int

	txByNS [ax25.Modulus]*txItem
	rxByNS [ax25.Modulus]*txItem

	iFrameQueue []*txItem

	reassembly *reassemblyBuffer

	recvCounts map[ax25.FrameType]int
}

// NewSession constructs a disconnected session for the (own, peer)
// callsign pair.
func NewSession(own, peer ax25.Address, cfg Config, hooks Hooks) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		Own:   own,
		Peer:  peer,
		cfg:   cfg,
		hooks: hooks,
		now:   time.Now,
		log:   log.With("own", own.String(), "peer", peer.String()),
		state: StateDisconnected,
		srt:   cfg.FrackSec / 2,
		t1v:   cfg.FrackSec,
		recvCounts: make(map[ax25.FrameType]int),
	}
	return s
}

func (s *Session) State() State { return s.state }

func (s *Session) send(p *ax25.Packet) {
	p.Dest = s.Peer
	p.Source = s.Own
	if s.hooks.Send != nil {
		s.hooks.Send(p)
	}
}

func (s *Session) deliver(pid byte, data []byte) {
	if s.hooks.Deliver != nil {
		s.hooks.Deliver(pid, data)
	}
}

func (s *Session) enterNewState(newState State) {
	old := s.state
	s.state = newState
	if s.hooks.StateChanged != nil {
		s.hooks.StateChanged(old, newState)
	}
}

func (s *Session) setVS(n uint8) { s.vs = n }

func (s *Session) setVR(n uint8) { s.vr = n }

// setVA mirrors SET_VA: advancing V(A) frees any held retransmission copies
// up to the new value.
func (s *Session) setVA(n uint8) {
	s.va = n
	x := ax25.SeqAdd(n, -1)
	for s.txByNS[x] != nil {
		s.txByNS[x] = nil
		x = ax25.SeqAdd(x, -1)
	}
}

func (s *Session) withinWindowSize() bool {
	return s.vs != ax25.SeqAdd(s.va, s.cfg.MaxFrame)
}

func (s *Session) isGoodNR(nr uint8) bool {
	return ax25.InCyclicRangeInclusive(nr, s.va, s.vs)
}

func (s *Session) logf(format string, args ...any) {
	s.log.Warnf(format, args...)
}
