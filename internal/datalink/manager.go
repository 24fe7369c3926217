package datalink

import (
	"sync"
	"time"

	"github.com/kb9xyz/packetnode/internal/ax25"
)

type sessionKey struct {
	own, peer string
}

// Manager owns every live Session for a channel, routes incoming frames to
// the right one (creating new sessions for inbound SABM/SABME addressed
// to a registered callsign), and sweeps T1/T3 timers. Grounded on
// ax25_link.c's get_link_handle/list_head/reg_callsign_list and the
// dl_timer_expiry sweep; this port keeps one Manager per radio channel
// instead of one process-wide list, since spec §5 allows multiple
// channels.
type Manager struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
	accepted map[string]bool // registered callsigns this node answers on
	cfg      Config
	hooks    func(own, peer ax25.Address) Hooks
}

// NewManager constructs a Manager. hooksFor is invoked once per new
// session to build its Hooks (so e.g. Send can close over the channel's
// transmit queue).
func NewManager(cfg Config, hooksFor func(own, peer ax25.Address) Hooks) *Manager {
	return &Manager{
		sessions: make(map[sessionKey]*Session),
		accepted: make(map[string]bool),
		cfg:      cfg,
		hooks:    hooksFor,
	}
}

// RegisterCallsign allows inbound connections addressed to call to create
// new sessions (the client-app registration step from get_link_handle).
func (m *Manager) RegisterCallsign(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted[call] = true
}

// Session returns an existing session for the (own, peer) pair, or nil.
func (m *Manager) Session(own, peer ax25.Address) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionKey{own.String(), peer.String()}]
}

// Open returns the session for (own, peer), creating one if needed --
// the path used for locally-initiated (client-app) connections.
func (m *Manager) Open(own, peer ax25.Address) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey{own.String(), peer.String()}
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := NewSession(own, peer, m.cfg, m.hooks(own, peer))
	m.sessions[key] = s
	return s
}

// HandleReceived routes a decoded frame from the radio to its session,
// creating one only if the frame is a connection request (SABM/SABME)
// addressed to a registered callsign -- matching get_link_handle's
// create==true case restricted to those frame types.
func (m *Manager) HandleReceived(p *ax25.Packet) {
	m.mu.Lock()
	key := sessionKey{p.Dest.String(), p.Source.String()}
	s, ok := m.sessions[key]
	if !ok {
		if (p.Type == ax25.FrameSABM || p.Type == ax25.FrameSABME) && m.accepted[p.Dest.String()] {
			s = NewSession(p.Dest, p.Source, m.cfg, m.hooks(p.Dest, p.Source))
			m.sessions[key] = s
			ok = true
		}
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	s.HandleFrame(p)
}

// ChannelBusyChanged propagates a DCD/PTT-derived channel-busy transition
// to every session on this channel (lm_channel_busy).
func (m *Manager) ChannelBusyChanged(busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.ChannelBusyChanged(busy)
	}
}

// PollTimers sweeps every session's T1/T3 deadlines against now
// (dl_timer_expiry).
func (m *Manager) PollTimers(now time.Time) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.PollTimers(now)
	}
}

// NextExpiry returns the soonest pending timer deadline across all
// sessions, or the zero Time if none are pending.
func (m *Manager) NextExpiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next time.Time
	for _, s := range m.sessions {
		if e := s.NextExpiry(); !e.IsZero() && (next.IsZero() || e.Before(next)) {
			next = e
		}
	}
	return next
}

// Sessions returns a snapshot of all live sessions, for status reporting.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
