package datalink

import "time"

// T1 is the retransmission timer, T3 the idle-link keepalive probe. Both
// are represented as absolute expiry times rather than timer objects; a
// Manager sweeps all sessions periodically (spec §4.9, "T1/T3 as a single
// polled sweep rather than per-session OS timers", matching
// ax25_link.c's dl_timer_expiry()).

func (s *Session) startT1() {
	now := s.now()
	s.t1Exp = now.Add(s.t1v)
	if s.radioChannelBusy {
		s.t1PausedAt = now
	} else {
		s.t1PausedAt = time.Time{}
	}
	s.t1HadExpired = false
}

func (s *Session) stopT1() {
	s.resumeT1()
	now := s.now()
	if !s.t1Exp.IsZero() {
		remaining := s.t1Exp.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		s.t1RemainingWhenLastStop = remaining
		s.t1RemainingValid = true
	}
	s.t1Exp = time.Time{}
	s.t1HadExpired = false
}

func (s *Session) isT1Running() bool {
	return !s.t1Exp.IsZero()
}

func (s *Session) pauseT1() {
	if s.t1PausedAt.IsZero() {
		s.t1PausedAt = s.now()
	}
}

func (s *Session) resumeT1() {
	if s.t1Exp.IsZero() || s.t1PausedAt.IsZero() {
		return
	}
	pausedFor := s.now().Sub(s.t1PausedAt)
	s.t1Exp = s.t1Exp.Add(pausedFor)
	s.t1PausedAt = time.Time{}
}

func (s *Session) startT3() {
	s.t3Exp = s.now().Add(s.cfg.T3)
}

func (s *Session) stopT3() {
	s.t3Exp = time.Time{}
}

// selectT1Value implements Van Jacobson's smoothed round-trip-time
// estimator (SRT) with RTO=2*SRT, plus the original's backoff-on-retry
// extension for rc>0 (ax25_link.c select_t1_value).
func (s *Session) selectT1Value() {
	if s.rc == 0 {
		if s.t1RemainingValid {
			sample := s.t1v - s.t1RemainingWhenLastStop
			s.srt = s.srt*7/8 + sample/8
		}
		if s.srt < time.Second {
			s.srt = time.Second
		}
		s.t1v = s.srt * 2
	} else if s.t1HadExpired {
		s.t1v = time.Duration(s.rc)*250*time.Millisecond + s.srt*2
	}
}

// ChannelBusyChanged pauses or resumes T1 as the physical channel goes busy
// or idle (lm_channel_busy), so retransmission timing doesn't penalize a
// link merely waiting its turn for channel access.
func (s *Session) ChannelBusyChanged(busy bool) {
	if busy && !s.radioChannelBusy {
		s.radioChannelBusy = true
		s.pauseT1()
	} else if !busy && s.radioChannelBusy {
		s.radioChannelBusy = false
		s.resumeT1()
	}
}

// PollTimers checks T1 and T3 expiry against now and fires the
// corresponding state-machine transitions. The caller (a Manager) invokes
// this periodically for every live session.
func (s *Session) PollTimers(now time.Time) {
	s.now = func() time.Time { return now }
	if !s.t1Exp.IsZero() && s.t1PausedAt.IsZero() && !now.Before(s.t1Exp) {
		s.t1Exp = time.Time{}
		s.t1PausedAt = time.Time{}
		s.t1HadExpired = true
		s.t1Expiry()
	}
	if !s.t3Exp.IsZero() && !now.Before(s.t3Exp) {
		s.t3Exp = time.Time{}
		s.t3Expiry()
	}
}

// NextExpiry returns the earliest pending T1/T3 deadline across this
// session, or the zero Time if nothing is pending.
func (s *Session) NextExpiry() time.Time {
	var next time.Time
	if !s.t1Exp.IsZero() && s.t1PausedAt.IsZero() {
		next = s.t1Exp
	}
	if !s.t3Exp.IsZero() && (next.IsZero() || s.t3Exp.Before(next)) {
		next = s.t3Exp
	}
	return next
}
