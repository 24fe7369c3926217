package datalink

import "github.com/kb9xyz/packetnode/internal/ax25"

// HandleFrame dispatches a decoded frame to the appropriate per-type
// handler, mirroring ax25_link.c's lm_data_indication switch (minus
// get_link_handle routing, which is the Manager's job).
func (s *Session) HandleFrame(p *ax25.Packet) {
	s.recvCounts[p.Type]++

	switch p.Type {
	case ax25.FrameI:
		s.iFrame(p.CR, p.PF, p.NR, p.NS, p.PID, p.Info)
	case ax25.FrameRR:
		s.rrRnrFrame(true, p.CR, p.PF, p.NR)
	case ax25.FrameRNR:
		s.rrRnrFrame(false, p.CR, p.PF, p.NR)
	case ax25.FrameREJ:
		s.rejFrame(p.CR, p.PF, p.NR)
	case ax25.FrameSREJ:
		s.srejFrame(p.CR, p.PF, p.NR, p.Info)
	case ax25.FrameSABM, ax25.FrameSABME:
		s.sabmFrame(p.PF)
	case ax25.FrameDISC:
		s.discFrame(p.PF)
	case ax25.FrameDM:
		s.dmFrame(p.PF)
	case ax25.FrameUA:
		s.uaFrame(p.PF)
	case ax25.FrameFRMR:
		s.frmrFrame()
	case ax25.FrameUI:
		s.uiFrame(p.CR, p.PF)
	default:
		// Other unnumbered frames (XID, TEST) and unparseable frames are
		// not acted on by the link state machine.
	}

	if len(s.iFrameQueue) > 0 && (s.state == StateConnected || s.state == StateTimerRecovery) &&
		!s.peerReceiverBusy && s.withinWindowSize() {
		s.iFramePopOffQueue()
	}
}

func (s *Session) iFrame(cr ax25.CR, p bool, nr, ns uint8, pid byte, info []byte) {
	switch s.state {
	case StateDisconnected:
		if cr == ax25.CRCommand {
			s.send(ax25.NewDM(s.Peer, s.Own, p))
		}

	case StateAwaitingConnection:
		// Ignore it, keep same state.

	case StateAwaitingRelease:
		if cr == ax25.CRCommand && p {
			s.send(ax25.NewDM(s.Peer, s.Own, true))
		}

	case StateConnected, StateTimerRecovery:
		if len(info) > ax25.MaxInfoLen {
			s.logf("info part length %d exceeds max %d", len(info), ax25.MaxInfoLen)
			s.establishDataLink()
			s.layer3Initiated = false
			s.enterNewState(StateAwaitingConnection)
			return
		}

		if !s.isGoodNR(nr) {
			s.nrErrorRecovery()
			s.enterNewState(StateAwaitingConnection)
			return
		}

		s.checkIFrameAckd(nr)

		if s.state == StateTimerRecovery && s.va == s.vs {
			s.stopT1()
			s.selectT1Value()
			s.startT3()
			s.rc = 0
			s.enterNewState(StateConnected)
		}

		if s.ownReceiverBusy {
			if p {
				s.send(ax25.NewRNR(s.Peer, s.Own, ax25.CRResponse, true, s.vr))
				s.acknowledgePending = false
			}
			return
		}

		s.iFrameContinued(p, ns, pid, info)
	}
}

func (s *Session) iFrameContinued(p bool, ns uint8, pid byte, info []byte) {
	if ns == s.vr {
		s.setVR(ax25.SeqAdd(s.vr, 1))
		s.rejectException = false
		s.dlDataIndication(pid, info)
		s.rxByNS[ns] = nil

		for s.rxByNS[s.vr] != nil {
			item := s.rxByNS[s.vr]
			s.dlDataIndication(item.pid, item.data)
			s.rxByNS[s.vr] = nil
			s.setVR(ax25.SeqAdd(s.vr, 1))
		}

		if p {
			s.send(ax25.NewRR(s.Peer, s.Own, ax25.CRResponse, true, s.vr))
			s.acknowledgePending = false
		} else if !s.acknowledgePending {
			s.acknowledgePending = true
		}
		return
	}

	if s.rejectException {
		if p {
			s.send(ax25.NewRR(s.Peer, s.Own, ax25.CRResponse, true, s.vr))
			s.acknowledgePending = false
		}
		return
	}

	if !s.isNSInWindow(ns) {
		if p {
			s.enquiryResponse(ax25.FrameI, true)
		}
		return
	}

	s.rxByNS[ns] = &txItem{pid: pid, data: append([]byte(nil), info...)}

	switch {
	case p:
		s.enquiryResponse(ax25.FrameI, true)
	case s.ownReceiverBusy:
		s.send(ax25.NewRNR(s.Peer, s.Own, ax25.CRResponse, false, s.vr))
	case s.rxByNS[ax25.SeqAdd(ns, -1)] == nil:
		// This is the start of a new gap (nothing held for the slot just
		// before ns): request the whole missing run ending at ns-1 in one
		// SREJ, per ax25_link.c's i_frame_continued/send_srej_frames.
		s.rejectException = true
		s.requestSREJForGap(ns)
	}
}

// isNSInWindow reports whether ns is a plausible out-of-order arrival --
// i.e. within the k_maxframe frames following V(R) -- rather than a wildly
// corrupted sequence number, mirroring ax25_link.c's is_ns_in_window (there
// bounded by 63 for modulo-128; here by the negotiated window size).
func (s *Session) isNSInWindow(ns uint8) bool {
	return ax25.InCyclicRange(ns, ax25.SeqAdd(s.vr, 1), ax25.SeqAdd(s.vr, s.cfg.MaxFrame+1))
}

// requestSREJForGap sends a single SREJ covering every N(S) from the start
// of the current gap up through ns-1, packing any additional N(S) values
// into the info field (ax25.NewSREJ), matching send_srej_frames' resend
// list for one contiguous run of missing frames.
func (s *Session) requestSREJForGap(ns uint8) {
	last := ax25.SeqAdd(ns, -1)
	first := last
	for first != s.vr && s.rxByNS[ax25.SeqAdd(first, -1)] == nil {
		first = ax25.SeqAdd(first, -1)
	}

	missing := []uint8{first}
	for n := first; n != last; n = ax25.SeqAdd(n, 1) {
		missing = append(missing, ax25.SeqAdd(n, 1))
	}

	f := missing[0] == s.vr
	if f {
		s.acknowledgePending = false
	}
	s.send(ax25.NewSREJ(s.Peer, s.Own, ax25.CRResponse, f, missing[0], missing[1:]))
}

func (s *Session) dlDataIndication(pid byte, data []byte) {
	s.reassemble(pid, data)
}

func (s *Session) rrRnrFrame(ready bool, cr ax25.CR, pf bool, nr uint8) {
	switch s.state {
	case StateDisconnected:
		if cr == ax25.CRCommand {
			s.send(ax25.NewDM(s.Peer, s.Own, pf))
		}

	case StateAwaitingConnection:

	case StateAwaitingRelease:
		if cr == ax25.CRCommand && pf {
			s.send(ax25.NewDM(s.Peer, s.Own, true))
		}

	case StateConnected:
		s.peerReceiverBusy = !ready
		if cr == ax25.CRCommand && pf {
			s.checkNeedForResponse(frameTypeFor(ready), cr, pf)
		}
		if s.isGoodNR(nr) {
			s.checkIFrameAckd(nr)
		} else {
			s.nrErrorRecovery()
			s.enterNewState(StateAwaitingConnection)
		}

	case StateTimerRecovery:
		s.peerReceiverBusy = !ready
		if cr == ax25.CRResponse && pf {
			s.stopT1()
			s.selectT1Value()
			if s.isGoodNR(nr) {
				s.setVA(nr)
				if s.vs == s.va {
					s.startT3()
					s.rc = 0
					s.enterNewState(StateConnected)
				} else {
					s.invokeRetransmission(nr)
					s.stopT3()
					s.startT1()
					s.acknowledgePending = false
				}
			} else {
				s.nrErrorRecovery()
				s.enterNewState(StateAwaitingConnection)
			}
			return
		}

		if cr == ax25.CRCommand && pf {
			s.enquiryResponse(frameTypeFor(ready), true)
		}
		if s.isGoodNR(nr) {
			s.setVA(nr)
			if cr == ax25.CRResponse && !pf && s.vs == s.va {
				s.stopT1()
				s.selectT1Value()
				s.startT3()
				s.rc = 0
				s.enterNewState(StateConnected)
			}
		} else {
			s.nrErrorRecovery()
			s.enterNewState(StateAwaitingConnection)
		}
	}
}

func frameTypeFor(ready bool) ax25.FrameType {
	if ready {
		return ax25.FrameRR
	}
	return ax25.FrameRNR
}

func (s *Session) rejFrame(cr ax25.CR, pf bool, nr uint8) {
	switch s.state {
	case StateDisconnected:
		if cr == ax25.CRCommand {
			s.send(ax25.NewDM(s.Peer, s.Own, pf))
		}

	case StateAwaitingConnection:

	case StateAwaitingRelease:
		if cr == ax25.CRCommand && pf {
			s.send(ax25.NewDM(s.Peer, s.Own, true))
		}

	case StateConnected:
		s.peerReceiverBusy = false
		s.checkNeedForResponse(ax25.FrameREJ, cr, pf)
		if s.isGoodNR(nr) {
			s.setVA(nr)
			s.stopT1()
			s.stopT3()
			s.selectT1Value()
			s.invokeRetransmission(nr)
			s.startT1()
			s.acknowledgePending = false
		} else {
			s.nrErrorRecovery()
			s.enterNewState(StateAwaitingConnection)
		}

	case StateTimerRecovery:
		s.peerReceiverBusy = false
		if cr == ax25.CRResponse && pf {
			s.stopT1()
			s.selectT1Value()
			if s.isGoodNR(nr) {
				s.setVA(nr)
				if s.vs == s.va {
					s.startT3()
					s.rc = 0
					s.enterNewState(StateConnected)
				} else {
					s.invokeRetransmission(nr)
					s.stopT3()
					s.startT1()
					s.acknowledgePending = false
				}
			} else {
				s.nrErrorRecovery()
				s.enterNewState(StateAwaitingConnection)
			}
			return
		}

		if cr == ax25.CRCommand && pf {
			s.enquiryResponse(ax25.FrameREJ, true)
		}
		if s.isGoodNR(nr) {
			s.setVA(nr)
			if s.vs != s.va {
				s.invokeRetransmission(nr)
				s.stopT3()
				s.startT1()
				s.acknowledgePending = false
			}
		} else {
			s.nrErrorRecovery()
			s.enterNewState(StateAwaitingConnection)
		}
	}
}

func (s *Session) srejFrame(cr ax25.CR, f bool, nr uint8, info []byte) {
	switch s.state {
	case StateDisconnected, StateAwaitingConnection, StateAwaitingRelease:

	case StateConnected:
		s.peerReceiverBusy = false
		if !s.isGoodNR(nr) {
			s.nrErrorRecovery()
			s.enterNewState(StateAwaitingConnection)
			return
		}
		if f {
			s.setVA(nr)
		}
		s.stopT1()
		s.startT3()
		s.selectT1Value()
		if s.resendForSREJ(nr, info) > 0 {
			s.stopT3()
			s.startT1()
			s.acknowledgePending = false
		}

	case StateTimerRecovery:
		s.peerReceiverBusy = false
		s.stopT1()
		s.selectT1Value()
		if !s.isGoodNR(nr) {
			s.nrErrorRecovery()
			s.enterNewState(StateAwaitingConnection)
			return
		}
		if f {
			s.setVA(nr)
		}
		if s.vs == s.va {
			s.startT3()
			s.rc = 0
			s.enterNewState(StateConnected)
		} else if s.resendForSREJ(nr, info) > 0 {
			s.stopT3()
			s.startT1()
			s.acknowledgePending = false
		}
	}
}

// resendForSREJ retransmits the I frame for N(S)=nr plus any additional
// N(S) values packed into info (spec's multi-SREJ supplement, see
// ax25.NewSREJ).
func (s *Session) resendForSREJ(nr uint8, info []byte) int {
	sent := 0
	if item := s.txByNS[nr]; item != nil {
		s.send(ax25.NewI(s.Peer, s.Own, false, s.vr, nr, item.pid, item.data))
		sent++
	} else {
		s.logf("SREJ for N(S)=%d but nothing retained to resend", nr)
	}
	for _, b := range info {
		ns := (b >> 5) & 0x07
		if item := s.txByNS[ns]; item != nil {
			s.send(ax25.NewI(s.Peer, s.Own, false, s.vr, ns, item.pid, item.data))
			sent++
		} else {
			s.logf("multi-SREJ for N(S)=%d but nothing retained to resend", ns)
		}
	}
	return sent
}

func (s *Session) sabmFrame(p bool) {
	switch s.state {
	case StateDisconnected:
		s.send(ax25.NewUA(s.Peer, s.Own, p))
		s.clearExceptionConditions()
		s.setVS(0)
		s.setVA(0)
		s.setVR(0)
		s.log.Infof("connected to %s", s.Peer)
		s.srt = s.cfg.FrackSec / 2
		s.t1v = s.cfg.FrackSec
		s.startT3()
		s.rc = 0
		s.enterNewState(StateConnected)

	case StateAwaitingConnection:
		s.send(ax25.NewUA(s.Peer, s.Own, p))

	case StateAwaitingRelease:
		s.send(ax25.NewDM(s.Peer, s.Own, p))

	case StateConnected, StateTimerRecovery:
		s.send(ax25.NewUA(s.Peer, s.Own, p))
		s.clearExceptionConditions()
		if s.vs != s.va {
			s.discardIQueue()
		}
		s.stopT1()
		s.startT3()
		s.setVS(0)
		s.setVA(0)
		s.setVR(0)
		s.rc = 0
		s.enterNewState(StateConnected)
	}
}

func (s *Session) discFrame(p bool) {
	switch s.state {
	case StateDisconnected, StateAwaitingConnection:
		s.send(ax25.NewDM(s.Peer, s.Own, p))

	case StateAwaitingRelease:
		s.send(ax25.NewUA(s.Peer, s.Own, p))

	case StateConnected, StateTimerRecovery:
		s.discardIQueue()
		s.send(ax25.NewUA(s.Peer, s.Own, p))
		s.log.Infof("disconnected from %s", s.Peer)
		s.stopT1()
		s.stopT3()
		s.enterNewState(StateDisconnected)
	}
}

func (s *Session) dmFrame(f bool) {
	switch s.state {
	case StateDisconnected:

	case StateAwaitingConnection:
		if f {
			s.discardIQueue()
			s.log.Infof("disconnected from %s", s.Peer)
			s.stopT1()
			s.enterNewState(StateDisconnected)
		}

	case StateAwaitingRelease:
		if f {
			s.log.Infof("disconnected from %s", s.Peer)
			s.stopT1()
			s.enterNewState(StateDisconnected)
		}

	case StateConnected, StateTimerRecovery:
		s.log.Infof("disconnected from %s", s.Peer)
		s.discardIQueue()
		s.stopT1()
		s.stopT3()
		s.enterNewState(StateDisconnected)
	}
}

func (s *Session) uaFrame(f bool) {
	switch s.state {
	case StateDisconnected:

	case StateAwaitingConnection:
		if !f {
			return
		}
		if s.layer3Initiated {
			s.log.Infof("connected to %s", s.Peer)
		} else if s.vs != s.va {
			s.srt = s.cfg.FrackSec / 2
			s.t1v = s.cfg.FrackSec
			s.startT3()
			s.log.Infof("connected to %s", s.Peer)
		}
		s.stopT1()
		s.startT3()
		s.setVS(0)
		s.setVA(0)
		s.setVR(0)
		s.selectT1Value()
		s.rc = 0
		s.enterNewState(StateConnected)

	case StateAwaitingRelease:
		if f {
			s.log.Infof("disconnected from %s", s.Peer)
			s.stopT1()
			s.enterNewState(StateDisconnected)
		}

	case StateConnected, StateTimerRecovery:
		s.establishDataLink()
		s.layer3Initiated = false
		s.enterNewState(StateAwaitingConnection)
	}
}

func (s *Session) frmrFrame() {
	switch s.state {
	case StateDisconnected, StateAwaitingConnection, StateAwaitingRelease:

	case StateConnected, StateTimerRecovery:
		s.establishDataLink()
		s.layer3Initiated = false
		s.enterNewState(StateAwaitingConnection)
	}
}

func (s *Session) uiFrame(cr ax25.CR, pf bool) {
	if cr != ax25.CRCommand || !pf {
		return
	}
	switch s.state {
	case StateDisconnected, StateAwaitingConnection, StateAwaitingRelease:
		s.send(ax25.NewDM(s.Peer, s.Own, pf))
	case StateConnected, StateTimerRecovery:
		s.enquiryResponse(ax25.FrameUI, pf)
	}
}
