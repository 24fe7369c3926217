package datalink

import "github.com/kb9xyz/packetnode/internal/ax25"

func (s *Session) clearExceptionConditions() {
	s.peerReceiverBusy = false
	s.rejectException = false
	s.ownReceiverBusy = false
	s.acknowledgePending = false
	for i := range s.rxByNS {
		s.rxByNS[i] = nil
	}
}

func (s *Session) establishDataLink() {
	s.clearExceptionConditions()
	s.rc = 1
	s.send(ax25.NewSABM(s.Peer, s.Own, true))
	s.stopT3()
	s.startT1()
}

func (s *Session) nrErrorRecovery() {
	s.establishDataLink()
	s.layer3Initiated = false
}

func (s *Session) transmitEnquiry() {
	frameType := ax25.FrameRR
	if s.ownReceiverBusy {
		frameType = ax25.FrameRNR
	}
	if frameType == ax25.FrameRNR {
		s.send(ax25.NewRNR(s.Peer, s.Own, ax25.CRCommand, true, s.vr))
	} else {
		s.send(ax25.NewRR(s.Peer, s.Own, ax25.CRCommand, true, s.vr))
	}
	s.acknowledgePending = false
	s.startT1()
}

func (s *Session) enquiryResponse(frameType ax25.FrameType, f bool) {
	if f && (frameType == ax25.FrameRR || frameType == ax25.FrameRNR || frameType == ax25.FrameI) {
		if s.ownReceiverBusy {
			s.send(ax25.NewRNR(s.Peer, s.Own, ax25.CRResponse, f, s.vr))
		} else {
			s.send(ax25.NewRR(s.Peer, s.Own, ax25.CRResponse, f, s.vr))
		}
		s.acknowledgePending = false
		return
	}

	if s.ownReceiverBusy {
		s.send(ax25.NewRNR(s.Peer, s.Own, ax25.CRResponse, f, s.vr))
	} else {
		s.send(ax25.NewRR(s.Peer, s.Own, ax25.CRResponse, f, s.vr))
	}
	s.acknowledgePending = false
}

func (s *Session) checkNeedForResponse(frameType ax25.FrameType, cr ax25.CR, pf bool) {
	if cr == ax25.CRCommand && pf {
		s.enquiryResponse(frameType, true)
	}
}

func (s *Session) invokeRetransmission(nrInput uint8) {
	if s.txByNS[nrInput] == nil {
		s.logf("cannot resend starting with N(S)=%d, not retained", nrInput)
		return
	}
	localVS := nrInput
	sent := 0
	for {
		if item := s.txByNS[localVS]; item != nil {
			s.send(ax25.NewI(s.Peer, s.Own, false, s.vr, localVS, item.pid, item.data))
			sent++
		} else {
			s.logf("need to retransmit N(S)=%d for REJ but it is not retained", localVS)
		}
		localVS = ax25.SeqAdd(localVS, 1)
		if localVS == s.vs {
			break
		}
	}
	if sent == 0 {
		s.logf("nothing retransmitted for N(R)=%d", nrInput)
	}
}

func (s *Session) checkIFrameAckd(nr uint8) {
	switch {
	case s.peerReceiverBusy:
		s.setVA(nr)
		s.startT3()
		if !s.isT1Running() {
			s.startT1()
		}
	case nr == s.vs:
		s.setVA(nr)
		s.stopT1()
		s.startT3()
		s.selectT1Value()
	case nr != s.va:
		s.setVA(nr)
		s.startT1()
	}
}

func (s *Session) discardIQueue() {
	s.iFrameQueue = nil
}

// iFramePopOffQueue drains queued outbound I frames within the current
// window, handing each to Hooks.Send (which is expected to enqueue it on
// the transmit/CSMA layer -- see internal/xmit). This corresponds to
// i_frame_pop_off_queue, simplified since this port has no separate
// "seize confirm" event: the caller drives popping whenever window space
// may have opened up (after receiving an ack, or right after enqueueing).
func (s *Session) iFramePopOffQueue() {
	switch s.state {
	case StateAwaitingConnection:
		if s.layer3Initiated && len(s.iFrameQueue) > 0 {
			s.iFrameQueue = s.iFrameQueue[1:]
		}

	case StateConnected, StateTimerRecovery:
		for !s.peerReceiverBusy && len(s.iFrameQueue) > 0 && s.withinWindowSize() {
			item := s.iFrameQueue[0]
			s.iFrameQueue = s.iFrameQueue[1:]

			ns := s.vs
			s.send(ax25.NewI(s.Peer, s.Own, false, s.vr, ns, item.pid, item.data))

			s.txByNS[ns] = item
			s.setVS(ax25.SeqAdd(s.vs, 1))
			s.acknowledgePending = false
			s.stopT3()
			s.startT1()
		}
	}
}

// SendData queues application data for transmission as I frames (the
// DL-DATA request primitive). The payload is queued as given: data longer
// than Config.Paclen is not segmented and goes out as a single I frame.
func (s *Session) SendData(pid byte, data []byte) {
	s.iFrameQueue = append(s.iFrameQueue, &txItem{pid: pid, data: append([]byte(nil), data...)})
	if s.state == StateConnected || s.state == StateTimerRecovery {
		s.iFramePopOffQueue()
	}
}

// Connect issues a DL-CONNECT request: if disconnected, start the
// connection attempt; otherwise this is a no-op (already connecting or
// connected).
func (s *Session) Connect() {
	if s.state != StateDisconnected {
		return
	}
	s.establishDataLink()
	s.layer3Initiated = true
	s.enterNewState(StateAwaitingConnection)
}

// Disconnect issues a DL-DISCONNECT request.
func (s *Session) Disconnect() {
	switch s.state {
	case StateDisconnected:
	case StateAwaitingConnection:
		s.discardIQueue()
		s.enterNewState(StateDisconnected)
	case StateAwaitingRelease:
	case StateConnected, StateTimerRecovery:
		s.discardIQueue()
		s.rc = 0
		s.send(ax25.NewDISC(s.Peer, s.Own, true))
		s.startT1()
		s.stopT3()
		s.enterNewState(StateAwaitingRelease)
	}
}

func (s *Session) t1Expiry() {
	switch s.state {
	case StateDisconnected:

	case StateAwaitingConnection:
		if s.rc == s.cfg.Retry {
			s.discardIQueue()
			s.logf("failed to connect to %s after %d tries", s.Peer, s.cfg.Retry)
			s.enterNewState(StateDisconnected)
			return
		}
		s.rc++
		if s.rc > s.peakRC {
			s.peakRC = s.rc
		}
		s.send(ax25.NewSABM(s.Peer, s.Own, true))
		s.selectT1Value()
		s.startT1()

	case StateAwaitingRelease:
		if s.rc == s.cfg.Retry {
			s.log.Infof("disconnected from %s", s.Peer)
			s.enterNewState(StateDisconnected)
			return
		}
		s.rc++
		if s.rc > s.peakRC {
			s.peakRC = s.rc
		}
		s.send(ax25.NewDISC(s.Peer, s.Own, true))
		s.selectT1Value()
		s.startT1()

	case StateConnected:
		s.rc = 1
		s.transmitEnquiry()
		s.enterNewState(StateTimerRecovery)

	case StateTimerRecovery:
		if s.rc == s.cfg.Retry {
			s.logf("disconnected from %s due to timeouts", s.Peer)
			s.discardIQueue()
			s.send(ax25.NewDM(s.Peer, s.Own, false))
			s.enterNewState(StateDisconnected)
			return
		}
		s.rc++
		if s.rc > s.peakRC {
			s.peakRC = s.rc
		}
		s.transmitEnquiry()
	}
}

func (s *Session) t3Expiry() {
	if s.state == StateConnected {
		s.rc = 1
		s.transmitEnquiry()
		s.enterNewState(StateTimerRecovery)
	}
}
