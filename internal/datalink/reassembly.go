package datalink

// PIDSegmentationFragment is the AX.25 PID value marking a segmented
// information field (AX25_PID_SEGMENTATION_FRAGMENT in the original).
const PIDSegmentationFragment = 0x08

// reassemblyBuffer accumulates segments of a PID-0x08 fragmented payload,
// grounded on ax25_link.c's dl_data_indication reassembler ("Reassembler
// Protocol Error Z" conditions).
type reassemblyBuffer struct {
	following int // remaining segment count after this one
	pid       byte
	data      []byte
}

// reassemble implements dl_data_indication: first segments carry a
// following-count byte and the real PID; continuation segments carry only
// the following-count byte. A fully reassembled payload is delivered via
// Hooks.Deliver with its original PID.
func (s *Session) reassemble(pid byte, data []byte) {
	if s.reassembly == nil {
		if pid != PIDSegmentationFragment {
			s.deliver(pid, data)
			return
		}
		if len(data) < 2 {
			s.logf("reassembler protocol error: segment too short")
			return
		}
		if data[0]&0x80 == 0 {
			s.logf("reassembler protocol error: not first segment in ready state")
			return
		}
		s.reassembly = &reassemblyBuffer{
			following: int(data[0] & 0x7f),
			pid:       data[1],
			data:      append([]byte(nil), data[2:]...),
		}
		return
	}

	// Already reassembling.
	if pid != PIDSegmentationFragment {
		s.logf("reassembler protocol error: non-segment while reassembling")
		s.reassembly = nil
		return
	}
	if len(data) < 1 {
		s.logf("reassembler protocol error: empty continuation segment")
		s.reassembly = nil
		return
	}
	if data[0]&0x80 != 0 {
		s.logf("reassembler protocol error: first segment while reassembling")
		s.reassembly = nil
		return
	}
	following := int(data[0] & 0x7f)
	if following != s.reassembly.following-1 {
		s.logf("reassembler protocol error: segments out of sequence")
		s.reassembly = nil
		return
	}

	s.reassembly.following = following
	s.reassembly.data = append(s.reassembly.data, data[1:]...)

	if s.reassembly.following == 0 {
		s.deliver(s.reassembly.pid, s.reassembly.data)
		s.reassembly = nil
	}
}
