package il2p

import "github.com/kb9xyz/packetnode/internal/ax25"

// recvState is the receive bit-state machine of spec §4.5, grounded on
// original_source/src/il2p_rec.c's il2p_rec_bit() and the teacher's pure-Go
// src/il2p_rec.go.
type recvState int

const (
	stateSearching recvState = iota
	stateHeader
	statePayload
)

// Frame is a fully decoded IL2P frame delivered by the receiver: the
// reconstructed AX.25 packet plus FEC quality counters used for logging
// and link statistics.
type Frame struct {
	Packet             *ax25.Packet
	HeaderCorrected    int
	PayloadCorrected   int
}

// Receiver accumulates bits from the demodulator and emits Frames as they
// are successfully decoded. It is not safe for concurrent use; the caller
// (the RX audio thread, spec §5) owns a single Receiver per channel.
type Receiver struct {
	state recvState

	shiftReg uint32 // rolling 24-bit window used for sync acquisition

	bitCount int
	curByte  byte
	bytes    []byte

	headerBuf [HeaderSize + HeaderParity]byte

	expectedPayloadLen int // decoded (unencoded) info length, from the header
	encodedPayloadLen  int

	pendingPacket          *ax25.Packet
	pendingHeaderCorrected int

	onFrame func(Frame)
	onError func(error)
}

// NewReceiver constructs a Receiver that calls onFrame for each
// successfully decoded frame and onError for frames that fail FEC
// correction (logged and discarded, never fatal, per spec §7).
func NewReceiver(onFrame func(Frame), onError func(error)) *Receiver {
	return &Receiver{onFrame: onFrame, onError: onError}
}

const syncAcquireMask = 0xFFFFFF

// ProcessBit feeds one demodulated bit (0 or 1) into the receiver. It
// mirrors il2p_rec_bit's per-bit dispatch over the four states (Searching
// folds into Header once sync is found; there is no distinct "Decode"
// state here since decoding happens synchronously once all payload bytes
// have arrived).
func (r *Receiver) ProcessBit(bit int) {
	switch r.state {
	case stateSearching:
		r.shiftReg = ((r.shiftReg << 1) | uint32(bit&1)) & syncAcquireMask
		if hammingDistance24(r.shiftReg, SyncWord) <= 1 {
			r.beginHeader()
		}

	case stateHeader:
		r.accumulateBit(bit)
		if len(r.bytes) == HeaderSize+HeaderParity {
			copy(r.headerBuf[:], r.bytes)
			r.decodeHeaderAndAdvance()
		}

	case statePayload:
		r.accumulateBit(bit)
		if len(r.bytes) == r.encodedPayloadLen {
			r.decodePayloadAndEmit()
		}
	}
}

func (r *Receiver) beginHeader() {
	r.state = stateHeader
	r.bitCount = 0
	r.curByte = 0
	r.bytes = r.bytes[:0]
}

func (r *Receiver) accumulateBit(bit int) {
	r.curByte = (r.curByte << 1) | byte(bit&1)
	r.bitCount++
	if r.bitCount == 8 {
		r.bytes = append(r.bytes, r.curByte)
		r.curByte = 0
		r.bitCount = 0
	}
}

func (r *Receiver) decodeHeaderAndAdvance() {
	hdr, corrected, err := ClarifyHeader(r.headerBuf)
	if err != nil {
		r.fail(err)
		return
	}

	infoLen := HeaderPayloadLen(hdr)
	encodedLen, err := EncodedPayloadLen(infoLen)
	if err != nil {
		r.fail(err)
		return
	}

	packet, err := DecodeHeader(hdr)
	if err != nil {
		r.fail(err)
		return
	}

	r.pendingHeaderCorrected = corrected
	r.pendingPacket = packet

	if encodedLen == 0 {
		packet.Info = []byte{}
		r.emit(Frame{Packet: packet, HeaderCorrected: corrected})
		r.resetToSearching()
		return
	}

	r.expectedPayloadLen = infoLen
	r.encodedPayloadLen = encodedLen
	r.state = statePayload
	r.bitCount = 0
	r.curByte = 0
	r.bytes = r.bytes[:0]
}

func (r *Receiver) decodePayloadAndEmit() {
	info, corrected, err := DecodePayload(r.bytes, r.expectedPayloadLen)
	if err != nil {
		r.fail(err)
		return
	}
	r.pendingPacket.Info = info
	r.emit(Frame{Packet: r.pendingPacket, HeaderCorrected: r.pendingHeaderCorrected, PayloadCorrected: corrected})
	r.resetToSearching()
}

func (r *Receiver) resetToSearching() {
	r.state = stateSearching
	r.shiftReg = 0
	r.bytes = r.bytes[:0]
	r.bitCount = 0
	r.curByte = 0
	r.pendingPacket = nil
	r.pendingHeaderCorrected = 0
}

func (r *Receiver) emit(f Frame) {
	if r.onFrame != nil {
		r.onFrame(f)
	}
}

// Busy reports whether the receiver has synced onto a frame and is
// still accumulating its header or payload, used as the software
// carrier-detect signal for channel access (internal/csma.DCDSource)
// in place of a hardware squelch line.
func (r *Receiver) Busy() bool {
	return r.state != stateSearching
}

func (r *Receiver) fail(err error) {
	if r.onError != nil {
		r.onError(err)
	}
	r.resetToSearching()
}

func hammingDistance24(a, b uint32) int {
	x := (a ^ b) & syncAcquireMask
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}
