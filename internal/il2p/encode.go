package il2p

import "github.com/kb9xyz/packetnode/internal/ax25"

// Encode produces the full on-air byte sequence for p: sync word, coded
// header, then coded payload (if any). This is the counterpart consumed
// bit-by-bit by Receiver.ProcessBit on the far end.
func Encode(p *ax25.Packet) ([]byte, error) {
	hdr, _, err := EncodeHeader(p)
	if err != nil {
		return nil, err
	}
	coded := EncodeHeaderBytes(hdr)

	out := make([]byte, 0, SyncWordSize+len(coded)+len(p.Info)+ParitySymbolsPerBlock*MaxPayloadBlocks)
	out = append(out, byte(SyncWord>>16), byte(SyncWord>>8), byte(SyncWord))
	out = append(out, coded[:]...)

	if len(p.Info) > 0 {
		payload, err := EncodePayload(p.Info)
		if err != nil {
			return nil, err
		}
		out = append(out, payload...)
	}
	return out, nil
}

// FeedBytes is a convenience for tests and non-demodulator callers: it
// pushes raw encoded bytes (sync word included) into the receiver MSB
// first, bit by bit.
func (r *Receiver) FeedBytes(b []byte) {
	for _, by := range b {
		for bit := 7; bit >= 0; bit-- {
			r.ProcessBit(int((by >> uint(bit)) & 1))
		}
	}
}
