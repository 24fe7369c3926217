package ax25

import "fmt"

// Encode serializes the packet into its on-air AX.25 byte layout (spec §6):
// two 7-byte address fields (dest then source), control byte, optional PID
// byte, then the information part. No HDLC flags or bit-stuffing are
// applied here -- that is the framing layer's job (spec out-of-scope; this
// system uses IL2P framing only, see internal/il2p).
func (p *Packet) Encode() ([]byte, error) {
	if len(p.Info) > MaxInfoLen {
		return nil, fmt.Errorf("ax25: info part length %d exceeds max %d", len(p.Info), MaxInfoLen)
	}

	destC, srcC := addressCBits(p.CR)
	dst := encodeAddressField(p.Dest, destC, false)
	src := encodeAddressField(p.Source, srcC, true)

	ctrl, err := p.controlByte()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 14+1+len(p.Info))
	out = append(out, dst[:]...)
	out = append(out, src[:]...)
	out = append(out, ctrl)
	if p.HasPID {
		out = append(out, p.PID)
	}
	out = append(out, p.Info...)
	return out, nil
}

// addressCBits maps the CR dimension to the dest/source C bits per spec
// §6: "dest=cmd, source=res".
func addressCBits(cr CR) (destC, srcC bool) {
	switch cr {
	case CRCommand:
		return true, false
	case CRResponse:
		return false, true
	case CRBothHigh:
		return true, true
	default: // CRBothLow
		return false, false
	}
}

func classifyCR(destC, srcC bool) CR {
	switch {
	case destC && !srcC:
		return CRCommand
	case !destC && srcC:
		return CRResponse
	case destC && srcC:
		return CRBothHigh
	default:
		return CRBothLow
	}
}

// Decode parses the on-air byte layout back into a Packet. Frames shorter
// than the minimum header-only length are reported as FrameNotAX25 rather
// than an error, matching the C original's tolerant classification of
// noise as "not AX.25" instead of raising an exception.
func Decode(raw []byte) (*Packet, error) {
	if len(raw) < 15 {
		return &Packet{Type: FrameNotAX25}, nil
	}

	var dstField, srcField [7]byte
	copy(dstField[:], raw[0:7])
	copy(srcField[:], raw[7:14])

	dst, destC, _ := decodeAddressField(dstField)
	src, srcC, _ := decodeAddressField(srcField)

	ctrl := raw[14]
	ftype, pf, nr, ns := ClassifyControl(ctrl)

	p := &Packet{
		Dest:   dst,
		Source: src,
		CR:     classifyCR(destC, srcC),
		Type:   ftype,
		PF:     pf,
		NR:     nr,
		NS:     ns,
	}

	rest := raw[15:]
	switch {
	case ftype == FrameI || ftype == FrameUI:
		if len(rest) < 1 {
			return &Packet{Type: FrameNotAX25}, nil
		}
		p.HasPID = true
		p.PID = rest[0]
		p.Info = append([]byte{}, rest[1:]...)
	default:
		p.Info = append([]byte(nil), rest...)
	}

	return p, nil
}
