// Package il2p implements the IL2P-style framing layer (spec §4.3-§4.5):
// the 13-byte header codec, the payload block-splitting/RS/scramble codec,
// and the receive bit-state machine. Grounded on
// original_source/src/il2p_header.c, il2p_payload.c, and il2p_rec.c (the
// IPNode fork of Dire Wolf), which this package reimplements in idiomatic
// Go.
package il2p

import (
	"fmt"

	"github.com/kb9xyz/packetnode/internal/ax25"
	"github.com/kb9xyz/packetnode/internal/rs"
	"github.com/kb9xyz/packetnode/internal/scramble"
)

const (
	SyncWordSize = 3
	SyncWord     = 0xF15E48

	HeaderSize   = 13
	HeaderParity = 2

	MaxPayloadSize         = 1023
	MaxPayloadBlocks       = 5
	ParitySymbolsPerBlock  = 16
	MaxEncodedPayloadSize  = MaxPayloadSize + MaxPayloadBlocks*ParitySymbolsPerBlock
	MaxPacketSize          = SyncWordSize + HeaderSize + HeaderParity + MaxEncodedPayloadSize
	blockSizeForSplit      = 239
)

var headerRS, _ = rs.New(HeaderParity)

func asciiToSixbit(a byte) byte {
	if a >= ' ' && a <= '_' {
		return a - ' '
	}
	return 31 // '?' for anything invalid
}

func sixbitToAscii(s byte) byte {
	return s + ' '
}

// setField mirrors il2p_header.c's set_field(): the value's bits are spread
// one per header byte, written into bit bitNum of hdr[lsbIndex],
// hdr[lsbIndex-1], ... (LSB of value goes into hdr[lsbIndex]).
func setField(hdr *[HeaderSize]byte, bitNum, lsbIndex, width, value int) {
	for width > 0 && value != 0 {
		if value&1 != 0 {
			hdr[lsbIndex] |= 1 << bitNum
		}
		value >>= 1
		lsbIndex--
		width--
	}
}

func getField(hdr *[HeaderSize]byte, bitNum, lsbIndex, width int) int {
	result := 0
	lsbIndex -= width - 1
	for width > 0 {
		result <<= 1
		if hdr[lsbIndex]&(1<<bitNum) != 0 {
			result |= 1
		}
		lsbIndex++
		width--
	}
	return result
}

func setUI(hdr *[HeaderSize]byte, v int)      { setField(hdr, 6, 0, 1, v) }
func setPID(hdr *[HeaderSize]byte, v int)     { setField(hdr, 6, 4, 4, v) }
func setControl(hdr *[HeaderSize]byte, v int) { setField(hdr, 6, 11, 7, v) }
func setFECLevel(hdr *[HeaderSize]byte, v int) { setField(hdr, 7, 0, 1, v) }
func setHdrType(hdr *[HeaderSize]byte, v int)  { setField(hdr, 7, 1, 1, v) }
func setPayloadByteCount(hdr *[HeaderSize]byte, v int) { setField(hdr, 7, 11, 10, v) }

func getUI(hdr *[HeaderSize]byte) int      { return getField(hdr, 6, 0, 1) }
func getPID(hdr *[HeaderSize]byte) int     { return getField(hdr, 6, 4, 4) }
func getControl(hdr *[HeaderSize]byte) int { return getField(hdr, 6, 11, 7) }
func getPayloadByteCount(hdr *[HeaderSize]byte) int { return getField(hdr, 7, 11, 10) }

// axToIL2PPID maps an AX.25 8-bit PID to the IL2P 4-bit encoded form, or -1
// if there is no mapping (EncodeHeader rejects such frames with an error).
func axToIL2PPID(pid byte) int {
	switch {
	case pid&0x30 == 0x20:
		return 0x2 // AX.25 Layer 3
	case pid&0x30 == 0x10:
		return 0x2
	}
	switch pid {
	case 0x01:
		return 0x3
	case 0x06:
		return 0x4
	case 0x07:
		return 0x5
	case 0x08:
		return 0x6
	case 0xcc:
		return 0xb
	case 0xcd:
		return 0xc
	case 0xce:
		return 0xd
	case 0xcf:
		return 0xe
	case 0xf0:
		return 0xf
	}
	return -1
}

var il2pPIDToAX = [16]byte{
	0xf0, 0xf0, 0x20, 0x01, 0x06, 0x07, 0x08, 0xf0,
	0xf0, 0xf0, 0xf0, 0xcc, 0xcd, 0xce, 0xcf, 0xf0,
}

// EncodeHeader builds the IL2P type-1 header (spec §4.3) for p. It returns
// the unscrambled, un-parity-coded 13-byte header and the number of
// payload bytes to follow (0 for frames with no information part). Only
// 2-address, modulo-8 frames are supported (type-1 header constraint);
// anything else is rejected -- there is no type-0 fallback in this system
// since digipeater relay and mod-128 are both non-goals.
func EncodeHeader(p *ax25.Packet) (hdr [HeaderSize]byte, payloadLen int, err error) {
	for i, c := range padCall(p.Dest.Call) {
		if c < ' ' || c > '_' {
			return hdr, 0, fmt.Errorf("il2p: invalid destination callsign character %q", c)
		}
		hdr[i] = asciiToSixbit(c)
	}
	for i, c := range padCall(p.Source.Call) {
		if c < ' ' || c > '_' {
			return hdr, 0, fmt.Errorf("il2p: invalid source callsign character %q", c)
		}
		hdr[6+i] = asciiToSixbit(c)
	}
	hdr[12] = (p.Dest.SSID << 4) | p.Source.SSID

	cBit := 0
	if p.CR == ax25.CRCommand || p.CR == ax25.CRBothHigh {
		cBit = 1
	}
	pf := 0
	if p.PF {
		pf = 1
	}

	switch {
	case p.Type.IsSupervisory():
		setUI(&hdr, 0)
		setPID(&hdr, 0)
		ss := map[ax25.FrameType]int{ax25.FrameRR: 0, ax25.FrameRNR: 1, ax25.FrameREJ: 2, ax25.FrameSREJ: 3}[p.Type]
		setControl(&hdr, (pf<<6)|(int(p.NR)<<3)|(cBit<<2)|ss)

	case p.Type == ax25.FrameUI:
		setUI(&hdr, 1)
		pid := axToIL2PPID(p.PID)
		if pid < 0 {
			return hdr, 0, fmt.Errorf("il2p: unsupported UI PID 0x%02x", p.PID)
		}
		setPID(&hdr, pid)
		setControl(&hdr, (pf<<6)|(cBit<<2)|(5<<3))

	case p.Type == ax25.FrameSABM, p.Type == ax25.FrameDISC, p.Type == ax25.FrameDM,
		p.Type == ax25.FrameUA, p.Type == ax25.FrameFRMR:
		setPID(&hdr, 1)
		opcode := map[ax25.FrameType]int{
			ax25.FrameSABM: 0, ax25.FrameDISC: 1, ax25.FrameDM: 2, ax25.FrameUA: 3, ax25.FrameFRMR: 4,
		}[p.Type]
		setControl(&hdr, (pf<<6)|(cBit<<2)|(opcode<<3))

	case p.Type == ax25.FrameI:
		setUI(&hdr, 0)
		pid := axToIL2PPID(p.PID)
		if pid < 0 {
			return hdr, 0, fmt.Errorf("il2p: unsupported I-frame PID 0x%02x", p.PID)
		}
		setPID(&hdr, pid)
		setControl(&hdr, (pf<<6)|(int(p.NR)<<3)|int(p.NS))

	default:
		return hdr, 0, fmt.Errorf("il2p: frame type %v has no type-1 header encoding", p.Type)
	}

	setFECLevel(&hdr, 1)
	setHdrType(&hdr, 1)

	if len(p.Info) > MaxPayloadSize {
		return hdr, 0, fmt.Errorf("il2p: info length %d exceeds max %d", len(p.Info), MaxPayloadSize)
	}
	setPayloadByteCount(&hdr, len(p.Info))

	return hdr, len(p.Info), nil
}

func padCall(call string) [6]byte {
	var out [6]byte
	for i := range out {
		if i < len(call) {
			out[i] = call[i]
		} else {
			out[i] = ' '
		}
	}
	return out
}

// DecodeHeader reverses EncodeHeader, returning a Packet with Dest, Source,
// CR, Type, PF, NR, NS, PID populated (Info is filled in separately once
// the payload has been decoded). It expects a header already RS-corrected
// by ClarifyHeader, which is what reports the count of corrected symbols.
func DecodeHeader(hdr [HeaderSize]byte) (*ax25.Packet, error) {
	var destCall, srcCall [6]byte
	for i := 0; i < 6; i++ {
		destCall[i] = sixbitToAscii(hdr[i] & 0x3f)
	}
	for i := 0; i < 6; i++ {
		srcCall[i] = sixbitToAscii(hdr[i+6] & 0x3f)
	}

	dest := ax25.Address{Call: trimTrailingSpace(destCall[:]), SSID: (hdr[12] >> 4) & 0xf}
	src := ax25.Address{Call: trimTrailingSpace(srcCall[:]), SSID: hdr[12] & 0xf}
	if err := validateCall(dest.Call); err != nil {
		return nil, err
	}
	if err := validateCall(src.Call); err != nil {
		return nil, err
	}

	pid := getPID(&hdr)
	ui := getUI(&hdr)
	control := getControl(&hdr)

	p := &ax25.Packet{Dest: dest, Source: src}

	switch {
	case pid == 0: // S frame
		if control&0x04 != 0 {
			p.CR = ax25.CRCommand
		} else {
			p.CR = ax25.CRResponse
		}
		switch control & 0x03 {
		case 0:
			p.Type = ax25.FrameRR
		case 1:
			p.Type = ax25.FrameRNR
		case 2:
			p.Type = ax25.FrameREJ
		default:
			p.Type = ax25.FrameSREJ
		}
		p.NR = uint8((control >> 3) & 0x07)
		p.PF = (control>>6)&0x01 != 0

	case pid == 1: // U frame other than UI
		if control&0x04 != 0 {
			p.CR = ax25.CRCommand
		} else {
			p.CR = ax25.CRResponse
		}
		switch (control >> 3) & 0x7 {
		case 0:
			p.Type = ax25.FrameSABM
		case 1:
			p.Type = ax25.FrameDISC
		case 2:
			p.Type = ax25.FrameDM
		case 3:
			p.Type = ax25.FrameUA
		default:
			p.Type = ax25.FrameFRMR
		}
		p.PF = (control>>6)&0x01 != 0

	case ui != 0: // UI
		if control&0x04 != 0 {
			p.CR = ax25.CRCommand
		} else {
			p.CR = ax25.CRResponse
		}
		p.Type = ax25.FrameUI
		p.PF = (control>>6)&0x01 != 0
		p.PID = il2pPIDToAX[pid]
		p.HasPID = true

	default: // I
		p.CR = ax25.CRCommand
		p.Type = ax25.FrameI
		p.PF = (control>>6)&0x01 != 0
		p.NR = uint8((control >> 3) & 0x7)
		p.NS = uint8(control & 0x7)
		p.PID = il2pPIDToAX[pid]
		p.HasPID = true
	}

	return p, nil
}

// HeaderPayloadLen returns the expected info/payload byte count carried by
// an already-decoded header.
func HeaderPayloadLen(hdr [HeaderSize]byte) int {
	return getPayloadByteCount(&hdr)
}

func trimTrailingSpace(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == ' ' {
		n--
	}
	return string(b[:n])
}

func validateCall(call string) error {
	for _, c := range call {
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return fmt.Errorf("il2p: invalid character %q in callsign %q", c, call)
		}
	}
	return nil
}

// EncodeHeaderBytes scrambles hdr and appends 2 RS parity bytes, producing
// the 15 on-air bytes that follow the sync word.
func EncodeHeaderBytes(hdr [HeaderSize]byte) [HeaderSize + HeaderParity]byte {
	var out [HeaderSize + HeaderParity]byte
	scrambled := scramble.Block(hdr[:])
	copy(out[:HeaderSize], scrambled)
	parity := headerRS.Encode(scrambled)
	copy(out[HeaderSize:], parity)
	return out
}

// ClarifyHeader corrects (if needed) and descrambles a received 15-byte
// header, returning the number of symbols corrected or an error if the
// header is uncorrectable.
func ClarifyHeader(received [HeaderSize + HeaderParity]byte) (hdr [HeaderSize]byte, corrected int, err error) {
	data := append([]byte(nil), received[:HeaderSize]...)
	parity := append([]byte(nil), received[HeaderSize:]...)
	corrected, err = headerRS.Decode(data, parity)
	if err != nil {
		return hdr, 0, err
	}
	plain := scramble.Deblock(data)
	copy(hdr[:], plain)
	return hdr, corrected, nil
}
