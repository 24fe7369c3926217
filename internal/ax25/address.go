// Package ax25 implements the AX.25 v2.0 packet data model: addresses,
// frame types, and the wire layout of §3/§6 of SPEC_FULL.md. It is grounded
// on ax25_pad.go/ax25_pad2.go's address-shift and control-byte conventions,
// reimplemented without cgo.
package ax25

import (
	"fmt"
	"strings"
)

// Address is a 6-character uppercase alphanumeric callsign plus a 4-bit
// SSID (0-15), per spec §3.
type Address struct {
	Call string // up to 6 uppercase alphanumeric chars, space-padded on the wire
	SSID uint8  // 0-15
}

// ParseAddress parses "CALL" or "CALL-SSID".
func ParseAddress(s string) (Address, error) {
	call, ssidStr, hasSSID := strings.Cut(s, "-")
	call = strings.ToUpper(strings.TrimSpace(call))
	if len(call) == 0 || len(call) > 6 {
		return Address{}, fmt.Errorf("ax25: callsign %q must be 1-6 characters", call)
	}
	for _, r := range call {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return Address{}, fmt.Errorf("ax25: callsign %q must be alphanumeric", call)
		}
	}
	var ssid int
	if hasSSID {
		if _, err := fmt.Sscanf(ssidStr, "%d", &ssid); err != nil || ssid < 0 || ssid > 15 {
			return Address{}, fmt.Errorf("ax25: invalid SSID %q", ssidStr)
		}
	}
	return Address{Call: call, SSID: uint8(ssid)}, nil
}

// String renders "CALL-SSID" (SSID omitted when zero).
func (a Address) String() string {
	if a.SSID == 0 {
		return a.Call
	}
	return fmt.Sprintf("%s-%d", a.Call, a.SSID)
}

// encodeAddressField builds the wire representation of one AX.25 address field:
// 6 characters shifted left by 1, space-padded, followed by an SSID byte
// 0x60 | (ssid<<1) | lastAddress, with the command/response bit in the
// high bit (spec §6). Reserved bits are fixed 1 (0x60) per the original
// protocol's "RR" reserved-bits convention.
func encodeAddressField(a Address, cBit bool, last bool) [7]byte {
	var out [7]byte
	padded := a.Call
	for len(padded) < 6 {
		padded += " "
	}
	for i := 0; i < 6; i++ {
		out[i] = padded[i] << 1
	}
	b := byte(0x60) | (a.SSID << 1)
	if last {
		b |= 0x01
	}
	if cBit {
		b |= 0x80
	}
	out[6] = b
	return out
}

func decodeAddressField(field [7]byte) (addr Address, cBit bool, last bool) {
	var call [6]byte
	for i := 0; i < 6; i++ {
		call[i] = field[i] >> 1
	}
	addr.Call = strings.TrimRight(string(call[:]), " ")
	addr.SSID = (field[6] >> 1) & 0x0f
	cBit = field[6]&0x80 != 0
	last = field[6]&0x01 != 0
	return addr, cBit, last
}
