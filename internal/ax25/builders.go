package ax25

// NewSABM builds a SABM command requesting connection.
func NewSABM(dest, source Address, pf bool) *Packet {
	return &Packet{Dest: dest, Source: source, CR: CRCommand, Type: FrameSABM, PF: pf}
}

// NewDISC builds a DISC command requesting disconnection.
func NewDISC(dest, source Address, pf bool) *Packet {
	return &Packet{Dest: dest, Source: source, CR: CRCommand, Type: FrameDISC, PF: pf}
}

// NewDM builds a DM response (disconnected mode / refusal).
func NewDM(dest, source Address, pf bool) *Packet {
	return &Packet{Dest: dest, Source: source, CR: CRResponse, Type: FrameDM, PF: pf}
}

// NewUA builds a UA response acknowledging SABM or DISC.
func NewUA(dest, source Address, pf bool) *Packet {
	return &Packet{Dest: dest, Source: source, CR: CRResponse, Type: FrameUA, PF: pf}
}

// NewRR builds an RR supervisory frame (receiver ready).
func NewRR(dest, source Address, cr CR, pf bool, nr uint8) *Packet {
	return &Packet{Dest: dest, Source: source, CR: cr, Type: FrameRR, PF: pf, NR: nr}
}

// NewRNR builds an RNR supervisory frame (receiver not ready).
func NewRNR(dest, source Address, cr CR, pf bool, nr uint8) *Packet {
	return &Packet{Dest: dest, Source: source, CR: cr, Type: FrameRNR, PF: pf, NR: nr}
}

// NewREJ builds a REJ supervisory frame (go-back-N reject).
func NewREJ(dest, source Address, cr CR, pf bool, nr uint8) *Packet {
	return &Packet{Dest: dest, Source: source, CR: cr, Type: FrameREJ, PF: pf, NR: nr}
}

// NewSREJ builds an SREJ supervisory frame (selective reject). Extra N(S)
// values to also retransmit (spec §9, "SREJ multi-reject") are packed one
// per info byte, top 3 bits holding the sequence number, as the info field
// has no span-encoding defined.
func NewSREJ(dest, source Address, cr CR, pf bool, nr uint8, extraNS []uint8) *Packet {
	info := make([]byte, len(extraNS))
	for i, ns := range extraNS {
		info[i] = ns << 5
	}
	return &Packet{Dest: dest, Source: source, CR: cr, Type: FrameSREJ, PF: pf, NR: nr, Info: info}
}

// NewI builds an Information frame carrying payload.
func NewI(dest, source Address, pf bool, nr, ns uint8, pid byte, info []byte) *Packet {
	return &Packet{Dest: dest, Source: source, CR: CRCommand, Type: FrameI, PF: pf, NR: nr, NS: ns, PID: pid, HasPID: true, Info: info}
}
