package kissiface

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/charmbracelet/log"
)

// AGWPEHeader is the 36-byte fixed header preceding every AGWPE frame,
// grounded on the teacher's src/agwpe.go (itself transcribed from the
// original's AGWPE client library) and little-endian byte order per
// cmd/samoyed-appserver/agwlib.go's binary.Write(..., binary.LittleEndian, h)
// calls.
type AGWPEHeader struct {
	Portx        byte
	Reserved1    byte
	Reserved2    byte
	Reserved3    byte
	DataKind     byte
	Reserved4    byte
	PID          byte
	Reserved5    byte
	CallFrom     [10]byte
	CallTo       [10]byte
	DataLen      uint32
	UserReserved [4]byte
}

// AGWServer is a stub, acknowledge-only AGWPE TCP listener (spec §6's
// client interface is the KISS byte stream; AGWPE framing itself is out
// of scope for this port -- see SPEC_FULL.md's SUPPLEMENTED FEATURES).
// It answers just enough of the login handshake (version inquiry, port
// info inquiry) that existing AGWPE client tooling can detect the node
// is alive; it does not implement AGWPE connected-mode data framing.
type AGWServer struct {
	ln  net.Listener
	log *log.Logger
}

// ListenAGWPE starts the stub AGWPE listener on addr (the AGWPORT
// directive, spec.md §6 / SPEC_FULL.md's config supplement).
func ListenAGWPE(addr string) (*AGWServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &AGWServer{ln: ln, log: log.With("component", "agwpe")}, nil
}

// Serve accepts connections until the listener is closed.
func (s *AGWServer) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *AGWServer) handle(conn net.Conn) {
	defer conn.Close()
	for {
		var hdr AGWPEHeader
		if err := binary.Read(conn, binary.LittleEndian, &hdr); err != nil {
			if err != io.EOF {
				s.log.Warnf("agwpe: reading header: %v", err)
			}
			return
		}
		if hdr.DataLen > 0 {
			if _, err := io.CopyN(io.Discard, conn, int64(hdr.DataLen)); err != nil {
				s.log.Warnf("agwpe: discarding %d-byte payload: %v", hdr.DataLen, err)
				return
			}
		}

		reply := s.ackFor(hdr)
		if reply == nil {
			continue
		}
		if err := binary.Write(conn, binary.LittleEndian, reply); err != nil {
			s.log.Warnf("agwpe: writing reply: %v", err)
			return
		}
	}
}

// ackFor builds the minimal reply this stub sends for the login-time
// inquiries ('R' version, 'G' port capabilities); every other data kind
// (connect/disconnect/data frames) is drained and silently ignored,
// since full AGWPE connected-mode framing is out of scope.
func (s *AGWServer) ackFor(hdr AGWPEHeader) *AGWPEHeader {
	switch hdr.DataKind {
	case 'R':
		return &AGWPEHeader{DataKind: 'R', DataLen: 0}
	case 'G':
		return &AGWPEHeader{DataKind: 'G', DataLen: 0}
	default:
		return nil
	}
}

func (s *AGWServer) Close() error { return s.ln.Close() }

// Addr returns the listener's bound address, useful when ListenAGWPE was
// called with port 0 for an ephemeral test port.
func (s *AGWServer) Addr() string { return s.ln.Addr().String() }
