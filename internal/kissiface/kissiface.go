// Package kissiface exposes the node to client TNC applications over
// the KISS protocol (spec §7): a TCP listener, a pty, and a serial
// port, each decoding/encoding frames with internal/kissframe. Grounded
// on the teacher's src/kissnet.go (TCP KISS server), src/kiss.go
// (pty-based KISS, using github.com/creack/pty), and
// src/serial_port.go (github.com/pkg/term).
package kissiface

import (
	"io"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kb9xyz/packetnode/internal/kissframe"
)

// Client represents one connected KISS endpoint -- a TCP connection,
// pty, or serial port -- abstracted behind io.ReadWriteCloser.
type Client struct {
	rw     io.ReadWriteCloser
	dec    kissframe.Decoder
	onData func(frame kissframe.Frame)
	onCmd  func(frame kissframe.Frame)
	log    *log.Logger

	writeMu sync.Mutex
}

// NewClient wraps a connected KISS transport. onData receives decoded
// data frames (KISS command 0); onCmd receives every other KISS command
// (TXDELAY, PERSISTENCE, SLOTTIME, TXTAIL, FULLDUPLEX, SETHARDWARE),
// matching kissnet.go's command dispatch.
func NewClient(rw io.ReadWriteCloser, onData, onCmd func(kissframe.Frame)) *Client {
	return &Client{rw: rw, onData: onData, onCmd: onCmd, log: log.With("component", "kissiface")}
}

// Serve reads bytes from the transport until it closes or errs,
// dispatching each decoded frame to onData or onCmd.
func (c *Client) Serve() error {
	buf := make([]byte, 4096)
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			c.feed(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (c *Client) feed(b []byte) {
	for _, octet := range b {
		frame, ok, err := c.dec.Push(octet)
		if err != nil {
			c.log.Warnf("kiss decode error: %v", err)
			continue
		}
		if !ok {
			continue
		}
		if frame.Command == kissframe.CmdDataFrame {
			if c.onData != nil {
				c.onData(frame)
			}
		} else if c.onCmd != nil {
			c.onCmd(frame)
		}
	}
}

// Send writes one encoded KISS data frame to the client, guarding
// against concurrent writers since a client serves its own Serve()
// goroutine while the node's RX path may also deliver inbound frames.
func (c *Client) Send(channel byte, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.rw.Write(kissframe.Encode(kissframe.Frame{Channel: channel, Command: kissframe.CmdDataFrame, Data: data}))
	return err
}

func (c *Client) Close() error { return c.rw.Close() }

// Server accepts TCP KISS connections (spec §7's KISSPORT directive),
// matching kissnet.go's per-connection accept loop, adapted to Go's
// net.Listener/goroutine-per-connection idiom instead of a pthread per
// socket.
type Server struct {
	ln     net.Listener
	onData func(client *Client, frame kissframe.Frame)
	onCmd  func(client *Client, frame kissframe.Frame)
	log    *log.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func Listen(addr string, onData, onCmd func(*Client, kissframe.Frame)) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{ln: ln, onData: onData, onCmd: onCmd, log: log.With("component", "kissiface"), clients: map[*Client]struct{}{}}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	var client *Client
	client = NewClient(conn, func(f kissframe.Frame) {
		if s.onData != nil {
			s.onData(client, f)
		}
	}, func(f kissframe.Frame) {
		if s.onCmd != nil {
			s.onCmd(client, f)
		}
	})

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		client.Close()
	}()

	if err := client.Serve(); err != nil {
		s.log.Warnf("kiss client connection ended: %v", err)
	}
}

// Broadcast sends a received frame to every connected client, matching
// kissnet.go's fan-out of inbound radio frames to all KISS sockets.
func (s *Server) Broadcast(channel byte, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		if err := client.Send(channel, data); err != nil {
			s.log.Warnf("kiss broadcast failed: %v", err)
		}
	}
}

func (s *Server) Close() error { return s.ln.Close() }

// Addr returns the listener's bound address, useful when Listen was
// called with port 0 for an ephemeral test port.
func (s *Server) Addr() string { return s.ln.Addr().String() }
