package kissiface

import (
	"os"

	"github.com/creack/pty"
	"go.bug.st/serial"
)

// OpenPTY creates a pseudo-terminal pair and returns the master side plus
// the slave device path a client application should open (e.g. adding a
// symlink at /tmp/kisstnc), matching the teacher's pty-based KISS
// interface in src/kiss.go.
func OpenPTY() (master *os.File, slaveName string, err error) {
	m, s, err := pty.Open()
	if err != nil {
		return nil, "", err
	}
	name := s.Name()
	s.Close()
	return m, name, nil
}

// OpenSerial opens a serial device for KISS framing at the given baud
// rate, matching src/serial_port.go's role of hiding operating-system
// serial port differences, re-targeted at go.bug.st/serial since it
// covers the same Linux/Windows/macOS device set as a portable library.
func OpenSerial(device string, baud int) (serial.Port, error) {
	mode := &serial.Mode{BaudRate: baud}
	return serial.Open(device, mode)
}
