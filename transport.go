package tmr

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Transport is the byte-oriented link to the module. It is consumed, not
// implemented, by the core driver: open/shutdown/flush/setBaudRate plus a
// send and a receive call, both timeout-bounded. Transport is not safe
// for concurrent use — see the Reader-level concurrency rules in the
// package documentation.
type Transport interface {
	// Open opens the underlying link. Calling Open after a successful
	// Open is a no-op.
	Open() error
	// Shutdown closes the link. It always succeeds locally.
	Shutdown() error
	// Flush discards any buffered input.
	Flush() error
	// SetBaudRate updates the host-side rate. It takes effect
	// immediately for subsequent Send/Receive calls.
	SetBaudRate(baud uint32) error
	// SendBytes writes buf in full or returns an error; it may return
	// a short write error without writing every byte.
	SendBytes(buf []byte, timeout time.Duration) error
	// ReceiveBytes reads up to want bytes, blocking until want bytes
	// have arrived or timeout elapses. got < want only on timeout or
	// EOF; both are reported as ErrTimeout.
	ReceiveBytes(want int, timeout time.Duration) (got int, buf []byte, err error)
}

// trySetHighBaud, when non-nil (Linux only), attempts to apply a baud
// rate github.com/tarm/serial's fixed enumeration doesn't expose. It
// reports ok=false for any rate it doesn't special-case.
var trySetHighBaud func(name string, baud uint32) (ok bool, err error)

// serialTransport implements Transport over github.com/tarm/serial,
// the same library driver/mjolnir.Open uses for the engraver link.
type serialTransport struct {
	name string
	baud uint32
	port *serial.Port
}

// Open returns a Transport backed by a real serial port at name, with
// baud as the initial rate (it is commonly renegotiated during Connect's
// baud scan).
func Open(name string, baud uint32) Transport {
	return &serialTransport{name: name, baud: baud}
}

func (s *serialTransport) Open() error {
	if s.port != nil {
		return nil
	}
	cfg := &serial.Config{
		Name:        s.name,
		Baud:        int(s.baud),
		ReadTimeout: 100 * time.Millisecond,
	}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return fmt.Errorf("tmr: open %s: %w", s.name, err)
	}
	s.port = p
	return nil
}

func (s *serialTransport) Shutdown() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *serialTransport) Flush() error {
	if s.port == nil {
		return nil
	}
	return s.port.Flush()
}

func (s *serialTransport) SetBaudRate(baud uint32) error {
	s.baud = baud
	if s.port == nil {
		return nil
	}
	if trySetHighBaud != nil {
		if ok, err := trySetHighBaud(s.name, baud); ok {
			return err
		} else if err != nil {
			return err
		}
	}
	if err := s.port.Close(); err != nil {
		return err
	}
	s.port = nil
	return s.Open()
}

func (s *serialTransport) SendBytes(buf []byte, timeout time.Duration) error {
	if s.port == nil {
		return fmt.Errorf("tmr: %w: port not open", ErrTimeout)
	}
	_, err := s.port.Write(buf)
	if err != nil {
		return fmt.Errorf("tmr: send: %w", err)
	}
	return nil
}

func (s *serialTransport) ReceiveBytes(want int, timeout time.Duration) (int, []byte, error) {
	if s.port == nil {
		return 0, nil, ErrTimeout
	}
	buf := make([]byte, want)
	deadline := time.Now().Add(timeout)
	got := 0
	for got < want {
		if time.Now().After(deadline) {
			return got, buf[:got], ErrTimeout
		}
		n, err := s.port.Read(buf[got:])
		got += n
		if err != nil && err != io.EOF {
			return got, buf[:got], fmt.Errorf("tmr: receive: %w", err)
		}
	}
	return got, buf, nil
}
