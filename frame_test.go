package tmr

import (
	"testing"
	"time"
)

// scriptedTransport replays a fixed byte stream to ReceiveBytes and
// discards whatever is sent, letting tests drive the SOF-resync and
// CRC-checking paths directly without a full simulator round trip.
type scriptedTransport struct {
	rx []byte
}

func (s *scriptedTransport) Open() error     { return nil }
func (s *scriptedTransport) Shutdown() error { return nil }
func (s *scriptedTransport) Flush() error    { return nil }
func (s *scriptedTransport) SetBaudRate(uint32) error { return nil }
func (s *scriptedTransport) SendBytes([]byte, time.Duration) error { return nil }

func (s *scriptedTransport) ReceiveBytes(want int, timeout time.Duration) (int, []byte, error) {
	if len(s.rx) < want {
		got := s.rx
		s.rx = nil
		return len(got), got, ErrTimeout
	}
	out := s.rx[:want]
	s.rx = s.rx[want:]
	return want, out, nil
}

func validResponseFrame(opcode byte, status uint16, payload []byte) []byte {
	buf := []byte{sof, byte(len(payload)), opcode, byte(status >> 8), byte(status)}
	buf = append(buf, payload...)
	crc := crc16(buf[1:])
	return append(buf, byte(crc>>8), byte(crc))
}

func TestReceiveResyncsPastGarbageLeadBytes(t *testing.T) {
	frame := validResponseFrame(opVersion, 0, []byte{0xaa, 0xbb})
	garbage := []byte{0x11, 0x22, 0x33}
	tr := &scriptedTransport{rx: append(append([]byte(nil), garbage...), frame...)}
	rd := New(tr, 9600)
	resp, err := rd.receive(opVersion, time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if resp.opcode != opVersion {
		t.Fatalf("opcode = %#x, want %#x", resp.opcode, opVersion)
	}
	if string(resp.payload) != "\xaa\xbb" {
		t.Fatalf("payload = % x, want aa bb", resp.payload)
	}
}

func TestReceiveRejectsTooMuchGarbage(t *testing.T) {
	frame := validResponseFrame(opVersion, 0, nil)
	garbage := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	tr := &scriptedTransport{rx: append(append([]byte(nil), garbage...), frame...)}
	rd := New(tr, 9600)
	if _, err := rd.receive(opVersion, time.Second); err != ErrTimeout {
		t.Fatalf("receive(6 garbage bytes) = %v, want ErrTimeout", err)
	}
}

func TestReceiveDetectsCRCError(t *testing.T) {
	frame := validResponseFrame(opVersion, 0, []byte{0x01, 0x02})
	frame[len(frame)-1] ^= 0xff
	tr := &scriptedTransport{rx: frame}
	rd := New(tr, 9600)
	if _, err := rd.receive(opVersion, time.Second); err != ErrCrc {
		t.Fatalf("receive(bad crc) = %v, want ErrCrc", err)
	}
}

func TestReceiveDetectsOpcodeMismatchAsDeviceReset(t *testing.T) {
	frame := validResponseFrame(opGetCurrentProgram, 0, nil)
	tr := &scriptedTransport{rx: frame}
	rd := New(tr, 9600)
	if _, err := rd.receive(opVersion, time.Second); err != ErrDeviceReset {
		t.Fatalf("receive(mismatched opcode) = %v, want ErrDeviceReset", err)
	}
}

func TestReceiveAcceptsStreamingNotificationOpcode(t *testing.T) {
	frame := validResponseFrame(streamingNotificationOpcode, 0, []byte{0x01})
	tr := &scriptedTransport{rx: frame}
	rd := New(tr, 9600)
	rd.useStreaming = true
	resp, err := rd.receive(opReadTagIDMultiple, time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if resp.opcode != streamingNotificationOpcode {
		t.Fatalf("opcode = %#x, want streaming notification opcode", resp.opcode)
	}
}
