package tmr

import "testing"

func TestCrc16KnownZero(t *testing.T) {
	// An all-zero message still produces a non-trivial CRC since the
	// algorithm seeds with 0xffff.
	if got := crc16([]byte{0x00, 0x00, 0x00}); got == 0 {
		t.Fatalf("crc16(zeros) = 0, want non-zero")
	}
}

func TestCrc16Deterministic(t *testing.T) {
	buf := []byte{0x02, 0x03, 0x00, 0x00}
	a := crc16(buf)
	b := crc16(buf)
	if a != b {
		t.Fatalf("crc16 not deterministic: %#04x != %#04x", a, b)
	}
}

func TestCrc16SensitiveToEveryByte(t *testing.T) {
	base := []byte{0x02, 0x03, 0xaa, 0xbb, 0xcc}
	baseCrc := crc16(base)
	for i := range base {
		mutated := append([]byte(nil), base...)
		mutated[i] ^= 0xff
		if crc16(mutated) == baseCrc {
			t.Fatalf("flipping byte %d didn't change the CRC", i)
		}
	}
}

func TestEncodeRequestRoundTripsCRC(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	frame, err := encodeRequest(0x22, payload)
	if err != nil {
		t.Fatalf("encodeRequest: %v", err)
	}
	n := int(frame[1])
	crc := crc16(frame[1 : 3+n])
	gotHi, gotLo := frame[3+n], frame[4+n]
	if gotHi != byte(crc>>8) || gotLo != byte(crc) {
		t.Fatalf("request frame CRC mismatch: frame=% x", frame)
	}
}

func TestEncodeRequestTooBig(t *testing.T) {
	big := make([]byte, maxPacketSize+1)
	if _, err := encodeRequest(0x22, big); err != ErrTooBig {
		t.Fatalf("encodeRequest(oversized) = %v, want ErrTooBig", err)
	}
}
