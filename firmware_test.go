package tmr

import (
	"bytes"
	"testing"
)

func buildFirmwareImage(body []byte) []byte {
	header := append([]byte(nil), firmwareMagic[:]...)
	header = putBE32(header, uint32(len(body)))
	return append(header, body...)
}

func TestLoadFirmwareRejectsBadMagic(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	bad := buildFirmwareImage([]byte{0x01, 0x02})
	bad[0] ^= 0xff
	if err := rd.LoadFirmware(bytes.NewReader(bad)); err == nil {
		t.Fatal("LoadFirmware(bad magic) = nil, want ErrFirmwareFormat")
	}
}

func TestLoadFirmwareRejectsShortImage(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	img := buildFirmwareImage(make([]byte, 10))
	truncated := img[:len(img)-5]
	if err := rd.LoadFirmware(bytes.NewReader(truncated)); err == nil {
		t.Fatal("LoadFirmware(short image) = nil, want ErrFirmwareFormat")
	}
}

func TestLoadFirmwareWritesPagesAndReconnects(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	body := make([]byte, firmwarePageSize*2+10)
	for i := range body {
		body[i] = byte(i)
	}
	img := buildFirmwareImage(body)
	if err := rd.LoadFirmware(bytes.NewReader(img)); err != nil {
		t.Fatalf("LoadFirmware: %v", err)
	}
	if !rd.Connected() {
		t.Fatal("Connected() = false after LoadFirmware's reboot/reconnect")
	}
}
