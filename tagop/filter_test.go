package tagop

import (
	"bytes"
	"testing"
)

func TestEncodeFilterTagDataShortEPC(t *testing.T) {
	epc := []byte{0xe2, 0x00, 0x34, 0x12}
	option, buf, err := encodeFilter(nil, TagData{EPC: epc}, 0, false)
	if err != nil {
		t.Fatalf("encodeFilter: %v", err)
	}
	if option != optionTagDataSelect {
		t.Fatalf("option = %#x, want optionTagDataSelect", option)
	}
	if buf[0] != byte(len(epc)*8) {
		t.Fatalf("bit length byte = %d, want %d", buf[0], len(epc)*8)
	}
	if !bytes.Equal(buf[1:], epc) {
		t.Fatalf("epc bytes = % x, want % x", buf[1:], epc)
	}
}

func TestEncodeFilterTagDataExtendedLength(t *testing.T) {
	epc := make([]byte, 32) // 256 bits, exceeds the one-byte bit-length field
	option, buf, err := encodeFilter(nil, TagData{EPC: epc}, 0, false)
	if err != nil {
		t.Fatalf("encodeFilter: %v", err)
	}
	if option&optionExtendedDataLength == 0 {
		t.Fatal("expected optionExtendedDataLength for a 256-bit EPC")
	}
	if len(buf) != 2+len(epc) {
		t.Fatalf("buf length = %d, want %d", len(buf), 2+len(epc))
	}
}

func TestEncodeFilterGen2SelectOnEPCBank(t *testing.T) {
	option, _, err := encodeFilter(nil, Gen2Select{Bank: BankEPC, BitPointer: 32, BitLength: 16, Mask: []byte{0xff, 0xff}}, 0, false)
	if err != nil {
		t.Fatalf("encodeFilter: %v", err)
	}
	if option != optionGen2BankEPCSelect {
		t.Fatalf("option = %#x, want optionGen2BankEPCSelect", option)
	}
}

func TestEncodeFilterGen2SelectOnOtherBankIsGeneral(t *testing.T) {
	option, buf, err := encodeFilter(nil, Gen2Select{Bank: BankUser, BitPointer: 0, BitLength: 8, Mask: []byte{0xaa}}, 0, false)
	if err != nil {
		t.Fatalf("encodeFilter: %v", err)
	}
	if option&optionGen2GeneralSelect != optionGen2GeneralSelect {
		t.Fatalf("option = %#x, want optionGen2GeneralSelect set", option)
	}
	if buf[0] != byte(BankUser) {
		t.Fatalf("bank byte = %#x, want %#x", buf[0], byte(BankUser))
	}
}

func TestEncodeFilterGen2SelectRejectsShortMask(t *testing.T) {
	_, _, err := encodeFilter(nil, Gen2Select{Bank: BankUser, BitLength: 16, Mask: []byte{0xaa}}, 0, false)
	if err != ErrInvalid {
		t.Fatalf("encodeFilter(short mask) = %v, want ErrInvalid", err)
	}
}

func TestIso180006bDataFilterMaskCoversEPCBytes(t *testing.T) {
	epc := []byte{0xe2, 0x00, 0x34}
	sel := Iso180006bDataFilter(epc)
	want := byte(0b1110_0000)
	if sel.ByteMask != want {
		t.Fatalf("ByteMask = %#08b, want %#08b", sel.ByteMask, want)
	}
	if sel.Op != 0x00 {
		t.Fatalf("Op = %#x, want equals (0)", sel.Op)
	}
}

func TestEncodeFilterNilIsZeroOption(t *testing.T) {
	option, buf, err := encodeFilter(nil, nil, 0, false)
	if err != nil {
		t.Fatalf("encodeFilter(nil): %v", err)
	}
	if option != optionNone || len(buf) != 0 {
		t.Fatalf("encodeFilter(nil) = (%#x, % x), want (0, empty)", option, buf)
	}
}
