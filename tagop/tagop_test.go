package tagop

import "testing"

func TestEncodeTimeoutAndOptionPreamble(t *testing.T) {
	op := Gen2ReadData{Bank: BankEPC, WordAddress: 2, Len: 4}
	buf, err := Encode(op, 0x0123, nil, 0, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) < 3 {
		t.Fatalf("encoded body too short: % x", buf)
	}
	if buf[0] != 0x01 || buf[1] != 0x23 {
		t.Errorf("timeout bytes = % x, want 01 23", buf[:2])
	}
	if buf[2] != optionNone {
		t.Errorf("option byte = %#x, want 0 (no filter, no password)", buf[2])
	}
}

func TestEncodeUsesPasswordOption(t *testing.T) {
	op := Gen2Kill{KillPassword: 0xdeadbeef}
	buf, err := Encode(op, 0, nil, 0x11223344, true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf[2]&optionUsePassword == 0 {
		t.Fatal("option byte missing UsePassword bit")
	}
	pw := appendBE32(nil, 0x11223344)
	if string(buf[3:7]) != string(pw) {
		t.Errorf("password bytes = % x, want % x", buf[3:7], pw)
	}
}

func TestGen2BlockWriteEncodesWordCount(t *testing.T) {
	op := Gen2BlockWrite{Bank: BankUser, WordPointer: 4, Data: []uint16{0x1111, 0x2222, 0x3333}}
	body, err := op.encodeBody(nil)
	if err != nil {
		t.Fatalf("encodeBody: %v", err)
	}
	if body[0] != byte(BankUser) {
		t.Errorf("bank byte = %#x, want %#x", body[0], byte(BankUser))
	}
	wordCountIdx := 5
	if body[wordCountIdx] != 3 {
		t.Errorf("word count = %d, want 3", body[wordCountIdx])
	}
}

func TestValidateGen2WriteRejectsMisalignedAddress(t *testing.T) {
	if err := ValidateGen2Write(1, 2); err != ErrInvalid {
		t.Fatalf("ValidateGen2Write(odd addr) = %v, want ErrInvalid", err)
	}
	if err := ValidateGen2Write(2, 3); err != ErrInvalid {
		t.Fatalf("ValidateGen2Write(odd len) = %v, want ErrInvalid", err)
	}
	if err := ValidateGen2Write(2, 4); err != nil {
		t.Fatalf("ValidateGen2Write(aligned) = %v, want nil", err)
	}
}

func TestListOpRejectsEncoding(t *testing.T) {
	if _, err := (List{}).encodeBody(nil); err != ErrInvalid {
		t.Fatalf("List.encodeBody = %v, want ErrInvalid", err)
	}
}
