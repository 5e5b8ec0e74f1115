package tmr

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// firmwareMagic is the 12-byte image-header magic firmware images must
// carry, per spec.md §4.8 and TMR_firmwareLoad in serial_reader.c.
var firmwareMagic = [firmwareMagicSize]byte{
	0x53, 0x54, 0x4d, 0x20, 0x46, 0x57, 0x20, 0x49, 0x4d, 0x47, 0x00, 0x01,
}

// LoadFirmware flashes a new firmware image read from src: a
// firmwareHeaderSize-byte header (12-byte magic, then a big-endian u32
// image length) followed by the image bytes. It drops to the
// bootloader, erases flash sector 2, writes the image in
// firmwarePageSize-byte pages, then reboots the module by re-running the
// boot sequence, grounded on uf2.Reader's length-prefixed framing shape
// for the header check.
func (r *Reader) LoadFirmware(src io.Reader) error {
	header := make([]byte, firmwareHeaderSize)
	if _, err := io.ReadFull(src, header); err != nil {
		return fmt.Errorf("tmr: %w: %v", ErrFirmwareFormat, err)
	}
	if !equalBytes(header[:firmwareMagicSize], firmwareMagic[:]) {
		return fmt.Errorf("tmr: %w: bad magic", ErrFirmwareFormat)
	}
	length := be32(header[firmwareMagicSize:])

	if err := r.transport.SetBaudRate(bootloaderBaud); err != nil {
		return err
	}
	if _, err := r.command(opBootBootloader, nil, r.commandTimeout); err != nil {
		if !errors.Is(err, ErrInvalidOpcode) {
			return err
		}
	}
	time.Sleep(200 * time.Millisecond)

	raiseTo := r.userBaud
	if raiseTo == 0 || raiseTo > bootloaderMaxBaud {
		raiseTo = bootloaderMaxBaud
	}
	if err := r.transport.SetBaudRate(raiseTo); err != nil {
		return err
	}

	erase := putBE32(nil, flashErasePassword)
	erase = append(erase, flashEraseSector)
	if _, err := r.command(opEraseFlash, erase, 30*time.Second); err != nil {
		return err
	}

	remaining := length
	page := make([]byte, firmwarePageSize)
	for remaining > 0 {
		n := firmwarePageSize
		if uint32(n) > remaining {
			n = int(remaining)
		}
		got, err := io.ReadFull(src, page[:n])
		if err != nil {
			return fmt.Errorf("tmr: %w: short image: %v", ErrFirmwareFormat, err)
		}
		payload := putBE32(nil, flashWritePassword)
		payload = append(payload, page[:got]...)
		if _, err := r.command(opWriteFlashSector, payload, 5*time.Second); err != nil {
			return err
		}
		remaining -= uint32(got)
	}

	r.connected = false
	r.powerMode = powerModeInvalid
	return r.Connect()
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
