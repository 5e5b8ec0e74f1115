package tmr

import (
	"errors"
	"fmt"
	"time"
)

// Connect opens the transport and runs the boot sequence described in
// spec.md §4.3: baud auto-negotiation, bootloader exit, version
// discovery, ExtendedEPC enforcement, region configuration and antenna
// detection.
func (r *Reader) Connect() error {
	if err := r.transport.Open(); err != nil {
		return err
	}
	workingBaud, err := r.scanBaud()
	if err != nil {
		return err
	}
	r.connected = true

	program, err := r.getCurrentProgram(r.commandTimeout)
	if err != nil {
		return err
	}
	if program&0x3 == 1 {
		// In the bootloader; ignore the result per spec.md §4.3(4).
		r.command(opBootFirmware, nil, r.commandTimeout)
	}

	if r.powerMode == powerModeInvalid {
		pm, err := r.getPowerMode(r.commandTimeout)
		if err != nil {
			return err
		}
		r.powerMode = pm
	}

	if r.userBaud != 0 && workingBaud != r.userBaud {
		if _, err := r.command(opSetBaudRate, encodeBaudRate(r.userBaud), r.commandTimeout); err != nil {
			return err
		}
		if err := r.transport.SetBaudRate(r.userBaud); err != nil {
			return err
		}
	}

	v, err := r.getVersion(r.commandTimeout)
	if err != nil {
		return err
	}
	r.version = v

	if err := r.setExtendedEPC(true, r.commandTimeout); err != nil {
		return err
	}

	if r.region != RegionNone {
		if _, err := r.command(opSetRegion, []byte{byte(r.region)}, r.commandTimeout); err != nil {
			return err
		}
	}

	r.tagOpParams.Protocol = ProtocolGen2
	r.tagOpParams.Antenna = 0
	r.currentProtocol = ProtocolGen2

	if err := r.initTxRxMap(r.commandTimeout); err != nil {
		return err
	}

	r.seedPresentParams()
	return nil
}

// scanBaud tries the user-configured rate first, then the fixed fallback
// sequence (skipping any equal to the first candidate), accepting the
// first rate a Version command succeeds at. ErrTimeout on a candidate
// means "wrong baud rate, keep scanning"; any other error aborts.
func (r *Reader) scanBaud() (uint32, error) {
	candidates := make([]uint32, 0, 1+len(defaultBaudFallbacks))
	first := r.userBaud
	if first == 0 {
		first = defaultBaudFallbacks[0]
	}
	candidates = append(candidates, first)
	for _, b := range defaultBaudFallbacks {
		if b != first {
			candidates = append(candidates, b)
		}
	}
	for _, baud := range candidates {
		if err := r.transport.SetBaudRate(baud); err != nil {
			return 0, err
		}
		if err := r.transport.Flush(); err != nil {
			return 0, err
		}
		if _, err := r.getVersion(r.commandTimeout); err != nil {
			if errors.Is(err, ErrTimeout) {
				continue
			}
			return 0, err
		}
		return baud, nil
	}
	return 0, ErrTimeout
}

// getCurrentProgram reads the current-program byte; bits 0-1 equal to 1
// indicate the module is running its bootloader rather than the
// application image.
func (r *Reader) getCurrentProgram(timeout time.Duration) (byte, error) {
	payload, err := r.command(opGetCurrentProgram, nil, timeout)
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, fmt.Errorf("tmr: %w: empty current-program reply", ErrParse)
	}
	return payload[0], nil
}

func (r *Reader) getPowerMode(timeout time.Duration) (PowerMode, error) {
	payload, err := r.command(opGetPowerMode, nil, timeout)
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, fmt.Errorf("tmr: %w: empty power-mode reply", ErrParse)
	}
	return PowerMode(payload[0]), nil
}

// setExtendedEPC forces the ExtendedEPC reader-config bit. The module
// resets this bit whenever the protocol changes, so SetProtocol
// reasserts it too (spec.md §4.3(5), §5).
func (r *Reader) setExtendedEPC(on bool, timeout time.Duration) error {
	v := byte(0)
	if on {
		v = 1
	}
	_, err := r.command(opSetReaderConfig, []byte{readerConfigExtendedEPC, v}, timeout)
	return err
}

func encodeBaudRate(baud uint32) []byte {
	return putBE32(nil, baud)
}

// SetProtocol switches the current air-interface protocol, reasserting
// ExtendedEPC afterward since the module clears it on every protocol
// change.
func (r *Reader) SetProtocol(p Protocol, timeout time.Duration) error {
	_, err := r.command(opSetProtocolConfig, []byte{byte(p)}, timeout)
	if err != nil {
		return err
	}
	r.currentProtocol = p
	return r.setExtendedEPC(true, timeout)
}
