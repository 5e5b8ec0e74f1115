package tmr

import "fmt"

// Sentinel error kinds surfaced to callers. They propagate unchanged
// except inside read loops, where ErrNoTagsFound is coerced to "zero
// tags, keep going", and inside the baud scan, where ErrTimeout is
// coerced to "try the next rate".
var (
	// ErrTimeout means the transport or the module failed to respond
	// within the deadline.
	ErrTimeout = fmt.Errorf("tmr: timeout")

	// ErrCrc means a received frame's CRC did not match its payload.
	ErrCrc = fmt.Errorf("tmr: crc error")

	// ErrParse means a frame or stream packet could not be decoded.
	ErrParse = fmt.Errorf("tmr: parse error")

	// ErrDeviceReset means a response's opcode did not match the
	// request's, indicating the module rebooted mid-session. The
	// session is considered corrupted once this is seen.
	ErrDeviceReset = fmt.Errorf("tmr: device reset")

	// ErrNoTagsFound is the module's no-tags-found status. It surfaces
	// from single-tag operations such as ExecuteTagOp; Read treats it
	// as zero tags instead of returning it.
	ErrNoTagsFound = fmt.Errorf("tmr: no tags found")

	// ErrNoTags is returned by GetNextTag once the buffered tag records
	// are exhausted.
	ErrNoTags = fmt.Errorf("tmr: no tags")

	// ErrNoAntenna means a requested antenna is absent from the
	// current Tx/Rx map or port mask.
	ErrNoAntenna = fmt.Errorf("tmr: no such antenna")

	// ErrUnimplemented means the driver does not implement the
	// requested feature.
	ErrUnimplemented = fmt.Errorf("tmr: unimplemented")

	// ErrUnimplementedFeature means the connected firmware does not
	// implement the requested feature.
	ErrUnimplementedFeature = fmt.Errorf("tmr: unimplemented feature")

	// ErrInvalidOpcode means the module rejected the opcode outright.
	ErrInvalidOpcode = fmt.Errorf("tmr: invalid opcode")

	// ErrInvalid is an argument-level rejection, e.g. a misaligned
	// Gen2 byte address.
	ErrInvalid = fmt.Errorf("tmr: invalid argument")

	// ErrTooBig means a request would exceed the 256-byte packet
	// limit or a port-count limit.
	ErrTooBig = fmt.Errorf("tmr: request too big")

	// ErrReadOnly means a caller attempted to set a read-only
	// parameter.
	ErrReadOnly = fmt.Errorf("tmr: parameter is read-only")

	// ErrNotFound means a parameter key is not present on the
	// connected firmware.
	ErrNotFound = fmt.Errorf("tmr: parameter not found")

	// ErrFirmwareFormat means a firmware image's magic header didn't
	// match, or the page provider under-delivered bytes.
	ErrFirmwareFormat = fmt.Errorf("tmr: bad firmware image")

	// ErrNoThreads means the background worker could not be started.
	ErrNoThreads = fmt.Errorf("tmr: could not start background worker")

	// ErrTryAgain means a listener-list mutation could not acquire
	// its lock because dispatch currently holds it.
	ErrTryAgain = fmt.Errorf("tmr: try again")
)

// ReaderCode is a typed status word returned by the module in a response
// frame's status field. A zero status means success and is never wrapped
// in a ReaderCode.
type ReaderCode uint16

func (c ReaderCode) Error() string {
	if msg, ok := statusMessages[uint16(c)]; ok {
		return fmt.Sprintf("tmr: reader error 0x%04x: %s", uint16(c), msg)
	}
	return fmt.Sprintf("tmr: reader error 0x%04x", uint16(c))
}

// statusError converts a non-zero wire status word into an error,
// mapping well-known codes onto the sentinel kinds above and anything
// else onto ReaderCode.
func statusError(status uint16) error {
	if status == 0 {
		return nil
	}
	switch status {
	case statusNoTagsFound:
		return ErrNoTagsFound
	case statusCrcError:
		return ErrCrc
	case statusInvalidOpcode:
		return ErrInvalidOpcode
	case statusUnimplemented:
		return ErrUnimplementedFeature
	case statusMsgTooBig:
		return ErrTooBig
	case statusInvalidParameter:
		return ErrInvalid
	}
	return ReaderCode(status)
}
