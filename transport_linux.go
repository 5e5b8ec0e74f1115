//go:build linux

package tmr

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

func init() {
	trySetHighBaud = setHighBaudRate
}

// highBaudRates are the rates in the spec.md §4.3 fallback sequence that
// github.com/tarm/serial's fixed enumeration does not expose on Linux.
// For these, setHighBaudRate reaches past the library straight to
// termios, the same escape hatch cmd/controller/debug_rpi.go uses to get
// a non-standard rate onto the wire.
var highBaudRates = map[uint32]uint32{
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// setHighBaudRate applies baud directly via a TCSETS ioctl, bypassing
// github.com/tarm/serial for rates it does not support. It is a no-op
// (returns ok=false) for any rate not in highBaudRates, letting the
// caller fall back to the normal Transport.SetBaudRate path.
func setHighBaudRate(name string, baud uint32) (ok bool, err error) {
	speed, known := highBaudRates[baud]
	if !known {
		return false, nil
	}
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return false, fmt.Errorf("tmr: open %s for baud ioctl: %w", name, err)
	}
	defer unix.Close(fd)

	var t unix.Termios
	if _, _, errno := unix.Syscall6(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TCGETS), uintptr(unsafe.Pointer(&t)), 0, 0, 0); errno != 0 {
		return false, fmt.Errorf("tmr: TCGETS %s: %w", name, os.NewSyscallError("ioctl", errno))
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed
	if _, _, errno := unix.Syscall6(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TCSETS), uintptr(unsafe.Pointer(&t)), 0, 0, 0); errno != 0 {
		return false, fmt.Errorf("tmr: TCSETS %s: %w", name, os.NewSyscallError("ioctl", errno))
	}
	return true, nil
}
