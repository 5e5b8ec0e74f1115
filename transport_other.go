//go:build !linux

package tmr

// On non-Linux platforms trySetHighBaud stays nil; SetBaudRate always
// uses the github.com/tarm/serial path there.
