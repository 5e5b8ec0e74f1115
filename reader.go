package tmr

import (
	"sync"
	"time"
)

// PowerMode mirrors the module's /reader/powerMode parameter values.
type PowerMode uint8

const (
	PowerModeFull PowerMode = iota
	PowerModeMinSave
	PowerModeMedSave
	PowerModeMaxSave
	powerModeInvalid
)

// Protocol identifies an air-interface protocol. The numeric values
// match the module's protocol-id byte so they double as the bit index
// (protocol-1) into VersionInfo.Protocols.
type Protocol uint8

const (
	ProtocolNone        Protocol = 0
	ProtocolGen2        Protocol = 5
	ProtocolISO180006B  Protocol = 2
	ProtocolIPX64       Protocol = 6
	ProtocolIPX256      Protocol = 7
)

// Region selects the module's regulatory region. RegionNone leaves the
// region unconfigured (Connect skips the SetRegion command).
type Region uint8

const (
	RegionNone Region = 0
)

// defaultBaudFallbacks is the fixed sequence Connect scans after the
// user-configured rate, per spec.md §4.3. It is an immutable constant,
// mirroring the CRC table's treatment as a compile-time table.
var defaultBaudFallbacks = [...]uint32{9600, 115200, 921600, 19200, 38400, 57600, 230400, 460800}

// transportTimeout is added to every command's caller-supplied timeout
// to form the effective transport deadline.
const transportTimeout = 200 * time.Millisecond

// Reader is a handle to one connected (or not-yet-connected) module. It
// owns the transport, the configuration cache, version info, the Tx/Rx
// antenna map, the current protocol, streaming scratch state, listener
// lists and the background worker. It is not safe for concurrent use by
// more than one goroutine at a time (see the package-level concurrency
// notes); StartReading hands the read loop to a dedicated worker
// goroutine instead of allowing interleaved foreground/background use.
type Reader struct {
	transport Transport
	userBaud  uint32
	connected bool

	powerMode      PowerMode
	version        VersionInfo
	portMask       uint16
	txRxMap        []AntennaMapEntry
	tagOpParams    TagOpParams
	currentProtocol Protocol
	region         Region
	useStreaming   bool

	present   paramSet
	confirmed paramSet
	cache     paramCache

	commandTimeout time.Duration

	stream streamState

	bg backgroundState
}

// TagOpParams are the default antenna/protocol a tag operation runs
// under when a ReadPlan or single-tag call doesn't override them.
type TagOpParams struct {
	Antenna  uint8 // 0 means unset
	Protocol Protocol
}

// Option configures a Reader at construction time, the same shape
// driver/mjolnir.Options and gui.NewApp's option structs use.
type Option func(*Reader)

// WithRegion pre-configures the regulatory region Connect applies with
// SetRegion. The zero value, RegionNone, leaves the region unconfigured.
func WithRegion(r Region) Option {
	return func(rd *Reader) { rd.region = r }
}

// WithCommandTimeout sets the default timeout used by calls that don't
// take an explicit one. New defaults it to 500ms.
func WithCommandTimeout(d time.Duration) Option {
	return func(rd *Reader) { rd.commandTimeout = d }
}

// New constructs an unconnected Reader over transport, configured with
// baud as the first rate Connect will try.
func New(transport Transport, baud uint32, opts ...Option) *Reader {
	rd := &Reader{
		transport:      transport,
		userBaud:       baud,
		powerMode:      powerModeInvalid,
		commandTimeout: 500 * time.Millisecond,
		bg:             backgroundState{cond: sync.NewCond(&sync.Mutex{})},
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// Connected reports whether Connect has completed successfully.
func (r *Reader) Connected() bool {
	return r.connected
}

// Version returns the version info discovered during Connect.
func (r *Reader) Version() VersionInfo {
	return r.version
}

// Destroy shuts down the transport. If StartReading was ever called, it
// first calls StopReading, which waits for the current read cycle to
// finish; the worker goroutine stays parked and is not terminated.
func (r *Reader) Destroy() error {
	if r.bg.state != bgUnset {
		r.StopReading()
	}
	r.connected = false
	return r.transport.Shutdown()
}
