package tmr

import (
	"fmt"
	"time"
)

// Param is a closed set of parameter keys the serial protocol exposes.
// Re-architected per spec.md §9 as an enum dispatched through fixed-size
// presence arrays instead of the original C driver's void* + key switch.
type Param int

const (
	ParamCommandTimeout Param = iota
	ParamRegion
	ParamPowerMode
	ParamUniqueByAntenna
	ParamUniqueByData
	ParamRSSIInDBm
	ParamTxRxMap
	ParamAntennaPortSwitchGpos
	ParamGPIOInputList
	ParamGPIOOutputList
	ParamAccessPassword
	ParamWriteMode
	ParamGen2Q
	ParamGen2Target
	ParamGen2LinkFrequency
	ParamGen2Tari
	ParamPowerMin
	ParamPowerMax
	ParamSupportedProtocols
	ParamTemperature
	ParamModel
	ParamReadTxPower
	ParamWriteTxPower
	ParamUserMode
	paramCount
)

// paramSet is a fixed-size bitset over the Param key space.
type paramSet [(int(paramCount) + 63) / 64]uint64

func (s *paramSet) has(p Param) bool {
	return s[p/64]&(1<<(uint(p)%64)) != 0
}

func (s *paramSet) set(p Param) {
	s[p/64] |= 1 << (uint(p) % 64)
}

// serialReaderAlwaysPresent is the static list of keys the serial
// reader always advertises; Connect seeds present+confirmed from it so
// these never need a runtime probe (spec.md §4.3, last paragraph).
var serialReaderAlwaysPresent = []Param{
	ParamCommandTimeout,
	ParamRegion,
	ParamPowerMode,
	ParamTxRxMap,
	ParamPowerMin,
	ParamPowerMax,
	ParamSupportedProtocols,
	ParamModel,
	ParamReadTxPower,
	ParamWriteTxPower,
	ParamUserMode,
}

func (r *Reader) seedPresentParams() {
	for _, p := range serialReaderAlwaysPresent {
		r.present.set(p)
		r.confirmed.set(p)
	}
}

// WriteMode selects how Gen2 tag-data writes are carried out.
type WriteMode uint8

const (
	WriteModeWordOnly WriteMode = iota
	WriteModeBlockOnly
	WriteModeBlockFallback
)

// Gen2QType selects whether the Gen2 inventory-round slot count adapts
// automatically (dynamic) or is fixed by the host (static).
type Gen2QType uint8

const (
	Gen2QDynamic Gen2QType = iota
	Gen2QStatic
)

// Gen2Q configures the Q algorithm; InitialQ only applies when Type is
// Gen2QStatic.
type Gen2Q struct {
	Type     Gen2QType
	InitialQ uint8
}

// Gen2Target selects the Gen2 inventory session-target sequence.
type Gen2Target uint8

const (
	Gen2TargetA Gen2Target = iota
	Gen2TargetB
	Gen2TargetAB
	Gen2TargetBA
)

// Gen2Tari selects the Gen2 reader-to-tag reference time.
type Gen2Tari uint8

const (
	Gen2Tari25us Gen2Tari = iota
	Gen2Tari12_5us
	Gen2Tari6_25us
)

// paramCache holds the host's cached parameter values: the host-only
// ones (access password, write mode) and the last value successfully
// written for device-side keys such as unique-by-antenna or the Gen2
// settings, which getParam returns without querying the module.
type paramCache struct {
	accessPassword   uint32
	writeMode        WriteMode
	gen2Q            Gen2Q
	gen2Target       Gen2Target
	gen2LinkFreqKHz  uint32
	gen2Tari         Gen2Tari
	uniqueByAntenna  bool
	uniqueByData     bool
	rssiInDBm        bool
	gpioInputList    []uint8
	gpioOutputList   []uint8
}

// probe runs a key's getter once to discover firmware support, caching
// the result in present/confirmed. Subsequent Get/Set calls skip the
// probe once confirmed is set (spec.md §3 "Parameter presence").
func (r *Reader) probe(p Param, timeout time.Duration) error {
	if r.confirmed.has(p) {
		if !r.present.has(p) {
			return ErrNotFound
		}
		return nil
	}
	_, err := r.getParam(p, timeout)
	r.confirmed.set(p)
	if err == nil {
		r.present.set(p)
		return nil
	}
	if err == ErrNotFound {
		return ErrNotFound
	}
	// Any other error still means the key is presumed present (e.g.
	// a transient failure); only a clean NotFound suppresses it.
	r.present.set(p)
	return nil
}

// Param reads a parameter's current value, probing presence on first
// use.
func (r *Reader) Param(p Param, timeout time.Duration) (any, error) {
	if err := r.probe(p, timeout); err != nil {
		return nil, err
	}
	return r.getParam(p, timeout)
}

// SetParam writes a parameter's value, probing presence on first use
// and rejecting read-only keys outright.
func (r *Reader) SetParam(p Param, value any, timeout time.Duration) error {
	if isReadOnlyParam(p) {
		return ErrReadOnly
	}
	if err := r.probe(p, timeout); err != nil {
		return err
	}
	return r.setParam(p, value, timeout)
}

func isReadOnlyParam(p Param) bool {
	switch p {
	case ParamPowerMin, ParamPowerMax, ParamSupportedProtocols, ParamTemperature, ParamModel:
		return true
	}
	return false
}

func (r *Reader) getParam(p Param, timeout time.Duration) (any, error) {
	switch p {
	case ParamCommandTimeout:
		return r.commandTimeout, nil
	case ParamRegion:
		return r.region, nil
	case ParamPowerMode:
		return r.getPowerMode(timeout)
	case ParamUniqueByAntenna:
		return r.cache.uniqueByAntenna, nil
	case ParamUniqueByData:
		return r.cache.uniqueByData, nil
	case ParamRSSIInDBm:
		return r.cache.rssiInDBm, nil
	case ParamTxRxMap:
		return r.TxRxMap(), nil
	case ParamGPIOInputList:
		return append([]uint8(nil), r.cache.gpioInputList...), nil
	case ParamGPIOOutputList:
		return append([]uint8(nil), r.cache.gpioOutputList...), nil
	case ParamAccessPassword:
		return r.cache.accessPassword, nil
	case ParamWriteMode:
		return r.cache.writeMode, nil
	case ParamGen2Q:
		return r.cache.gen2Q, nil
	case ParamGen2Target:
		return r.cache.gen2Target, nil
	case ParamGen2LinkFrequency:
		return r.cache.gen2LinkFreqKHz, nil
	case ParamGen2Tari:
		return r.cache.gen2Tari, nil
	case ParamPowerMin:
		_, _, min, err := r.getPowerLimits(timeout)
		return min, err
	case ParamPowerMax:
		_, max, _, err := r.getPowerLimits(timeout)
		return max, err
	case ParamSupportedProtocols:
		return r.version.Protocols, nil
	case ParamTemperature:
		payload, err := r.command(opGetTemperature, nil, timeout)
		if err != nil {
			return nil, err
		}
		if len(payload) < 1 {
			return nil, fmt.Errorf("tmr: %w: empty temperature reply", ErrParse)
		}
		return int8(payload[0]), nil
	case ParamModel:
		return r.version.Hardware, nil
	case ParamReadTxPower:
		payload, err := r.command(opGetReadTxPower, nil, timeout)
		if err != nil {
			return nil, err
		}
		if len(payload) < 2 {
			return nil, fmt.Errorf("tmr: %w: empty read-power reply", ErrParse)
		}
		return be16(payload), nil
	case ParamWriteTxPower:
		payload, err := r.command(opGetWriteTxPower, nil, timeout)
		if err != nil {
			return nil, err
		}
		if len(payload) < 2 {
			return nil, fmt.Errorf("tmr: %w: empty write-power reply", ErrParse)
		}
		return be16(payload), nil
	case ParamUserMode:
		payload, err := r.command(opGetUserMode, nil, timeout)
		if err != nil {
			return nil, err
		}
		if len(payload) < 1 {
			return nil, fmt.Errorf("tmr: %w: empty user-mode reply", ErrParse)
		}
		return payload[0], nil
	}
	return nil, ErrNotFound
}

// getPowerLimits issues a single opGetReadTxPower request with option
// byte 1 ("return limits"), per TMR_SR_cmdGetReadTxPowerWithLimits
// (serial_reader_l3.c:2037-2061). The reply packs setPower, maxPower,
// and minPower as three consecutive big-endian uint16 fields following
// the echoed option byte, not two separate min/max calls.
func (r *Reader) getPowerLimits(timeout time.Duration) (setPower, maxPower, minPower int16, err error) {
	payload, err := r.command(opGetReadTxPower, []byte{1}, timeout)
	if err != nil {
		return 0, 0, 0, err
	}
	if len(payload) < 7 {
		return 0, 0, 0, fmt.Errorf("tmr: %w: short power-limit reply", ErrParse)
	}
	setPower = int16(be16(payload[1:3]))
	maxPower = int16(be16(payload[3:5]))
	minPower = int16(be16(payload[5:7]))
	return setPower, maxPower, minPower, nil
}

func (r *Reader) setParam(p Param, value any, timeout time.Duration) error {
	switch p {
	case ParamCommandTimeout:
		d, ok := value.(time.Duration)
		if !ok {
			return ErrInvalid
		}
		r.commandTimeout = d
		return nil
	case ParamAccessPassword:
		v, ok := value.(uint32)
		if !ok {
			return ErrInvalid
		}
		r.cache.accessPassword = v
		return nil
	case ParamWriteMode:
		v, ok := value.(WriteMode)
		if !ok {
			return ErrInvalid
		}
		r.cache.writeMode = v
		return nil
	case ParamUniqueByAntenna:
		v, ok := value.(bool)
		if !ok {
			return ErrInvalid
		}
		if _, err := r.command(opSetReaderConfig, []byte{readerConfigUniqueByAntenna, boolByte(v)}, timeout); err != nil {
			return err
		}
		r.cache.uniqueByAntenna = v
		return nil
	case ParamUniqueByData:
		v, ok := value.(bool)
		if !ok {
			return ErrInvalid
		}
		if _, err := r.command(opSetReaderConfig, []byte{readerConfigUniqueByData, boolByte(v)}, timeout); err != nil {
			return err
		}
		r.cache.uniqueByData = v
		return nil
	case ParamRSSIInDBm:
		v, ok := value.(bool)
		if !ok {
			return ErrInvalid
		}
		if _, err := r.command(opSetReaderConfig, []byte{readerConfigRSSIInDBm, boolByte(v)}, timeout); err != nil {
			return err
		}
		r.cache.rssiInDBm = v
		return nil
	case ParamTxRxMap:
		v, ok := value.([]AntennaMapEntry)
		if !ok {
			return ErrInvalid
		}
		return r.SetTxRxMap(v)
	case ParamAntennaPortSwitchGpos:
		v, ok := value.(uint8)
		if !ok {
			return ErrInvalid
		}
		return r.SetAntennaPortSwitchGpos(v, timeout)
	case ParamGPIOInputList:
		v, ok := value.([]uint8)
		if !ok {
			return ErrInvalid
		}
		return r.setGPIODirections(v, r.cache.gpioOutputList, timeout)
	case ParamGPIOOutputList:
		v, ok := value.([]uint8)
		if !ok {
			return ErrInvalid
		}
		return r.setGPIODirections(r.cache.gpioInputList, v, timeout)
	case ParamGen2Q:
		v, ok := value.(Gen2Q)
		if !ok {
			return ErrInvalid
		}
		payload := []byte{byte(ProtocolGen2), subkeyGen2Q, byte(v.Type)}
		if v.Type == Gen2QStatic {
			payload = append(payload, v.InitialQ)
		}
		if _, err := r.command(opSetProtocolConfig, payload, timeout); err != nil {
			return err
		}
		r.cache.gen2Q = v
		return nil
	case ParamGen2Target:
		v, ok := value.(Gen2Target)
		if !ok {
			return ErrInvalid
		}
		code, ok := gen2TargetCodes[v]
		if !ok {
			return ErrInvalid
		}
		payload := []byte{byte(ProtocolGen2), subkeyGen2Target}
		payload = putBE16(payload, code)
		if _, err := r.command(opSetProtocolConfig, payload, timeout); err != nil {
			return err
		}
		r.cache.gen2Target = v
		return nil
	case ParamGen2LinkFrequency:
		v, ok := value.(uint32)
		if !ok {
			return ErrInvalid
		}
		code, err := gen2LinkFrequencyByte(v)
		if err != nil {
			return err
		}
		if _, err := r.command(opSetProtocolConfig, []byte{byte(ProtocolGen2), subkeyGen2LinkFrequency, code}, timeout); err != nil {
			return err
		}
		r.cache.gen2LinkFreqKHz = v
		return nil
	case ParamGen2Tari:
		v, ok := value.(Gen2Tari)
		if !ok {
			return ErrInvalid
		}
		if _, err := r.command(opSetProtocolConfig, []byte{byte(ProtocolGen2), subkeyGen2Tari, byte(v)}, timeout); err != nil {
			return err
		}
		r.cache.gen2Tari = v
		return nil
	case ParamReadTxPower:
		v, ok := value.(uint16)
		if !ok {
			return ErrInvalid
		}
		_, err := r.command(opSetReadTxPower, putBE16(nil, v), timeout)
		return err
	case ParamWriteTxPower:
		v, ok := value.(uint16)
		if !ok {
			return ErrInvalid
		}
		_, err := r.command(opSetWriteTxPower, putBE16(nil, v), timeout)
		return err
	case ParamUserMode:
		v, ok := value.(uint8)
		if !ok {
			return ErrInvalid
		}
		_, err := r.command(opSetUserMode, []byte{v}, timeout)
		return err
	}
	return ErrNotFound
}

// setGPIODirections sends the whole input list if it differs from the
// cached one, and the whole output list if it differs; a list equal to
// its cached value is not re-sent. Pins are not compared one by one, so
// an unchanged pin in a changed list is written again.
func (r *Reader) setGPIODirections(in, out []uint8, timeout time.Duration) error {
	changedIn := !equalUint8(r.cache.gpioInputList, in)
	changedOut := !equalUint8(r.cache.gpioOutputList, out)
	if changedIn {
		payload := append([]byte{0}, in...) // direction=input
		if _, err := r.command(opSetReaderConfig, payload, timeout); err != nil {
			return err
		}
		r.cache.gpioInputList = append([]uint8(nil), in...)
	}
	if changedOut {
		payload := append([]byte{1}, out...) // direction=output
		if _, err := r.command(opSetReaderConfig, payload, timeout); err != nil {
			return err
		}
		r.cache.gpioOutputList = append([]uint8(nil), out...)
	}
	return nil
}

func equalUint8(a, b []uint8) bool {
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

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Protocol-config subkeys for opSetProtocolConfig/opGetProtocolConfig.
const (
	subkeyGen2Q             = 0x00
	subkeyGen2Target        = 0x03
	subkeyGen2LinkFrequency = 0x0a
	subkeyGen2Tari          = 0x02
)

var gen2TargetCodes = map[Gen2Target]uint16{
	Gen2TargetA:  0x0000,
	Gen2TargetB:  0x0001,
	Gen2TargetAB: 0x0002,
	Gen2TargetBA: 0x0003,
}

// gen2LinkFrequencyByte maps a BLF in kHz onto the module's opaque byte
// encoding; only the values the module documents are accepted.
func gen2LinkFrequencyByte(khz uint32) (byte, error) {
	switch khz {
	case 250:
		return 0x00, nil
	case 300:
		return 0x06, nil
	case 320:
		return 0x02, nil
	case 400:
		return 0x04, nil
	case 640:
		return 0x05, nil
	}
	return 0, ErrInvalid
}
