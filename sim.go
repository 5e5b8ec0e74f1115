package tmr

import (
	"time"
)

// SimTag configures one tag the Simulator reports from a search.
type SimTag struct {
	EPC     []byte
	Antenna uint8
	RSSI    int8
}

// Simulator is an in-memory Transport standing in for a real module,
// grounded on driver/mjolnir.Simulator's channel-driven request/response
// goroutine: a single goroutine owns all device state and serializes
// access to it through two channels, so Read/Write-style calls never
// need their own locking.
type Simulator struct {
	Tags []SimTag

	in    chan simRequest
	out   chan simResult
	close chan struct{}

	// device state. Requests are handled inside run(); SetBaudRate
	// records baud after its round trip, and tests set the switches and
	// power values below between calls.
	rxQueue    []byte
	portMask   uint16
	tagCursor  int
	readCount  uint8
	baud         uint32
	userMode     byte
	readPower    uint16
	readPowerMin uint16
	readPowerMax uint16
	writePower   uint16

	// failNextBlockWrite makes the next opBlockWrite reply with a
	// failure status instead of success, for exercising WriteGen2Data's
	// BlockFallback retry path. blockWriteCalls/wordWriteCalls count
	// requests of each kind so tests can assert the retry happened
	// exactly once.
	failNextBlockWrite bool
	blockWriteCalls    int
	wordWriteCalls     int

	// failNextClearBuffer makes the next opClearTagIDBuffer reply with
	// a failure status, for exercising a failed read cycle (e.g. the
	// background worker's disable-and-notify path).
	failNextClearBuffer bool

	// extendedEPCWrites counts opSetReaderConfig requests that set the
	// ExtendedEPC key to 1.
	extendedEPCWrites int
}

type simRequest struct {
	write bool
	want  int
	data  []byte
}

type simResult struct {
	n    int
	data []byte
	err  error
}

// NewSimulator constructs a Simulator reporting tags on Open/ReadTagID
// searches; two antenna ports (1, 2) are always reported as detected.
func NewSimulator(tags []SimTag) *Simulator {
	s := &Simulator{
		Tags:         tags,
		in:           make(chan simRequest),
		out:          make(chan simResult),
		close:        make(chan struct{}),
		portMask:     0x0003,
		baud:         9600,
		readPowerMin: 500,
		readPowerMax: 3000,
	}
	go s.run()
	return s
}

func (s *Simulator) run() {
	for {
		select {
		case <-s.close:
			s.close <- struct{}{}
			return
		case req := <-s.in:
			if req.write {
				err := s.handleWrite(req.data)
				s.out <- simResult{n: len(req.data), err: err}
			} else {
				data, err := s.handleRead(req.want)
				s.out <- simResult{n: len(data), data: data, err: err}
			}
		}
	}
}

func (s *Simulator) Open() error     { return nil }
func (s *Simulator) Shutdown() error { s.close <- struct{}{}; <-s.close; return nil }
func (s *Simulator) Flush() error    { return nil }

func (s *Simulator) SetBaudRate(baud uint32) error {
	s.in <- simRequest{write: true, data: nil}
	<-s.out
	s.baud = baud
	return nil
}

func (s *Simulator) SendBytes(buf []byte, timeout time.Duration) error {
	s.in <- simRequest{write: true, data: buf}
	r := <-s.out
	return r.err
}

func (s *Simulator) ReceiveBytes(want int, timeout time.Duration) (int, []byte, error) {
	s.in <- simRequest{write: false, want: want}
	r := <-s.out
	return r.n, r.data, r.err
}

func (s *Simulator) handleRead(want int) ([]byte, error) {
	if len(s.rxQueue) < want {
		return s.rxQueue, ErrTimeout
	}
	out := s.rxQueue[:want]
	s.rxQueue = s.rxQueue[want:]
	return out, nil
}

// handleWrite accepts either a wakeup preamble (all 0xFF bytes, ignored)
// or one complete request frame, and queues the corresponding response
// frame's bytes for ReceiveBytes to drain.
func (s *Simulator) handleWrite(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	allFF := true
	for _, b := range data {
		if b != 0xff {
			allFF = false
			break
		}
	}
	if allFF {
		return nil
	}
	if len(data) < 5 {
		return ErrParse
	}
	n := int(data[1])
	if len(data) != 5+n {
		return ErrParse
	}
	opcode := data[2]
	payload := data[3 : 3+n]

	respOpcode, status, respPayload := s.dispatch(opcode, payload)
	s.rxQueue = append(s.rxQueue, buildSimResponse(respOpcode, status, respPayload)...)
	return nil
}

func buildSimResponse(opcode byte, status uint16, payload []byte) []byte {
	buf := []byte{sof, byte(len(payload)), opcode, byte(status >> 8), byte(status)}
	buf = append(buf, payload...)
	crc := crc16(buf[1:])
	buf = append(buf, byte(crc>>8), byte(crc))
	return buf
}

// dispatch plays the device side of the wire protocol for the opcodes
// this driver issues during Connect, a read, and a firmware/profile
// round trip. Anything it doesn't recognize comes back InvalidOpcode.
func (s *Simulator) dispatch(opcode byte, payload []byte) (respOpcode byte, status uint16, respPayload []byte) {
	switch opcode {
	case opVersion:
		buf := make([]byte, 0, 20)
		buf = append(buf, 1, 0, 0, 0) // bootloader version
		buf = append(buf, 'M', '6', 'e', 0) // hardware id
		buf = append(buf, 0, 0, 0, 0) // firmware date
		buf = append(buf, 1, 2, 0, 0) // firmware version
		buf = putBE32(buf, 1<<(uint(ProtocolGen2)-1)|1<<(uint(ProtocolISO180006B)-1))
		return opVersion, 0, buf
	case opGetCurrentProgram:
		return opGetCurrentProgram, 0, []byte{0x00}
	case opBootFirmware, opBootBootloader:
		return opcode, 0, nil
	case opSetBaudRate:
		return opSetBaudRate, 0, nil
	case opGetPowerMode:
		return opGetPowerMode, 0, []byte{byte(PowerModeFull)}
	case opSetReaderConfig, opSetProtocolConfig, opSetRegion, opSetAntennaPort, opSetHopTable:
		if opcode == opSetReaderConfig && len(payload) == 2 && payload[0] == readerConfigExtendedEPC && payload[1] == 1 {
			s.extendedEPCWrites++
		}
		return opcode, 0, nil
	case opGetAntennaPort:
		buf := []byte{1, 1, 2, 1} // port 1 detected, port 2 detected
		return opGetAntennaPort, 0, buf
	case opClearTagIDBuffer:
		if s.failNextClearBuffer {
			s.failNextClearBuffer = false
			return opClearTagIDBuffer, statusInvalidParameter, nil
		}
		s.tagCursor = 0
		return opClearTagIDBuffer, 0, nil
	case opReadTagIDMultiple:
		if len(s.Tags) == 0 {
			return opReadTagIDMultiple, statusNoTagsFound, nil
		}
		return opReadTagIDMultiple, 0, putBE16(nil, uint16(len(s.Tags)))
	case opGetTagIDBuffer:
		if s.tagCursor >= len(s.Tags) {
			return opGetTagIDBuffer, statusNoTagsFound, nil
		}
		tag := s.Tags[s.tagCursor]
		s.tagCursor++
		s.readCount++
		return opGetTagIDBuffer, 0, encodeSimTagRecord(tag, s.readCount)
	case opMultiProtocolSearch:
		var buf []byte
		for _, tag := range s.Tags {
			buf = append(buf, encodeSimTagRecord(tag, 1)...)
		}
		if len(buf) == 0 {
			return opMultiProtocolSearch, statusNoTagsFound, nil
		}
		return opMultiProtocolSearch, 0, buf
	case opGetUserMode:
		return opGetUserMode, 0, []byte{s.userMode}
	case opSetUserMode:
		if len(payload) > 0 {
			s.userMode = payload[0]
		}
		return opSetUserMode, 0, nil
	case opGetReadTxPower:
		if len(payload) > 0 && payload[0] == 1 {
			// "return limits": option echo, then setPower/maxPower/minPower,
			// per TMR_SR_cmdGetReadTxPowerWithLimits.
			buf := []byte{1}
			buf = putBE16(buf, s.readPower)
			buf = putBE16(buf, s.readPowerMax)
			buf = putBE16(buf, s.readPowerMin)
			return opGetReadTxPower, 0, buf
		}
		return opGetReadTxPower, 0, putBE16(nil, s.readPower)
	case opSetReadTxPower:
		if len(payload) >= 2 {
			s.readPower = be16(payload)
		}
		return opSetReadTxPower, 0, nil
	case opGetWriteTxPower:
		return opGetWriteTxPower, 0, putBE16(nil, s.writePower)
	case opSetWriteTxPower:
		if len(payload) >= 2 {
			s.writePower = be16(payload)
		}
		return opSetWriteTxPower, 0, nil
	case opGetTemperature:
		return opGetTemperature, 0, []byte{25}
	case opEraseFlash, opWriteFlashSector, opSetUserProfile:
		return opcode, 0, nil
	case opBlockWrite:
		s.blockWriteCalls++
		if s.failNextBlockWrite {
			s.failNextBlockWrite = false
			return opBlockWrite, statusInvalidParameter, nil
		}
		return opBlockWrite, 0, nil
	case opWriteTagData:
		s.wordWriteCalls++
		return opWriteTagData, 0, nil
	case opReadTagData, opLockTag, opKillTag, opBlockPermaLock:
		return opcode, 0, nil
	default:
		return opcode, statusInvalidOpcode, nil
	}
}

// encodeSimTagRecord builds one tag-read record in the wire layout
// parseTagRecord expects: flags(readCount|RSSI|antenna|protocol), the
// flagged fields in order, EPC bit length, the Gen2 PC word, the EPC
// bytes, and a CRC.
func encodeSimTagRecord(tag SimTag, readCount uint8) []byte {
	flags := MetadataReadCount | MetadataRSSI | MetadataAntenna | MetadataProtocol
	buf := putBE16(nil, flags)
	buf = append(buf, readCount)
	buf = append(buf, byte(tag.RSSI))
	hw := tag.Antenna<<4 | (tag.Antenna & 0x0f)
	buf = append(buf, hw)
	buf = append(buf, byte(ProtocolGen2))
	buf = putBE16(buf, uint16(len(tag.EPC))*8)
	buf = append(buf, 0x30, 0x00) // Gen2 PC word
	buf = append(buf, tag.EPC...)
	buf = putBE16(buf, crc16(tag.EPC))
	return buf
}
