package tmr

import "fmt"

// Metadata flag bits; the set bits in a record's 16-bit flag mask
// introduce the strictly-ordered optional fields listed in spec.md
// §4.5, in this same bit order.
const (
	MetadataReadCount uint16 = 1 << iota
	MetadataRSSI
	MetadataAntenna
	MetadataFrequency
	MetadataTimestamp
	MetadataPhase
	MetadataProtocol
	MetadataData
	MetadataGPIO

	// MetadataAll requests every optional field GetTagIDBuffer and
	// ReadTagMultiple know how to report.
	MetadataAll = MetadataReadCount | MetadataRSSI | MetadataAntenna |
		MetadataFrequency | MetadataTimestamp | MetadataPhase |
		MetadataProtocol | MetadataData | MetadataGPIO
)

// maxEPCBytes bounds the EPC byte slice a record can carry.
const maxEPCBytes = 62

// TagReadData is one tag-read record: EPC plus whichever metadata
// fields the request's flag mask asked for (see MetadataFlags).
type TagReadData struct {
	EPC  []byte
	CRC  uint16
	PC   [2]byte // Gen2 protocol-control word; valid iff Protocol == ProtocolGen2
	Data []byte  // embedded-op read payload, if any

	MetadataFlags uint16
	ReadCount     uint8
	RSSI          int8
	Antenna       uint8 // logical antenna id, remapped via the Tx/Rx map
	Frequency     uint32
	Phase         uint16
	Protocol      Protocol
	GPIO          uint8

	// TimestampHigh/TimestampLow are the host clock, in microseconds
	// since the Unix epoch, at the moment this tag was actually read
	// by the module: the read-start timestamp with the record's DSP
	// microsecond delta folded in (with carry).
	TimestampHigh uint32
	TimestampLow  uint32
}

// parseTagRecord decodes one tag-read record starting at buf[0],
// following the strictly-ordered optional-field layout of spec.md
// §4.5, and returns the record plus the number of bytes consumed.
// startMicros is the host clock at the moment the read that produced
// this record was issued; the record's own timestamp delta (if
// present) is folded into it with carry.
func (r *Reader) parseTagRecord(buf []byte, startMicros uint64) (TagReadData, int, error) {
	const errShort = "tmr: %w: short tag record"
	pos := 0
	need := func(n int) error {
		if pos+n > len(buf) {
			return fmt.Errorf(errShort, ErrParse)
		}
		return nil
	}
	if err := need(2); err != nil {
		return TagReadData{}, 0, err
	}
	flags := be16(buf[pos:])
	pos += 2

	var rec TagReadData
	rec.MetadataFlags = flags
	rec.TimestampHigh, rec.TimestampLow = uint32(startMicros>>32), uint32(startMicros)

	if flags&MetadataReadCount != 0 {
		if err := need(1); err != nil {
			return TagReadData{}, 0, err
		}
		rec.ReadCount = buf[pos]
		pos++
	}
	if flags&MetadataRSSI != 0 {
		if err := need(1); err != nil {
			return TagReadData{}, 0, err
		}
		rec.RSSI = int8(buf[pos])
		pos++
	}
	var hwAntenna byte
	if flags&MetadataAntenna != 0 {
		if err := need(1); err != nil {
			return TagReadData{}, 0, err
		}
		hwAntenna = buf[pos]
		pos++
	}
	if flags&MetadataFrequency != 0 {
		if err := need(3); err != nil {
			return TagReadData{}, 0, err
		}
		rec.Frequency = uint32(buf[pos])<<16 | uint32(buf[pos+1])<<8 | uint32(buf[pos+2])
		pos += 3
	}
	if flags&MetadataTimestamp != 0 {
		if err := need(4); err != nil {
			return TagReadData{}, 0, err
		}
		delta := be32(buf[pos:])
		pos += 4
		total := startMicros + uint64(delta)
		rec.TimestampHigh, rec.TimestampLow = uint32(total>>32), uint32(total)
	}
	if flags&MetadataPhase != 0 {
		if err := need(2); err != nil {
			return TagReadData{}, 0, err
		}
		rec.Phase = be16(buf[pos:])
		pos += 2
	}
	if flags&MetadataProtocol != 0 {
		if err := need(1); err != nil {
			return TagReadData{}, 0, err
		}
		rec.Protocol = Protocol(buf[pos])
		pos++
	}
	if flags&MetadataData != 0 {
		if err := need(2); err != nil {
			return TagReadData{}, 0, err
		}
		dataBits := be16(buf[pos:])
		pos += 2
		dataBytes := int(dataBits+7) / 8
		if err := need(dataBytes); err != nil {
			return TagReadData{}, 0, err
		}
		rec.Data = append([]byte(nil), buf[pos:pos+dataBytes]...)
		pos += dataBytes
	}
	if flags&MetadataGPIO != 0 {
		if err := need(1); err != nil {
			return TagReadData{}, 0, err
		}
		rec.GPIO = buf[pos]
		pos++
	}

	if err := need(2); err != nil {
		return TagReadData{}, 0, err
	}
	epcBits := be16(buf[pos:])
	pos += 2

	if rec.Protocol == ProtocolGen2 {
		if err := need(2); err != nil {
			return TagReadData{}, 0, err
		}
		copy(rec.PC[:], buf[pos:pos+2])
		pos += 2
	}

	epcBytes := int(epcBits+7) / 8
	if epcBytes > maxEPCBytes {
		epcBytes = maxEPCBytes
	}
	if err := need(epcBytes); err != nil {
		return TagReadData{}, 0, err
	}
	rec.EPC = append([]byte(nil), buf[pos:pos+epcBytes]...)
	pos += epcBytes

	if err := need(2); err != nil {
		return TagReadData{}, 0, err
	}
	rec.CRC = be16(buf[pos:])
	pos += 2

	if flags&MetadataAntenna != 0 {
		rec.Antenna = r.logicalAntenna(hwAntenna>>4, hwAntenna&0x0f)
	}

	return rec, pos, nil
}
