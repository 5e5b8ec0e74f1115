package tagop

// Filter is the tag-filter tagged variant of spec.md §3: an EPC-prefix
// match (TagData), a Gen2 Select, or an ISO180006B Select.
type Filter interface {
	isFilter()
}

// TagData is an EPC-prefix match, MSB-aligned: a tag matches if its EPC
// shares EPC's leading bits.
type TagData struct {
	EPC []byte
}

func (TagData) isFilter() {}

// Gen2Select selects on an arbitrary Gen2 memory region: Bank at
// BitPointer for BitLength bits must match Mask (bitwise, MSB-first),
// inverted if Invert is set.
type Gen2Select struct {
	Bank       Bank
	BitPointer uint32
	BitLength  uint16
	Mask       []byte
	Invert     bool
}

func (Gen2Select) isFilter() {}

// Iso180006bSelect selects by comparing Data (8 bytes starting at
// Address) against the tag's memory using Op as the comparison and
// ByteMask to restrict which of the 8 bytes participate.
type Iso180006bSelect struct {
	Op      byte
	Address byte
	ByteMask byte
	Data    [8]byte
	Invert  bool
}

func (Iso180006bSelect) isFilter() {}

// Option-byte bits, shared across Gen2 and ISO180006B encodings per
// spec.md §4.6.
const (
	optionNone                = 0x00
	optionUsePassword         = 0x80
	optionTagDataSelect       = 0x01
	optionGen2BankEPCSelect   = 0x02
	optionGen2GeneralSelect   = 0x0c
	optionInvert              = 0x10
	optionExtendedDataLength  = 0x20
	optionIso180006bSelect    = 0x04
)

// encodeFilter appends filter bytes to buf and returns the option byte
// that must accompany them, per spec.md §4.6:
//
//   - no filter, no password: option 0, nothing emitted
//   - password only: UsePassword bit set, password prepended
//   - Gen2 select on EPC (bank 1): dedicated option value
//   - Gen2 select on any other bank: general-select option value
//   - Gen2 tag-data prefix: option 1, big-endian bit length (1 or 2
//     bytes depending on length), then EPC bytes
//   - ISO180006B select: 5-byte header then 8 data bytes
//   - ISO180006B tag-data: equals-op against a derived byte mask
func encodeFilter(buf []byte, filter Filter, password uint32, usePassword bool) (byte, []byte, error) {
	option := byte(optionNone)
	if usePassword {
		option |= optionUsePassword
		buf = appendBE32(buf, password)
	}
	switch f := filter.(type) {
	case nil:
		return option, buf, nil
	case TagData:
		option |= optionTagDataSelect
		bitLen := uint16(len(f.EPC)) * 8
		if bitLen > 0xff {
			option |= optionExtendedDataLength
			buf = appendBE16(buf, bitLen)
		} else {
			buf = append(buf, byte(bitLen))
		}
		buf = append(buf, f.EPC...)
		return option, buf, nil
	case Gen2Select:
		if f.Bank == BankEPC {
			option |= optionGen2BankEPCSelect
		} else {
			option |= optionGen2GeneralSelect
			buf = append(buf, byte(f.Bank))
		}
		if f.Invert {
			option |= optionInvert
		}
		buf = appendBE32(buf, f.BitPointer)
		if f.BitLength > 0xff {
			option |= optionExtendedDataLength
			buf = appendBE16(buf, f.BitLength)
		} else {
			buf = append(buf, byte(f.BitLength))
		}
		needBytes := (int(f.BitLength) + 7) / 8
		if len(f.Mask) < needBytes {
			return 0, nil, ErrInvalid
		}
		buf = append(buf, f.Mask[:needBytes]...)
		return option, buf, nil
	case Iso180006bSelect:
		option |= optionIso180006bSelect
		if f.Invert {
			f.Op |= 0x04 // bit 2 of op signals inversion
		}
		buf = append(buf, f.Op, f.Address, f.ByteMask)
		buf = append(buf, f.Data[:]...)
		return option, buf, nil
	default:
		return 0, nil, ErrInvalid
	}
}

// EncodeFilter is the exported entry point for encoding a filter on its
// own, outside of Encode's TIMEOUT|OPTION|FILTER|BODY assembly. Simple
// read plans that carry a filter but no embedded tag operation use this
// directly against the search command instead of going through Encode.
func EncodeFilter(buf []byte, filter Filter, password uint32, usePassword bool) (option byte, out []byte, err error) {
	return encodeFilter(buf, filter, password, usePassword)
}

// Iso180006bDataFilter builds the equals-op filter for an EPC-prefix
// match on an ISO180006B tag, deriving the byte mask from epcByteCount
// with the corresponding high bits set, per spec.md §4.6.
func Iso180006bDataFilter(epc []byte) Iso180006bSelect {
	var data [8]byte
	n := copy(data[:], epc)
	var mask byte
	for i := 0; i < n; i++ {
		mask |= 1 << (7 - i)
	}
	return Iso180006bSelect{
		Op:       0x00, // equals
		Address:  0,
		ByteMask: mask,
		Data:     data,
	}
}
