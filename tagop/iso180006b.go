package tagop

// ISO180006B tag-operation wire opcodes.
const (
	OpcodeIso180006bReadData  = 0x28
	OpcodeIso180006bWriteData = 0x24
	OpcodeIso180006bLock      = 0x25
)

// Iso180006bReadData reads Len bytes starting at Address.
type Iso180006bReadData struct {
	Address byte
	Len     byte
}

func (Iso180006bReadData) Opcode() byte { return OpcodeIso180006bReadData }

func (op Iso180006bReadData) encodeBody(buf []byte) ([]byte, error) {
	return append(buf, op.Address, op.Len), nil
}

// Iso180006bWriteData writes Data starting at Address.
type Iso180006bWriteData struct {
	Address byte
	Data    []byte
}

func (Iso180006bWriteData) Opcode() byte { return OpcodeIso180006bWriteData }

func (op Iso180006bWriteData) encodeBody(buf []byte) ([]byte, error) {
	buf = append(buf, op.Address)
	buf = append(buf, op.Data...)
	return buf, nil
}

// Iso180006bLock locks the byte at Address.
type Iso180006bLock struct {
	Address byte
}

func (Iso180006bLock) Opcode() byte { return OpcodeIso180006bLock }

func (op Iso180006bLock) encodeBody(buf []byte) ([]byte, error) {
	return append(buf, op.Address), nil
}
