package stlink

// Adapter is the operation set a debug target layer drives. Session is the
// USB implementation.
type Adapter interface {
	Version() Version
	IDCode() (uint32, error)
	State() RunState
	Reset() error
	Run() error
	Halt() error
	Step() error
	ReadRegisters() (RegisterBlock, error)
	ReadRegister(n int) (uint32, error)
	WriteRegister(n int, value uint32) error
	ReadMem8(addr uint32, length uint16, out []byte) error
	WriteMem8(addr uint32, length uint16, in []byte) error
	ReadMem32(addr uint32, words uint16, out []uint32) error
	WriteMem32(addr uint32, words uint16, in []uint32) error
	Close() error
}

var _ Adapter = (*Session)(nil)
